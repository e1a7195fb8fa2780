package units

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(logging.NewNullLogger())
}

func TestRegistry_Register(t *testing.T) {
	t.Run("roundtrip_with_defaults", func(t *testing.T) {
		registry := newTestRegistry(t)

		err := registry.Register(Definition{
			ID:          "db",
			ControlMode: ControlModeIntegrated,
			Metadata:    map[string]string{"tier": "storage"},
		})
		require.NoError(t, err)

		unit, ok := registry.Get("db")
		require.True(t, ok)
		assert.Equal(t, "db", unit.ID)
		assert.Equal(t, ControlModeIntegrated, unit.ControlMode)
		assert.Equal(t, UnitStateRegistered, unit.State)
		assert.Equal(t, "storage", unit.Metadata["tier"])
		assert.Equal(t, DefaultMaxRetries, unit.RestartPolicy.MaxRetries)
		assert.Equal(t, DefaultBackoffBase, unit.RestartPolicy.BackoffBase)
		assert.Equal(t, DefaultBackoffCap, unit.RestartPolicy.BackoffCap)
		assert.Equal(t, DefaultBackoffRate, unit.RestartPolicy.BackoffRate)
		assert.Equal(t, uint64(1), unit.Seq)
	})

	t.Run("duplicate_id_rejected", func(t *testing.T) {
		registry := newTestRegistry(t)

		require.NoError(t, registry.Register(Definition{ID: "db", ControlMode: ControlModeManaged}))
		require.NoError(t, registry.SetState("db", UnitStateStarting, ""))

		err := registry.Register(Definition{ID: "db", ControlMode: ControlModeUnmanaged})
		require.Error(t, err)
		assert.True(t, errors.IsConflictError(err))

		// The original registration is untouched by the failed attempt.
		unit, ok := registry.Get("db")
		require.True(t, ok)
		assert.Equal(t, ControlModeManaged, unit.ControlMode)
		assert.Equal(t, UnitStateStarting, unit.State)
		assert.Equal(t, 1, registry.Count())
	})

	t.Run("invalid_definition_rejected", func(t *testing.T) {
		registry := newTestRegistry(t)

		err := registry.Register(Definition{ID: "bad id!", ControlMode: ControlModeManaged})
		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
		assert.Equal(t, 0, registry.Count())
	})

	t.Run("sequence_numbers_grow", func(t *testing.T) {
		registry := newTestRegistry(t)

		require.NoError(t, registry.Register(Definition{ID: "a", ControlMode: ControlModeManaged}))
		require.NoError(t, registry.Register(Definition{ID: "b", ControlMode: ControlModeManaged}))

		first, _ := registry.Get("a")
		second, _ := registry.Get("b")
		assert.Less(t, first.Seq, second.Seq)
	})
}

func TestRegistry_Deregister(t *testing.T) {
	t.Run("unknown_unit", func(t *testing.T) {
		registry := newTestRegistry(t)

		err := registry.Deregister("ghost")
		require.Error(t, err)
		assert.True(t, errors.IsNotFoundError(err))
	})

	t.Run("registered_unit_removable", func(t *testing.T) {
		registry := newTestRegistry(t)

		require.NoError(t, registry.Register(Definition{ID: "db", ControlMode: ControlModeManaged}))
		require.NoError(t, registry.Deregister("db"))

		_, ok := registry.Get("db")
		assert.False(t, ok)
		assert.Equal(t, 0, registry.Count())
	})

	t.Run("running_unit_not_removable", func(t *testing.T) {
		registry := newTestRegistry(t)

		require.NoError(t, registry.Register(Definition{ID: "db", ControlMode: ControlModeManaged}))
		require.NoError(t, registry.SetState("db", UnitStateStarting, ""))
		require.NoError(t, registry.SetState("db", UnitStateHealthy, ""))

		err := registry.Deregister("db")
		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))

		_, ok := registry.Get("db")
		assert.True(t, ok)
	})

	t.Run("terminal_unit_removable", func(t *testing.T) {
		registry := newTestRegistry(t)

		require.NoError(t, registry.Register(Definition{ID: "db", ControlMode: ControlModeManaged}))
		require.NoError(t, registry.SetState("db", UnitStateStopping, ""))
		require.NoError(t, registry.SetState("db", UnitStateStopped, ""))
		require.NoError(t, registry.Deregister("db"))

		_, ok := registry.Get("db")
		assert.False(t, ok)
	})
}

func TestRegistry_List(t *testing.T) {
	registry := newTestRegistry(t)

	require.NoError(t, registry.Register(Definition{ID: "db", ControlMode: ControlModeIntegrated}))
	require.NoError(t, registry.Register(Definition{ID: "cache", ControlMode: ControlModeManaged}))
	require.NoError(t, registry.Register(Definition{ID: "legacy", ControlMode: ControlModeUnmanaged}))
	require.NoError(t, registry.SetState("db", UnitStateStarting, ""))

	t.Run("registration_order", func(t *testing.T) {
		all := registry.List(ListFilter{})
		require.Len(t, all, 3)
		assert.Equal(t, "db", all[0].ID)
		assert.Equal(t, "cache", all[1].ID)
		assert.Equal(t, "legacy", all[2].ID)
	})

	t.Run("filter_by_state", func(t *testing.T) {
		starting := registry.List(ListFilter{States: []UnitState{UnitStateStarting}})
		require.Len(t, starting, 1)
		assert.Equal(t, "db", starting[0].ID)
	})

	t.Run("filter_by_control_mode", func(t *testing.T) {
		managed := registry.List(ListFilter{ControlModes: []ControlMode{ControlModeManaged, ControlModeIntegrated}})
		require.Len(t, managed, 2)
		assert.Equal(t, "db", managed[0].ID)
		assert.Equal(t, "cache", managed[1].ID)
	})

	t.Run("combined_filter", func(t *testing.T) {
		none := registry.List(ListFilter{
			States:       []UnitState{UnitStateStarting},
			ControlModes: []ControlMode{ControlModeUnmanaged},
		})
		assert.Empty(t, none)
	})

	t.Run("order_survives_deregistration", func(t *testing.T) {
		require.NoError(t, registry.Deregister("cache"))
		all := registry.List(ListFilter{})
		require.Len(t, all, 2)
		assert.Equal(t, "db", all[0].ID)
		assert.Equal(t, "legacy", all[1].ID)
	})
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	t.Run("list_is_detached_from_later_writes", func(t *testing.T) {
		registry := newTestRegistry(t)

		require.NoError(t, registry.Register(Definition{ID: "db", ControlMode: ControlModeManaged}))
		before := registry.List(ListFilter{})
		require.Len(t, before, 1)

		require.NoError(t, registry.SetState("db", UnitStateStarting, ""))

		assert.Equal(t, UnitStateRegistered, before[0].State)
		after, _ := registry.Get("db")
		assert.Equal(t, UnitStateStarting, after.State)
	})

	t.Run("returned_metadata_is_a_copy", func(t *testing.T) {
		registry := newTestRegistry(t)

		require.NoError(t, registry.Register(Definition{
			ID:          "db",
			ControlMode: ControlModeManaged,
			Metadata:    map[string]string{"tier": "storage"},
			DependsOn:   []string{"disk"},
		}))

		unit, _ := registry.Get("db")
		unit.Metadata["tier"] = "tampered"
		unit.DependsOn[0] = "tampered"

		fresh, _ := registry.Get("db")
		assert.Equal(t, "storage", fresh.Metadata["tier"])
		assert.Equal(t, "disk", fresh.DependsOn[0])
	})

	t.Run("caller_definition_is_copied_in", func(t *testing.T) {
		registry := newTestRegistry(t)

		definition := Definition{
			ID:          "db",
			ControlMode: ControlModeManaged,
			Metadata:    map[string]string{"tier": "storage"},
		}
		require.NoError(t, registry.Register(definition))

		definition.Metadata["tier"] = "tampered"

		unit, _ := registry.Get("db")
		assert.Equal(t, "storage", unit.Metadata["tier"])
	})
}

func TestRegistry_SetState(t *testing.T) {
	t.Run("valid_transition", func(t *testing.T) {
		registry := newTestRegistry(t)

		require.NoError(t, registry.Register(Definition{ID: "db", ControlMode: ControlModeManaged}))
		require.NoError(t, registry.SetState("db", UnitStateStarting, ""))

		unit, _ := registry.Get("db")
		assert.Equal(t, UnitStateStarting, unit.State)
		assert.Empty(t, unit.LastError)
	})

	t.Run("detail_recorded", func(t *testing.T) {
		registry := newTestRegistry(t)

		require.NoError(t, registry.Register(Definition{ID: "db", ControlMode: ControlModeManaged}))
		require.NoError(t, registry.SetState("db", UnitStateStarting, ""))
		require.NoError(t, registry.SetState("db", UnitStateUnhealthy, "probe timeout"))

		unit, _ := registry.Get("db")
		assert.Equal(t, UnitStateUnhealthy, unit.State)
		assert.Equal(t, "probe timeout", unit.LastError)
	})

	t.Run("invalid_transition_rejected", func(t *testing.T) {
		registry := newTestRegistry(t)

		require.NoError(t, registry.Register(Definition{ID: "db", ControlMode: ControlModeManaged}))

		err := registry.SetState("db", UnitStateHealthy, "")
		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))

		unit, _ := registry.Get("db")
		assert.Equal(t, UnitStateRegistered, unit.State)
	})

	t.Run("unknown_unit", func(t *testing.T) {
		registry := newTestRegistry(t)

		err := registry.SetState("ghost", UnitStateStarting, "")
		require.Error(t, err)
		assert.True(t, errors.IsNotFoundError(err))
	})
}

func TestRegistry_RuntimeFields(t *testing.T) {
	t.Run("process_identity", func(t *testing.T) {
		registry := newTestRegistry(t)

		require.NoError(t, registry.Register(Definition{ID: "db", ControlMode: ControlModeManaged}))
		require.NoError(t, registry.SetProcess("db", 4242))

		unit, _ := registry.Get("db")
		assert.Equal(t, 4242, unit.PID)
	})

	t.Run("endpoint_for_integrated_unit", func(t *testing.T) {
		registry := newTestRegistry(t)

		require.NoError(t, registry.Register(Definition{ID: "db", ControlMode: ControlModeIntegrated}))
		require.NoError(t, registry.SetEndpoint("db", "127.0.0.1:50055"))

		unit, _ := registry.Get("db")
		assert.Equal(t, "127.0.0.1:50055", unit.Endpoint)

		// Restart on a fresh port clears then replaces the endpoint.
		require.NoError(t, registry.SetEndpoint("db", ""))
		require.NoError(t, registry.SetEndpoint("db", "127.0.0.1:50056"))
		unit, _ = registry.Get("db")
		assert.Equal(t, "127.0.0.1:50056", unit.Endpoint)
	})

	t.Run("endpoint_rejected_for_non_integrated_unit", func(t *testing.T) {
		registry := newTestRegistry(t)

		require.NoError(t, registry.Register(Definition{ID: "legacy", ControlMode: ControlModeUnmanaged}))

		err := registry.SetEndpoint("legacy", "127.0.0.1:50055")
		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("heartbeat", func(t *testing.T) {
		registry := newTestRegistry(t)

		require.NoError(t, registry.Register(Definition{ID: "db", ControlMode: ControlModeManaged}))

		at := time.Now()
		require.NoError(t, registry.SetHeartbeat("db", at))

		unit, _ := registry.Get("db")
		assert.True(t, unit.LastHeartbeat.Equal(at))
	})

	t.Run("restart_count", func(t *testing.T) {
		registry := newTestRegistry(t)

		require.NoError(t, registry.Register(Definition{ID: "db", ControlMode: ControlModeManaged}))
		require.NoError(t, registry.SetRestartCount("db", 2))

		unit, _ := registry.Get("db")
		assert.Equal(t, 2, unit.RestartCount)

		err := registry.SetRestartCount("db", -1)
		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})
}

func TestRegistry_ConcurrentReadersAndWriters(t *testing.T) {
	registry := newTestRegistry(t)

	const numUnits = 16
	for i := 0; i < numUnits; i++ {
		require.NoError(t, registry.Register(Definition{
			ID:          fmt.Sprintf("unit-%d", i),
			ControlMode: ControlModeManaged,
		}))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Writers walk each unit through its lifecycle.
	for i := 0; i < numUnits; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = registry.SetState(id, UnitStateStarting, "")
			_ = registry.SetState(id, UnitStateHealthy, "")
			_ = registry.SetProcess(id, 1000)
			_ = registry.SetHeartbeat(id, time.Now())
		}(fmt.Sprintf("unit-%d", i))
	}

	// Readers continuously observe snapshots while writes are in flight.
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				units := registry.List(ListFilter{})
				if len(units) != numUnits {
					t.Errorf("snapshot lost units: got %d", len(units))
					return
				}
				for _, unit := range units {
					if !unit.State.Valid() {
						t.Errorf("snapshot holds invalid state %q", unit.State)
						return
					}
				}
			}
		}()
	}

	// Wait for writers, then release readers.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < numUnits; i++ {
			for {
				unit, ok := registry.Get(fmt.Sprintf("unit-%d", i))
				if ok && unit.State == UnitStateHealthy {
					break
				}
				time.Sleep(time.Millisecond)
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("writers did not finish")
	}
	close(stop)
	wg.Wait()

	for i := 0; i < numUnits; i++ {
		unit, ok := registry.Get(fmt.Sprintf("unit-%d", i))
		require.True(t, ok)
		assert.Equal(t, UnitStateHealthy, unit.State)
		assert.Equal(t, 1000, unit.PID)
	}
}
