package master

import (
	"context"
	"fmt"
	"runtime"
	"testing"

	"github.com/core-tools/hsu-unitmaster/pkg/coreapi"
	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/monitoring"
	"github.com/core-tools/hsu-unitmaster/pkg/process"
	"github.com/core-tools/hsu-unitmaster/pkg/processcontrol"
	"github.com/core-tools/hsu-unitmaster/pkg/processfile"
	"github.com/core-tools/hsu-unitmaster/pkg/units"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLogger is a mock implementation of Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) LogLevelf(level int, format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Debugf(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Infof(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Warnf(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Errorf(format string, args ...interface{}) {
	m.Called(format, args)
}

// createTestMaster builds a master without a core API server, so tests
// exercise unit management in isolation.
func createTestMaster(t *testing.T) *Master {
	logger := &MockLogger{}
	logger.On("LogLevelf", mock.Anything, mock.Anything).Maybe()
	logger.On("Debugf", mock.Anything, mock.Anything).Maybe()
	logger.On("Infof", mock.Anything, mock.Anything).Maybe()
	logger.On("Warnf", mock.Anything, mock.Anything).Maybe()
	logger.On("Errorf", mock.Anything, mock.Anything).Maybe()

	runCtx, runCancel := context.WithCancel(context.Background())

	master := &Master{
		logger:      logger,
		registry:    units.NewRegistry(logger),
		connections: coreapi.NewConnectionManager(logger),
		limiter:     monitoring.NewProbeLimiter(monitoring.DefaultMaxInFlightProbes),
		pathManager: processfile.NewProcessFileManager(processfile.ProcessFileConfig{}, logger),
		runCtx:      runCtx,
		runCancel:   runCancel,
		supervisors: make(map[string]*unitSupervisor),
		masterState: MasterStateNotStarted,
	}

	t.Cleanup(func() {
		for _, supervisor := range master.getAllSupervisors() {
			supervisor.close()
		}
		runCancel()
	})

	return master
}

// testUnitConfig returns an observe-only unit; adding it never touches
// a real process.
func testUnitConfig(id string) UnitConfig {
	// Use OS-dependent path for PID file
	var pidFile string
	if runtime.GOOS == "windows" {
		pidFile = fmt.Sprintf("C:\\temp\\%s.pid", id)
	} else {
		pidFile = fmt.Sprintf("/tmp/%s.pid", id)
	}

	return UnitConfig{
		ID:          id,
		ControlMode: units.ControlModeUnmanaged,
		Unit: UnitSectionConfig{
			Unmanaged: &UnmanagedUnitConfig{
				Discovery: process.DiscoveryConfig{
					Method:  process.DiscoveryMethodPIDFile,
					PIDFile: pidFile,
				},
			},
		},
	}
}

func TestMaster_AddUnit(t *testing.T) {
	ctx := context.Background()

	t.Run("valid_unit", func(t *testing.T) {
		master := createTestMaster(t)

		err := master.AddUnit(ctx, testUnitConfig("test-unit-1"))

		assert.NoError(t, err)
		assert.Equal(t, 1, len(master.getAllSupervisors()))

		unit, err := master.GetUnit("test-unit-1")
		require.NoError(t, err)
		assert.Equal(t, units.UnitStateRegistered, unit.State)
		assert.Equal(t, units.ControlModeUnmanaged, unit.ControlMode)
	})

	t.Run("nil_context", func(t *testing.T) {
		master := createTestMaster(t)
		err := master.AddUnit(nil, testUnitConfig("test-unit-1"))

		assert.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("invalid_unit_id", func(t *testing.T) {
		master := createTestMaster(t)
		config := testUnitConfig("test-unit-1")
		config.ID = ""

		err := master.AddUnit(ctx, config)

		assert.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("invalid_control_mode", func(t *testing.T) {
		master := createTestMaster(t)
		config := testUnitConfig("test-unit-1")
		config.ControlMode = units.ControlMode("supervised")

		err := master.AddUnit(ctx, config)

		assert.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("missing_unit_section", func(t *testing.T) {
		master := createTestMaster(t)
		config := testUnitConfig("test-unit-1")
		config.Unit.Unmanaged = nil

		err := master.AddUnit(ctx, config)

		assert.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("duplicate_unit", func(t *testing.T) {
		master := createTestMaster(t)

		err1 := master.AddUnit(ctx, testUnitConfig("test-unit-1"))
		err2 := master.AddUnit(ctx, testUnitConfig("test-unit-1"))

		assert.NoError(t, err1)
		require.Error(t, err2)
		assert.True(t, errors.IsConflictError(err2), "Expected ConflictError but got: %v", err2)
		assert.Equal(t, 1, len(master.getAllSupervisors()))
	})
}

func TestMaster_RemoveUnit(t *testing.T) {
	ctx := context.Background()

	t.Run("valid_removal", func(t *testing.T) {
		master := createTestMaster(t)

		err := master.AddUnit(ctx, testUnitConfig("test-unit-1"))
		require.NoError(t, err)

		// Unit is in 'registered' state, which has no process to stop
		err = master.RemoveUnit(ctx, "test-unit-1")
		assert.NoError(t, err)

		// Verify unit is removed
		_, err = master.GetUnit("test-unit-1")
		assert.Error(t, err)
		assert.True(t, errors.IsNotFoundError(err))
	})

	t.Run("nil_context", func(t *testing.T) {
		master := createTestMaster(t)
		err := master.RemoveUnit(nil, "test-unit-1")

		assert.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("invalid_unit_id", func(t *testing.T) {
		master := createTestMaster(t)
		err := master.RemoveUnit(ctx, "")

		assert.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("nonexistent_unit", func(t *testing.T) {
		master := createTestMaster(t)
		err := master.RemoveUnit(ctx, "nonexistent-unit")

		assert.Error(t, err)
		assert.True(t, errors.IsNotFoundError(err))
	})

	t.Run("can_remove_stopped_unit", func(t *testing.T) {
		master := createTestMaster(t)
		require.NoError(t, master.Start(ctx))

		err := master.AddUnit(ctx, testUnitConfig("stopped-unit"))
		require.NoError(t, err)

		// registered -> stopping -> stopped
		err = master.StopUnit(ctx, "stopped-unit")
		require.NoError(t, err)

		unit, err := master.GetUnit("stopped-unit")
		require.NoError(t, err)
		require.Equal(t, units.UnitStateStopped, unit.State)

		err = master.RemoveUnit(ctx, "stopped-unit")
		assert.NoError(t, err)

		_, err = master.GetUnit("stopped-unit")
		assert.Error(t, err)
		assert.True(t, errors.IsNotFoundError(err))
	})
}

func TestRemovableWithoutStop(t *testing.T) {
	tests := []struct {
		state    units.UnitState
		expected bool
		reason   string
	}{
		{units.UnitStateRegistered, true, "registered units have no process"},
		{units.UnitStateStarting, false, "starting units may have a process"},
		{units.UnitStateHealthy, false, "healthy units have an active process"},
		{units.UnitStateUnhealthy, false, "unhealthy units still have a process"},
		{units.UnitStateRestarting, false, "restarting units may have a process"},
		{units.UnitStateStopping, false, "stopping units still have a process"},
		{units.UnitStateStopped, true, "stopped units have no process"},
		{units.UnitStateFailed, true, "failed units have no process"},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			result := removableWithoutStop(tt.state)
			assert.Equal(t, tt.expected, result, tt.reason)
		})
	}
}

func TestMaster_StartUnit(t *testing.T) {
	ctx := context.Background()

	t.Run("nil_context", func(t *testing.T) {
		master := createTestMaster(t)
		err := master.StartUnit(nil, "test-unit-1")

		assert.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("invalid_unit_id", func(t *testing.T) {
		master := createTestMaster(t)
		err := master.StartUnit(ctx, "")

		assert.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("nonexistent_unit", func(t *testing.T) {
		master := createTestMaster(t)
		err := master.StartUnit(ctx, "nonexistent-unit")

		assert.Error(t, err)
		assert.True(t, errors.IsNotFoundError(err))
	})

	t.Run("master_not_running", func(t *testing.T) {
		master := createTestMaster(t)
		require.NoError(t, master.AddUnit(ctx, testUnitConfig("waiting-unit")))

		err := master.StartUnit(ctx, "waiting-unit")

		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
		assert.Contains(t, err.Error(), "master must be running")
	})
}

func TestMaster_StopUnit(t *testing.T) {
	ctx := context.Background()

	t.Run("nil_context", func(t *testing.T) {
		master := createTestMaster(t)
		err := master.StopUnit(nil, "test-unit-1")

		assert.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("invalid_unit_id", func(t *testing.T) {
		master := createTestMaster(t)
		err := master.StopUnit(ctx, "")

		assert.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("nonexistent_unit", func(t *testing.T) {
		master := createTestMaster(t)
		err := master.StopUnit(ctx, "nonexistent-unit")

		assert.Error(t, err)
		assert.True(t, errors.IsNotFoundError(err))
	})

	t.Run("stop_registered_unit_is_idempotent", func(t *testing.T) {
		master := createTestMaster(t)
		require.NoError(t, master.Start(ctx))
		require.NoError(t, master.AddUnit(ctx, testUnitConfig("idle-unit")))

		// A registered unit has no process; stop settles it in stopped.
		err := master.StopUnit(ctx, "idle-unit")
		assert.NoError(t, err)

		unit, err := master.GetUnit("idle-unit")
		require.NoError(t, err)
		assert.Equal(t, units.UnitStateStopped, unit.State)

		// Stopping again is a no-op.
		err = master.StopUnit(ctx, "idle-unit")
		assert.NoError(t, err)

		status, err := master.GetUnitStatus("idle-unit")
		require.NoError(t, err)
		require.Len(t, status.Transitions, 2)
		assert.Equal(t, units.UnitStateRegistered, status.Transitions[0].From)
		assert.Equal(t, units.UnitStateStopping, status.Transitions[0].To)
		assert.Equal(t, units.UnitStateStopping, status.Transitions[1].From)
		assert.Equal(t, units.UnitStateStopped, status.Transitions[1].To)
	})
}

func TestMaster_GetUnitStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("registered_unit", func(t *testing.T) {
		master := createTestMaster(t)
		require.NoError(t, master.AddUnit(ctx, testUnitConfig("status-unit")))

		status, err := master.GetUnitStatus("status-unit")

		require.NoError(t, err)
		assert.Equal(t, "status-unit", status.Unit.ID)
		assert.Equal(t, units.UnitStateRegistered, status.Unit.State)
		assert.Nil(t, status.Probe) // No monitor before start
		assert.Equal(t, processcontrol.ProcessStateIdle, status.Process)
		assert.Empty(t, status.Transitions)
	})

	t.Run("nonexistent_unit", func(t *testing.T) {
		master := createTestMaster(t)
		_, err := master.GetUnitStatus("nonexistent-unit")

		assert.Error(t, err)
		assert.True(t, errors.IsNotFoundError(err))
	})

	t.Run("all_statuses_in_registration_order", func(t *testing.T) {
		master := createTestMaster(t)
		require.NoError(t, master.AddUnit(ctx, testUnitConfig("first-unit")))
		require.NoError(t, master.AddUnit(ctx, testUnitConfig("second-unit")))

		statuses := master.GetAllUnitStatuses()

		require.Len(t, statuses, 2)
		assert.Equal(t, "first-unit", statuses[0].Unit.ID)
		assert.Equal(t, "second-unit", statuses[1].Unit.ID)
	})
}

func TestMaster_StartStop(t *testing.T) {
	ctx := context.Background()

	t.Run("start_transitions_to_running", func(t *testing.T) {
		master := createTestMaster(t)
		assert.Equal(t, MasterStateNotStarted, master.GetMasterState())

		err := master.Start(ctx)

		assert.NoError(t, err)
		assert.Equal(t, MasterStateRunning, master.GetMasterState())
	})

	t.Run("double_start_rejected", func(t *testing.T) {
		master := createTestMaster(t)
		require.NoError(t, master.Start(ctx))

		err := master.Start(ctx)

		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("stop_transitions_to_stopped", func(t *testing.T) {
		master := createTestMaster(t)
		require.NoError(t, master.Start(ctx))
		require.NoError(t, master.AddUnit(ctx, testUnitConfig("short-lived")))

		err := master.Stop(ctx)

		assert.NoError(t, err)
		assert.Equal(t, MasterStateStopped, master.GetMasterState())
	})

	t.Run("stop_when_not_running_is_noop", func(t *testing.T) {
		master := createTestMaster(t)

		err := master.Stop(ctx)

		assert.NoError(t, err)
		assert.Equal(t, MasterStateNotStarted, master.GetMasterState())
	})
}

func TestMaster_ConcurrentAddUnit(t *testing.T) {
	master := createTestMaster(t)
	ctx := context.Background()

	done := make(chan bool)
	addErrors := make(chan error, 10)

	for i := 0; i < 10; i++ {
		go func(id int) {
			err := master.AddUnit(ctx, testUnitConfig(fmt.Sprintf("unit-%d", id)))
			addErrors <- err
			done <- true
		}(i)
	}

	// Wait for all goroutines to complete
	for i := 0; i < 10; i++ {
		<-done
	}

	errorCount := 0
	for i := 0; i < 10; i++ {
		if err := <-addErrors; err != nil {
			errorCount++
		}
	}

	assert.Equal(t, 0, errorCount, "No errors should occur during concurrent AddUnit operations")
	assert.Equal(t, 10, len(master.getAllSupervisors()))
}
