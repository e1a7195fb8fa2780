package units

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
)

// Registry is the authoritative in-memory catalog of units. All
// mutation is serialized behind a single writer lock; reads run
// lock-free against a copy-on-write snapshot, so health-monitor
// polling never blocks writers and vice versa. Construct one per
// master, never a package-level instance.
type Registry struct {
	logger logging.Logger

	writeMutex sync.Mutex
	snapshot   atomic.Value // *registrySnapshot
	nextSeq    int
}

type registrySnapshot struct {
	units map[string]Unit
	order []string
}

func NewRegistry(logger logging.Logger) *Registry {
	r := &Registry{logger: logger}
	r.snapshot.Store(&registrySnapshot{units: make(map[string]Unit)})
	return r
}

func (r *Registry) load() *registrySnapshot {
	return r.snapshot.Load().(*registrySnapshot)
}

// clone copies the current snapshot for mutation. Callers hold
// writeMutex.
func (r *Registry) clone() *registrySnapshot {
	current := r.load()
	next := &registrySnapshot{
		units: make(map[string]Unit, len(current.units)+1),
		order: make([]string, len(current.order)),
	}
	for id, unit := range current.units {
		next.units[id] = unit
	}
	copy(next.order, current.order)
	return next
}

// cloneUnit detaches the maps and slices a Unit carries so snapshot
// copies cannot alias registry state.
func cloneUnit(u Unit) Unit {
	if u.Metadata != nil {
		metadata := make(map[string]string, len(u.Metadata))
		for key, value := range u.Metadata {
			metadata[key] = value
		}
		u.Metadata = metadata
	}
	if u.DependsOn != nil {
		u.DependsOn = append([]string(nil), u.DependsOn...)
	}
	return u
}

// Register adds a unit from its definition in state Registered. It
// fails fast on a duplicate ID and never overwrites existing state.
func (r *Registry) Register(def Definition) error {
	if err := ValidateDefinition(def); err != nil {
		return err
	}

	r.writeMutex.Lock()
	defer r.writeMutex.Unlock()

	current := r.load()
	if _, exists := current.units[def.ID]; exists {
		return errors.NewConflictError("unit already registered", nil).WithContext("unit_id", def.ID)
	}

	r.nextSeq++
	unit := cloneUnit(Unit{
		ID:            def.ID,
		ControlMode:   def.ControlMode,
		State:         UnitStateRegistered,
		RestartPolicy: def.RestartPolicy.WithDefaults(),
		Metadata:      def.Metadata,
		DependsOn:     def.DependsOn,
		Seq:           r.nextSeq,
	})

	next := r.clone()
	next.units[def.ID] = unit
	next.order = append(next.order, def.ID)
	r.snapshot.Store(next)

	r.logger.Infof("Unit registered, id: %s, control_mode: %s", def.ID, def.ControlMode)
	return nil
}

// Deregister removes a unit. The unit must have been brought through
// the shutdown path first: only never-started or terminal units can
// be removed.
func (r *Registry) Deregister(id string) error {
	r.writeMutex.Lock()
	defer r.writeMutex.Unlock()

	current := r.load()
	unit, exists := current.units[id]
	if !exists {
		return errors.NewNotFoundError("unit not found", nil).WithContext("unit_id", id)
	}
	switch unit.State {
	case UnitStateRegistered, UnitStateStopped, UnitStateFailed:
	default:
		return errors.NewValidationError("unit must be stopped before deregistration", nil).
			WithContext("unit_id", id).
			WithContext("state", string(unit.State))
	}

	next := r.clone()
	delete(next.units, id)
	filtered := next.order[:0]
	for _, existing := range next.order {
		if existing != id {
			filtered = append(filtered, existing)
		}
	}
	next.order = filtered
	r.snapshot.Store(next)

	r.logger.Infof("Unit deregistered, id: %s", id)
	return nil
}

// Get returns a detached snapshot of one unit.
func (r *Registry) Get(id string) (Unit, bool) {
	unit, ok := r.load().units[id]
	if !ok {
		return Unit{}, false
	}
	return cloneUnit(unit), true
}

// ListFilter narrows List results; the zero value matches every unit.
type ListFilter struct {
	States       []UnitState
	ControlModes []ControlMode
}

func (f ListFilter) matches(unit Unit) bool {
	if len(f.States) > 0 {
		found := false
		for _, state := range f.States {
			if unit.State == state {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.ControlModes) > 0 {
		found := false
		for _, mode := range f.ControlModes {
			if unit.ControlMode == mode {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// List returns detached snapshots in registration order. Later
// registry changes do not affect the returned slice.
func (r *Registry) List(filter ListFilter) []Unit {
	snapshot := r.load()
	out := make([]Unit, 0, len(snapshot.order))
	for _, id := range snapshot.order {
		unit := snapshot.units[id]
		if filter.matches(unit) {
			out = append(out, cloneUnit(unit))
		}
	}
	return out
}

// Count returns the number of registered units.
func (r *Registry) Count() int {
	return len(r.load().units)
}

// update applies a mutation to one unit under the writer lock and
// publishes a fresh snapshot.
func (r *Registry) update(id string, apply func(*Unit) error) error {
	r.writeMutex.Lock()
	defer r.writeMutex.Unlock()

	current := r.load()
	unit, exists := current.units[id]
	if !exists {
		return errors.NewNotFoundError("unit not found", nil).WithContext("unit_id", id)
	}
	if err := apply(&unit); err != nil {
		return err
	}

	next := r.clone()
	next.units[id] = unit
	r.snapshot.Store(next)
	return nil
}

// SetState applies a lifecycle transition, rejecting edges outside
// the state machine. Detail describes the cause and becomes the
// unit's queryable last error; empty clears it.
func (r *Registry) SetState(id string, to UnitState, detail string) error {
	var from UnitState
	err := r.update(id, func(unit *Unit) error {
		from = unit.State
		if !CanTransition(unit.State, to) {
			return errors.NewValidationError(
				fmt.Sprintf("invalid state transition %s -> %s", unit.State, to), nil).
				WithContext("unit_id", id)
		}
		unit.State = to
		unit.LastError = detail
		return nil
	})
	if err != nil {
		return err
	}

	if detail != "" {
		r.logger.Warnf("Unit state transition, id: %s, %s -> %s, detail: %s", id, from, to, detail)
	} else {
		r.logger.Infof("Unit state transition, id: %s, %s -> %s", id, from, to)
	}
	return nil
}

// SetProcess records the observed process identity; 0 clears it. The
// process controller is the only writer.
func (r *Registry) SetProcess(id string, pid int) error {
	return r.update(id, func(unit *Unit) error {
		unit.PID = pid
		return nil
	})
}

// SetEndpoint records the control-plane address of an integrated unit
// once its handshake completes; empty clears it on teardown.
func (r *Registry) SetEndpoint(id string, endpoint string) error {
	return r.update(id, func(unit *Unit) error {
		if endpoint != "" && unit.ControlMode != ControlModeIntegrated {
			return errors.NewValidationError("endpoint applies only to integrated units", nil).
				WithContext("unit_id", id).
				WithContext("control_mode", string(unit.ControlMode))
		}
		unit.Endpoint = endpoint
		return nil
	})
}

// SetHeartbeat records the time of a successful probe. The health
// monitor is the only writer.
func (r *Registry) SetHeartbeat(id string, at time.Time) error {
	return r.update(id, func(unit *Unit) error {
		unit.LastHeartbeat = at
		return nil
	})
}

// SetRestartCount updates the restart counter; the orchestrator
// resets it to zero after a sustained healthy period.
func (r *Registry) SetRestartCount(id string, count int) error {
	return r.update(id, func(unit *Unit) error {
		if count < 0 {
			return errors.NewValidationError("restart count cannot be negative", nil).WithContext("unit_id", id)
		}
		unit.RestartCount = count
		return nil
	})
}
