package units

import "time"

// ControlMode classifies how deeply the master controls a unit.
type ControlMode string

const (
	// ControlModeUnmanaged units run outside master ownership; the
	// master only discovers, observes, and optionally kills them.
	ControlModeUnmanaged ControlMode = "unmanaged"

	// ControlModeManaged units are spawned and terminated by the
	// master with full OS-level control but no business API.
	ControlModeManaged ControlMode = "managed"

	// ControlModeIntegrated units add a gRPC control-plane contract on
	// top of full lifecycle control.
	ControlModeIntegrated ControlMode = "integrated"
)

func (m ControlMode) Valid() bool {
	switch m {
	case ControlModeUnmanaged, ControlModeManaged, ControlModeIntegrated:
		return true
	}
	return false
}

// MasterOwnsProcess reports whether the master spawns and terminates
// the unit's OS process.
func (m ControlMode) MasterOwnsProcess() bool {
	return m == ControlModeManaged || m == ControlModeIntegrated
}

// UnitState is the lifecycle state of a unit. State is mutated only
// through the registry, driven by the lifecycle orchestrator.
type UnitState string

const (
	// UnitStateRegistered means the unit is known but not started.
	UnitStateRegistered UnitState = "registered"

	// UnitStateStarting means a start is in progress; readiness is not
	// yet confirmed by a probe.
	UnitStateStarting UnitState = "starting"

	// UnitStateHealthy means the most recent probes succeeded.
	UnitStateHealthy UnitState = "healthy"

	// UnitStateUnhealthy means the consecutive-failure threshold was
	// crossed; the unit may still recover.
	UnitStateUnhealthy UnitState = "unhealthy"

	// UnitStateRestarting means the restart engine is cycling the
	// unit's process.
	UnitStateRestarting UnitState = "restarting"

	// UnitStateStopping means an explicit stop is in progress.
	UnitStateStopping UnitState = "stopping"

	// UnitStateStopped is terminal: the unit stopped cleanly.
	UnitStateStopped UnitState = "stopped"

	// UnitStateFailed is terminal: start failed permanently or the
	// restart policy is exhausted.
	UnitStateFailed UnitState = "failed"
)

// validTransitions defines the lifecycle edges. Stopped and Failed are
// terminal: no outgoing edges.
var validTransitions = map[UnitState][]UnitState{
	UnitStateRegistered: {UnitStateStarting, UnitStateStopping},
	UnitStateStarting:   {UnitStateHealthy, UnitStateUnhealthy, UnitStateFailed, UnitStateStopping},
	UnitStateHealthy:    {UnitStateUnhealthy, UnitStateStopping},
	UnitStateUnhealthy:  {UnitStateHealthy, UnitStateRestarting, UnitStateStopping},
	UnitStateRestarting: {UnitStateStarting, UnitStateFailed, UnitStateStopping},
	UnitStateStopping:   {UnitStateStopped},
	UnitStateStopped:    {},
	UnitStateFailed:     {},
}

func (s UnitState) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// Terminal reports whether the state has no outgoing edges.
func (s UnitState) Terminal() bool {
	return s.Valid() && len(validTransitions[s]) == 0
}

// CanTransition reports whether the edge from -> to exists in the
// lifecycle state machine.
func CanTransition(from, to UnitState) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStates returns a copy of the valid successor states.
func NextStates(from UnitState) []UnitState {
	return append([]UnitState(nil), validTransitions[from]...)
}

// Restart policy defaults applied at registration.
const (
	DefaultMaxRetries  = 3
	DefaultBackoffRate = 2.0
)

const (
	DefaultBackoffBase = time.Second
	DefaultBackoffCap  = 60 * time.Second

	// DefaultSustainedHealthyReset is how long a unit must stay healthy
	// before its restart attempt counter resets to zero.
	DefaultSustainedHealthyReset = 2 * time.Minute
)

// RestartPolicy bounds the restart engine for one unit.
type RestartPolicy struct {
	// MaxRetries is the number of unsuccessful restart attempts after
	// which the unit is declared failed. Zero means default; negative
	// disables restarts entirely.
	MaxRetries int `yaml:"max_retries,omitempty"`

	// BackoffBase is the delay before the first restart attempt.
	BackoffBase time.Duration `yaml:"backoff_base,omitempty"`

	// BackoffCap bounds the exponential growth of the delay.
	BackoffCap time.Duration `yaml:"backoff_cap,omitempty"`

	// BackoffRate multiplies the delay after each attempt.
	BackoffRate float64 `yaml:"backoff_rate,omitempty"`

	// SustainedHealthyReset is the continuous healthy time after which
	// the attempt counter resets, so an old crash spree does not count
	// against a unit that has long since recovered.
	SustainedHealthyReset time.Duration `yaml:"sustained_healthy_reset,omitempty"`
}

// WithDefaults fills zero fields with package defaults.
func (p RestartPolicy) WithDefaults() RestartPolicy {
	if p.MaxRetries == 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.BackoffBase == 0 {
		p.BackoffBase = DefaultBackoffBase
	}
	if p.BackoffCap == 0 {
		p.BackoffCap = DefaultBackoffCap
	}
	if p.BackoffRate == 0 {
		p.BackoffRate = DefaultBackoffRate
	}
	if p.SustainedHealthyReset == 0 {
		p.SustainedHealthyReset = DefaultSustainedHealthyReset
	}
	return p
}

// BackoffDelay returns the delay before restart attempt n (1-based),
// growing geometrically from BackoffBase and saturating at BackoffCap.
func (p RestartPolicy) BackoffDelay(attempt int) time.Duration {
	delay := p.BackoffBase
	if attempt <= 1 || p.BackoffRate <= 1 {
		return p.capped(delay)
	}
	value := float64(delay)
	for i := 1; i < attempt; i++ {
		value *= p.BackoffRate
		if p.BackoffCap > 0 && time.Duration(value) >= p.BackoffCap {
			return p.BackoffCap
		}
	}
	return p.capped(time.Duration(value))
}

func (p RestartPolicy) capped(delay time.Duration) time.Duration {
	if p.BackoffCap > 0 && delay > p.BackoffCap {
		return p.BackoffCap
	}
	return delay
}

// Definition is the caller-supplied declaration of a unit. Runtime
// fields (state, counters, process identity) are owned by the registry
// and its writers, never by the caller.
type Definition struct {
	ID            string            `yaml:"id"`
	ControlMode   ControlMode       `yaml:"control_mode"`
	Metadata      map[string]string `yaml:"metadata,omitempty"`
	DependsOn     []string          `yaml:"depends_on,omitempty"`
	RestartPolicy RestartPolicy     `yaml:"restart_policy,omitempty"`
}

// Unit is the registry's record for one unit. Values returned from
// the registry are detached snapshots: mutating them never changes
// registry state.
type Unit struct {
	ID          string
	ControlMode ControlMode
	State       UnitState

	// PID is the observed OS process identity, 0 when no process is
	// known. The live process handle stays with the process
	// controller; the registry only records what was observed.
	PID int

	// Endpoint is the control-plane address of an integrated unit,
	// empty until its handshake completes.
	Endpoint string

	RestartPolicy RestartPolicy
	RestartCount  int

	// LastHeartbeat is the time of the most recent successful probe.
	LastHeartbeat time.Time

	// LastError describes the most recent failure, empty when the
	// last transition carried no error detail.
	LastError string

	Metadata  map[string]string
	DependsOn []string

	// Seq is the registration sequence number; shutdown ordering
	// falls back to reverse registration order.
	Seq int
}
