package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
	"github.com/core-tools/hsu-unitmaster/pkg/resourcelimits"
)

const (
	DefaultProbeInterval    = 30 * time.Second
	DefaultProbeTimeout     = 5 * time.Second
	DefaultFailureThreshold = 3
	DefaultRestartAfter     = 30 * time.Second
)

// ProbeMethod selects the probe RPC for integrated units.
type ProbeMethod string

const (
	ProbeMethodPing   ProbeMethod = "ping"
	ProbeMethodHealth ProbeMethod = "health"
)

// ProbeOptions configures one unit's probe loop.
type ProbeOptions struct {
	Enabled      bool          `yaml:"enabled"`
	Interval     time.Duration `yaml:"interval,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	InitialDelay time.Duration `yaml:"initial_delay,omitempty"`

	// FailureThreshold is the number of consecutive probe failures
	// before the unit is reported unhealthy. A single miss never
	// flips a healthy unit.
	FailureThreshold int `yaml:"failure_threshold,omitempty"`

	// RestartAfter is how long the unit may stay unhealthy before a
	// restart is requested from the orchestrator.
	RestartAfter time.Duration `yaml:"restart_after,omitempty"`

	// Method selects Ping or GetHealth for integrated units; ignored
	// for process probes.
	Method ProbeMethod `yaml:"method,omitempty"`
}

func (o ProbeOptions) WithDefaults() ProbeOptions {
	if o.Interval == 0 {
		o.Interval = DefaultProbeInterval
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultProbeTimeout
	}
	if o.FailureThreshold == 0 {
		o.FailureThreshold = DefaultFailureThreshold
	}
	if o.RestartAfter == 0 {
		o.RestartAfter = DefaultRestartAfter
	}
	if o.Method == "" {
		o.Method = ProbeMethodPing
	}
	return o
}

type ProbeStatus string

const (
	ProbeStatusUnknown ProbeStatus = "unknown"
	ProbeStatusHealthy ProbeStatus = "healthy"
	// ProbeStatusDegraded means probes are failing but the failure
	// threshold has not been reached yet.
	ProbeStatusDegraded  ProbeStatus = "degraded"
	ProbeStatusUnhealthy ProbeStatus = "unhealthy"
)

// ProbeState is the monitor's view of one unit, queryable at any time.
type ProbeState struct {
	Status               ProbeStatus
	LastCheck            time.Time
	Message              string
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	Usage                *resourcelimits.ResourceUsage
}

// Verdict is what the monitor reports to the orchestrator. The monitor
// never mutates unit state itself.
type Verdict string

const (
	VerdictHealthy       Verdict = "healthy"
	VerdictUnhealthy     Verdict = "unhealthy"
	VerdictRestartNeeded Verdict = "restart_needed"
)

type ProbeEvent struct {
	UnitID  string
	Verdict Verdict
	Detail  string
	At      time.Time
}

// ProbeCallback receives probe events in probe order. It is invoked
// from the monitor's loop goroutine and must not block for long.
type ProbeCallback func(event ProbeEvent)

// HeartbeatSink records successful probe times; the unit registry
// satisfies it.
type HeartbeatSink interface {
	SetHeartbeat(id string, at time.Time) error
}

type HealthMonitor interface {
	Start(ctx context.Context) error
	Stop()
	State() *ProbeState
}

type HealthMonitorConfig struct {
	UnitID     string
	Prober     Prober
	Options    ProbeOptions
	Limiter    *ProbeLimiter
	Heartbeats HeartbeatSink
	Callback   ProbeCallback
}

type healthMonitor struct {
	unitID     string
	prober     Prober
	options    ProbeOptions
	limiter    *ProbeLimiter
	heartbeats HeartbeatSink
	callback   ProbeCallback
	logger     logging.Logger

	state    *ProbeState
	stopChan chan struct{}
	wg       sync.WaitGroup
	mutex    sync.Mutex

	unhealthySince   time.Time
	restartRequested bool
}

func NewHealthMonitor(config HealthMonitorConfig, logger logging.Logger) HealthMonitor {
	return &healthMonitor{
		unitID:     config.UnitID,
		prober:     config.Prober,
		options:    config.Options.WithDefaults(),
		limiter:    config.Limiter,
		heartbeats: config.Heartbeats,
		callback:   config.Callback,
		logger:     logger,
		state:      &ProbeState{Status: ProbeStatusUnknown},
		stopChan:   make(chan struct{}),
	}
}

func (m *healthMonitor) Start(ctx context.Context) error {
	if err := ValidateProbeOptions(m.options); err != nil {
		m.logger.Errorf("Probe options validation failed, unit: %s, error: %v", m.unitID, err)
		return errors.NewValidationError("invalid probe options", err).WithContext("unit_id", m.unitID)
	}
	if m.prober == nil {
		return errors.NewValidationError("health monitor requires a prober", nil).WithContext("unit_id", m.unitID)
	}

	if !m.options.Enabled {
		m.logger.Debugf("Health monitor disabled, unit: %s", m.unitID)
		return nil
	}

	m.logger.Infof("Starting health monitor, unit: %s, probe: %s, interval: %v",
		m.unitID, m.prober.Name(), m.options.Interval)

	m.wg.Add(1)
	go m.loop(ctx)
	return nil
}

func (m *healthMonitor) Stop() {
	m.logger.Debugf("Stopping health monitor, unit: %s", m.unitID)
	close(m.stopChan)
	m.wg.Wait()
	m.logger.Debugf("Health monitor stopped, unit: %s", m.unitID)
}

func (m *healthMonitor) State() *ProbeState {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	stateCopy := *m.state
	return &stateCopy
}

func (m *healthMonitor) loop(ctx context.Context) {
	defer m.wg.Done()

	if m.options.InitialDelay > 0 {
		select {
		case <-time.After(m.options.InitialDelay):
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}

	ticker := time.NewTicker(m.options.Interval)
	defer ticker.Stop()

	m.performProbe(ctx)

	for {
		select {
		case <-ticker.C:
			m.performProbe(ctx)
		case <-m.stopChan:
			m.logger.Debugf("Health monitor loop stopping, unit: %s", m.unitID)
			return
		case <-ctx.Done():
			m.logger.Debugf("Health monitor loop cancelled, unit: %s", m.unitID)
			return
		}
	}
}

func (m *healthMonitor) performProbe(ctx context.Context) {
	if m.limiter != nil {
		if !m.limiter.Acquire(ctx, m.stopChan) {
			return
		}
		defer m.limiter.Release()
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.options.Timeout)
	result := m.prober.Probe(probeCtx)
	cancel()

	m.applyResult(result)
}

func (m *healthMonitor) applyResult(result ProbeResult) {
	now := time.Now()

	m.mutex.Lock()

	previous := m.state.Status
	m.state.LastCheck = now
	m.state.Message = result.Detail
	if result.Usage != nil {
		m.state.Usage = result.Usage
	}

	var events []ProbeEvent

	if result.OK {
		m.state.ConsecutiveSuccesses++
		m.state.ConsecutiveFailures = 0
		m.unhealthySince = time.Time{}
		m.restartRequested = false

		if previous != ProbeStatusHealthy {
			m.state.Status = ProbeStatusHealthy
			m.logger.Infof("Probe healthy, unit: %s, previous: %s, detail: %s", m.unitID, previous, result.Detail)
			events = append(events, ProbeEvent{UnitID: m.unitID, Verdict: VerdictHealthy, Detail: result.Detail, At: now})
		} else {
			m.logger.Debugf("Probe passed, unit: %s, consecutive_successes: %d", m.unitID, m.state.ConsecutiveSuccesses)
		}
	} else {
		m.state.ConsecutiveFailures++
		m.state.ConsecutiveSuccesses = 0

		if m.state.ConsecutiveFailures >= m.options.FailureThreshold {
			if previous != ProbeStatusUnhealthy {
				m.state.Status = ProbeStatusUnhealthy
				m.unhealthySince = now
				m.logger.Warnf("Probe threshold crossed, unit: %s, consecutive_failures: %d, detail: %s",
					m.unitID, m.state.ConsecutiveFailures, result.Detail)
				events = append(events, ProbeEvent{UnitID: m.unitID, Verdict: VerdictUnhealthy, Detail: result.Detail, At: now})
			} else {
				m.logger.Warnf("Probe still failing, unit: %s, consecutive_failures: %d, detail: %s",
					m.unitID, m.state.ConsecutiveFailures, result.Detail)
			}

			if !m.restartRequested && now.Sub(m.unhealthySince) >= m.options.RestartAfter {
				m.restartRequested = true
				m.logger.Warnf("Requesting restart, unit: %s, unhealthy_for: %v, detail: %s",
					m.unitID, now.Sub(m.unhealthySince), result.Detail)
				events = append(events, ProbeEvent{UnitID: m.unitID, Verdict: VerdictRestartNeeded, Detail: result.Detail, At: now})
			}
		} else {
			m.state.Status = ProbeStatusDegraded
			m.logger.Warnf("Probe failed below threshold, unit: %s, consecutive_failures: %d, threshold: %d, detail: %s",
				m.unitID, m.state.ConsecutiveFailures, m.options.FailureThreshold, result.Detail)
		}
	}

	m.mutex.Unlock()

	// Heartbeat and callback run outside the state lock; the callback
	// may query State().
	if result.OK && m.heartbeats != nil {
		if err := m.heartbeats.SetHeartbeat(m.unitID, now); err != nil {
			m.logger.Debugf("Heartbeat write failed, unit: %s, error: %v", m.unitID, err)
		}
	}
	if m.callback != nil {
		for _, event := range events {
			m.callback(event)
		}
	}
}
