package master

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/coreapi"
	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logcollection"
	logconfig "github.com/core-tools/hsu-unitmaster/pkg/logcollection/config"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
	"github.com/core-tools/hsu-unitmaster/pkg/monitoring"
	"github.com/core-tools/hsu-unitmaster/pkg/process"
	"github.com/core-tools/hsu-unitmaster/pkg/processcontrol"
	"github.com/core-tools/hsu-unitmaster/pkg/processfile"
	"github.com/core-tools/hsu-unitmaster/pkg/resourcelimits"
	"github.com/core-tools/hsu-unitmaster/pkg/units"
)

const (
	// supervisorEventBuffer bounds queued monitor and exit events per
	// unit. The loop drains continuously; events only pile up while a
	// command handler is running.
	supervisorEventBuffer = 16

	// endpointWaitTimeout bounds how long an integrated start waits for
	// the unit to publish its port file. Resolution failure is not
	// fatal: probes keep failing and the restart engine takes over.
	endpointWaitTimeout = 10 * time.Second

	endpointPollInterval = 200 * time.Millisecond

	// transitionHistoryLimit bounds the per-unit transition record;
	// older entries are evicted oldest-first.
	transitionHistoryLimit = 32
)

// StateTransition is one recorded lifecycle edge of a unit.
type StateTransition struct {
	From   units.UnitState
	To     units.UnitState
	Detail string
	At     time.Time
}

type commandKind int

const (
	commandStart commandKind = iota
	commandStop
)

type supervisorCommand struct {
	kind  commandKind
	ctx   context.Context
	reply chan error
}

type eventKind int

const (
	eventProbe eventKind = iota
	eventExit
	eventViolation
	eventRestartDue
)

type supervisorEvent struct {
	kind eventKind

	// generation stamps the process session a probe or restart timer
	// belongs to; the loop drops events from sessions it already tore
	// down. Exit and violation events carry no generation, the state
	// checks in their handlers are enough.
	generation int

	probe     monitoring.ProbeEvent
	exit      processcontrol.ExitEvent
	violation *resourcelimits.ResourceViolation
}

// supervisorDeps is the shared master infrastructure handed to every
// unit supervisor.
type supervisorDeps struct {
	registry      *units.Registry
	connections   *coreapi.ConnectionManager
	limiter       *monitoring.ProbeLimiter
	logCollection logcollection.LogCollectionService
	pathManager   *processfile.ProcessFileManager
	runCtx        context.Context
}

// unitSupervisor owns every lifecycle decision for one unit. Decisions
// are serialized through a single loop goroutine: commands from the
// master and events from the monitor, the process controller, and the
// restart timer all land in the same mailbox and are applied in arrival
// order. Unit state itself lives in the registry.
type unitSupervisor struct {
	id       string
	mode     units.ControlMode
	settings unitSettings
	policy   units.RestartPolicy
	deps     supervisorDeps
	logger   logging.Logger

	control processcontrol.ProcessControl

	commands chan supervisorCommand
	events   chan supervisorEvent
	quit     chan struct{}
	done     chan struct{}

	closeOnce sync.Once

	// Loop-owned; never touched outside the run goroutine.
	generation      int
	attempts        int
	healthySince    time.Time
	restartTimer    *time.Timer
	noRestartLogged bool

	// mu guards the fields the monitor goroutine and status queries
	// read while the loop writes.
	mu       sync.Mutex
	monitor  monitoring.HealthMonitor
	endpoint string
	history  []StateTransition
}

func newUnitSupervisor(cfg UnitConfig, logConfig *logconfig.UnitLogConfig, deps supervisorDeps, logger logging.Logger) *unitSupervisor {
	settings := cfg.settings()
	s := &unitSupervisor{
		id:       cfg.ID,
		mode:     cfg.ControlMode,
		settings: settings,
		policy:   settings.restart.WithDefaults(),
		deps:     deps,
		logger:   logger,
		commands: make(chan supervisorCommand),
		events:   make(chan supervisorEvent, supervisorEventBuffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.control = processcontrol.NewProcessControl(s.controlOptions(logConfig), cfg.ID, logger)
	return s
}

func (s *unitSupervisor) controlOptions(logConfig *logconfig.UnitLogConfig) processcontrol.Options {
	options := processcontrol.Options{
		CanAttach:         s.settings.discovery != nil,
		CanTerminate:      s.settings.canTerminate,
		GracefulTimeout:   s.settings.graceful,
		Limits:            s.settings.limits,
		ExitCallback:      s.onExit,
		ViolationCallback: s.onViolation,
	}
	if s.settings.execution != nil {
		options.ExecuteCmd = process.NewStdExecuteCmd(*s.settings.execution, s.id, s.logger)
	}
	if s.settings.discovery != nil {
		options.AttachCmd = process.NewStdAttachCmd(*s.settings.discovery, s.id, s.logger)
	}
	if s.deps.logCollection != nil && logConfig != nil {
		options.LogCollection = s.deps.logCollection
		options.LogConfig = logConfig
	}
	return options
}

// run is the supervisor loop. It exits when close is called; the caller
// is responsible for stopping the unit first.
func (s *unitSupervisor) run() {
	defer close(s.done)
	for {
		select {
		case cmd := <-s.commands:
			cmd.reply <- s.handleCommand(cmd)
		case event := <-s.events:
			s.handleEvent(event)
		case <-s.quit:
			s.cancelRestartTimer()
			s.stopMonitor()
			return
		}
	}
}

// close shuts the loop down without touching the unit's process.
func (s *unitSupervisor) close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
}

func (s *unitSupervisor) requestStart(ctx context.Context) error {
	return s.request(ctx, commandStart)
}

func (s *unitSupervisor) requestStop(ctx context.Context) error {
	return s.request(ctx, commandStop)
}

func (s *unitSupervisor) request(ctx context.Context, kind commandKind) error {
	cmd := supervisorCommand{kind: kind, ctx: ctx, reply: make(chan error, 1)}
	select {
	case s.commands <- cmd:
	case <-s.quit:
		return errors.NewCancelledError(fmt.Sprintf("unit supervisor closed, id: %s", s.id), nil)
	case <-ctx.Done():
		return errors.NewCancelledError(fmt.Sprintf("request cancelled, id: %s", s.id), ctx.Err())
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return errors.NewCancelledError(fmt.Sprintf("request cancelled, id: %s", s.id), ctx.Err())
	}
}

// postEvent delivers an event to the loop. A closed supervisor stops
// draining its mailbox, so delivery gives up once the loop is gone.
func (s *unitSupervisor) postEvent(event supervisorEvent) {
	select {
	case s.events <- event:
	case <-s.done:
	}
}

func (s *unitSupervisor) onExit(event processcontrol.ExitEvent) {
	s.postEvent(supervisorEvent{kind: eventExit, exit: event})
}

func (s *unitSupervisor) onViolation(violation *resourcelimits.ResourceViolation) {
	s.postEvent(supervisorEvent{kind: eventViolation, violation: violation})
}

func (s *unitSupervisor) handleCommand(cmd supervisorCommand) error {
	switch cmd.kind {
	case commandStart:
		return s.handleStart(cmd.ctx)
	case commandStop:
		return s.handleStop(cmd.ctx)
	default:
		return errors.NewInternalError(fmt.Sprintf("unknown supervisor command: %d", cmd.kind), nil)
	}
}

func (s *unitSupervisor) handleEvent(event supervisorEvent) {
	switch event.kind {
	case eventProbe:
		s.handleProbeEvent(event)
	case eventExit:
		s.handleExitEvent(event.exit)
	case eventViolation:
		s.handleViolation(event.violation)
	case eventRestartDue:
		s.handleRestartDue(event.generation)
	}
}

func (s *unitSupervisor) state() units.UnitState {
	unit, ok := s.deps.registry.Get(s.id)
	if !ok {
		return units.UnitStateStopped
	}
	return unit.State
}

func (s *unitSupervisor) setState(to units.UnitState, detail string) {
	from := s.state()
	if err := s.deps.registry.SetState(s.id, to, detail); err != nil {
		s.logger.Errorf("State transition rejected, id: %s, to: %s, error: %v", s.id, to, err)
		return
	}

	s.mu.Lock()
	if len(s.history) == transitionHistoryLimit {
		copy(s.history, s.history[1:])
		s.history = s.history[:transitionHistoryLimit-1]
	}
	s.history = append(s.history, StateTransition{From: from, To: to, Detail: detail, At: time.Now()})
	s.mu.Unlock()
}

// stateHistory returns the recorded transitions, oldest first.
func (s *unitSupervisor) stateHistory() []StateTransition {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := make([]StateTransition, len(s.history))
	copy(history, s.history)
	return history
}

func (s *unitSupervisor) handleStart(ctx context.Context) error {
	state := s.state()
	if state != units.UnitStateRegistered {
		return errors.NewValidationError(
			fmt.Sprintf("cannot start unit in state '%s', id: %s", state, s.id), nil)
	}

	s.logger.Infof("Starting unit, id: %s, mode: %s", s.id, s.mode)
	s.setState(units.UnitStateStarting, "")

	if err := s.bringUp(ctx, false); err != nil {
		if errors.IsCancelledError(err) || ctx.Err() != nil {
			s.setState(units.UnitStateStopping, "start cancelled")
			s.setState(units.UnitStateStopped, "start cancelled")
			return errors.NewCancelledError(fmt.Sprintf("unit start cancelled, id: %s", s.id), err)
		}
		if errors.IsTransientError(err) {
			s.logger.Warnf("Unit start failed, restart engine takes over, id: %s, error: %v", s.id, err)
			s.setState(units.UnitStateUnhealthy, err.Error())
			s.beginRestart(err.Error())
			return errors.NewProcessError(fmt.Sprintf("unit start failed, id: %s", s.id), err)
		}
		s.setState(units.UnitStateFailed, err.Error())
		return errors.NewProcessError(fmt.Sprintf("unit start failed, id: %s", s.id), err)
	}

	s.markRunning()
	s.logger.Infof("Unit started, id: %s, pid: %d", s.id, s.control.PID())
	return nil
}

// bringUp spawns or attaches the process, resolves an integrated unit's
// endpoint and starts the probe loop. Every call opens a new process
// session: the generation bump invalidates events from the previous one.
func (s *unitSupervisor) bringUp(ctx context.Context, respawn bool) error {
	s.generation++

	var err error
	if respawn {
		err = s.control.Restart(ctx)
	} else {
		err = s.control.Start(ctx)
	}
	if err != nil {
		return err
	}

	if err := s.deps.registry.SetProcess(s.id, s.control.PID()); err != nil {
		s.logger.Warnf("Recording PID failed, id: %s, error: %v", s.id, err)
	}

	if s.mode == units.ControlModeIntegrated {
		s.resolveEndpoint(ctx)
	}

	s.startMonitor()
	return nil
}

// markRunning settles the post-start state of a unit without probes.
// Probed units stay starting until the first verdict arrives.
func (s *unitSupervisor) markRunning() {
	if s.settings.health.Enabled {
		return
	}
	s.setState(units.UnitStateHealthy, "probes disabled")
	s.healthySince = time.Now()
	s.publishEndpoint()
}

// resolveEndpoint determines the core address of an integrated unit. A
// configured port wins; otherwise the unit allocates its own port and
// publishes it through its port file shortly after boot.
func (s *unitSupervisor) resolveEndpoint(ctx context.Context) {
	if s.settings.endpointPort > 0 {
		s.setEndpoint(fmt.Sprintf("localhost:%d", s.settings.endpointPort))
		return
	}

	deadline := time.Now().Add(endpointWaitTimeout)
	for {
		port, err := s.deps.pathManager.ReadPortFile(s.id)
		if err == nil && port > 0 {
			s.setEndpoint(fmt.Sprintf("localhost:%d", port))
			return
		}
		if ctx.Err() != nil || time.Now().After(deadline) {
			s.logger.Warnf("Endpoint not resolved, probes will fail until the unit publishes its port, id: %s", s.id)
			return
		}
		select {
		case <-time.After(endpointPollInterval):
		case <-ctx.Done():
		}
	}
}

func (s *unitSupervisor) setEndpoint(endpoint string) {
	s.mu.Lock()
	s.endpoint = endpoint
	s.mu.Unlock()
	s.logger.Infof("Unit endpoint resolved, id: %s, endpoint: %s", s.id, endpoint)
}

func (s *unitSupervisor) currentEndpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

// publishEndpoint makes the endpoint visible to status consumers once
// the unit is confirmed up.
func (s *unitSupervisor) publishEndpoint() {
	endpoint := s.currentEndpoint()
	if endpoint == "" {
		return
	}
	if err := s.deps.registry.SetEndpoint(s.id, endpoint); err != nil {
		s.logger.Warnf("Recording endpoint failed, id: %s, error: %v", s.id, err)
	}
}

// clearProcess wipes the observed process identity after an exit or
// stop: PID, endpoint, and the cached core connection.
func (s *unitSupervisor) clearProcess() {
	if err := s.deps.registry.SetProcess(s.id, 0); err != nil {
		s.logger.Debugf("Clearing PID failed, id: %s, error: %v", s.id, err)
	}
	s.mu.Lock()
	s.endpoint = ""
	s.mu.Unlock()
	s.deps.connections.Close(s.id)
	if err := s.deps.registry.SetEndpoint(s.id, ""); err != nil {
		s.logger.Debugf("Clearing endpoint failed, id: %s, error: %v", s.id, err)
	}
}

// gateway hands the prober a core channel for the current endpoint.
// Called from the monitor goroutine.
func (s *unitSupervisor) gateway() coreapi.Contract {
	endpoint := s.currentEndpoint()
	if endpoint == "" {
		return nil
	}
	contract, err := s.deps.connections.Gateway(s.id, endpoint)
	if err != nil {
		s.logger.Debugf("Core gateway unavailable, id: %s, endpoint: %s, error: %v", s.id, endpoint, err)
		return nil
	}
	return contract
}

func (s *unitSupervisor) prober() monitoring.Prober {
	switch s.mode {
	case units.ControlModeIntegrated:
		return monitoring.NewProberForMethod(s.settings.health.Method, s.gateway)
	case units.ControlModeManaged:
		checker := resourcelimits.NewResourceViolationChecker(s.logger)
		return monitoring.NewManagedProber(s.control.PID, s.control, s.settings.limits, checker)
	default:
		return monitoring.NewProcessProber(s.control.PID)
	}
}

func (s *unitSupervisor) startMonitor() {
	if !s.settings.health.Enabled {
		return
	}

	generation := s.generation
	monitor := monitoring.NewHealthMonitor(monitoring.HealthMonitorConfig{
		UnitID:     s.id,
		Prober:     s.prober(),
		Options:    s.settings.health,
		Limiter:    s.deps.limiter,
		Heartbeats: s.deps.registry,
		Callback: func(event monitoring.ProbeEvent) {
			s.postEvent(supervisorEvent{kind: eventProbe, generation: generation, probe: event})
		},
	}, s.logger)

	if err := monitor.Start(s.deps.runCtx); err != nil {
		s.logger.Errorf("Health monitor start failed, id: %s, error: %v", s.id, err)
		return
	}
	s.mu.Lock()
	s.monitor = monitor
	s.mu.Unlock()
}

// stopMonitor tears the probe loop down without joining it. The loop
// may be blocked delivering an event to this supervisor, so joining
// here would deadlock; the generation bump turns late events into
// no-ops instead.
func (s *unitSupervisor) stopMonitor() {
	s.generation++
	s.mu.Lock()
	monitor := s.monitor
	s.monitor = nil
	s.mu.Unlock()
	if monitor != nil {
		go monitor.Stop()
	}
}

// probeState reports the monitor's current view, nil when no probe
// loop is running. Safe to call from any goroutine.
func (s *unitSupervisor) probeState() *monitoring.ProbeState {
	s.mu.Lock()
	monitor := s.monitor
	s.mu.Unlock()
	if monitor == nil {
		return nil
	}
	return monitor.State()
}

func (s *unitSupervisor) processState() processcontrol.ProcessState {
	return s.control.State()
}

func (s *unitSupervisor) handleProbeEvent(event supervisorEvent) {
	if event.generation != s.generation {
		return
	}

	state := s.state()
	probe := event.probe
	switch probe.Verdict {
	case monitoring.VerdictHealthy:
		switch state {
		case units.UnitStateStarting, units.UnitStateUnhealthy:
			s.setState(units.UnitStateHealthy, probe.Detail)
			s.healthySince = probe.At
			s.noRestartLogged = false
			s.publishEndpoint()
			s.logger.Infof("Unit became healthy, id: %s", s.id)
		}

	case monitoring.VerdictUnhealthy:
		switch state {
		case units.UnitStateStarting, units.UnitStateHealthy:
			s.noteLeavingHealthy(state, probe.At)
			s.setState(units.UnitStateUnhealthy, probe.Detail)
			s.logger.Warnf("Unit became unhealthy, id: %s, detail: %s", s.id, probe.Detail)
		}

	case monitoring.VerdictRestartNeeded:
		switch state {
		case units.UnitStateStarting:
			s.setState(units.UnitStateUnhealthy, probe.Detail)
			s.beginRestart(probe.Detail)
		case units.UnitStateUnhealthy:
			s.beginRestart(probe.Detail)
		default:
			s.logger.Debugf("Restart request ignored in state '%s', id: %s", state, s.id)
		}
	}
}

// noteLeavingHealthy applies the sustained-healthy reset: a unit that
// stayed healthy long enough gets its restart budget back before the
// new failure episode starts counting.
func (s *unitSupervisor) noteLeavingHealthy(from units.UnitState, at time.Time) {
	if from != units.UnitStateHealthy || s.healthySince.IsZero() {
		return
	}
	span := at.Sub(s.healthySince)
	s.healthySince = time.Time{}
	if s.attempts > 0 && s.policy.SustainedHealthyReset > 0 && span >= s.policy.SustainedHealthyReset {
		s.logger.Infof("Healthy for %s, restart budget reset, id: %s", span, s.id)
		s.attempts = 0
		if err := s.deps.registry.SetRestartCount(s.id, 0); err != nil {
			s.logger.Warnf("Resetting restart count failed, id: %s, error: %v", s.id, err)
		}
	}
}

// handleExitEvent reacts to a process that went away outside an
// orchestrated stop. The controller has already cleaned up; what is
// left is the lifecycle decision.
func (s *unitSupervisor) handleExitEvent(event processcontrol.ExitEvent) {
	state := s.state()
	switch state {
	case units.UnitStateRegistered, units.UnitStateRestarting,
		units.UnitStateStopping, units.UnitStateStopped, units.UnitStateFailed:
		return
	}

	detail := fmt.Sprintf("process exited, pid: %d, exit code: %d", event.PID, event.ExitCode)
	if event.Err != nil {
		detail = fmt.Sprintf("%s, error: %v", detail, event.Err)
	}
	s.logger.Warnf("Unit process exited unexpectedly, id: %s, pid: %d, exit code: %d", s.id, event.PID, event.ExitCode)

	s.stopMonitor()
	s.noteLeavingHealthy(state, event.At)
	s.clearProcess()
	s.setState(units.UnitStateUnhealthy, detail)
	s.beginRestart(detail)
}

// handleViolation reacts to a resource violation whose configured
// policy is restart. The process is still running at this point.
func (s *unitSupervisor) handleViolation(violation *resourcelimits.ResourceViolation) {
	state := s.state()
	switch state {
	case units.UnitStateStarting, units.UnitStateHealthy, units.UnitStateUnhealthy:
	default:
		return
	}

	detail := fmt.Sprintf("resource limit violated: %s", violation.Message)
	s.logger.Warnf("Resource violation, cycling unit, id: %s, violation: %s", s.id, violation.Message)
	s.stopMonitor()
	s.noteLeavingHealthy(state, time.Now())
	s.setState(units.UnitStateUnhealthy, detail)
	s.beginRestart(detail)
}

// beginRestart runs one step of the restart engine: check the budget,
// then either arm the backoff timer or declare the unit failed. The
// unit must be in unhealthy state.
func (s *unitSupervisor) beginRestart(reason string) {
	s.stopMonitor()

	if s.policy.MaxRetries < 0 {
		if !s.noRestartLogged {
			s.logger.Infof("Restarts disabled, unit stays unhealthy, id: %s", s.id)
			s.noRestartLogged = true
		}
		return
	}

	if s.attempts >= s.policy.MaxRetries {
		s.setState(units.UnitStateRestarting, reason)
		s.setState(units.UnitStateFailed,
			fmt.Sprintf("restart budget exhausted after %d attempts", s.attempts))
		s.logger.Errorf("Unit failed permanently, id: %s, attempts: %d", s.id, s.attempts)
		s.ensureProcessStopped()
		return
	}

	s.attempts++
	if err := s.deps.registry.SetRestartCount(s.id, s.attempts); err != nil {
		s.logger.Warnf("Recording restart count failed, id: %s, error: %v", s.id, err)
	}
	delay := s.policy.BackoffDelay(s.attempts)
	s.setState(units.UnitStateRestarting, reason)
	s.logger.Infof("Restart scheduled, id: %s, attempt: %d/%d, delay: %s", s.id, s.attempts, s.policy.MaxRetries, delay)

	s.cancelRestartTimer()
	generation := s.generation
	s.restartTimer = time.AfterFunc(delay, func() {
		s.postEvent(supervisorEvent{kind: eventRestartDue, generation: generation})
	})
}

func (s *unitSupervisor) cancelRestartTimer() {
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
}

// ensureProcessStopped kills whatever is left of a unit that just went
// failed. An unhealthy process may well still be running.
func (s *unitSupervisor) ensureProcessStopped() {
	if err := s.control.Stop(context.Background()); err != nil {
		s.logger.Warnf("Stopping failed unit process, id: %s, error: %v", s.id, err)
	}
	s.clearProcess()
}

func (s *unitSupervisor) handleRestartDue(generation int) {
	if generation != s.generation {
		return
	}
	if s.state() != units.UnitStateRestarting {
		return
	}

	s.logger.Infof("Restart attempt %d/%d, id: %s", s.attempts, s.policy.MaxRetries, s.id)
	s.setState(units.UnitStateStarting, fmt.Sprintf("restart attempt %d", s.attempts))
	s.clearProcess()

	if err := s.bringUp(s.deps.runCtx, true); err != nil {
		s.setState(units.UnitStateUnhealthy, err.Error())
		if s.deps.runCtx.Err() != nil {
			return
		}
		s.logger.Warnf("Restart attempt %d failed, id: %s, error: %v", s.attempts, s.id, err)
		s.beginRestart(err.Error())
		return
	}

	s.markRunning()
	s.logger.Infof("Unit restarted, id: %s, pid: %d", s.id, s.control.PID())
}

// shutdownGateway asks an integrated unit to exit on its own before
// the process controller escalates to signals.
func (s *unitSupervisor) shutdownGateway(ctx context.Context) {
	if s.mode != units.ControlModeIntegrated {
		return
	}
	endpoint := s.currentEndpoint()
	if endpoint == "" {
		return
	}
	gateway, err := s.deps.connections.Gateway(s.id, endpoint)
	if err != nil {
		s.logger.Debugf("Core gateway unavailable for shutdown, id: %s, error: %v", s.id, err)
		return
	}
	if err := gateway.Shutdown(ctx, s.gracefulWindow()); err != nil {
		s.logger.Warnf("Cooperative shutdown failed, id: %s, error: %v", s.id, err)
	}
}

func (s *unitSupervisor) gracefulWindow() time.Duration {
	if s.settings.graceful > 0 {
		return s.settings.graceful
	}
	return processcontrol.DefaultGracefulTimeout
}

func (s *unitSupervisor) handleStop(ctx context.Context) error {
	state := s.state()
	switch state {
	case units.UnitStateStopped, units.UnitStateFailed:
		return nil
	}

	s.logger.Infof("Stopping unit, id: %s, state: %s", s.id, state)
	s.cancelRestartTimer()
	s.stopMonitor()
	if state != units.UnitStateStopping {
		s.setState(units.UnitStateStopping, "")
	}

	s.shutdownGateway(ctx)
	err := s.control.Stop(ctx)
	s.clearProcess()
	if err != nil {
		s.setState(units.UnitStateStopped, fmt.Sprintf("stop error: %v", err))
		return errors.NewProcessError(fmt.Sprintf("unit stop failed, id: %s", s.id), err)
	}

	s.setState(units.UnitStateStopped, "")
	s.logger.Infof("Unit stopped, id: %s", s.id)
	return nil
}
