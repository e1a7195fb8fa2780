package master

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/coreapi"
	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
	"github.com/core-tools/hsu-unitmaster/pkg/monitoring"
	"github.com/core-tools/hsu-unitmaster/pkg/processcontrol"
	"github.com/core-tools/hsu-unitmaster/pkg/processfile"
	"github.com/core-tools/hsu-unitmaster/pkg/units"
)

// DefaultForceShutdownTimeout bounds a master stop when the
// configuration does not say otherwise.
const DefaultForceShutdownTimeout = 30 * time.Second

type MasterOptions struct {
	Port                 int
	ForceShutdownTimeout time.Duration
}

// MasterState represents the current state of the master server
type MasterState string

const (
	// MasterStateNotStarted is the initial state before Start() is called
	MasterStateNotStarted MasterState = "not_started"

	// MasterStateRunning means master is running and can manage units
	MasterStateRunning MasterState = "running"

	// MasterStateStopping means master is shutting down
	MasterStateStopping MasterState = "stopping"

	// MasterStateStopped means master has stopped
	MasterStateStopped MasterState = "stopped"
)

// Master orchestrates a set of units: the registry, one supervisor per
// unit, the shared probe limiter, and the master's own core API server.
type Master struct {
	options MasterOptions
	logger  logging.Logger

	registry    *units.Registry
	server      *coreapi.Server
	connections *coreapi.ConnectionManager
	limiter     *monitoring.ProbeLimiter
	logs        *LogCollectionIntegration
	pathManager *processfile.ProcessFileManager

	// runCtx lives from construction until shutdown; probe loops, log
	// followers and restart attempts hang off it.
	runCtx    context.Context
	runCancel context.CancelFunc

	supervisors map[string]*unitSupervisor
	masterState MasterState
	mutex       sync.Mutex
}

// NewMaster creates a master and binds its core API listener. The log
// collection integration is optional; nil disables log capture.
func NewMaster(options MasterOptions, logs *LogCollectionIntegration, logger logging.Logger) (*Master, error) {
	runCtx, runCancel := context.WithCancel(context.Background())

	master := &Master{
		options:     options,
		logger:      logger,
		registry:    units.NewRegistry(logger),
		connections: coreapi.NewConnectionManager(logger),
		limiter:     monitoring.NewProbeLimiter(monitoring.DefaultMaxInFlightProbes),
		logs:        logs,
		pathManager: processfile.NewProcessFileManager(processfile.ProcessFileConfig{}, logger),
		runCtx:      runCtx,
		runCancel:   runCancel,
		supervisors: make(map[string]*unitSupervisor),
		masterState: MasterStateNotStarted,
	}

	server, err := coreapi.NewServer(coreapi.ServerOptions{Port: options.Port}, logger)
	if err != nil {
		runCancel()
		return nil, errors.NewInternalError("failed to create core API server", err).WithContext("port", options.Port)
	}
	coreapi.RegisterGRPCServerHandler(server.GRPCRegistrar(), newMasterEndpoint(master), logger)
	master.server = server

	return master, nil
}

func (m *Master) deps() supervisorDeps {
	return supervisorDeps{
		registry:      m.registry,
		connections:   m.connections,
		limiter:       m.limiter,
		logCollection: m.logs.Service(),
		pathManager:   m.pathManager,
		runCtx:        m.runCtx,
	}
}

// AddUnit registers a unit and brings up its supervisor. The unit sits
// in registered state until started explicitly.
func (m *Master) AddUnit(ctx context.Context, cfg UnitConfig) error {
	if ctx == nil {
		return errors.NewValidationError("context cannot be nil", nil)
	}
	if err := units.ValidateUnitID(cfg.ID); err != nil {
		return errors.NewValidationError("invalid unit ID", err).WithContext("unit_id", cfg.ID)
	}
	if !cfg.ControlMode.Valid() {
		return errors.NewValidationError(fmt.Sprintf("invalid control mode: %s", cfg.ControlMode), nil).WithContext("unit_id", cfg.ID)
	}
	setUnitConfigDefaults(&cfg)
	if err := validateUnitSectionConfig(cfg.ControlMode, cfg.Unit); err != nil {
		return errors.NewValidationError("invalid unit configuration", err).WithContext("unit_id", cfg.ID)
	}

	m.logger.Infof("Adding unit, id: %s, mode: %s", cfg.ID, cfg.ControlMode)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.supervisors[cfg.ID]; exists {
		return errors.NewConflictError("unit already exists", nil).WithContext("unit_id", cfg.ID)
	}
	if err := m.registry.Register(cfg.definition()); err != nil {
		return err
	}

	unitLogger := logging.Prefixed(m.logger, "unit: "+cfg.ID+" , ")
	supervisor := newUnitSupervisor(cfg, m.effectiveUnitLogConfig(cfg), m.deps(), unitLogger)
	m.supervisors[cfg.ID] = supervisor
	go supervisor.run()

	m.logger.Infof("Unit added successfully, id: %s, mode: %s", cfg.ID, cfg.ControlMode)
	return nil
}

// RemoveUnit deregisters a unit. A unit with a live process is stopped
// first; removal is the stronger operation and always wins.
func (m *Master) RemoveUnit(ctx context.Context, id string) error {
	if ctx == nil {
		return errors.NewValidationError("context cannot be nil", nil)
	}
	if err := units.ValidateUnitID(id); err != nil {
		return errors.NewValidationError("invalid unit ID", err).WithContext("unit_id", id)
	}

	m.logger.Infof("Removing unit, id: %s", id)

	supervisor, _, exists := m.getSupervisorAndMasterState(id)
	if !exists {
		return errors.NewNotFoundError("unit not found", nil).WithContext("unit_id", id)
	}

	if unit, ok := m.registry.Get(id); ok && !removableWithoutStop(unit.State) {
		m.logger.Infof("Stopping unit before removal, id: %s, state: %s", id, unit.State)
		if err := supervisor.requestStop(ctx); err != nil {
			return errors.NewProcessError("failed to stop unit for removal", err).WithContext("unit_id", id)
		}
	}
	supervisor.close()

	m.mutex.Lock()
	if _, stillThere := m.supervisors[id]; !stillThere {
		// Lost the race against a concurrent removal.
		m.mutex.Unlock()
		return nil
	}
	delete(m.supervisors, id)
	m.mutex.Unlock()

	m.connections.Close(id)
	if err := m.registry.Deregister(id); err != nil {
		return err
	}

	m.logger.Infof("Unit removed successfully, id: %s", id)
	return nil
}

// removableWithoutStop reports whether a unit in this state has no
// process worth stopping.
func removableWithoutStop(state units.UnitState) bool {
	switch state {
	case units.UnitStateRegistered, units.UnitStateStopped, units.UnitStateFailed:
		return true
	}
	return false
}

func (m *Master) StartUnit(ctx context.Context, id string) error {
	supervisor, err := m.supervisorForRequest(ctx, id, "start")
	if err != nil {
		return err
	}

	m.logger.Infof("Starting unit, id: %s", id)

	if err := supervisor.requestStart(ctx); err != nil {
		m.logger.Errorf("Failed to start unit, id: %s, error: %v", id, err)
		return err
	}

	unit, _ := m.registry.Get(id)
	m.logger.Infof("Unit started successfully, id: %s, state: %s", id, unit.State)
	return nil
}

func (m *Master) StopUnit(ctx context.Context, id string) error {
	supervisor, err := m.supervisorForRequest(ctx, id, "stop")
	if err != nil {
		return err
	}

	m.logger.Infof("Stopping unit, id: %s", id)

	if err := supervisor.requestStop(ctx); err != nil {
		m.logger.Errorf("Failed to stop unit, id: %s, error: %v", id, err)
		return err
	}

	unit, _ := m.registry.Get(id)
	m.logger.Infof("Unit stopped successfully, id: %s, state: %s", id, unit.State)
	return nil
}

func (m *Master) supervisorForRequest(ctx context.Context, id string, operation string) (*unitSupervisor, error) {
	if ctx == nil {
		return nil, errors.NewValidationError("context cannot be nil", nil)
	}
	if err := units.ValidateUnitID(id); err != nil {
		return nil, errors.NewValidationError("invalid unit ID", err).WithContext("unit_id", id)
	}

	supervisor, currentMasterState, exists := m.getSupervisorAndMasterState(id)
	if !exists {
		return nil, errors.NewNotFoundError("unit not found", nil).WithContext("unit_id", id)
	}
	if currentMasterState != MasterStateRunning {
		return nil, errors.NewValidationError(
			fmt.Sprintf("master must be running to %s units, current state: %s", operation, currentMasterState),
			nil,
		).WithContext("unit_id", id).WithContext("master_state", string(currentMasterState))
	}
	return supervisor, nil
}

// GetUnit returns a detached snapshot of one unit.
func (m *Master) GetUnit(id string) (units.Unit, error) {
	if err := units.ValidateUnitID(id); err != nil {
		return units.Unit{}, errors.NewValidationError("invalid unit ID", err).WithContext("unit_id", id)
	}
	unit, ok := m.registry.Get(id)
	if !ok {
		return units.Unit{}, errors.NewNotFoundError("unit not found", nil).WithContext("unit_id", id)
	}
	return unit, nil
}

// ListUnits returns unit snapshots in registration order.
func (m *Master) ListUnits(filter units.ListFilter) []units.Unit {
	return m.registry.List(filter)
}

// UnitStatus joins the registry view of one unit with the live probe
// and process controller state.
type UnitStatus struct {
	Unit        units.Unit
	Probe       *monitoring.ProbeState
	Process     processcontrol.ProcessState
	Transitions []StateTransition
}

func (m *Master) GetUnitStatus(id string) (UnitStatus, error) {
	if err := units.ValidateUnitID(id); err != nil {
		return UnitStatus{}, errors.NewValidationError("invalid unit ID", err).WithContext("unit_id", id)
	}

	unit, ok := m.registry.Get(id)
	if !ok {
		return UnitStatus{}, errors.NewNotFoundError("unit not found", nil).WithContext("unit_id", id)
	}
	supervisor, _, exists := m.getSupervisorAndMasterState(id)
	if !exists {
		return UnitStatus{}, errors.NewNotFoundError("unit not found", nil).WithContext("unit_id", id)
	}

	return UnitStatus{
		Unit:        unit,
		Probe:       supervisor.probeState(),
		Process:     supervisor.processState(),
		Transitions: supervisor.stateHistory(),
	}, nil
}

// GetAllUnitStatuses returns the status of every unit in registration
// order.
func (m *Master) GetAllUnitStatuses() []UnitStatus {
	unitsCopy := m.registry.List(units.ListFilter{})
	supervisorsCopy := m.getAllSupervisors()

	statuses := make([]UnitStatus, 0, len(unitsCopy))
	for _, unit := range unitsCopy {
		status := UnitStatus{Unit: unit, Process: processcontrol.ProcessStateIdle}
		if supervisor, ok := supervisorsCopy[unit.ID]; ok {
			status.Probe = supervisor.probeState()
			status.Process = supervisor.processState()
			status.Transitions = supervisor.stateHistory()
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Start brings the master online and begins serving the core API.
// Units are not started implicitly.
func (m *Master) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.NewValidationError("context cannot be nil", nil)
	}

	m.logger.Infof("Starting master...")

	m.mutex.Lock()
	if m.masterState != MasterStateNotStarted {
		currentState := m.masterState
		m.mutex.Unlock()
		return errors.NewValidationError(
			fmt.Sprintf("cannot start master, current state: %s", currentState), nil)
	}
	m.masterState = MasterStateRunning
	m.mutex.Unlock()

	if m.server != nil {
		go func() {
			if err := m.server.Serve(); err != nil {
				m.logger.Errorf("Core API server terminated, error: %v", err)
			}
		}()
		m.logger.Infof("Master started, endpoint: %s", m.server.Endpoint())
	} else {
		m.logger.Infof("Master started")
	}
	return nil
}

// Stop shuts the master down: the run context and the server first so
// no new requests land, then every unit in dependency order, bounded
// overall by the force shutdown timeout.
func (m *Master) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mutex.Lock()
	if m.masterState != MasterStateRunning {
		m.mutex.Unlock()
		return nil
	}
	m.masterState = MasterStateStopping
	m.mutex.Unlock()

	m.logger.Infof("Stopping master...")

	forcedShutdownTimeout := m.options.ForceShutdownTimeout
	if forcedShutdownTimeout <= 0 {
		forcedShutdownTimeout = DefaultForceShutdownTimeout
	}
	stopCtx, cancel := context.WithTimeout(ctx, forcedShutdownTimeout)
	defer cancel()

	// Ending the run context stops probe loops, pending restarts and
	// log followers; that also unblocks the server's graceful stop.
	m.runCancel()
	if m.server != nil {
		m.server.Stop(forcedShutdownTimeout)
	}

	errorCollection := errors.NewErrorCollection()
	stopped := m.stopAllUnits(stopCtx, errorCollection)
	if errorCollection.HasErrors() {
		m.logger.Errorf("Some units failed to stop: %v", errorCollection.Error())
	}
	m.logger.Infof("Units stopped, count: %d", len(stopped))

	for _, supervisor := range m.getAllSupervisors() {
		supervisor.close()
	}
	m.connections.CloseAll()

	m.setMasterState(MasterStateStopped)
	m.logger.Infof("Master stopped")
	return errorCollection.ToError()
}

// GetMasterState returns the current state of the master
func (m *Master) GetMasterState() MasterState {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.masterState
}

// Endpoint returns the core API address, empty when no server is
// attached.
func (m *Master) Endpoint() string {
	if m.server == nil {
		return ""
	}
	return m.server.Endpoint()
}

// getAllSupervisors returns a copy of the supervisor map under lock
func (m *Master) getAllSupervisors() map[string]*unitSupervisor {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	supervisorsCopy := make(map[string]*unitSupervisor, len(m.supervisors))
	for id, supervisor := range m.supervisors {
		supervisorsCopy[id] = supervisor
	}
	return supervisorsCopy
}

// getSupervisorAndMasterState returns supervisor and master state under lock
// Returns: supervisor, masterState, exists
func (m *Master) getSupervisorAndMasterState(id string) (*unitSupervisor, MasterState, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	supervisor, exists := m.supervisors[id]
	return supervisor, m.masterState, exists
}

// setMasterState sets the master state under lock
func (m *Master) setMasterState(state MasterState) {
	m.mutex.Lock()
	m.masterState = state
	m.mutex.Unlock()
}
