package processcontrol

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logcollection"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
	"github.com/core-tools/hsu-unitmaster/pkg/process"
	"github.com/core-tools/hsu-unitmaster/pkg/processstate"
	"github.com/core-tools/hsu-unitmaster/pkg/resourcelimits"
)

// NewProcessControl creates a controller for one unit. The controller
// starts idle; nothing happens until Start is called.
func NewProcessControl(options Options, unitID string, logger logging.Logger) ProcessControl {
	return &processControl{
		unitID:  unitID,
		options: options,
		logger:  logger,
		state:   ProcessStateIdle,
	}
}

type processControl struct {
	mutex   sync.Mutex
	unitID  string
	options Options
	logger  logging.Logger

	state   ProcessState
	process *os.Process
	stdout  io.ReadCloser

	// attached is true when the process was joined rather than spawned.
	// Attached processes are not children, so there is no wait handle;
	// exits are detected by polling during stop and by health probes
	// in between.
	attached bool

	// processExited is set by the waiter goroutine once the child has
	// been reaped, so the stop path can skip signaling a dead process.
	processExited bool

	// processDone is signaled (buffered, capacity 1) by the waiter when
	// the child exits. Replaced on every start.
	processDone chan struct{}

	resourceManager resourcelimits.ResourceLimitManager
	collectingLogs  bool
}

func (pc *processControl) Start(ctx context.Context) error {
	pc.logger.Infof("Starting process control, unit: %s", pc.unitID)

	if err := pc.startInternal(ctx); err != nil {
		return err
	}

	pc.logger.Infof("Process control started, unit: %s", pc.unitID)
	return nil
}

func (pc *processControl) Stop(ctx context.Context) error {
	pc.logger.Infof("Stopping process control, unit: %s", pc.unitID)

	if err := pc.stopInternal(ctx); err != nil {
		return err
	}

	pc.logger.Infof("Process control stopped, unit: %s", pc.unitID)
	return nil
}

func (pc *processControl) Restart(ctx context.Context) error {
	pc.logger.Infof("Restarting process control, unit: %s", pc.unitID)

	if err := pc.stopInternal(ctx); err != nil {
		return err
	}
	if err := pc.startInternal(ctx); err != nil {
		return err
	}

	pc.logger.Infof("Process control restarted, unit: %s", pc.unitID)
	return nil
}

func (pc *processControl) State() ProcessState {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()
	return pc.state
}

func (pc *processControl) PID() int {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()
	if pc.process == nil {
		return 0
	}
	return pc.process.Pid
}

func (pc *processControl) GetCurrentUsage() (*resourcelimits.ResourceUsage, error) {
	pc.mutex.Lock()
	manager := pc.resourceManager
	pc.mutex.Unlock()

	if manager == nil {
		return nil, errors.NewProcessError("no process attached", nil).WithContext("unit", pc.unitID)
	}
	return manager.GetCurrentUsage()
}

// ===== Start path =====

func (pc *processControl) startInternal(ctx context.Context) error {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	if pc.state != ProcessStateIdle {
		return errors.NewValidationError(
			fmt.Sprintf("cannot start process in state %s", pc.state), nil).WithContext("unit", pc.unitID)
	}

	pc.state = ProcessStateStarting

	if err := pc.acquireProcessUnderLock(ctx); err != nil {
		pc.state = ProcessStateIdle
		return err
	}

	pc.state = ProcessStateRunning
	return nil
}

// acquireProcessUnderLock attaches or spawns, then brings up the
// supporting machinery. Holding the lock across the spawn keeps Start,
// Stop and the exit handler strictly serialized; spawning is fast enough
// that readers blocking on State for its duration is acceptable.
func (pc *processControl) acquireProcessUnderLock(ctx context.Context) error {
	var proc *os.Process
	var stdout io.ReadCloser
	var attached bool

	if pc.options.CanAttach && pc.options.AttachCmd != nil {
		var err error
		proc, stdout, err = pc.options.AttachCmd(ctx)
		if err == nil {
			attached = true
			pc.logger.Infof("Attached to existing process, unit: %s, pid: %d", pc.unitID, proc.Pid)
		} else if pc.options.ExecuteCmd == nil {
			return err
		} else {
			pc.logger.Debugf("Attach failed, falling back to execution, unit: %s, error: %v", pc.unitID, err)
			proc = nil
		}
	}

	if proc == nil {
		if pc.options.ExecuteCmd == nil {
			return errors.NewValidationError("no execute command configured", nil).WithContext("unit", pc.unitID)
		}
		var err error
		proc, stdout, err = pc.options.ExecuteCmd(ctx)
		if err != nil {
			return err
		}
	}

	pc.process = proc
	pc.stdout = stdout
	pc.attached = attached
	pc.processExited = false
	pc.processDone = make(chan struct{}, 1)

	if !attached {
		go pc.waitForExit(proc)
	}

	// Log capture and resource monitoring are best effort: the unit is
	// already running and killing it over a telemetry failure would be
	// worse than running without the telemetry.
	pc.startLogCollectionUnderLock(stdout)
	pc.startResourceMonitoringUnderLock(ctx, proc.Pid)

	return nil
}

func (pc *processControl) startLogCollectionUnderLock(stdout io.ReadCloser) {
	if pc.options.LogCollection == nil || pc.options.LogConfig == nil {
		return
	}

	if err := pc.options.LogCollection.RegisterUnit(pc.unitID, *pc.options.LogConfig); err != nil {
		pc.logger.Warnf("Log collection registration failed, unit: %s, error: %v", pc.unitID, err)
		return
	}
	pc.collectingLogs = true

	if stdout == nil || !pc.options.LogConfig.CaptureStdout {
		return
	}
	if err := pc.options.LogCollection.CollectFromStream(pc.unitID, stdout, logcollection.StdoutStream); err != nil {
		pc.logger.Warnf("Log stream collection failed, unit: %s, error: %v", pc.unitID, err)
	}
}

func (pc *processControl) startResourceMonitoringUnderLock(ctx context.Context, pid int) {
	manager := resourcelimits.NewResourceLimitManager(pid, pc.monitoredLimits(), pc.logger)
	manager.SetViolationCallback(pc.handleResourceViolation)
	if err := manager.Start(ctx); err != nil {
		pc.logger.Warnf("Resource monitoring failed to start, unit: %s, pid: %d, error: %v", pc.unitID, pid, err)
	}
	// Kept even without limits: the manager serves on-demand usage queries.
	pc.resourceManager = manager
}

// monitoredLimits returns the configured limits with violation handling
// forced to external. The controller owns the policy response, so the
// manager must report violations instead of acting on them.
func (pc *processControl) monitoredLimits() *resourcelimits.ResourceLimits {
	limits := pc.options.Limits
	if limits == nil {
		return nil
	}

	clone := *limits
	monitoring := resourcelimits.ResourceMonitoringConfig{}
	if limits.Monitoring != nil {
		monitoring = *limits.Monitoring
	}
	if monitoring.ViolationHandling != resourcelimits.ViolationHandlingDisabled {
		monitoring.ViolationHandling = resourcelimits.ViolationHandlingExternal
	}
	clone.Monitoring = &monitoring
	return &clone
}

// ===== Exit handling =====

func (pc *processControl) waitForExit(proc *os.Process) {
	procState, waitErr := proc.Wait()
	pc.handleProcessExit(proc.Pid, procState, waitErr)
}

// handleProcessExit runs on the waiter goroutine when the child is reaped.
// During a stop it only signals the stop path; outside of one it tears the
// controller down and reports the exit upward.
func (pc *processControl) handleProcessExit(pid int, procState *os.ProcessState, waitErr error) {
	pc.mutex.Lock()

	if pc.process == nil || pc.process.Pid != pid {
		// A newer start cycle owns the controller now.
		pc.mutex.Unlock()
		return
	}

	pc.processExited = true
	done := pc.processDone

	if pc.state != ProcessStateRunning {
		// A stop owns the process; let it observe the exit.
		pc.mutex.Unlock()
		signalDone(done)
		return
	}

	exitCode := -1
	if procState != nil {
		exitCode = procState.ExitCode()
	}
	event := ExitEvent{
		UnitID:   pc.unitID,
		PID:      pid,
		ExitCode: exitCode,
		Err:      waitErr,
		At:       time.Now(),
	}

	pc.logger.Warnf("Process exited unexpectedly, unit: %s, pid: %d, exit code: %d", pc.unitID, pid, exitCode)

	pc.cleanupResourcesUnderLock()
	pc.process = nil
	pc.stdout = nil
	pc.state = ProcessStateIdle
	callback := pc.options.ExitCallback
	pc.mutex.Unlock()

	signalDone(done)
	if callback != nil {
		callback(event)
	}
}

func signalDone(done chan struct{}) {
	if done == nil {
		return
	}
	select {
	case done <- struct{}{}:
	default:
	}
}

// ===== Stop path =====

// stopPlan is a snapshot of everything the stop path needs, taken under
// the lock so the termination work can run without holding it.
type stopPlan struct {
	process       *os.Process
	processDone   chan struct{}
	processExited bool
	attached      bool
	terminate     bool
}

func (pc *processControl) stopInternal(ctx context.Context) error {
	plan, err := pc.validateAndPlanStop()
	if err != nil {
		return err
	}
	if plan == nil {
		pc.logger.Debugf("Process already stopped, unit: %s", pc.unitID)
		return nil
	}

	var terminateErr error
	switch {
	case plan.process == nil:
		// Exited between planning and here; nothing to terminate.
	case !plan.terminate:
		pc.logger.Infof("Detaching from process, unit: %s, pid: %d", pc.unitID, plan.process.Pid)
		if plan.attached {
			releaseProcess(plan.process)
		}
	default:
		terminateErr = pc.terminateProcess(ctx, plan)
	}

	pc.finalizeStop()
	return terminateErr
}

func (pc *processControl) validateAndPlanStop() (*stopPlan, error) {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	if pc.state == ProcessStateIdle {
		return nil, nil
	}
	if !pc.state.settled() {
		return nil, errors.NewValidationError(
			fmt.Sprintf("cannot stop process in state %s", pc.state), nil).WithContext("unit", pc.unitID)
	}

	plan := &stopPlan{
		process:       pc.process,
		processDone:   pc.processDone,
		processExited: pc.processExited,
		attached:      pc.attached,
		terminate:     pc.options.CanTerminate,
	}
	pc.state = ProcessStateStopping
	return plan, nil
}

// terminateProcess escalates: termination signal, wait out the graceful
// window, kill, wait again. Returns a timeout error only when the process
// survives the kill.
func (pc *processControl) terminateProcess(ctx context.Context, plan *stopPlan) error {
	pid := plan.process.Pid

	graceful := pc.options.GracefulTimeout
	if graceful <= 0 {
		graceful = DefaultGracefulTimeout
	}

	if plan.processExited {
		pc.logger.Debugf("Process already exited, unit: %s, pid: %d", pc.unitID, pid)
		return nil
	}

	pc.logger.Infof("Terminating process, unit: %s, pid: %d, graceful timeout: %v", pc.unitID, pid, graceful)

	if err := process.SendTerminationSignal(pid, false, graceful); err != nil {
		pc.logger.Debugf("Termination signal failed, unit: %s, pid: %d, error: %v", pc.unitID, pid, err)
	}
	if pc.awaitExit(ctx, plan, graceful) {
		pc.logger.Infof("Process terminated gracefully, unit: %s, pid: %d", pc.unitID, pid)
		return nil
	}

	pc.markTerminating()
	pc.logger.Warnf("Graceful termination timed out, killing process, unit: %s, pid: %d", pc.unitID, pid)

	if err := plan.process.Kill(); err != nil {
		pc.logger.Debugf("Kill failed, unit: %s, pid: %d, error: %v", pc.unitID, pid, err)
	}
	if pc.awaitExit(ctx, plan, forceWaitTimeout) {
		pc.logger.Infof("Process killed, unit: %s, pid: %d", pc.unitID, pid)
		return nil
	}

	return errors.NewTimeoutError(
		fmt.Sprintf("process did not exit after kill, pid: %d", pid), nil).WithContext("unit", pc.unitID)
}

// awaitExit reports whether the process went away within the timeout.
// Executed children are observed through the waiter goroutine; attached
// processes are polled because there is no child relationship to wait on.
func (pc *processControl) awaitExit(ctx context.Context, plan *stopPlan, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	if !plan.attached {
		select {
		case <-plan.processDone:
			return true
		case <-deadline.C:
			return false
		case <-ctx.Done():
			return false
		}
	}

	ticker := time.NewTicker(attachedPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			running, err := processstate.IsProcessRunning(plan.process.Pid)
			if err != nil || !running {
				return true
			}
		case <-deadline.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func (pc *processControl) markTerminating() {
	pc.mutex.Lock()
	pc.state = ProcessStateTerminating
	pc.mutex.Unlock()
}

func (pc *processControl) finalizeStop() {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	pc.cleanupResourcesUnderLock()
	pc.process = nil
	pc.stdout = nil
	pc.state = ProcessStateIdle
}

// cleanupResourcesUnderLock tears down in reverse start order: log
// collection first so the final lines of a dying process still land,
// then resource monitoring, then the stream itself.
func (pc *processControl) cleanupResourcesUnderLock() {
	if pc.collectingLogs {
		if err := pc.options.LogCollection.UnregisterUnit(pc.unitID); err != nil {
			pc.logger.Warnf("Log collection unregister failed, unit: %s, error: %v", pc.unitID, err)
		}
		pc.collectingLogs = false
	}

	if pc.resourceManager != nil {
		pc.resourceManager.Stop()
		pc.resourceManager = nil
	}

	if pc.stdout != nil {
		pc.stdout.Close()
	}
}

// ===== Resource violations =====

// handleResourceViolation runs on the resource monitor goroutine. Shutdown
// policies are enforced here; the restart policy is forwarded because the
// restart decision (backoff, retry budget) belongs to the orchestrator.
func (pc *processControl) handleResourceViolation(violation *resourcelimits.ResourceViolation) {
	if violation == nil {
		return
	}

	policy := pc.options.Limits.PolicyFor(violation.LimitType)
	pc.logger.Warnf("Resource violation, unit: %s, policy: %s, message: %s", pc.unitID, policy, violation.Message)

	switch policy {
	case resourcelimits.ResourcePolicyAlert:
		pc.logger.Errorf("ALERT: resource violation, unit: %s, message: %s", pc.unitID, violation.Message)
	case resourcelimits.ResourcePolicyRestart:
		if pc.options.ViolationCallback != nil {
			pc.options.ViolationCallback(violation)
		}
	case resourcelimits.ResourcePolicyGracefulShutdown:
		go pc.shutdownOnViolation(violation, false)
	case resourcelimits.ResourcePolicyImmediateKill:
		go pc.shutdownOnViolation(violation, true)
	default:
		// log and none: the warning above is the whole response
	}
}

// shutdownOnViolation terminates the process because a limit policy said
// so, then reports it as an exit so the orchestrator can apply restart
// policy the same way it would for a crash.
func (pc *processControl) shutdownOnViolation(violation *resourcelimits.ResourceViolation, force bool) {
	plan, err := pc.validateAndPlanStop()
	if err != nil || plan == nil || plan.process == nil {
		return
	}
	pid := plan.process.Pid

	if force {
		pc.markTerminating()
		pc.logger.Warnf("Killing process on resource violation, unit: %s, pid: %d", pc.unitID, pid)
		if killErr := plan.process.Kill(); killErr != nil {
			pc.logger.Debugf("Kill failed, unit: %s, pid: %d, error: %v", pc.unitID, pid, killErr)
		}
		pc.awaitExit(context.Background(), plan, forceWaitTimeout)
	} else if terminateErr := pc.terminateProcess(context.Background(), plan); terminateErr != nil {
		pc.logger.Errorf("Violation shutdown failed, unit: %s, pid: %d, error: %v", pc.unitID, pid, terminateErr)
	}

	pc.finalizeStop()

	if callback := pc.options.ExitCallback; callback != nil {
		callback(ExitEvent{
			UnitID:   pc.unitID,
			PID:      pid,
			ExitCode: -1,
			Err:      errors.NewProcessError(fmt.Sprintf("terminated on resource violation: %s", violation.Message), nil),
			At:       time.Now(),
		})
	}
}
