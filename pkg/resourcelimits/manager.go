package resourcelimits

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
)

// resourceLimitManager coordinates resource monitoring and enforcement
type resourceLimitManager struct {
	pid              int
	limits           *ResourceLimits
	monitor          ResourceMonitor
	enforcer         ResourceEnforcer
	violationChecker ResourceViolationChecker
	logger           logging.Logger

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mutex  sync.RWMutex

	// State
	isRunning  bool
	violations []*ResourceViolation

	// Configuration
	checkInterval time.Duration
	handlingMode  ViolationHandlingMode

	// External violation handling
	violationCallback ResourceViolationCallback
}

// NewResourceLimitManager creates a new resource limit manager
func NewResourceLimitManager(pid int, limits *ResourceLimits, logger logging.Logger) ResourceLimitManager {
	var monitoringConfig *ResourceMonitoringConfig
	if limits != nil {
		monitoringConfig = limits.Monitoring
	}
	if monitoringConfig == nil {
		monitoringConfig = &ResourceMonitoringConfig{
			Enabled:          true,
			Interval:         30 * time.Second,
			HistoryRetention: 24 * time.Hour,
		}
	}

	checkInterval := monitoringConfig.Interval
	if checkInterval == 0 {
		checkInterval = 30 * time.Second
	}

	handlingMode := monitoringConfig.ViolationHandling
	if handlingMode == "" {
		handlingMode = ViolationHandlingInternal
	}

	return &resourceLimitManager{
		pid:              pid,
		limits:           limits,
		monitor:          NewResourceMonitor(pid, monitoringConfig, logger),
		enforcer:         NewResourceEnforcer(logger),
		violationChecker: NewResourceViolationChecker(logger),
		logger:           logger,
		checkInterval:    checkInterval,
		handlingMode:     handlingMode,
		violations:       make([]*ResourceViolation, 0),
	}
}

// Start begins resource monitoring and enforcement
func (rlm *resourceLimitManager) Start(ctx context.Context) error {
	rlm.mutex.Lock()
	defer rlm.mutex.Unlock()

	if rlm.isRunning {
		return errors.NewValidationError("resource limit manager is already running", nil).WithContext("pid", rlm.pid)
	}

	if rlm.limits == nil {
		rlm.logger.Infof("No resource limits configured, pid: %d", rlm.pid)
		return nil
	}

	rlm.logger.Infof("Starting resource limit management, pid: %d", rlm.pid)

	// Apply initial limits, monitoring can still work if some fail
	if err := rlm.enforcer.ApplyLimits(rlm.pid, rlm.limits); err != nil {
		rlm.logger.Warnf("Failed to apply some resource limits, pid: %d, error: %v", rlm.pid, err)
	}

	rlm.ctx, rlm.cancel = context.WithCancel(ctx)
	rlm.isRunning = true

	// The monitor honors its own enabled flag
	if err := rlm.monitor.Start(rlm.ctx); err != nil {
		rlm.cancel()
		rlm.isRunning = false
		return errors.NewInternalError("failed to start resource monitoring", err).WithContext("pid", rlm.pid)
	}

	rlm.wg.Add(1)
	go rlm.violationCheckLoop()

	rlm.logger.Infof("Resource limit management started, pid: %d", rlm.pid)
	return nil
}

// Stop stops resource monitoring and enforcement
func (rlm *resourceLimitManager) Stop() {
	rlm.mutex.Lock()
	defer rlm.mutex.Unlock()

	if !rlm.isRunning {
		return
	}

	rlm.logger.Infof("Stopping resource limit management, pid: %d", rlm.pid)

	rlm.cancel()
	rlm.isRunning = false

	rlm.monitor.Stop()

	rlm.wg.Wait()

	rlm.logger.Infof("Resource limit management stopped, pid: %d", rlm.pid)
}

// GetLimits returns the current resource limits
func (rlm *resourceLimitManager) GetLimits() *ResourceLimits {
	return rlm.limits
}

// GetCurrentUsage returns current resource usage
func (rlm *resourceLimitManager) GetCurrentUsage() (*ResourceUsage, error) {
	return rlm.monitor.GetCurrentUsage()
}

// GetViolations returns recent resource violations
func (rlm *resourceLimitManager) GetViolations() []*ResourceViolation {
	rlm.mutex.RLock()
	defer rlm.mutex.RUnlock()

	violations := make([]*ResourceViolation, len(rlm.violations))
	copy(violations, rlm.violations)
	return violations
}

// GetViolationHandlingMode returns the configured violation handling mode
func (rlm *resourceLimitManager) GetViolationHandlingMode() ViolationHandlingMode {
	return rlm.handlingMode
}

// SetViolationCallback sets a callback for handling resource violations
func (rlm *resourceLimitManager) SetViolationCallback(callback ResourceViolationCallback) {
	rlm.mutex.Lock()
	defer rlm.mutex.Unlock()
	rlm.violationCallback = callback
}

func (rlm *resourceLimitManager) setViolations(violations []*ResourceViolation) {
	rlm.mutex.Lock()
	defer rlm.mutex.Unlock()
	rlm.violations = make([]*ResourceViolation, len(violations))
	copy(rlm.violations, violations)
}

func (rlm *resourceLimitManager) getViolationCallback() ResourceViolationCallback {
	rlm.mutex.RLock()
	defer rlm.mutex.RUnlock()
	return rlm.violationCallback
}

// violationCheckLoop periodically checks for resource violations
func (rlm *resourceLimitManager) violationCheckLoop() {
	defer rlm.wg.Done()

	// Check violations more often than the general monitoring interval
	checkInterval := rlm.checkInterval
	if checkInterval > 10*time.Second {
		checkInterval = 10 * time.Second
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rlm.ctx.Done():
			rlm.logger.Debugf("Resource violation check loop stopped, pid: %d", rlm.pid)
			return

		case <-ticker.C:
			rlm.checkViolations()
		}
	}
}

// checkViolations checks for resource limit violations
func (rlm *resourceLimitManager) checkViolations() {
	if rlm.limits == nil {
		return
	}

	usage, err := rlm.monitor.GetCurrentUsage()
	if err != nil {
		rlm.logger.Debugf("Failed to get current usage for violation check, pid: %d, error: %v", rlm.pid, err)
		return
	}

	violations := rlm.violationChecker.CheckViolations(usage, rlm.limits)

	rlm.setViolations(violations)

	for _, violation := range violations {
		rlm.dispatchViolation(violation)
	}
}

// dispatchViolation routes a violation according to the handling mode
func (rlm *resourceLimitManager) dispatchViolation(violation *ResourceViolation) {
	rlm.logger.Warnf("Resource violation, pid: %d, severity: %s, message: %s", rlm.pid, violation.Severity, violation.Message)

	switch rlm.handlingMode {
	case ViolationHandlingDisabled:
		return

	case ViolationHandlingExternal:
		callback := rlm.getViolationCallback()
		if callback == nil {
			rlm.logger.Warnf("No violation callback registered, pid: %d, limit type: %s", rlm.pid, violation.LimitType)
			return
		}
		go callback(violation)

	default:
		rlm.enforceInternally(violation)
	}
}

// enforceInternally handles violations without an external owner. Only the
// immediate_kill policy is actionable here, everything else is already logged.
func (rlm *resourceLimitManager) enforceInternally(violation *ResourceViolation) {
	if violation.Severity != ViolationSeverityCritical {
		return
	}

	policy := rlm.limits.PolicyFor(violation.LimitType)
	if policy != ResourcePolicyImmediateKill {
		return
	}

	rlm.logger.Warnf("Killing process on resource violation, pid: %d, limit type: %s", rlm.pid, violation.LimitType)

	process, err := os.FindProcess(rlm.pid)
	if err != nil {
		rlm.logger.Errorf("Failed to find process for kill, pid: %d, error: %v", rlm.pid, err)
		return
	}
	if err := process.Kill(); err != nil {
		rlm.logger.Errorf("Failed to kill process, pid: %d, error: %v", rlm.pid, err)
	}
}
