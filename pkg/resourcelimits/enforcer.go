package resourcelimits

import (
	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
	"github.com/core-tools/hsu-unitmaster/pkg/processstate"
)

// resourceEnforcer implements ResourceEnforcer interface
type resourceEnforcer struct {
	logger logging.Logger
}

// NewResourceEnforcer creates a new resource enforcer
func NewResourceEnforcer(logger logging.Logger) ResourceEnforcer {
	return &resourceEnforcer{
		logger: logger,
	}
}

// ApplyLimits applies resource limits to a process
func (re *resourceEnforcer) ApplyLimits(pid int, limits *ResourceLimits) error {
	if limits == nil {
		return nil
	}

	re.logger.Infof("Applying resource limits, pid: %d", pid)

	running, err := processstate.IsProcessRunning(pid)
	if !running {
		return errors.NewProcessError("process is not running", err).WithContext("pid", pid)
	}

	collection := errors.NewErrorCollection()

	if limits.Memory != nil && (limits.Memory.MaxRSS > 0 || limits.Memory.MaxVirtual > 0) {
		if err := applyMemoryLimitsImpl(pid, limits.Memory, re.logger); err != nil {
			collection.Add(errors.NewInternalError("memory limits", err).WithContext("pid", pid))
		}
	}

	if limits.CPU != nil && limits.CPU.MaxTime > 0 {
		if err := applyCPULimitsImpl(pid, limits.CPU, re.logger); err != nil {
			collection.Add(errors.NewInternalError("CPU limits", err).WithContext("pid", pid))
		}
	}

	if limits.Process != nil && (limits.Process.MaxFileDescriptors > 0 || limits.Process.MaxChildProcesses > 0) {
		if err := applyProcessLimitsImpl(pid, limits.Process, re.logger); err != nil {
			collection.Add(errors.NewInternalError("process limits", err).WithContext("pid", pid))
		}
	}

	if collection.HasErrors() {
		re.logger.Warnf("Some resource limits could not be applied, pid: %d, error: %v", pid, collection.ToError())
		return collection.ToError()
	}

	re.logger.Infof("Resource limits applied, pid: %d", pid)
	return nil
}

// SupportsLimitType checks if a limit type is supported on current platform
func (re *resourceEnforcer) SupportsLimitType(limitType ResourceLimitType) bool {
	return supportsLimitTypeImpl(limitType)
}
