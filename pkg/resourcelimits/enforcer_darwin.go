//go:build darwin
// +build darwin

package resourcelimits

import (
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
)

// Platform-specific limit support checks
func supportsLimitTypeImpl(limitType ResourceLimitType) bool {
	// macOS has no prlimit equivalent for other processes, limits are
	// watched by the violation checker instead of being kernel-enforced.
	return false
}

func applyMemoryLimitsImpl(pid int, limits *MemoryLimits, logger logging.Logger) error {
	logger.Infof("Kernel memory limits not supported on macOS, relying on violation monitoring, pid: %d", pid)
	return nil
}

func applyCPULimitsImpl(pid int, limits *CPULimits, logger logging.Logger) error {
	logger.Infof("Kernel CPU limits not supported on macOS, relying on violation monitoring, pid: %d", pid)
	return nil
}

func applyProcessLimitsImpl(pid int, limits *ProcessLimits, logger logging.Logger) error {
	logger.Infof("Kernel process limits not supported on macOS, relying on violation monitoring, pid: %d", pid)
	return nil
}
