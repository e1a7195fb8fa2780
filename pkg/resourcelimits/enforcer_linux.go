//go:build linux
// +build linux

package resourcelimits

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/core-tools/hsu-unitmaster/pkg/logging"
)

// Platform-specific limit support checks
func supportsLimitTypeImpl(limitType ResourceLimitType) bool {
	switch limitType {
	case ResourceLimitTypeMemory, ResourceLimitTypeCPU, ResourceLimitTypeProcess:
		return true // Linux supports these via prlimit
	default:
		return false
	}
}

// applyMemoryLimitsImpl applies memory limits to another process using prlimit(2)
func applyMemoryLimitsImpl(pid int, limits *MemoryLimits, logger logging.Logger) error {
	logger.Infof("Applying memory limits, pid: %d, max RSS: %d, max virtual: %d",
		pid, limits.MaxRSS, limits.MaxVirtual)

	if limits.MaxVirtual > 0 {
		if err := setProcessRlimit(pid, unix.RLIMIT_AS, uint64(limits.MaxVirtual)); err != nil {
			return fmt.Errorf("failed to set virtual memory limit for pid %d: %w", pid, err)
		}
	}

	// RLIMIT_RSS is accepted but not enforced by modern kernels, the RSS
	// ceiling is effectively watched by the violation checker instead.
	if limits.MaxRSS > 0 {
		if err := setProcessRlimit(pid, unix.RLIMIT_RSS, uint64(limits.MaxRSS)); err != nil {
			logger.Debugf("Failed to set RSS limit, pid: %d, error: %v", pid, err)
		}
	}

	return nil
}

// applyCPULimitsImpl applies CPU time limits using prlimit(2)
func applyCPULimitsImpl(pid int, limits *CPULimits, logger logging.Logger) error {
	if limits.MaxTime <= 0 {
		return nil
	}

	maxTimeSeconds := uint64(limits.MaxTime.Seconds())
	logger.Infof("Applying CPU time limit, pid: %d, max time: %ds", pid, maxTimeSeconds)

	if err := setProcessRlimit(pid, unix.RLIMIT_CPU, maxTimeSeconds); err != nil {
		return fmt.Errorf("failed to set CPU time limit for pid %d: %w", pid, err)
	}

	return nil
}

// applyProcessLimitsImpl applies file descriptor and process count limits using prlimit(2)
func applyProcessLimitsImpl(pid int, limits *ProcessLimits, logger logging.Logger) error {
	if limits.MaxFileDescriptors > 0 {
		logger.Infof("Applying file descriptor limit, pid: %d, max FDs: %d", pid, limits.MaxFileDescriptors)
		if err := setProcessRlimit(pid, unix.RLIMIT_NOFILE, uint64(limits.MaxFileDescriptors)); err != nil {
			return fmt.Errorf("failed to set file descriptor limit for pid %d: %w", pid, err)
		}
	}

	if limits.MaxChildProcesses > 0 {
		logger.Infof("Applying process count limit, pid: %d, max processes: %d", pid, limits.MaxChildProcesses)
		if err := setProcessRlimit(pid, unix.RLIMIT_NPROC, uint64(limits.MaxChildProcesses)); err != nil {
			return fmt.Errorf("failed to set process count limit for pid %d: %w", pid, err)
		}
	}

	return nil
}

func setProcessRlimit(pid int, resource int, value uint64) error {
	rlimit := unix.Rlimit{
		Cur: value,
		Max: value,
	}
	return unix.Prlimit(pid, resource, &rlimit, nil)
}
