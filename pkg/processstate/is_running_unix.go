//go:build !windows

package processstate

import (
	"os"
	"syscall"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
)

// IsProcessRunning reports whether a process with the given PID exists.
// The result is a point-in-time observation; the process may exit between
// the check and any action taken on it.
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, errors.NewValidationError("invalid pid", nil).WithContext("pid", pid)
	}

	// On Unix systems, FindProcess always succeeds and returns a Process
	// for the given pid, regardless of whether the process exists. To test
	// whether the process actually exists, see whether
	// p.Signal(syscall.Signal(0)) reports an error.
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, errors.NewProcessError("failed to find process", err).WithContext("pid", pid)
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true, nil
	}
	if err.Error() == "os: process already finished" {
		return false, nil
	}
	errno, ok := err.(syscall.Errno)
	if !ok {
		return false, errors.NewProcessError("failed to signal process", err).WithContext("pid", pid)
	}
	switch errno {
	case syscall.ESRCH:
		return false, nil
	case syscall.EPERM:
		// The process exists but belongs to another user.
		return true, nil
	}
	return false, errors.NewProcessError("failed to signal process", err).WithContext("pid", pid)
}
