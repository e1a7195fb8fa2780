//go:build !windows

package process

import (
	"syscall"
	"time"
)

// SendTerminationSignal sends SIGTERM to the process group on Unix systems.
// The negative PID addresses the whole group so the unit's children go too.
func SendTerminationSignal(pid int, isDead bool, timeout time.Duration) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}
