//go:build windows

package process

import (
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/processstate"
)

// Windows console operation lock to prevent race conditions
var consoleOperationLock sync.Mutex

// SendTerminationSignal delivers Ctrl+Break to a live process group, or
// applies the AttachConsole dead-PID fix when the process is already gone
// so the master's own Ctrl+C handling keeps working.
func SendTerminationSignal(pid int, isDead bool, timeout time.Duration) error {
	if pid <= 0 {
		return fmt.Errorf("invalid PID: %d", pid)
	}

	consoleOperationLock.Lock()
	defer consoleOperationLock.Unlock()

	if isDead {
		isRunning, _ := processstate.IsProcessRunning(pid)
		isDead = !isRunning
	}

	dll, err := syscall.LoadDLL("kernel32.dll")
	if err != nil {
		return fmt.Errorf("failed to load kernel32.dll: %v", err)
	}
	defer dll.Release()

	if isDead {
		// Attaching to a dead PID fails, and the failure resets console
		// signal state broken by the child's exit.
		return consoleSignalFix(dll, pid)
	}
	return sendCtrlBreakToProcessSafe(dll, pid, timeout)
}

func consoleSignalFix(dll *syscall.DLL, deadPID int) error {
	err := attachConsole(dll, deadPID)
	if err != nil {
		// Expected to fail for dead process - that's the point
		return nil
	}
	return fmt.Errorf("warning: AttachConsole unexpectedly succeeded for PID %d", deadPID)
}

// sendCtrlBreakToProcessSafe sends Ctrl+Break with timeout protection
func sendCtrlBreakToProcessSafe(dll *syscall.DLL, pid int, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- generateConsoleCtrlEvent(dll, pid)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send Ctrl+Break to PID %d: %v", pid, err)
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout sending Ctrl+Break to PID %d after %v", pid, timeout)
	}
}

func attachConsole(dll *syscall.DLL, pid int) error {
	attachConsole, err := dll.FindProc("AttachConsole")
	if err != nil {
		return err
	}

	result, _, err := attachConsole.Call(uintptr(pid))
	if result == 0 {
		return err
	}
	return nil
}

func generateConsoleCtrlEvent(dll *syscall.DLL, pid int) error {
	generateConsoleCtrlEvent, err := dll.FindProc("GenerateConsoleCtrlEvent")
	if err != nil {
		return err
	}

	result, _, err := generateConsoleCtrlEvent.Call(
		uintptr(syscall.CTRL_BREAK_EVENT),
		uintptr(pid),
	)
	if result == 0 {
		return err
	}
	return nil
}
