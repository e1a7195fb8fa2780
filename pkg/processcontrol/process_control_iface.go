// Package processcontrol owns the OS process behind a single unit: spawning
// or attaching, graceful-then-forced termination, log capture and resource
// monitoring. It deliberately knows nothing about restart policy or unit
// dependencies; when the process dies on its own the controller cleans up,
// reports the exit and waits to be told what to do next.
package processcontrol

import (
	"context"
	"os"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/logcollection"
	logconfig "github.com/core-tools/hsu-unitmaster/pkg/logcollection/config"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
	"github.com/core-tools/hsu-unitmaster/pkg/process"
	"github.com/core-tools/hsu-unitmaster/pkg/resourcelimits"
)

// DefaultGracefulTimeout bounds how long a stop waits for the process to
// honor the termination signal before escalating to a kill.
const DefaultGracefulTimeout = 20 * time.Second

// forceWaitTimeout bounds how long a stop waits for the process to
// disappear after a kill. A process that survives SIGKILL is stuck in the
// kernel and waiting longer will not help.
const forceWaitTimeout = 5 * time.Second

// attachedPollInterval is how often a stop re-checks liveness of an
// attached process. Attached processes are not our children, so there is
// no wait handle to block on.
const attachedPollInterval = 200 * time.Millisecond

// ExitEvent describes a process that went away outside of an orchestrated
// stop: it crashed, was killed externally, or was terminated by a resource
// limit policy. The controller has already cleaned up and returned to idle
// by the time the event is delivered.
type ExitEvent struct {
	UnitID   string
	PID      int
	ExitCode int // -1 when the process was signaled or the code is unknown
	Err      error
	At       time.Time
}

// ExitCallback receives exit events. Called from a controller goroutine
// with no locks held; it is safe to call back into the controller.
type ExitCallback func(event ExitEvent)

// ViolationCallback receives resource violations whose configured policy
// is restart. The controller handles shutdown policies itself and leaves
// restart decisions to the orchestrator.
type ViolationCallback func(violation *resourcelimits.ResourceViolation)

// Options configures a process controller for one unit.
type Options struct {
	// CanAttach allows joining an already-running process found via
	// AttachCmd before falling back to ExecuteCmd.
	CanAttach bool

	// CanTerminate allows stopping the process. When false a stop only
	// detaches, which is the shape used for units the master observes
	// but does not own.
	CanTerminate bool

	// GracefulTimeout overrides DefaultGracefulTimeout when positive.
	GracefulTimeout time.Duration

	// ExecuteCmd spawns the unit process. Required unless AttachCmd is
	// set and attach is the only intended path.
	ExecuteCmd process.StdExecuteCmd

	// AttachCmd discovers and opens an existing process.
	AttachCmd process.StdAttachCmd

	// Limits enables resource monitoring and policy enforcement for the
	// process. Nil keeps on-demand usage sampling available without any
	// background monitoring.
	Limits *resourcelimits.ResourceLimits

	// LogCollection plus LogConfig enable capture of the unit's combined
	// stdout/stderr stream. Both must be set to take effect.
	LogCollection logcollection.LogCollectionService
	LogConfig     *logconfig.UnitLogConfig

	ExitCallback      ExitCallback
	ViolationCallback ViolationCallback
}

// ProcessControl drives the OS process of one unit.
type ProcessControl interface {
	// Start spawns or attaches the process and brings up log capture and
	// resource monitoring. Fails if a process is already held.
	Start(ctx context.Context) error

	// Stop terminates the process, graceful first, forced after the
	// graceful window. Stopping an idle controller is a no-op and
	// returns nil.
	Stop(ctx context.Context) error

	// Restart is a stop followed by a start.
	Restart(ctx context.Context) error

	// State returns the controller's current process state.
	State() ProcessState

	// PID returns the held process id, or 0 when idle.
	PID() int

	// GetCurrentUsage samples resource usage of the held process.
	GetCurrentUsage() (*resourcelimits.ResourceUsage, error)
}

// Discover looks for a running process matching the discovery config and
// reports its PID without taking ownership. Never spawns anything.
func Discover(ctx context.Context, config process.DiscoveryConfig, unitID string, logger logging.Logger) (int, error) {
	attach := process.NewStdAttachCmd(config, unitID, logger)
	proc, _, err := attach(ctx)
	if err != nil {
		return 0, err
	}
	pid := proc.Pid
	releaseProcess(proc)
	return pid, nil
}

func releaseProcess(proc *os.Process) {
	if proc != nil {
		_ = proc.Release()
	}
}
