package processcontrol

// ProcessState tracks where a controller is in the attach/execute/terminate
// cycle. It is internal bookkeeping for the controller itself; the
// orchestrator keeps its own unit-level state machine on top of it.
type ProcessState string

const (
	// ProcessStateIdle means no process is held. Both the initial state
	// and the state after any stop, kill or unexpected exit.
	ProcessStateIdle ProcessState = "idle"

	// ProcessStateStarting means a spawn or attach is in flight.
	ProcessStateStarting ProcessState = "starting"

	// ProcessStateRunning means a live process handle is held.
	ProcessStateRunning ProcessState = "running"

	// ProcessStateStopping means a graceful termination is in flight.
	ProcessStateStopping ProcessState = "stopping"

	// ProcessStateTerminating means the graceful window expired and the
	// process is being force-killed.
	ProcessStateTerminating ProcessState = "terminating"
)

// settled reports whether the controller is between operations, so a new
// start or stop may begin.
func (s ProcessState) settled() bool {
	return s == ProcessStateIdle || s == ProcessStateRunning
}
