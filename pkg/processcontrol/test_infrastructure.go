//go:build test

package processcontrol

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/process"
	"github.com/core-tools/hsu-unitmaster/pkg/resourcelimits"
)

// ===== SHARED TEST INFRASTRUCTURE =====

func nopStdout() io.ReadCloser {
	return io.NopCloser(strings.NewReader(""))
}

// fakeAttachCmd hands out a bare process handle for a PID without any
// discovery. Attached handles never get a waiter goroutine, so fake PIDs
// are safe here.
func fakeAttachCmd(pid int) process.StdAttachCmd {
	return func(ctx context.Context) (*os.Process, io.ReadCloser, error) {
		return &os.Process{Pid: pid}, nil, nil
	}
}

func failingAttachCmd(err error) process.StdAttachCmd {
	return func(ctx context.Context) (*os.Process, io.ReadCloser, error) {
		return nil, nil, err
	}
}

// exitRecorder captures exit events for assertions.
type exitRecorder struct {
	mu     sync.Mutex
	events []ExitEvent
	ch     chan ExitEvent
}

func newExitRecorder() *exitRecorder {
	return &exitRecorder{ch: make(chan ExitEvent, 8)}
}

func (r *exitRecorder) record(event ExitEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	r.ch <- event
}

func (r *exitRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *exitRecorder) next(timeout time.Duration) (ExitEvent, bool) {
	select {
	case event := <-r.ch:
		return event, true
	case <-time.After(timeout):
		return ExitEvent{}, false
	}
}

// violationRecorder captures forwarded resource violations.
type violationRecorder struct {
	mu         sync.Mutex
	violations []*resourcelimits.ResourceViolation
}

func (r *violationRecorder) record(violation *resourcelimits.ResourceViolation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations = append(r.violations, violation)
}

func (r *violationRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.violations)
}
