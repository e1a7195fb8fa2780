package monitoring

import "context"

const DefaultMaxInFlightProbes = 8

// ProbeLimiter bounds the number of probes in flight across all units.
// One slow unit can delay others past the bound, never stall them.
type ProbeLimiter struct {
	slots chan struct{}
}

func NewProbeLimiter(maxInFlight int) *ProbeLimiter {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlightProbes
	}
	return &ProbeLimiter{
		slots: make(chan struct{}, maxInFlight),
	}
}

// Acquire blocks until a probe slot is free. It returns false when the
// context or the stop channel ends the wait.
func (l *ProbeLimiter) Acquire(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case l.slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	}
}

func (l *ProbeLimiter) Release() {
	<-l.slots
}
