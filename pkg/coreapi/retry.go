package coreapi

import (
	"context"
	"time"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
)

// Retry defaults used when RetryPingOptions leaves a knob unset.
const (
	DefaultRetryAttempts = 10
	DefaultRetryInterval = 1 * time.Second
)

// RetryPingOptions bounds the ping retry loop.
type RetryPingOptions struct {
	RetryAttempts int
	RetryInterval time.Duration
}

// RetryPing pings the endpoint until it answers, the attempt budget is
// spent or the context ends. A freshly spawned unit needs a moment
// before its core endpoint accepts calls, so early failures are
// expected and logged at debug level only.
func RetryPing(ctx context.Context, contract Contract, options RetryPingOptions, logger logging.Logger) error {
	attempts := options.RetryAttempts
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}
	interval := options.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = contract.Ping(ctx)
		if lastErr == nil {
			logger.Debugf("Ping succeeded, attempt: %d", attempt)
			return nil
		}
		logger.Debugf("Ping failed, attempt: %d of %d: %v", attempt, attempts, lastErr)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return errors.NewCancelledError("ping retry cancelled", ctx.Err())
		case <-time.After(interval):
		}
	}
	return errors.NewCommunicationError("endpoint did not answer ping", lastErr)
}
