package coreapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
)

// flakyCoreEndpoint fails the first failUntil pings and answers after.
type flakyCoreEndpoint struct {
	failUntil int
	pings     int
}

func (f *flakyCoreEndpoint) Ping(ctx context.Context) error {
	f.pings++
	if f.pings <= f.failUntil {
		return errors.NewCommunicationError("connection refused", nil)
	}
	return nil
}

func (f *flakyCoreEndpoint) GetHealth(ctx context.Context) (*HealthReport, error) {
	return &HealthReport{Ok: true}, nil
}

func (f *flakyCoreEndpoint) Shutdown(ctx context.Context, deadline time.Duration) error {
	return nil
}

func (f *flakyCoreEndpoint) StreamLogs(ctx context.Context, sinceCursor string, sink LogSink) error {
	return nil
}

func TestRetryPing(t *testing.T) {
	logger := logging.NewNullLogger()

	t.Run("succeeds_first_attempt", func(t *testing.T) {
		endpoint := &flakyCoreEndpoint{}

		err := RetryPing(context.Background(), endpoint, RetryPingOptions{RetryAttempts: 3, RetryInterval: time.Millisecond}, logger)

		require.NoError(t, err)
		assert.Equal(t, 1, endpoint.pings)
	})

	t.Run("retries_until_endpoint_answers", func(t *testing.T) {
		endpoint := &flakyCoreEndpoint{failUntil: 2}

		err := RetryPing(context.Background(), endpoint, RetryPingOptions{RetryAttempts: 5, RetryInterval: time.Millisecond}, logger)

		require.NoError(t, err)
		assert.Equal(t, 3, endpoint.pings)
	})

	t.Run("fails_after_attempt_budget", func(t *testing.T) {
		endpoint := &flakyCoreEndpoint{failUntil: 100}

		err := RetryPing(context.Background(), endpoint, RetryPingOptions{RetryAttempts: 3, RetryInterval: time.Millisecond}, logger)

		require.Error(t, err)
		assert.True(t, errors.IsCommunicationError(err))
		assert.Equal(t, 3, endpoint.pings)
	})

	t.Run("cancelled_between_attempts", func(t *testing.T) {
		endpoint := &flakyCoreEndpoint{failUntil: 100}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := RetryPing(ctx, endpoint, RetryPingOptions{RetryAttempts: 5, RetryInterval: time.Minute}, logger)

		require.Error(t, err)
		assert.True(t, errors.IsCancelledError(err))
		assert.Equal(t, 1, endpoint.pings)
	})
}
