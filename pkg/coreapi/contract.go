package coreapi

import (
	"context"
	"time"
)

// HealthReport is the health state a core endpoint reports.
type HealthReport struct {
	Ok       bool
	Degraded bool
	Detail   string
}

// LogRecord is one entry of a core log stream.
type LogRecord struct {
	Cursor    string
	Timestamp time.Time
	Line      string
}

// LogSink receives streamed log records in order. Returning an error
// stops the stream and propagates to the caller.
type LogSink func(record LogRecord) error

// Contract is the core control-plane surface. The master consumes it
// through the gRPC client gateway toward integrated units and
// implements it in-process for its own endpoint.
type Contract interface {
	Ping(ctx context.Context) error
	GetHealth(ctx context.Context) (*HealthReport, error)
	Shutdown(ctx context.Context, deadline time.Duration) error
	StreamLogs(ctx context.Context, sinceCursor string, sink LogSink) error
}
