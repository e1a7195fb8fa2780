package coreapi

import (
	"context"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/core-tools/hsu-unitmaster/pkg/coreapi/wire"
	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
)

// NewGRPCClientGateway wraps a gRPC client connection as a Contract.
func NewGRPCClientGateway(grpcClientConnection grpc.ClientConnInterface, logger logging.Logger) Contract {
	return &grpcClientGateway{
		grpcClient: wire.NewCoreServiceClient(grpcClientConnection),
		logger:     logger,
	}
}

type grpcClientGateway struct {
	grpcClient wire.CoreServiceClient
	logger     logging.Logger
}

func (gw *grpcClientGateway) Ping(ctx context.Context) error {
	_, err := gw.grpcClient.Ping(ctx, &wire.Empty{})
	if err != nil {
		gw.logger.Errorf("Ping client gateway: %v", err)
		return translateRPCError(err)
	}
	gw.logger.Debugf("Ping client gateway done")
	return nil
}

func (gw *grpcClientGateway) GetHealth(ctx context.Context) (*HealthReport, error) {
	response, err := gw.grpcClient.GetHealth(ctx, &wire.Empty{})
	if err != nil {
		gw.logger.Errorf("GetHealth client gateway: %v", err)
		return nil, translateRPCError(err)
	}
	gw.logger.Debugf("GetHealth client gateway done")
	return &HealthReport{
		Ok:       response.GetOk(),
		Degraded: response.GetDegraded(),
		Detail:   response.GetDetail(),
	}, nil
}

func (gw *grpcClientGateway) Shutdown(ctx context.Context, deadline time.Duration) error {
	request := &wire.ShutdownRequest{DeadlineMs: deadline.Milliseconds()}
	_, err := gw.grpcClient.Shutdown(ctx, request)
	if err != nil {
		gw.logger.Errorf("Shutdown client gateway: %v", err)
		return translateRPCError(err)
	}
	gw.logger.Debugf("Shutdown client gateway done")
	return nil
}

func (gw *grpcClientGateway) StreamLogs(ctx context.Context, sinceCursor string, sink LogSink) error {
	// Cancel on return so an abandoned stream releases its resources.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := gw.grpcClient.GetLogs(ctx, &wire.LogRequest{SinceCursor: sinceCursor})
	if err != nil {
		gw.logger.Errorf("GetLogs client gateway: %v", err)
		return translateRPCError(err)
	}
	for {
		entry, err := stream.Recv()
		if err == io.EOF {
			gw.logger.Debugf("GetLogs client gateway done")
			return nil
		}
		if err != nil {
			gw.logger.Errorf("GetLogs client gateway recv: %v", err)
			return translateRPCError(err)
		}
		record := LogRecord{
			Cursor:    entry.GetCursor(),
			Timestamp: time.UnixMilli(entry.GetTs()),
			Line:      entry.GetLine(),
		}
		if err := sink(record); err != nil {
			return err
		}
	}
}

// translateRPCError maps transport-level gRPC status codes to domain
// errors at the gateway boundary, so callers never see raw RPC errors.
func translateRPCError(err error) error {
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return errors.NewTimeoutError("core call deadline exceeded", err)
	case codes.Canceled:
		return errors.NewCancelledError("core call cancelled", err)
	case codes.NotFound:
		return errors.NewNotFoundError("core call target not found", err)
	case codes.Unavailable:
		return errors.NewCommunicationError("core endpoint unavailable", err)
	default:
		return errors.NewCommunicationError("core call failed", err)
	}
}
