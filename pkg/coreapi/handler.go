package coreapi

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/core-tools/hsu-unitmaster/pkg/coreapi/wire"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
)

// RegisterGRPCServerHandler exposes a Contract implementation on a
// gRPC server.
func RegisterGRPCServerHandler(grpcServerRegistrar grpc.ServiceRegistrar, handler Contract, logger logging.Logger) {
	wire.RegisterCoreServiceServer(grpcServerRegistrar, &grpcServerHandler{
		handler: handler,
		logger:  logger,
	})
}

type grpcServerHandler struct {
	wire.UnimplementedCoreServiceServer
	handler Contract
	logger  logging.Logger
}

func (h *grpcServerHandler) Ping(ctx context.Context, request *wire.Empty) (*wire.Pong, error) {
	if err := h.handler.Ping(ctx); err != nil {
		h.logger.Errorf("Ping server handler: %v", err)
		return nil, err
	}
	h.logger.Debugf("Ping server handler done")
	return &wire.Pong{}, nil
}

func (h *grpcServerHandler) GetHealth(ctx context.Context, request *wire.Empty) (*wire.HealthStatus, error) {
	report, err := h.handler.GetHealth(ctx)
	if err != nil {
		h.logger.Errorf("GetHealth server handler: %v", err)
		return nil, err
	}
	h.logger.Debugf("GetHealth server handler done")
	return &wire.HealthStatus{
		Ok:       report.Ok,
		Degraded: report.Degraded,
		Detail:   report.Detail,
	}, nil
}

func (h *grpcServerHandler) Shutdown(ctx context.Context, request *wire.ShutdownRequest) (*wire.Ack, error) {
	deadline := time.Duration(request.GetDeadlineMs()) * time.Millisecond
	if err := h.handler.Shutdown(ctx, deadline); err != nil {
		h.logger.Errorf("Shutdown server handler: %v", err)
		return nil, err
	}
	h.logger.Debugf("Shutdown server handler done")
	return &wire.Ack{}, nil
}

func (h *grpcServerHandler) GetLogs(request *wire.LogRequest, stream wire.CoreService_GetLogsServer) error {
	err := h.handler.StreamLogs(stream.Context(), request.GetSinceCursor(), func(record LogRecord) error {
		return stream.Send(&wire.LogEntry{
			Line:   record.Line,
			Ts:     record.Timestamp.UnixMilli(),
			Cursor: record.Cursor,
		})
	})
	if err != nil {
		h.logger.Errorf("GetLogs server handler: %v", err)
		return err
	}
	h.logger.Debugf("GetLogs server handler done")
	return nil
}
