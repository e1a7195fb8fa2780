package coreapi

import (
	"fmt"
	"net"
	"time"

	"github.com/phayes/freeport"
	"google.golang.org/grpc"

	"github.com/core-tools/hsu-unitmaster/pkg/errors"
	"github.com/core-tools/hsu-unitmaster/pkg/logging"
)

// ServerOptions configures a core gRPC endpoint.
type ServerOptions struct {
	// Port to listen on; 0 allocates a free port.
	Port int
}

// Server hosts a core gRPC endpoint on the loopback interface.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	port       int
	logger     logging.Logger
}

// NewServer binds the configured port (allocating a free one when the
// port is 0) and prepares a gRPC server. Register handlers through
// GRPCRegistrar, then call Serve.
func NewServer(options ServerOptions, logger logging.Logger) (*Server, error) {
	port := options.Port
	if port == 0 {
		freePort, err := freeport.GetFreePort()
		if err != nil {
			return nil, errors.NewInternalError("failed to allocate free port", err)
		}
		port = freePort
	}

	address := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.NewIOError("failed to listen on core endpoint", err).WithContext("address", address)
	}

	logger.Infof("Core server listening, address: %s", address)

	return &Server{
		grpcServer: grpc.NewServer(),
		listener:   listener,
		port:       port,
		logger:     logger,
	}, nil
}

// Port returns the bound port, useful when options requested 0.
func (s *Server) Port() int {
	return s.port
}

// Endpoint returns the dialable address of the server.
func (s *Server) Endpoint() string {
	return s.listener.Addr().String()
}

// GRPCRegistrar exposes the registrar for handler registration. All
// handlers must be registered before Serve.
func (s *Server) GRPCRegistrar() grpc.ServiceRegistrar {
	return s.grpcServer
}

// Serve blocks until the server stops.
func (s *Server) Serve() error {
	if err := s.grpcServer.Serve(s.listener); err != nil {
		return errors.NewCommunicationError("core server terminated", err)
	}
	return nil
}

// Stop drains in-flight calls, forcing closure when the deadline
// elapses.
func (s *Server) Stop(deadline time.Duration) {
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infof("Core server stopped")
	case <-time.After(deadline):
		s.logger.Warnf("Core server graceful stop timed out, forcing, deadline: %v", deadline)
		s.grpcServer.Stop()
	}
}
