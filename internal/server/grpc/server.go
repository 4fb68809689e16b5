// Package grpc serves the standard gRPC health service next to the HTTP API.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported to health checks for the TTS service.
const ServiceName = "lektor.tts"

// Server wraps a gRPC server exposing grpc.health.v1.Health.
type Server struct {
	server *grpc.Server
	health *health.Server
	log    *slog.Logger
}

// NewServer creates a server that reports SERVING for the overall server
// and for ServiceName.
func NewServer(log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		server: grpc.NewServer(),
		health: health.NewServer(),
		log:    log,
	}

	healthpb.RegisterHealthServer(s.server, s.health)
	s.SetServing(true)

	return s
}

// SetServing flips the reported status of every service.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.log.Info("gRPC server listening", "address", l.Addr().String())

	if err := s.server.Serve(l); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc server: %w", err)
	}
	return nil
}

// Shutdown marks every service NOT_SERVING and stops gracefully, forcing
// the stop once ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("grpc shutdown: %w", ctx.Err())
	}
}
