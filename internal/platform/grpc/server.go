package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer is a gRPC server that only exposes the standard health service.
type HealthServer struct {
	server   *gogrpc.Server
	health   *health.Server
	listener net.Listener
}

// NewHealthServer listens on addr and registers the health service with the
// given service names initially NOT_SERVING.
func NewHealthServer(addr string, services ...string) (*HealthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on health port %s: %w", addr, err)
	}
	grpcServer := gogrpc.NewServer(
		gogrpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	for _, service := range services {
		healthServer.SetServingStatus(service, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
	return &HealthServer{server: grpcServer, health: healthServer, listener: listener}, nil
}

// Addr returns the listener address.
func (s *HealthServer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SetServing marks every given service (and the overall server) SERVING.
func (s *HealthServer) SetServing(services ...string) {
	s.setStatus(grpc_health_v1.HealthCheckResponse_SERVING, services)
}

// SetNotServing marks every given service (and the overall server) NOT_SERVING.
func (s *HealthServer) SetNotServing(services ...string) {
	s.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING, services)
}

func (s *HealthServer) setStatus(status grpc_health_v1.HealthCheckResponse_ServingStatus, services []string) {
	if s == nil || s.health == nil {
		return
	}
	s.health.SetServingStatus("", status)
	for _, service := range services {
		s.health.SetServingStatus(service, status)
	}
}

// Serve blocks until ctx ends, then stops the server gracefully.
func (s *HealthServer) Serve(ctx context.Context) error {
	if s == nil || s.server == nil {
		return fmt.Errorf("health server is not configured")
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.server.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.server.GracefulStop()
		err := <-serveErr
		if err != nil && !errors.Is(err, gogrpc.ErrServerStopped) {
			return fmt.Errorf("serve health: %w", err)
		}
		return nil
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve health: %w", err)
		}
		return nil
	}
}
