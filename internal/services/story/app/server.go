package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"

	platformgrpc "github.com/louisbranch/mythos/internal/platform/grpc"
	"github.com/louisbranch/mythos/internal/platform/telemetry/metrics"
	"github.com/louisbranch/mythos/internal/platform/timeouts"
	"github.com/louisbranch/mythos/internal/services/story/api/httpapi"
)

// HealthService is the gRPC health service name reported by the story API.
const HealthService = "mythos.story.v1.StoryService"

// ServerConfig configures the story API process.
type ServerConfig struct {
	Runtime    Config
	HTTPAddr   string
	HealthAddr string
}

// Server hosts the story HTTP API next to a gRPC health listener.
type Server struct {
	runtime    *Runtime
	listener   net.Listener
	httpServer *http.Server
	health     *platformgrpc.HealthServer
}

// New builds the runtime and binds both listeners.
func New(ctx context.Context, cfg ServerConfig) (*Server, error) {
	runtime, err := NewRuntime(ctx, cfg.Runtime)
	if err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		runtime.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	health, err := platformgrpc.NewHealthServer(cfg.HealthAddr, HealthService)
	if err != nil {
		_ = listener.Close()
		runtime.Close()
		return nil, err
	}

	api := httpapi.NewServer(runtime.Engine, runtime.Profiles, httpapi.Options{Metrics: runtime.Metrics})
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	mux.Handle(http.MethodGet+" /metrics", metrics.Handler(runtime.Registry))

	return &Server{
		runtime:  runtime,
		listener: listener,
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		health: health,
	}, nil
}

// Addr returns the HTTP listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HealthAddr returns the gRPC health listener address.
func (s *Server) HealthAddr() string {
	if s == nil {
		return ""
	}
	return s.health.Addr()
}

// Run creates and serves a story server until context cancellation.
func Run(ctx context.Context, cfg ServerConfig) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs both listeners until ctx ends or one of them fails.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.runtime.Close()

	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	healthErr := make(chan error, 1)
	go func() {
		healthErr <- s.health.Serve(healthCtx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()
	s.health.SetServing(HealthService)
	log.Printf("story API listening at %v, health at %v", s.Addr(), s.HealthAddr())

	var result error
	healthDone := false
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			result = fmt.Errorf("serve http: %w", err)
		}
	case err := <-healthErr:
		healthDone = true
		result = err
	}

	s.health.SetNotServing(HealthService)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown story API: %v", err)
	}
	stopHealth()
	if !healthDone {
		if err := <-healthErr; err != nil && result == nil {
			result = err
		}
	}
	return result
}
