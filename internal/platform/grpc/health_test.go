package grpc

import (
	"context"
	"testing"
	"time"

	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const testService = "mythos.story"

func TestProbeReportsNotServingUntilMarked(t *testing.T) {
	srv, stop := startHealthServer(t)
	defer stop()
	probe := dialProbe(t, srv.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// The first RPC may race the listener goroutine; poll briefly.
	var status grpc_health_v1.HealthCheckResponse_ServingStatus
	var err error
	for ctx.Err() == nil {
		if status, err = probe.Status(ctx, testService); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %s, want NOT_SERVING", status)
	}

	srv.SetServing(testService)
	if status, err = probe.Status(ctx, testService); err != nil || status != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("status = %s, %v; want SERVING", status, err)
	}
	if status, err = probe.Status(ctx, ""); err != nil || status != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("overall status = %s, %v; want SERVING", status, err)
	}

	srv.SetNotServing(testService)
	if status, _ = probe.Status(ctx, testService); status != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %s, want NOT_SERVING", status)
	}
}

func TestWaitServingTransitions(t *testing.T) {
	srv, stop := startHealthServer(t)
	defer stop()
	probe := dialProbe(t, srv.Addr())

	go func() {
		time.Sleep(200 * time.Millisecond)
		srv.SetServing(testService)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var logged int
	logf := func(string, ...any) { logged++ }
	if err := probe.WaitServing(ctx, testService, logf); err != nil {
		t.Fatalf("wait serving: %v", err)
	}
	if logged == 0 {
		t.Fatal("expected at least one not-serving log line")
	}
}

func TestWaitServingRespectsContext(t *testing.T) {
	srv, stop := startHealthServer(t)
	defer stop()
	probe := dialProbe(t, srv.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := probe.WaitServing(ctx, testService, nil); err == nil {
		t.Fatal("expected context error, got nil")
	}
}

func TestNilProbe(t *testing.T) {
	var probe *Probe
	if _, err := probe.Status(context.Background(), ""); err == nil {
		t.Fatal("expected unconfigured probe error")
	}
	if err := probe.Close(); err != nil {
		t.Fatalf("close nil probe: %v", err)
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	srv, err := NewHealthServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("new health server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func startHealthServer(t *testing.T) (*HealthServer, func()) {
	t.Helper()

	srv, err := NewHealthServer("127.0.0.1:0", testService)
	if err != nil {
		t.Fatalf("new health server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx)
	}()

	stop := func() {
		cancel()
		select {
		case <-serveErr:
		case <-time.After(2 * time.Second):
		}
	}
	return srv, stop
}

func dialProbe(t *testing.T, addr string) *Probe {
	t.Helper()

	probe, err := DialProbe(addr)
	if err != nil {
		t.Fatalf("dial probe: %v", err)
	}
	t.Cleanup(func() { _ = probe.Close() })
	return probe
}
