package grpc

import (
	"context"
	"fmt"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/mythos/internal/platform/timeouts"
)

const maxProbeBackoff = time.Second

// Probe queries a health endpoint over a dedicated plaintext connection.
type Probe struct {
	conn   *gogrpc.ClientConn
	client grpc_health_v1.HealthClient
}

// DialProbe prepares a probe for addr. The connection is established lazily.
func DialProbe(addr string) (*Probe, error) {
	conn, err := gogrpc.NewClient(addr, gogrpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial health %s: %w", addr, err)
	}
	return &Probe{conn: conn, client: grpc_health_v1.NewHealthClient(conn)}, nil
}

// Close releases the probe connection.
func (p *Probe) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// Status performs one health check bounded by timeouts.HealthProbe.
func (p *Probe) Status(ctx context.Context, service string) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	if p == nil || p.client == nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, fmt.Errorf("health probe is not configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, timeouts.HealthProbe)
	defer cancel()
	resp, err := p.client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// WaitServing polls until service reports SERVING or ctx ends.
func (p *Probe) WaitServing(ctx context.Context, service string, logf func(string, ...any)) error {
	backoff := 100 * time.Millisecond
	for {
		status, err := p.Status(ctx, service)
		if err == nil && status == grpc_health_v1.HealthCheckResponse_SERVING {
			return nil
		}
		if logf != nil {
			if err != nil {
				logf("health %q: %v", service, err)
			} else {
				logf("health %q: %s", service, status)
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %q to serve: %w", service, ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxProbeBackoff)
	}
}
