// Package cmd holds the startup plumbing shared by the mythos commands.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/mythos/internal/platform/config"
	"github.com/louisbranch/mythos/internal/platform/otel"
)

const otelFlushTimeout = 5 * time.Second

// Service names, also used as the trace resource suffix.
const (
	ServiceStory    = "story"
	ServiceStoryMCP = "storymcp"
	ServiceSeed     = "seed"
)

// ParseConfig fills cfg from .env and the process environment.
// Flags registered afterwards default to these values.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses args into fs; nil args parse as none.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry starts tracing for service, runs fn and flushes spans
// before returning fn's error.
func RunWithTelemetry(ctx context.Context, service string, fn func(context.Context) error) error {
	service = strings.TrimSpace(service)
	switch {
	case service == "":
		return errors.New("service name is required")
	case fn == nil:
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), otelFlushTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("%s: flush traces: %v", service, err)
		}
	}()
	return fn(ctx)
}
