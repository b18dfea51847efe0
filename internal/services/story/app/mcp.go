package server

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/mythos/internal/services/story/api/mcptools"
)

// RunMCP serves the story tools over transport until the session ends.
func RunMCP(ctx context.Context, cfg Config, version string, transport mcp.Transport) error {
	if transport == nil {
		return fmt.Errorf("mcp transport is required")
	}
	runtime, err := NewRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer runtime.Close()

	server := mcptools.NewServer(runtime.Engine, runtime.Profiles, version)
	if err := server.Run(ctx, transport); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve mcp: %w", err)
	}
	return nil
}
