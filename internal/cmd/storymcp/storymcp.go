// Package storymcp parses MCP command flags and serves the story tools over stdio.
package storymcp

import (
	"context"
	"flag"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	entrypoint "github.com/louisbranch/mythos/internal/platform/cmd"
	server "github.com/louisbranch/mythos/internal/services/story/app"
)

// Version is reported to MCP clients during initialization.
const Version = "0.1.0"

// Config holds storymcp command configuration.
type Config struct {
	Runtime server.Config
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Runtime.DBPath, "db", cfg.Runtime.DBPath, "Path to the story SQLite database")
	fs.BoolVar(&cfg.Runtime.AutoSeed, "seed", cfg.Runtime.AutoSeed, "Load the prologue into an empty database at startup")
	fs.StringVar(&cfg.Runtime.Generation.Provider, "provider", cfg.Runtime.Generation.Provider, "Generation provider: openai, gemini or none")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run serves the story tools on stdin/stdout.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceStoryMCP, func(ctx context.Context) error {
		return server.RunMCP(ctx, cfg.Runtime, Version, &mcp.StdioTransport{})
	})
}
