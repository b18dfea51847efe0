// Package story parses story API flags and launches the service.
package story

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/mythos/internal/platform/cmd"
	server "github.com/louisbranch/mythos/internal/services/story/app"
)

// Config holds story command configuration.
type Config struct {
	HTTPAddr   string `env:"MYTHOS_STORY_HTTP_ADDR"   envDefault:":8095"`
	HealthPort int    `env:"MYTHOS_STORY_HEALTH_PORT" envDefault:"8096"`
	Runtime    server.Config
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The story HTTP API address")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The gRPC health server port")
	fs.StringVar(&cfg.Runtime.DBPath, "db", cfg.Runtime.DBPath, "Path to the story SQLite database")
	fs.BoolVar(&cfg.Runtime.AutoSeed, "seed", cfg.Runtime.AutoSeed, "Load the prologue into an empty database at startup")
	fs.StringVar(&cfg.Runtime.Generation.Provider, "provider", cfg.Runtime.Generation.Provider, "Generation provider: openai, gemini or none")
	fs.StringVar(&cfg.Runtime.Generation.Model, "model", cfg.Runtime.Generation.Model, "Generation model name")
	fs.StringVar(&cfg.Runtime.Generation.BaseURL, "base-url", cfg.Runtime.Generation.BaseURL, "OpenAI-compatible endpoint")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.HealthPort <= 0 || cfg.HealthPort > 65535 {
		return Config{}, fmt.Errorf("health port %d is out of range", cfg.HealthPort)
	}
	return cfg, nil
}

// Run starts the story HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceStory, func(ctx context.Context) error {
		return server.Run(ctx, server.ServerConfig{
			Runtime:    cfg.Runtime,
			HTTPAddr:   cfg.HTTPAddr,
			HealthAddr: fmt.Sprintf(":%d", cfg.HealthPort),
		})
	})
}
