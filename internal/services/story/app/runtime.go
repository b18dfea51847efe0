// Package server wires the story engine to its storage, generation provider
// and process lifecycles.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/louisbranch/mythos/internal/platform/telemetry/metrics"
	"github.com/louisbranch/mythos/internal/services/story/generation"
	"github.com/louisbranch/mythos/internal/services/story/generation/gemini"
	"github.com/louisbranch/mythos/internal/services/story/generation/openai"
	"github.com/louisbranch/mythos/internal/services/story/profile"
	"github.com/louisbranch/mythos/internal/services/story/progression"
	"github.com/louisbranch/mythos/internal/services/story/seed"
	storysqlite "github.com/louisbranch/mythos/internal/services/story/storage/sqlite"
)

// Generation providers accepted by GenerationConfig.Provider.
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// GenerationConfig selects and tunes the generative collaborator.
type GenerationConfig struct {
	Provider    string        `env:"MYTHOS_GENERATION_PROVIDER"    envDefault:"openai"`
	Model       string        `env:"MYTHOS_GENERATION_MODEL"`
	BaseURL     string        `env:"MYTHOS_GENERATION_BASE_URL"`
	APIKey      string        `env:"MYTHOS_GENERATION_API_KEY"`
	Timeout     time.Duration `env:"MYTHOS_GENERATION_TIMEOUT"     envDefault:"30s"`
	Temperature float64       `env:"MYTHOS_GENERATION_TEMPERATURE" envDefault:"0.7"`
	MaxTokens   int           `env:"MYTHOS_GENERATION_MAX_TOKENS"  envDefault:"1000"`
	TopP        float64       `env:"MYTHOS_GENERATION_TOP_P"       envDefault:"0.95"`
}

// Config holds the engine runtime settings shared by every story process.
type Config struct {
	DBPath           string `env:"MYTHOS_STORY_DB_PATH"     envDefault:"data/story.db"`
	AutoSeed         bool   `env:"MYTHOS_STORY_AUTO_SEED"   envDefault:"true"`
	OutfitSampleSize int    `env:"MYTHOS_OUTFIT_SAMPLE_SIZE" envDefault:"4"`
	DeathNodeTitle   string `env:"MYTHOS_DEATH_NODE_TITLE"   envDefault:"The End"`
	Generation       GenerationConfig
}

// Runtime owns the store and the engine built over it.
type Runtime struct {
	Store    *storysqlite.Store
	Engine   *progression.Engine
	Profiles *profile.Service
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	closers []func() error
}

// NewRuntime opens the store, optionally seeds it, and builds the engine.
func NewRuntime(ctx context.Context, cfg Config) (*Runtime, error) {
	store, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Store: store, closers: []func() error{store.Close}}

	if cfg.AutoSeed {
		manifest, err := seed.Default()
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("default manifest: %w", err)
		}
		report, err := seed.Load(ctx, store, manifest)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("seed story: %w", err)
		}
		if report.Nodes > 0 || report.Classes > 0 {
			log.Printf("seeded %d nodes, %d choices, %d classes", report.Nodes, report.Choices, report.Classes)
		}
	}

	rt.Registry = prometheus.NewRegistry()
	rt.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt.Metrics = metrics.New(rt.Registry)

	generator, closeProvider, err := NewGenerator(ctx, cfg.Generation, rt.Metrics)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if closeProvider != nil {
		rt.closers = append(rt.closers, closeProvider)
	}

	engineCfg := progression.Config{
		Metrics:          rt.Metrics,
		OutfitSampleSize: cfg.OutfitSampleSize,
		DeathNodeTitle:   cfg.DeathNodeTitle,
	}
	// A typed nil would defeat the engine's disabled-generation check.
	if generator != nil {
		engineCfg.Generator = generator
		log.Printf("narrative generation enabled with %s", generator.Provider())
	} else {
		log.Printf("narrative generation disabled")
	}
	rt.Engine = progression.NewEngine(store, engineCfg)
	rt.Profiles = profile.NewService(store)
	return rt, nil
}

// Close releases runtime resources in reverse order.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			log.Printf("close story runtime: %v", err)
		}
	}
	r.closers = nil
}

// NewGenerator builds the bridge for the configured provider. It returns a
// nil bridge when generation is disabled, and a close func for providers
// that hold a connection.
func NewGenerator(ctx context.Context, cfg GenerationConfig, m *metrics.Metrics) (*generation.Bridge, func() error, error) {
	opts := generation.Options{
		Timeout:     cfg.Timeout,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		TopP:        cfg.TopP,
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderNone:
		return nil, nil, nil
	case ProviderOpenAI:
		provider := openai.New(openai.Config{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
		})
		return generation.NewBridge(provider, opts, m), nil, nil
	case ProviderGemini:
		provider, err := gemini.New(ctx, gemini.Config{APIKey: cfg.APIKey, Model: cfg.Model})
		if err != nil {
			return nil, nil, fmt.Errorf("gemini provider: %w", err)
		}
		return generation.NewBridge(provider, opts, m), provider.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

func openStore(path string) (*storysqlite.Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("story db path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := storysqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open story sqlite store: %w", err)
	}
	return store, nil
}
