// Package seed parses seed command flags and loads a story manifest.
package seed

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	entrypoint "github.com/louisbranch/mythos/internal/platform/cmd"
	"github.com/louisbranch/mythos/internal/services/story/seed"
	storysqlite "github.com/louisbranch/mythos/internal/services/story/storage/sqlite"
)

// Config holds seed command configuration.
type Config struct {
	DBPath   string `env:"MYTHOS_STORY_DB_PATH" envDefault:"data/story.db"`
	Manifest string
	Check    bool
	Verbose  bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the story SQLite database")
	fs.StringVar(&cfg.Manifest, "manifest", "", "JSON manifest to load (default: embedded prologue)")
	fs.BoolVar(&cfg.Check, "check", false, "validate the manifest without writing")
	fs.BoolVar(&cfg.Verbose, "v", false, "verbose output")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the seed command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	manifest, err := loadManifest(cfg.Manifest)
	if err != nil {
		return err
	}
	if cfg.Verbose {
		fmt.Fprintf(errOut, "manifest %q: %d nodes, %d classes\n", manifest.Name, len(manifest.Nodes), len(manifest.Classes))
	}
	if cfg.Check {
		fmt.Fprintf(out, "Manifest %q is valid.\n", manifest.Name)
		return nil
	}

	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("db path is required")
	}
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := storysqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open story store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(errOut, "close story store: %v\n", err)
		}
	}()

	report, err := seed.Load(ctx, store, manifest)
	if err != nil {
		return err
	}
	writeReport(out, manifest.Name, report)
	return nil
}

func loadManifest(path string) (seed.Manifest, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return seed.Default()
	}
	file, err := os.Open(path)
	if err != nil {
		return seed.Manifest{}, fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()
	manifest, err := seed.Decode(file)
	if err != nil {
		return seed.Manifest{}, fmt.Errorf("%s: %w", path, err)
	}
	return manifest, nil
}

func writeReport(out io.Writer, name string, report seed.Report) {
	if report.GraphSkipped {
		fmt.Fprintln(out, "Story graph already present; skipped.")
	} else {
		fmt.Fprintf(out, "Loaded %q: %d nodes, %d choices.\n", name, report.Nodes, report.Choices)
	}
	if report.ClassSkipped {
		fmt.Fprintln(out, "Class catalog already present; skipped.")
	} else {
		fmt.Fprintf(out, "Loaded %d classes.\n", report.Classes)
	}
}
