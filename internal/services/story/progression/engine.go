// Package progression resolves player choices against the story graph and
// commits each transition as one unit of progress, profile and graph writes.
package progression

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/mythos/internal/platform/errors"
	"github.com/louisbranch/mythos/internal/platform/id"
	"github.com/louisbranch/mythos/internal/platform/telemetry/metrics"
	"github.com/louisbranch/mythos/internal/services/story/generation"
	"github.com/louisbranch/mythos/internal/services/story/graph"
	"github.com/louisbranch/mythos/internal/services/story/outfit"
	"github.com/louisbranch/mythos/internal/services/story/profile"
	"github.com/louisbranch/mythos/internal/services/story/storage"
	"github.com/louisbranch/mythos/internal/services/story/templating"
)

// DefaultDeathNodeTitle identifies the terminal node.
const DefaultDeathNodeTitle = "The End"

// DeathReason is recorded in progress metadata when a character dies.
const DeathReason = "You met an unfortunate end in your adventure"

// Generator drafts a new node for a player context.
type Generator interface {
	Generate(ctx context.Context, gctx generation.Context) (graph.Draft, error)
	Provider() string
}

// Config tunes an Engine. Zero values select defaults.
type Config struct {
	// Generator is nil when generation is disabled.
	Generator        Generator
	Sampler          *outfit.Sampler
	Metrics          *metrics.Metrics
	OutfitSampleSize int
	DeathNodeTitle   string
	Clock            func() time.Time
	NewID            func() (string, error)
	Logf             func(format string, args ...any)
}

// Engine is the choice resolution state machine.
type Engine struct {
	store storage.Store
	cfg   Config
	locks *keyedLocks
}

// NewEngine builds an Engine over store.
func NewEngine(store storage.Store, cfg Config) *Engine {
	if cfg.Sampler == nil {
		cfg.Sampler = outfit.NewSampler(nil)
	}
	if cfg.OutfitSampleSize <= 0 {
		cfg.OutfitSampleSize = outfit.DefaultSampleSize
	}
	if strings.TrimSpace(cfg.DeathNodeTitle) == "" {
		cfg.DeathNodeTitle = DefaultDeathNodeTitle
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	return &Engine{store: store, cfg: cfg, locks: newKeyedLocks()}
}

// View is a character's current position with the presented node.
type View struct {
	Character storage.Character
	Progress  storage.Progress
	Node      graph.Node
	Profile   profile.Profile
}

func (e *Engine) now() time.Time {
	return e.cfg.Clock().UTC()
}

// GetNode returns a node ready for display. When characterID is set, the
// character's history drives placeholder resolution.
func (e *Engine) GetNode(ctx context.Context, nodeID, characterID int64) (graph.Node, error) {
	if nodeID <= 0 {
		return graph.Node{}, invalidArgument("node id must be positive")
	}
	node, err := e.store.GetNode(ctx, nodeID)
	if err != nil {
		return graph.Node{}, nodeError(nodeID, err)
	}
	var history []int64
	if characterID > 0 {
		progress, err := e.store.GetProgress(ctx, characterID)
		switch {
		case err == nil:
			history = progress.ChoiceIDs()
		case !errors.Is(err, storage.ErrNotFound):
			return graph.Node{}, persistenceError("load progress", err)
		}
	}
	return e.present(ctx, e.store, node, history)
}

// StartNode returns the root node.
func (e *Engine) StartNode(ctx context.Context) (graph.Node, error) {
	rootID, err := e.store.RootNodeID(ctx)
	if err != nil {
		return graph.Node{}, nodeError(0, err)
	}
	return e.GetNode(ctx, rootID, 0)
}

// GetProgress returns the character's view, creating progress at the root
// on first access.
func (e *Engine) GetProgress(ctx context.Context, characterID int64) (View, error) {
	if characterID <= 0 {
		return View{}, invalidArgument("character id must be positive")
	}
	var view View
	err := e.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		character, err := tx.GetCharacter(ctx, characterID)
		if err != nil {
			return characterError(characterID, err)
		}
		progress, err := e.ensureProgress(ctx, tx, characterID)
		if err != nil {
			return err
		}
		p, err := profile.ApplyEffect(ctx, tx, characterID, profile.Effect{}, e.now())
		if err != nil {
			return persistenceError("load profile", err)
		}
		node, err := tx.GetNode(ctx, progress.CurrentNodeID)
		if err != nil {
			return nodeError(progress.CurrentNodeID, err)
		}
		if node, err = e.present(ctx, tx, node, progress.ChoiceIDs()); err != nil {
			return err
		}
		view = View{Character: character, Progress: progress, Node: node, Profile: p}
		return nil
	})
	if err != nil {
		return View{}, persistenceError("get progress", err)
	}
	return view, nil
}

func (e *Engine) ensureProgress(ctx context.Context, tx storage.Tx, characterID int64) (storage.Progress, error) {
	progress, err := tx.GetProgress(ctx, characterID)
	if err == nil {
		return progress, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.Progress{}, persistenceError("load progress", err)
	}
	rootID, err := tx.RootNodeID(ctx)
	if err != nil {
		return storage.Progress{}, nodeError(0, err)
	}
	now := e.now()
	if err := tx.CreateProgress(ctx, storage.Progress{
		CharacterID:   characterID,
		CurrentNodeID: rootID,
		Metadata:      map[string]any{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}); err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		return storage.Progress{}, persistenceError("create progress", err)
	}
	progress, err = tx.GetProgress(ctx, characterID)
	if err != nil {
		return storage.Progress{}, persistenceError("load progress", err)
	}
	return progress, nil
}

// CreateCharacter registers a character with a default profile and, when
// the graph is seeded, progress at the root node.
func (e *Engine) CreateCharacter(ctx context.Context, name string) (storage.Character, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return storage.Character{}, apperrors.WithMetadata(apperrors.CodeInvalidArgument,
			"character name is required", map[string]string{"Reason": "name is required"})
	}
	var character storage.Character
	err := e.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		now := e.now()
		created, err := tx.CreateCharacter(ctx, storage.Character{Name: name, Level: 1, CreatedAt: now})
		if err != nil {
			return persistenceError("create character", err)
		}
		if _, err := profile.ApplyEffect(ctx, tx, created.ID, profile.Effect{}, now); err != nil {
			return persistenceError("create profile", err)
		}
		if _, err := tx.RootNodeID(ctx); err == nil {
			if _, err := e.ensureProgress(ctx, tx, created.ID); err != nil {
				return err
			}
		}
		character = created
		return nil
	})
	if err != nil {
		return storage.Character{}, persistenceError("create character", err)
	}
	return character, nil
}

// GetCharacter returns one character.
func (e *Engine) GetCharacter(ctx context.Context, characterID int64) (storage.Character, error) {
	character, err := e.store.GetCharacter(ctx, characterID)
	if err != nil {
		return storage.Character{}, characterError(characterID, err)
	}
	return character, nil
}

// RandomOutfits draws n class outfits; n <= 0 uses the configured size.
func (e *Engine) RandomOutfits(ctx context.Context, n int) ([]outfit.Option, error) {
	if n <= 0 {
		n = e.cfg.OutfitSampleSize
	}
	pool, err := e.store.ListOutfitOptions(ctx)
	if err != nil {
		return nil, persistenceError("list outfit options", err)
	}
	return e.cfg.Sampler.Sample(pool, n), nil
}

// present renders placeholders and, on outfit selection nodes, replaces the
// stored slots with a fresh weighted draw.
func (e *Engine) present(ctx context.Context, store storage.Tx, node graph.Node, history []int64) (graph.Node, error) {
	if strings.Contains(node.Content, "{{") {
		bindings := make([]templating.Binding, 0, len(node.Placeholders))
		for _, p := range node.Placeholders {
			source, err := store.GetNode(ctx, p.SourceNodeID)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return graph.Node{}, persistenceError("load placeholder source", err)
			}
			candidates := make(map[int64]string, len(source.Choices))
			for _, choice := range source.Choices {
				candidates[choice.ID] = choice.Text
			}
			bindings = append(bindings, templating.Binding{Name: p.Name, Candidates: candidates, Fallback: p.Fallback})
		}
		node.Content = templating.Render(node.Content, bindings, history)
	}

	if node.Kind == graph.KindOutfitSelection {
		pool, err := store.ListOutfitOptions(ctx)
		if err != nil {
			return graph.Node{}, persistenceError("list outfit options", err)
		}
		drawn := e.cfg.Sampler.Sample(pool, outfit.SlotCount(node, e.cfg.OutfitSampleSize))
		node.Choices = outfit.ChoiceSet(node, drawn)
	}
	return node, nil
}

func invalidArgument(reason string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidArgument, reason, map[string]string{"Reason": reason})
}

// persistenceError keeps coded errors and treats the rest as persistence failures.
func persistenceError(op string, err error) error {
	if apperrors.GetCode(err) != apperrors.CodeUnknown {
		return err
	}
	return apperrors.Wrap(apperrors.CodePersistenceFailure, op, err)
}

func nodeError(nodeID int64, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WrapWithMetadata(apperrors.CodeNodeNotFound,
			fmt.Sprintf("node %d not found", nodeID),
			map[string]string{"NodeID": strconv.FormatInt(nodeID, 10)}, err)
	}
	return persistenceError("load node", err)
}

func characterError(characterID int64, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WrapWithMetadata(apperrors.CodeCharacterNotFound,
			fmt.Sprintf("character %d not found", characterID),
			map[string]string{"CharacterID": strconv.FormatInt(characterID, 10)}, err)
	}
	return persistenceError("load character", err)
}
