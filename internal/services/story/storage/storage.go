// Package storage defines persistence contracts for story service state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/mythos/internal/services/story/graph"
	"github.com/louisbranch/mythos/internal/services/story/outfit"
	"github.com/louisbranch/mythos/internal/services/story/profile"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrVersionConflict indicates progress changed since it was read.
	ErrVersionConflict = errors.New("progress version conflict")
)

// Character is the minimal character record the engine needs.
type Character struct {
	ID         int64
	Name       string
	Level      int
	Experience int
	ClassID    int64
	IsDead     bool
	DiedAt     time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HistoryEntry is one resolved choice in a character's progression.
type HistoryEntry struct {
	ChoiceID     int64     `json:"choiceId"`
	NodeID       int64     `json:"nodeId"`
	ChoiceText   string    `json:"choiceText,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	InputValue   string    `json:"inputValue,omitempty"`
	SubmissionID string    `json:"submissionId,omitempty"`
}

// Progress is a character's position in the story graph.
type Progress struct {
	CharacterID   int64
	CurrentNodeID int64
	History       []HistoryEntry
	Metadata      map[string]any
	// Version increments on every write.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSubmission reports whether a submission id was already recorded.
func (p Progress) HasSubmission(id string) bool {
	if id == "" {
		return false
	}
	for _, entry := range p.History {
		if entry.SubmissionID == id {
			return true
		}
	}
	return false
}

// ChoiceIDs returns the chosen ids in history order.
func (p Progress) ChoiceIDs() []int64 {
	ids := make([]int64, len(p.History))
	for i, entry := range p.History {
		ids[i] = entry.ChoiceID
	}
	return ids
}

// Class is a character class with its stat bonuses, outfits and equipment.
type Class struct {
	ID          int64
	Name        string
	Description string
	Bonuses     map[profile.Attribute]int
	Outfits     []Outfit
	Equipment   []string
}

// Outfit is one wardrobe option for a class.
type Outfit struct {
	ID          int64
	ClassID     int64
	Description string
	Weight      float64
}

// GraphStore reads and appends story graph records.
type GraphStore interface {
	GetNode(ctx context.Context, nodeID int64) (graph.Node, error)
	GetChoice(ctx context.Context, choiceID int64) (graph.Choice, error)
	NodeExists(ctx context.Context, nodeID int64) (bool, error)
	RootNodeID(ctx context.Context) (int64, error)
	CountNodes(ctx context.Context) (int, error)
	// ListNodes returns up to limit nodes in id order, for style examples.
	ListNodes(ctx context.Context, limit int) ([]graph.Node, error)
	// InsertNode persists a node with its choices and placeholders as one unit.
	InsertNode(ctx context.Context, draft graph.Draft) (graph.Node, error)
	// AddChoices appends choices to a node created in the same import.
	AddChoices(ctx context.Context, nodeID int64, choices []graph.DraftChoice) ([]graph.Choice, error)
}

// ProgressStore persists player progression.
type ProgressStore interface {
	GetProgress(ctx context.Context, characterID int64) (Progress, error)
	// CreateProgress inserts initial progress; ErrAlreadyExists when present.
	CreateProgress(ctx context.Context, progress Progress) error
	// SaveProgress writes progress when its stored version equals
	// progress.Version, incrementing it; ErrVersionConflict otherwise.
	SaveProgress(ctx context.Context, progress Progress) (Progress, error)
}

// CharacterStore persists the minimal character registry.
type CharacterStore interface {
	CreateCharacter(ctx context.Context, character Character) (Character, error)
	GetCharacter(ctx context.Context, characterID int64) (Character, error)
	AssignClass(ctx context.Context, characterID, classID int64, at time.Time) error
	// MarkDead sets is_dead once and reports whether this call changed it.
	MarkDead(ctx context.Context, characterID int64, at time.Time) (bool, error)
}

// CatalogStore persists the class catalog.
type CatalogStore interface {
	CreateClass(ctx context.Context, class Class) (Class, error)
	GetClass(ctx context.Context, classID int64) (Class, error)
	CountClasses(ctx context.Context) (int, error)
	ListOutfitOptions(ctx context.Context) ([]outfit.Option, error)
}

// Tx is every store contract bound to one transaction.
type Tx interface {
	GraphStore
	ProgressStore
	CharacterStore
	CatalogStore
	profile.Store
}

// Store is the story persistence root.
type Store interface {
	Tx
	// InTx runs fn in one transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}
