package profile

import (
	"context"
	"fmt"
	"time"
)

// Store reads and writes whole profiles. GetProfile reports found=false
// when the character has no profile yet.
type Store interface {
	GetProfile(ctx context.Context, characterID int64) (Profile, bool, error)
	PutProfile(ctx context.Context, profile Profile) error
}

// Transactor runs fn against a Store bound to one transaction.
type Transactor interface {
	ProfileTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// Load returns the stored profile or the neutral default.
func Load(ctx context.Context, store Store, characterID int64) (Profile, error) {
	p, found, err := store.GetProfile(ctx, characterID)
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	if !found {
		return Default(characterID), nil
	}
	return p, nil
}

// ApplyEffect folds effect into the character's profile through store and
// returns the resulting snapshot. An empty effect writes nothing unless the
// profile does not exist yet.
func ApplyEffect(ctx context.Context, store Store, characterID int64, effect Effect, now time.Time) (Profile, error) {
	p, found, err := store.GetProfile(ctx, characterID)
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	if !found {
		p = Default(characterID)
	}
	if found && effect.IsEmpty() {
		return p, nil
	}
	next := p.Apply(effect)
	next.UpdatedAt = now.UTC()
	if err := store.PutProfile(ctx, next); err != nil {
		return Profile{}, fmt.Errorf("put profile: %w", err)
	}
	return next, nil
}

// Service is the profile read surface plus standalone effect application.
type Service struct {
	tx    Transactor
	clock func() time.Time
}

// NewService builds a Service over tx.
func NewService(tx Transactor) *Service {
	return &Service{tx: tx, clock: time.Now}
}

// Get returns the character's profile, creating the default on first read.
func (s *Service) Get(ctx context.Context, characterID int64) (Profile, error) {
	var out Profile
	err := s.tx.ProfileTx(ctx, func(ctx context.Context, store Store) error {
		p, err := ApplyEffect(ctx, store, characterID, Effect{}, s.clock())
		out = p
		return err
	})
	return out, err
}

// ApplyEffect applies effect atomically.
func (s *Service) ApplyEffect(ctx context.Context, characterID int64, effect Effect) (Profile, error) {
	var out Profile
	err := s.tx.ProfileTx(ctx, func(ctx context.Context, store Store) error {
		p, err := ApplyEffect(ctx, store, characterID, effect, s.clock())
		out = p
		return err
	})
	return out, err
}

// Alignment returns the character's alignment label.
func (s *Service) Alignment(ctx context.Context, characterID int64) (string, error) {
	p, err := s.Get(ctx, characterID)
	if err != nil {
		return "", err
	}
	return DeriveAlignment(p), nil
}
