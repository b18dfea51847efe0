package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/mythos/internal/services/story/profile"
	"github.com/louisbranch/mythos/internal/services/story/storage"
)

var profileColumns = []string{
	"strength", "dexterity", "constitution", "intelligence", "wisdom", "charisma",
	"strength_exp", "dexterity_exp", "constitution_exp", "intelligence_exp", "wisdom_exp", "charisma_exp",
	"good_evil", "order_chaos",
	"combat_preference", "exploration_preference", "social_preference", "puzzle_preference",
	"caution", "bravery", "curiosity", "empathy", "magic_affinity",
}

// profileFields returns pointers to p's columns in profileColumns order.
func profileFields(p *profile.Profile) []any {
	return []any{
		&p.Strength, &p.Dexterity, &p.Constitution, &p.Intelligence, &p.Wisdom, &p.Charisma,
		&p.StrengthExp, &p.DexterityExp, &p.ConstitutionExp, &p.IntelligenceExp, &p.WisdomExp, &p.CharismaExp,
		&p.GoodEvil, &p.OrderChaos,
		&p.CombatPreference, &p.ExplorationPreference, &p.SocialPreference, &p.PuzzlePreference,
		&p.Caution, &p.Bravery, &p.Curiosity, &p.Empathy, &p.MagicAffinity,
	}
}

// GetProfile returns the character's profile; found is false when none is stored.
func (q *queries) GetProfile(ctx context.Context, characterID int64) (profile.Profile, bool, error) {
	if err := q.ready(ctx); err != nil {
		return profile.Profile{}, false, err
	}
	p := profile.Profile{CharacterID: characterID}
	var (
		traitsJSON string
		updatedAt  int64
	)
	dest := append(profileFields(&p), &traitsJSON, &updatedAt)
	err := q.db.QueryRowContext(ctx,
		`SELECT `+strings.Join(profileColumns, ", ")+`, additional_traits, updated_at
		 FROM character_profiles WHERE character_id = ?`, characterID,
	).Scan(dest...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return profile.Profile{}, false, nil
		}
		return profile.Profile{}, false, fmt.Errorf("get profile for character %d: %w", characterID, err)
	}
	if err := json.Unmarshal([]byte(traitsJSON), &p.AdditionalTraits); err != nil {
		return profile.Profile{}, false, fmt.Errorf("decode additional traits: %w", err)
	}
	p.UpdatedAt = fromMillis(updatedAt)
	return p, true, nil
}

// PutProfile upserts the whole profile. A missing character is ErrNotFound.
func (q *queries) PutProfile(ctx context.Context, p profile.Profile) error {
	if err := q.ready(ctx); err != nil {
		return err
	}
	if p.CharacterID <= 0 {
		return fmt.Errorf("character id is required")
	}
	traits := p.AdditionalTraits
	if traits == nil {
		traits = map[string]any{}
	}
	traitsJSON, err := json.Marshal(traits)
	if err != nil {
		return fmt.Errorf("encode additional traits: %w", err)
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	updates := make([]string, 0, len(profileColumns)+2)
	for _, column := range profileColumns {
		updates = append(updates, column+" = excluded."+column)
	}
	updates = append(updates, "additional_traits = excluded.additional_traits", "updated_at = excluded.updated_at")

	args := []any{p.CharacterID}
	for _, field := range profileFields(&p) {
		args = append(args, *(field.(*int)))
	}
	args = append(args, string(traitsJSON), toMillis(updatedAt))

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO character_profiles (character_id, `+strings.Join(profileColumns, ", ")+`, additional_traits, updated_at)
		 VALUES (`+placeholders+`)
		 ON CONFLICT(character_id) DO UPDATE SET `+strings.Join(updates, ", "),
		args...,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("character %d: %w", p.CharacterID, storage.ErrNotFound)
		}
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}
