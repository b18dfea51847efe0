package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/mythos/internal/services/story/storage"
)

// CreateCharacter inserts a character and returns it with its id.
func (q *queries) CreateCharacter(ctx context.Context, character storage.Character) (storage.Character, error) {
	if err := q.ready(ctx); err != nil {
		return storage.Character{}, err
	}
	name := strings.TrimSpace(character.Name)
	if name == "" {
		return storage.Character{}, fmt.Errorf("character name is required")
	}
	if character.Level <= 0 {
		character.Level = 1
	}
	if character.Experience < 0 {
		return storage.Character{}, fmt.Errorf("experience must not be negative")
	}
	createdAt := character.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := q.db.ExecContext(ctx,
		`INSERT INTO characters (name, level, experience, class_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		name, character.Level, character.Experience, nullID(character.ClassID), toMillis(createdAt), toMillis(createdAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.Character{}, fmt.Errorf("class %d: %w", character.ClassID, storage.ErrNotFound)
		}
		return storage.Character{}, fmt.Errorf("create character: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storage.Character{}, fmt.Errorf("create character id: %w", err)
	}
	return q.GetCharacter(ctx, id)
}

// GetCharacter returns one character.
func (q *queries) GetCharacter(ctx context.Context, characterID int64) (storage.Character, error) {
	if err := q.ready(ctx); err != nil {
		return storage.Character{}, err
	}
	var (
		character storage.Character
		classID   sql.NullInt64
		diedAt    sql.NullInt64
		createdAt int64
		updatedAt int64
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, level, experience, class_id, is_dead, died_at, created_at, updated_at
		 FROM characters WHERE id = ?`, characterID,
	).Scan(&character.ID, &character.Name, &character.Level, &character.Experience, &classID,
		&character.IsDead, &diedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Character{}, storage.ErrNotFound
		}
		return storage.Character{}, fmt.Errorf("get character %d: %w", characterID, err)
	}
	if classID.Valid {
		character.ClassID = classID.Int64
	}
	if diedAt.Valid {
		character.DiedAt = fromMillis(diedAt.Int64)
	}
	character.CreatedAt = fromMillis(createdAt)
	character.UpdatedAt = fromMillis(updatedAt)
	return character, nil
}

// AssignClass sets the character's class.
func (q *queries) AssignClass(ctx context.Context, characterID, classID int64, at time.Time) error {
	if err := q.ready(ctx); err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		`UPDATE characters SET class_id = ?, updated_at = ? WHERE id = ?`,
		classID, toMillis(at), characterID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("class %d: %w", classID, storage.ErrNotFound)
		}
		return fmt.Errorf("assign class: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign class rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkDead flags the character as dead. Only the first call records died_at.
func (q *queries) MarkDead(ctx context.Context, characterID int64, at time.Time) (bool, error) {
	if err := q.ready(ctx); err != nil {
		return false, err
	}
	res, err := q.db.ExecContext(ctx,
		`UPDATE characters SET is_dead = 1, died_at = ?, updated_at = ? WHERE id = ? AND is_dead = 0`,
		toMillis(at), toMillis(at), characterID,
	)
	if err != nil {
		return false, fmt.Errorf("mark character dead: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark character dead rows: %w", err)
	}
	if affected == 0 {
		if _, err := q.GetCharacter(ctx, characterID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}
