package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/mythos/internal/services/story/storage"
)

// GetProgress returns a character's progression record.
func (q *queries) GetProgress(ctx context.Context, characterID int64) (storage.Progress, error) {
	if err := q.ready(ctx); err != nil {
		return storage.Progress{}, err
	}
	var (
		progress     storage.Progress
		historyJSON  string
		metadataJSON string
		createdAt    int64
		updatedAt    int64
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT character_id, current_node_id, choice_history, metadata, version, created_at, updated_at
		 FROM player_progress WHERE character_id = ?`, characterID,
	).Scan(&progress.CharacterID, &progress.CurrentNodeID, &historyJSON, &metadataJSON, &progress.Version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Progress{}, storage.ErrNotFound
		}
		return storage.Progress{}, fmt.Errorf("get progress for character %d: %w", characterID, err)
	}
	if err := json.Unmarshal([]byte(historyJSON), &progress.History); err != nil {
		return storage.Progress{}, fmt.Errorf("decode choice history: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &progress.Metadata); err != nil {
		return storage.Progress{}, fmt.Errorf("decode progress metadata: %w", err)
	}
	if progress.Metadata == nil {
		progress.Metadata = map[string]any{}
	}
	progress.CreatedAt = fromMillis(createdAt)
	progress.UpdatedAt = fromMillis(updatedAt)
	return progress, nil
}

func encodeProgress(progress storage.Progress) (string, string, error) {
	history := progress.History
	if history == nil {
		history = []storage.HistoryEntry{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return "", "", fmt.Errorf("encode choice history: %w", err)
	}
	metadata := progress.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", "", fmt.Errorf("encode progress metadata: %w", err)
	}
	return string(historyJSON), string(metadataJSON), nil
}

// CreateProgress inserts initial progress at version 1.
func (q *queries) CreateProgress(ctx context.Context, progress storage.Progress) error {
	if err := q.ready(ctx); err != nil {
		return err
	}
	if progress.CharacterID <= 0 {
		return fmt.Errorf("character id is required")
	}
	if progress.CurrentNodeID <= 0 {
		return fmt.Errorf("current node id is required")
	}
	historyJSON, metadataJSON, err := encodeProgress(progress)
	if err != nil {
		return err
	}
	createdAt := progress.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := progress.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err = q.db.ExecContext(ctx,
		`INSERT INTO player_progress (character_id, current_node_id, choice_history, metadata, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?)`,
		progress.CharacterID, progress.CurrentNodeID, historyJSON, metadataJSON, toMillis(createdAt), toMillis(updatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("create progress: %w", err)
	}
	return nil
}

// SaveProgress writes progress guarded by its version.
func (q *queries) SaveProgress(ctx context.Context, progress storage.Progress) (storage.Progress, error) {
	if err := q.ready(ctx); err != nil {
		return storage.Progress{}, err
	}
	historyJSON, metadataJSON, err := encodeProgress(progress)
	if err != nil {
		return storage.Progress{}, err
	}
	updatedAt := progress.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	res, err := q.db.ExecContext(ctx,
		`UPDATE player_progress
		 SET current_node_id = ?, choice_history = ?, metadata = ?, version = version + 1, updated_at = ?
		 WHERE character_id = ? AND version = ?`,
		progress.CurrentNodeID, historyJSON, metadataJSON, toMillis(updatedAt), progress.CharacterID, progress.Version,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.Progress{}, fmt.Errorf("node %d: %w", progress.CurrentNodeID, storage.ErrNotFound)
		}
		return storage.Progress{}, fmt.Errorf("save progress: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storage.Progress{}, fmt.Errorf("save progress rows: %w", err)
	}
	if affected == 0 {
		if _, err := q.GetProgress(ctx, progress.CharacterID); err != nil {
			return storage.Progress{}, err
		}
		return storage.Progress{}, storage.ErrVersionConflict
	}

	progress.Version++
	progress.UpdatedAt = updatedAt.UTC()
	return progress, nil
}
