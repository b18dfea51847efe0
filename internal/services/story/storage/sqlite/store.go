// Package sqlite provides a SQLite-backed story storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/mythos/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/mythos/internal/platform/timeouts"
	"github.com/louisbranch/mythos/internal/services/story/graph"
	"github.com/louisbranch/mythos/internal/services/story/profile"
	"github.com/louisbranch/mythos/internal/services/story/storage"
	"github.com/louisbranch/mythos/internal/services/story/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements every storage contract over one queryer.
type queries struct {
	db queryer
}

func (q *queries) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if q == nil || q.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// Store persists story state in SQLite.
type Store struct {
	*queries
	sqlDB *sql.DB
}

var (
	_ storage.Store      = (*Store)(nil)
	_ storage.Tx         = (*queries)(nil)
	_ profile.Transactor = (*Store)(nil)
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullMillis(value time.Time) sql.NullInt64 {
	if value.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(value), Valid: true}
}

func nullID(id int64) sql.NullInt64 {
	if id <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

// Open opens a SQLite story store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeouts.StoreOpen)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.Migrate(ctx, sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{queries: &queries{db: sqlDB}, sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// InTx runs fn in one immediate transaction and commits when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if fn == nil {
		return fmt.Errorf("transaction func is required")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ProfileTx runs fn against profile storage inside one transaction.
func (s *Store) ProfileTx(ctx context.Context, fn func(ctx context.Context, store profile.Store) error) error {
	return s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return fn(ctx, tx)
	})
}

// InsertNode persists the node, its choices and placeholders atomically.
func (s *Store) InsertNode(ctx context.Context, draft graph.Draft) (graph.Node, error) {
	var node graph.Node
	err := s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		inserted, err := tx.InsertNode(ctx, draft)
		node = inserted
		return err
	})
	return node, err
}

// AddChoices appends choices atomically.
func (s *Store) AddChoices(ctx context.Context, nodeID int64, choices []graph.DraftChoice) ([]graph.Choice, error) {
	var out []graph.Choice
	err := s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		added, err := tx.AddChoices(ctx, nodeID, choices)
		out = added
		return err
	})
	return out, err
}

// CreateClass persists the class with its outfits and equipment atomically.
func (s *Store) CreateClass(ctx context.Context, class storage.Class) (storage.Class, error) {
	var out storage.Class
	err := s.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		created, err := tx.CreateClass(ctx, class)
		out = created
		return err
	})
	return out, err
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY
}
