package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS wizard_snapshots (
	identifier  TEXT PRIMARY KEY,
	snapshot    TEXT NOT NULL,
	snapshot_id TEXT NOT NULL DEFAULT '',
	etag        TEXT NOT NULL DEFAULT '',
	extra       TEXT,
	updated_at  DATETIME NOT NULL
)`

// SQLiteStore keeps one row per session in the wizard_snapshots table.
type SQLiteStore[T any] struct {
	db       *sql.DB
	maxBytes int64
}

// OpenSQLiteStore opens (or creates) the database at path and makes sure the
// snapshot table exists. Use ":memory:" for a throwaway database.
func OpenSQLiteStore[T any](ctx context.Context, path string, maxBytes int64) (*SQLiteStore[T], error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("state: open sqlite %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	store, err := NewSQLiteStore[T](ctx, db, maxBytes)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an existing connection and runs the table migration.
func NewSQLiteStore[T any](ctx context.Context, db *sql.DB, maxBytes int64) (*SQLiteStore[T], error) {
	if db == nil {
		return nil, fmt.Errorf("state: sqlite connection is required")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("state: migrate wizard_snapshots: %w", err)
	}
	return &SQLiteStore[T]{db: db, maxBytes: maxBytes}, nil
}

func (s *SQLiteStore[T]) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}

	var (
		raw   string
		extra sql.NullString
		meta  Meta
	)
	err = s.db.QueryRowContext(ctx,
		"SELECT snapshot, snapshot_id, etag, extra, updated_at FROM wizard_snapshots WHERE identifier = ?",
		key,
	).Scan(&raw, &meta.SnapshotID, &meta.ETag, &extra, &meta.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, Meta{}, false, nil
	}
	if err != nil {
		return zero, Meta{}, false, fmt.Errorf("state: load %s: %w", key, err)
	}

	var snapshot T
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return zero, Meta{}, false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	if extra.Valid && extra.String != "" {
		if err := json.Unmarshal([]byte(extra.String), &meta.Extra); err != nil {
			return zero, Meta{}, false, fmt.Errorf("state: decode meta %s: %w", key, err)
		}
	}
	meta.UpdatedAt = meta.UpdatedAt.UTC()
	return snapshot, meta, true, nil
}

func (s *SQLiteStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode %s: %w", key, err)
	}
	if s.maxBytes > 0 && int64(len(raw)) > s.maxBytes {
		return Meta{}, fmt.Errorf("%w: %s needs %d bytes, limit is %d", ErrQuotaExceeded, key, len(raw), s.maxBytes)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Meta{}, fmt.Errorf("state: begin save %s: %w", key, err)
	}
	defer tx.Rollback()

	var (
		current      Meta
		currentExtra sql.NullString
	)
	err = tx.QueryRowContext(ctx,
		"SELECT snapshot_id, etag, extra, updated_at FROM wizard_snapshots WHERE identifier = ?",
		key,
	).Scan(&current.SnapshotID, &current.ETag, &currentExtra, &current.UpdatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Meta{}, fmt.Errorf("state: read revision %s: %w", key, err)
	}
	if currentExtra.Valid && currentExtra.String != "" {
		if err := json.Unmarshal([]byte(currentExtra.String), &current.Extra); err != nil {
			return Meta{}, fmt.Errorf("state: decode meta %s: %w", key, err)
		}
	}
	if err := checkETag(meta.ETag, current.ETag); err != nil {
		return Meta{}, err
	}

	saved := mergeMeta(current, meta)
	saved.ETag = nextETag(current.ETag)
	if saved.UpdatedAt.IsZero() {
		saved.UpdatedAt = time.Now().UTC()
	}
	var extra sql.NullString
	if len(saved.Extra) > 0 {
		encoded, err := json.Marshal(saved.Extra)
		if err != nil {
			return Meta{}, fmt.Errorf("state: encode meta %s: %w", key, err)
		}
		extra = sql.NullString{String: string(encoded), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO wizard_snapshots (identifier, snapshot, snapshot_id, etag, extra, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(identifier) DO UPDATE SET
	snapshot = excluded.snapshot,
	snapshot_id = excluded.snapshot_id,
	etag = excluded.etag,
	extra = excluded.extra,
	updated_at = excluded.updated_at`,
		key, string(raw), saved.SnapshotID, saved.ETag, extra, saved.UpdatedAt.UTC(),
	)
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return Meta{}, fmt.Errorf("state: commit %s: %w", key, err)
	}
	return cloneMeta(saved), nil
}
