// internal/store/sqlite.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/optima-study/optima/internal/domain/material"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS materials (
    id INTEGER PRIMARY KEY,
    title TEXT NOT NULL,
    file_type TEXT NOT NULL,
    uploaded_at TEXT NOT NULL,
    record TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_attempts (
    id TEXT PRIMARY KEY,
    material_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    correct INTEGER NOT NULL,
    total INTEGER NOT NULL,
    percentage INTEGER NOT NULL,
    answers TEXT NOT NULL,
    completed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quiz_attempts_completed ON quiz_attempts (completed_at);
`

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases and writes consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Settings
// ============================================================================

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) DeleteSetting(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	return err
}

// ============================================================================
// Auth token (client.TokenStore)
// ============================================================================

// Token returns the stored bearer token, or "" when signed out.
func (s *SQLiteStore) Token(ctx context.Context) (string, error) {
	token, err := s.GetSetting(ctx, KeyAuthToken)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return token, err
}

func (s *SQLiteStore) SetToken(ctx context.Context, token string) error {
	return s.SetSetting(ctx, KeyAuthToken, token)
}

func (s *SQLiteStore) ClearToken(ctx context.Context) error {
	return s.DeleteSetting(ctx, KeyAuthToken)
}

// ============================================================================
// Materials cache
// ============================================================================

// ReplaceMaterials swaps the cached history for records and stamps the sync
// time.
func (s *SQLiteStore) ReplaceMaterials(ctx context.Context, records []material.Record, syncedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM materials"); err != nil {
		return err
	}
	for _, rec := range records {
		if err := upsertMaterial(ctx, tx, rec); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		KeyHistorySyncedAt, syncedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}

	return tx.Commit()
}

// PutMaterial caches a single record, replacing any older copy.
func (s *SQLiteStore) PutMaterial(ctx context.Context, rec material.Record) error {
	return upsertMaterial(ctx, s.db, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertMaterial(ctx context.Context, db execer, rec material.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode material %d: %w", rec.Material.ID, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO materials (id, title, file_type, uploaded_at, record) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			file_type = excluded.file_type,
			uploaded_at = excluded.uploaded_at,
			record = excluded.record
	`, rec.Material.ID, rec.Material.Title, string(rec.Material.FileType),
		rec.Material.UploadedAt.UTC().Format(timeLayout), string(data),
	)
	return err
}

// CachedMaterials returns the cached history, newest first.
func (s *SQLiteStore) CachedMaterials(ctx context.Context) ([]material.Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT record FROM materials ORDER BY uploaded_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []material.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec material.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode cached material: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) CachedMaterial(ctx context.Context, id int64) (material.Record, error) {
	var rec material.Record
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT record FROM materials WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return rec, fmt.Errorf("failed to decode cached material %d: %w", id, err)
	}
	return rec, nil
}

func (s *SQLiteStore) DeleteCachedMaterial(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM materials WHERE id = ?", id)
	return err
}

// HistorySyncedAt reports when the cache was last refreshed from the
// backend. It returns ErrNotFound before the first sync.
func (s *SQLiteStore) HistorySyncedAt(ctx context.Context) (time.Time, error) {
	v, err := s.GetSetting(ctx, KeyHistorySyncedAt)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, v)
}

// ClearMaterials drops the cache, e.g. when a different user signs in.
func (s *SQLiteStore) ClearMaterials(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM materials"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", KeyHistorySyncedAt); err != nil {
		return err
	}
	return tx.Commit()
}
