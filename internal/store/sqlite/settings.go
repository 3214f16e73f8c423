// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tunnelguard-dev/tunnelguard/internal/store"
)

// Compile-time interface check.
var _ store.SettingsStore = (*SettingsStore)(nil)

// SettingsStore implements store.SettingsStore backed by SQLite. Values are
// kept as text in a single key/value table; typed accessors parse on read.
type SettingsStore struct {
	db *sql.DB
}

// NewSettingsStore opens (or creates) a SQLite database at dbPath and
// initialises the settings table.
func NewSettingsStore(dbPath string) (*SettingsStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	s, err := NewSettingsStoreWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSettingsStoreWithDB initialises the settings table on an existing
// connection. The caller retains ownership of db's lifecycle when sharing
// it across stores.
func NewSettingsStoreWithDB(db *sql.DB) (*SettingsStore, error) {
	if err := migrateSettings(db); err != nil {
		return nil, fmt.Errorf("migrating settings table: %w", err)
	}
	return &SettingsStore{db: db}, nil
}

func migrateSettings(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *SettingsStore) Close() error {
	return s.db.Close()
}

func (s *SettingsStore) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SettingsStore) put(ctx context.Context, key, value string) error {
	const q = `INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`

	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

// GetInt64 returns the stored value, or 0 when the key is absent.
func (s *SettingsStore) GetInt64(ctx context.Context, key string) (int64, error) {
	raw, ok, err := s.get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing setting %s as int64: %w", key, err)
	}
	return v, nil
}

// GetString returns the stored value, or "" when the key is absent.
func (s *SettingsStore) GetString(ctx context.Context, key string) (string, error) {
	raw, _, err := s.get(ctx, key)
	return raw, err
}

// GetBool returns the stored value, or false when the key is absent.
func (s *SettingsStore) GetBool(ctx context.Context, key string) (bool, error) {
	raw, ok, err := s.get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	return raw == "true", nil
}

func (s *SettingsStore) PutInt64(ctx context.Context, key string, value int64) error {
	return s.put(ctx, key, strconv.FormatInt(value, 10))
}

func (s *SettingsStore) PutString(ctx context.Context, key string, value string) error {
	return s.put(ctx, key, value)
}

func (s *SettingsStore) PutBool(ctx context.Context, key string, value bool) error {
	return s.put(ctx, key, strconv.FormatBool(value))
}

// Has reports whether the key is present.
func (s *SettingsStore) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.get(ctx, key)
	return ok, err
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *SettingsStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting setting %s: %w", key, err)
	}
	return nil
}
