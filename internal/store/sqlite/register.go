// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/tunnelguard-dev/tunnelguard/internal/store"
)

func init() {
	store.RegisterBackend("sqlite", newStores)
}

// openDB opens a SQLite database with the connection options used by every
// store in this package.
func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	return db, nil
}

// newStores opens tunnelguard.db once and shares the connection between the
// settings and health-record stores to avoid WAL contention.
func newStores(dataPath string) (store.SettingsStore, store.HealthRecordStore, error) {
	db, err := openDB(filepath.Join(dataPath, "tunnelguard.db"))
	if err != nil {
		return nil, nil, err
	}

	settings, err := NewSettingsStoreWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("creating settings store: %w", err)
	}

	records, err := NewHealthRecordStoreWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("creating health record store: %w", err)
	}

	// Note: both stores share db; closing either closes the connection.
	return settings, records, nil
}
