// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tunnelguard-dev/tunnelguard/internal/store"
	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
)

// Compile-time interface check.
var _ store.HealthRecordStore = (*HealthRecordStore)(nil)

// HealthRecordStore implements store.HealthRecordStore backed by SQLite.
// The table is append-only; rowid preserves insertion order.
type HealthRecordStore struct {
	db *sql.DB
}

// NewHealthRecordStore opens (or creates) a SQLite database at dbPath and
// initialises the health_records table.
func NewHealthRecordStore(dbPath string) (*HealthRecordStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	s, err := NewHealthRecordStoreWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewHealthRecordStoreWithDB initialises the health_records table on an
// existing connection.
func NewHealthRecordStoreWithDB(db *sql.DB) (*HealthRecordStore, error) {
	if err := migrateHealthRecords(db); err != nil {
		return nil, fmt.Errorf("migrating health_records table: %w", err)
	}
	return &HealthRecordStore{db: db}, nil
}

func migrateHealthRecords(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS health_records (
	rowid        INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT UNIQUE NOT NULL,
	type         TEXT NOT NULL,
	alerts       TEXT NOT NULL DEFAULT '[]',
	report_json  TEXT NOT NULL DEFAULT '',
	restarted_at INTEGER,
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_health_records_type ON health_records(type, rowid);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *HealthRecordStore) Close() error {
	return s.db.Close()
}

// Insert appends a record. The record's ID and CreatedAt are filled in when
// unset.
func (s *HealthRecordStore) Insert(ctx context.Context, rec *store.HealthRecord) error {
	if rec == nil || !rec.Type.Valid() {
		return tgerr.New(tgerr.CodeStoreRecordInsertInvalid, "health record requires a valid type")
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	alerts, err := json.Marshal(rec.Alerts)
	if err != nil {
		return fmt.Errorf("marshalling record alerts: %w", err)
	}

	var restartedAt sql.NullInt64
	if rec.RestartedAt != nil {
		restartedAt = sql.NullInt64{Int64: *rec.RestartedAt, Valid: true}
	}

	const q = `INSERT INTO health_records (id, type, alerts, report_json, restarted_at, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, q,
		rec.ID,
		string(rec.Type),
		string(alerts),
		rec.ReportJSON,
		restartedAt,
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("appending health record %s: %w", rec.ID, err)
	}
	return nil
}

const recordColumns = `id, type, alerts, report_json, restarted_at, created_at`

// Latest returns the most recently inserted record.
func (s *HealthRecordStore) Latest(ctx context.Context) (*store.HealthRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM health_records ORDER BY rowid DESC LIMIT 1`)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tgerr.New(tgerr.CodeStoreRecordNotFound, "no health records")
	}
	return rec, err
}

// LatestByType returns the most recent record of the given type.
func (s *HealthRecordStore) LatestByType(ctx context.Context, typ store.RecordType) (*store.HealthRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM health_records WHERE type = ? ORDER BY rowid DESC LIMIT 1`,
		string(typ))

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tgerr.Errorf(tgerr.CodeStoreRecordNotFound, "no health records of type %s", typ)
	}
	return rec, err
}

// Recent returns up to limit records, newest first.
func (s *HealthRecordStore) Recent(ctx context.Context, limit int) ([]*store.HealthRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM health_records ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing health records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []*store.HealthRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Count returns the total number of records.
func (s *HealthRecordStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM health_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting health records: %w", err)
	}
	return count, nil
}

// Trim keeps only the keepLast most recent records and deletes the rest.
func (s *HealthRecordStore) Trim(ctx context.Context, keepLast int) (int64, error) {
	const q = `DELETE FROM health_records
WHERE rowid NOT IN (
	SELECT rowid FROM health_records
	ORDER BY rowid DESC
	LIMIT ?
)`

	result, err := s.db.ExecContext(ctx, q, keepLast)
	if err != nil {
		return 0, fmt.Errorf("trimming health records: %w", err)
	}

	return result.RowsAffected()
}

// scanner abstracts *sql.Row and *sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*store.HealthRecord, error) {
	var (
		rec         store.HealthRecord
		typ         string
		alertsJSON  string
		restartedAt sql.NullInt64
		createdAt   string
	)

	if err := row.Scan(
		&rec.ID,
		&typ,
		&alertsJSON,
		&rec.ReportJSON,
		&restartedAt,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning health record row: %w", err)
	}

	rec.Type = store.RecordType(typ)
	rec.CreatedAt = parseTime(createdAt)
	if restartedAt.Valid {
		v := restartedAt.Int64
		rec.RestartedAt = &v
	}
	if alertsJSON != "" && alertsJSON != "[]" {
		if err := json.Unmarshal([]byte(alertsJSON), &rec.Alerts); err != nil {
			return nil, fmt.Errorf("unmarshalling record alerts: %w", err)
		}
	}
	return &rec, nil
}

// formatTime serialises a time.Time to RFC3339 with millisecond precision.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
