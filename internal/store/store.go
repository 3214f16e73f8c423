// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package store

import "context"

// SettingsStore is the persisted key-value state used by the mitigation
// loop: backoff increment, restart boundary, and the enabled flag. There is
// no in-memory cache — every read and write goes through the store, which
// is what makes the controller resumable after process death.
// Get accessors return the zero value (not an error) for absent keys,
// matching preference-store semantics: an unset boundary reads as "" and an
// unset backoff reads as 0.
type SettingsStore interface {
	GetInt64(ctx context.Context, key string) (int64, error)
	GetString(ctx context.Context, key string) (string, error)
	GetBool(ctx context.Context, key string) (bool, error)

	PutInt64(ctx context.Context, key string, value int64) error
	PutString(ctx context.Context, key string, value string) error
	PutBool(ctx context.Context, key string, value bool) error

	// Has reports whether the key is present at all, letting callers
	// distinguish an explicit zero from an unset key.
	Has(ctx context.Context, key string) (bool, error)

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// HealthRecordStore is the append-only record of observed health states.
// Records are ordered by insertion; there is no update or delete of
// individual rows, only Trim for retention.
type HealthRecordStore interface {
	Insert(ctx context.Context, rec *HealthRecord) error

	// Latest returns the most recently inserted record, or a not-found
	// error when the store is empty.
	Latest(ctx context.Context) (*HealthRecord, error)

	// LatestByType returns the most recent record of the given type.
	LatestByType(ctx context.Context, typ RecordType) (*HealthRecord, error)

	Recent(ctx context.Context, limit int) ([]*HealthRecord, error)
	Count(ctx context.Context) (int64, error)

	// Trim keeps only the keepLast most recent records and deletes the
	// rest. Returns the number of deleted records.
	Trim(ctx context.Context, keepLast int) (int64, error)

	Close() error
}

// Setting keys for the mitigation loop's persisted state.
const (
	KeyMitigationEnabled = "mitigation.enabled"
	KeyBackoffSeconds    = "mitigation.backoff_seconds"
	KeyRestartBoundary   = "mitigation.restart_boundary"
)
