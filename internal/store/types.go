// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package store

import "time"

// RecordType classifies a persisted health record.
type RecordType string

const (
	RecordGood RecordType = "GOOD"
	RecordBad  RecordType = "BAD"
)

// Valid reports whether the type is one of the known record types.
func (t RecordType) Valid() bool {
	return t == RecordGood || t == RecordBad
}

// HealthRecord is one row of the append-only health history.
//
// RestartedAt is set only when a restart was actually triggered for this
// record, or carried forward from the prior BAD record when no new restart
// occurred. It stays nil on GOOD records.
type HealthRecord struct {
	ID          string     `json:"id"`
	Type        RecordType `json:"type"`
	Alerts      []string   `json:"alerts"`
	ReportJSON  string     `json:"reportJson,omitempty"`
	RestartedAt *int64     `json:"restartedAtEpochSeconds,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}
