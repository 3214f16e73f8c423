// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
)

func init() {
	RegisterBackend("memory", func(string) (SettingsStore, HealthRecordStore, error) {
		return NewMemorySettingsStore(), NewMemoryHealthRecordStore(), nil
	})
}

// Compile-time interface checks.
var (
	_ SettingsStore     = (*MemorySettingsStore)(nil)
	_ HealthRecordStore = (*MemoryHealthRecordStore)(nil)
)

// MemorySettingsStore is an in-memory SettingsStore for tests and
// ephemeral runs. Values are stored as strings, mirroring the sqlite
// backend's single-column layout.
type MemorySettingsStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{values: make(map[string]string)}
}

func (s *MemorySettingsStore) GetInt64(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return 0, nil
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, tgerr.Wrap(err, tgerr.CodeStoreDatabaseFailure, "parsing int64 setting", tgerr.FieldSettingKey(key))
	}
	return v, nil
}

func (s *MemorySettingsStore) GetString(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

func (s *MemorySettingsStore) GetBool(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return raw == "true", nil
}

func (s *MemorySettingsStore) PutInt64(_ context.Context, key string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = strconv.FormatInt(value, 10)
	return nil
}

func (s *MemorySettingsStore) PutString(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemorySettingsStore) PutBool(_ context.Context, key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = strconv.FormatBool(value)
	return nil
}

func (s *MemorySettingsStore) Has(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok, nil
}

func (s *MemorySettingsStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *MemorySettingsStore) Close() error { return nil }

// MemoryHealthRecordStore is an in-memory append-only record store.
type MemoryHealthRecordStore struct {
	mu      sync.RWMutex
	records []*HealthRecord
}

func NewMemoryHealthRecordStore() *MemoryHealthRecordStore {
	return &MemoryHealthRecordStore{}
}

func (s *MemoryHealthRecordStore) Insert(_ context.Context, rec *HealthRecord) error {
	if rec == nil || !rec.Type.Valid() {
		return tgerr.New(tgerr.CodeStoreRecordInsertInvalid, "health record requires a valid type")
	}

	stored := *rec
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.records = append(s.records, &stored)
	s.mu.Unlock()

	rec.ID = stored.ID
	rec.CreatedAt = stored.CreatedAt
	return nil
}

func (s *MemoryHealthRecordStore) Latest(_ context.Context) (*HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, tgerr.New(tgerr.CodeStoreRecordNotFound, "no health records")
	}
	rec := *s.records[len(s.records)-1]
	return &rec, nil
}

func (s *MemoryHealthRecordStore) LatestByType(_ context.Context, typ RecordType) (*HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].Type == typ {
			rec := *s.records[i]
			return &rec, nil
		}
	}
	return nil, tgerr.Errorf(tgerr.CodeStoreRecordNotFound, "no health records of type %s", typ)
}

func (s *MemoryHealthRecordStore) Recent(_ context.Context, limit int) ([]*HealthRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := min(limit, len(s.records))
	out := make([]*HealthRecord, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		rec := *s.records[i]
		out = append(out, &rec)
	}
	return out, nil
}

func (s *MemoryHealthRecordStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

func (s *MemoryHealthRecordStore) Trim(_ context.Context, keepLast int) (int64, error) {
	if keepLast < 0 {
		keepLast = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) <= keepLast {
		return 0, nil
	}
	deleted := int64(len(s.records) - keepLast)
	s.records = append([]*HealthRecord(nil), s.records[len(s.records)-keepLast:]...)
	return deleted, nil
}

func (s *MemoryHealthRecordStore) Close() error { return nil }
