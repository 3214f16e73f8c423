// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tunnelguard-dev/tunnelguard/internal/store"
	"github.com/tunnelguard-dev/tunnelguard/internal/store/sqlite"
)

func newSettingsStore(t *testing.T) *sqlite.SettingsStore {
	t.Helper()
	s, err := sqlite.NewSettingsStore(testDBPath(t, "settings"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSettingsAbsentKeysReadAsZero(t *testing.T) {
	s := newSettingsStore(t)
	ctx := context.Background()

	i, err := s.GetInt64(ctx, store.KeyBackoffSeconds)
	require.NoError(t, err)
	assert.Zero(t, i)

	str, err := s.GetString(ctx, store.KeyRestartBoundary)
	require.NoError(t, err)
	assert.Empty(t, str)

	b, err := s.GetBool(ctx, store.KeyMitigationEnabled)
	require.NoError(t, err)
	assert.False(t, b)

	has, err := s.Has(ctx, store.KeyMitigationEnabled)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newSettingsStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutInt64(ctx, store.KeyBackoffSeconds, 60))
	require.NoError(t, s.PutString(ctx, store.KeyRestartBoundary, "2026-08-30T10:00:00"))
	require.NoError(t, s.PutBool(ctx, store.KeyMitigationEnabled, true))

	i, err := s.GetInt64(ctx, store.KeyBackoffSeconds)
	require.NoError(t, err)
	assert.Equal(t, int64(60), i)

	str, err := s.GetString(ctx, store.KeyRestartBoundary)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-30T10:00:00", str)

	b, err := s.GetBool(ctx, store.KeyMitigationEnabled)
	require.NoError(t, err)
	assert.True(t, b)

	has, err := s.Has(ctx, store.KeyMitigationEnabled)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestSettingsPutOverwrites(t *testing.T) {
	s := newSettingsStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutInt64(ctx, store.KeyBackoffSeconds, 30))
	require.NoError(t, s.PutInt64(ctx, store.KeyBackoffSeconds, 120))

	i, err := s.GetInt64(ctx, store.KeyBackoffSeconds)
	require.NoError(t, err)
	assert.Equal(t, int64(120), i)
}

func TestSettingsDelete(t *testing.T) {
	s := newSettingsStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutString(ctx, store.KeyRestartBoundary, "2026-08-30T10:00:00"))
	require.NoError(t, s.Delete(ctx, store.KeyRestartBoundary))

	str, err := s.GetString(ctx, store.KeyRestartBoundary)
	require.NoError(t, err)
	assert.Empty(t, str)

	// Deleting an absent key is not an error.
	require.NoError(t, s.Delete(ctx, store.KeyRestartBoundary))
}

func TestSettingsSurviveReopen(t *testing.T) {
	path := testDBPath(t, "settings-reopen")
	ctx := context.Background()

	s, err := sqlite.NewSettingsStore(path)
	require.NoError(t, err)
	require.NoError(t, s.PutInt64(ctx, store.KeyBackoffSeconds, 240))
	require.NoError(t, s.Close())

	s2, err := sqlite.NewSettingsStore(path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	i, err := s2.GetInt64(ctx, store.KeyBackoffSeconds)
	require.NoError(t, err)
	assert.Equal(t, int64(240), i)
}
