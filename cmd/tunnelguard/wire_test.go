// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunnelguard-dev/tunnelguard/internal/config"
	"github.com/tunnelguard-dev/tunnelguard/internal/store"
)

func testWireConfig() *config.Config {
	return &config.Config{
		Networking: config.NetworkingConfig{Listen: "127.0.0.1:0"},
		Storage:    config.StorageConfig{Backend: "memory", RetainRecords: 100},
		Mitigation: config.MitigationConfig{
			Enabled:                 true,
			InitialBackoffSeconds:   30,
			ResolutionWindowSeconds: 45,
			DebounceWindowMillis:    1000,
		},
		Tunnel: config.TunnelConfig{
			HealthEndpoint:  "http://127.0.0.1:18791",
			ControlEndpoint: "http://127.0.0.1:18791",
		},
		Monitor: config.MonitorConfig{IntervalSeconds: 30},
	}
}

func TestWireDaemon(t *testing.T) {
	ctx := context.Background()

	daemon, err := WireDaemon(ctx, testWireConfig(), t.TempDir(), slog.Default())
	require.NoError(t, err)
	defer func() { _ = daemon.Close() }()

	assert.NotNil(t, daemon.Server)
	assert.NotNil(t, daemon.Monitor)
	assert.NotNil(t, daemon.Controller)

	// Enabled flag seeded from config on first start.
	enabled, err := daemon.Controller.IsEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestWireDaemon_SqliteBackend(t *testing.T) {
	cfg := testWireConfig()
	cfg.Storage.Backend = "sqlite"

	daemon, err := WireDaemon(context.Background(), cfg, t.TempDir(), slog.Default())
	require.NoError(t, err)
	defer func() { _ = daemon.Close() }()
}

func TestWireDaemon_PersistedFlagWins(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()

	cfg := testWireConfig()
	cfg.Storage.Backend = "sqlite"

	daemon, err := WireDaemon(ctx, cfg, dataDir, slog.Default())
	require.NoError(t, err)

	// Operator disables mitigation at runtime.
	require.NoError(t, daemon.Controller.SetEnabled(ctx, false))
	require.NoError(t, daemon.Close())

	// A restart with enabled=true in config must not overwrite the
	// persisted flag.
	daemon, err = WireDaemon(ctx, cfg, dataDir, slog.Default())
	require.NoError(t, err)
	defer func() { _ = daemon.Close() }()

	enabled, err := daemon.Controller.IsEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestWireDaemon_UnknownBackend(t *testing.T) {
	cfg := testWireConfig()
	cfg.Storage.Backend = "cassandra"

	_, err := WireDaemon(context.Background(), cfg, t.TempDir(), slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating stores")
}

func TestWireDaemon_SettingsRoundTrip(t *testing.T) {
	ctx := context.Background()

	daemon, err := WireDaemon(ctx, testWireConfig(), t.TempDir(), slog.Default())
	require.NoError(t, err)
	defer func() { _ = daemon.Close() }()

	require.NoError(t, daemon.Settings.PutInt64(ctx, store.KeyBackoffSeconds, 60))
	got, err := daemon.Settings.GetInt64(ctx, store.KeyBackoffSeconds)
	require.NoError(t, err)
	assert.Equal(t, int64(60), got)
}
