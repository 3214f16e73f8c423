// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
)

func defaultTestConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultTestConfig()
	assert.Empty(t, cfg.Validate())
}

func TestDefaults(t *testing.T) {
	cfg := defaultTestConfig()

	assert.Equal(t, "127.0.0.1:18790", cfg.Networking.Listen)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.True(t, cfg.Mitigation.Enabled)
	assert.Equal(t, 30, cfg.Mitigation.InitialBackoffSeconds)
	assert.Equal(t, 45, cfg.Mitigation.ResolutionWindowSeconds)
	assert.Equal(t, 1000, cfg.Mitigation.DebounceWindowMillis)
	assert.Equal(t, 30, cfg.Monitor.IntervalSeconds)
	assert.Empty(t, cfg.Telemetry.Endpoint)
}

func TestValidateNetworking(t *testing.T) {
	tests := []struct {
		name    string
		listen  string
		wantErr bool
	}{
		{name: "valid", listen: "127.0.0.1:18790", wantErr: false},
		{name: "empty", listen: "", wantErr: true},
		{name: "missing port", listen: "127.0.0.1", wantErr: true},
		{name: "port zero", listen: "127.0.0.1:0", wantErr: true},
		{name: "port out of range", listen: "127.0.0.1:70000", wantErr: true},
		{name: "non-numeric port", listen: "127.0.0.1:abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultTestConfig()
			cfg.Networking.Listen = tt.listen

			errs := cfg.Validate()
			if tt.wantErr {
				assert.NotEmpty(t, errs)
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestValidateStorage(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Storage.Backend = "cassandra"
	assert.NotEmpty(t, cfg.Validate())

	cfg = defaultTestConfig()
	cfg.Storage.RetainRecords = -1
	assert.NotEmpty(t, cfg.Validate())
}

func TestValidateMitigation(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Mitigation.InitialBackoffSeconds = 0
	assert.NotEmpty(t, cfg.Validate())

	cfg = defaultTestConfig()
	cfg.Mitigation.ResolutionWindowSeconds = 0
	assert.NotEmpty(t, cfg.Validate())

	cfg = defaultTestConfig()
	cfg.Mitigation.DebounceWindowMillis = 0
	assert.NotEmpty(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Networking.Listen = ""
	cfg.Storage.Backend = "bogus"
	cfg.Monitor.IntervalSeconds = 0

	errs := cfg.Validate()
	assert.Len(t, errs, 3)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunnelguard.yaml")
	content := []byte(`
networking:
  listen: "127.0.0.1:9999"
mitigation:
  initial_backoff_seconds: 10
telemetry:
  endpoint: "https://telemetry.example.com"
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Networking.Listen)
	assert.Equal(t, 10, cfg.Mitigation.InitialBackoffSeconds)
	assert.Equal(t, "https://telemetry.example.com", cfg.Telemetry.Endpoint)
	// untouched keys keep defaults
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, tgerr.HasCode(err, tgerr.CodeConfigLoadReadFailure))
}

func TestLoadInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunnelguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: bogus\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, tgerr.HasCode(err, tgerr.CodeConfigValidateInvalidValue))
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TUNNELGUARD_NETWORKING_LISTEN", "127.0.0.1:4242")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4242", cfg.Networking.Listen)
}

func TestBootstrapConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "tunnelguard.yaml")

	created, err := BootstrapConfig(path)
	require.NoError(t, err)
	assert.True(t, created)

	// default file must parse and validate
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Validate())

	// second call is a no-op
	created, err = BootstrapConfig(path)
	require.NoError(t, err)
	assert.False(t, created)
}
