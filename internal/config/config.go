// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
)

// Config is the top-level tunnelguard configuration.
type Config struct {
	DataDir    string           `mapstructure:"data_dir"`
	Networking NetworkingConfig `mapstructure:"networking"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Mitigation MitigationConfig `mapstructure:"mitigation"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Tunnel     TunnelConfig     `mapstructure:"tunnel"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
}

// NetworkingConfig controls the admin API listener.
type NetworkingConfig struct {
	Listen string `mapstructure:"listen"`
}

// StorageConfig selects the storage backend and history retention.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	RetainRecords int    `mapstructure:"retain_records"`
}

// MitigationConfig tunes the bad-health mitigation loop. Enabled is only
// the initial value; the effective flag lives in the settings store and is
// toggled at runtime through the admin API.
type MitigationConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	InitialBackoffSeconds   int  `mapstructure:"initial_backoff_seconds"`
	ResolutionWindowSeconds int  `mapstructure:"resolution_window_seconds"`
	DebounceWindowMillis    int  `mapstructure:"debounce_window_millis"`
}

// TelemetryConfig selects the telemetry backend. An empty endpoint
// disables submission. InternalBuild controls whether the host identifier
// is sent unredacted.
type TelemetryConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	InternalBuild bool   `mapstructure:"internal_build"`
}

// TunnelConfig points at the supervised tunnel daemon's loopback control
// surface.
type TunnelConfig struct {
	HealthEndpoint  string `mapstructure:"health_endpoint"`
	ControlEndpoint string `mapstructure:"control_endpoint"`
}

// MonitorConfig controls the periodic health probe.
type MonitorConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// SetDefaults installs the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("networking.listen", "127.0.0.1:18790")
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.retain_records", 2000)
	v.SetDefault("mitigation.enabled", true)
	v.SetDefault("mitigation.initial_backoff_seconds", 30)
	v.SetDefault("mitigation.resolution_window_seconds", 45)
	v.SetDefault("mitigation.debounce_window_millis", 1000)
	v.SetDefault("tunnel.health_endpoint", "http://127.0.0.1:18791")
	v.SetDefault("tunnel.control_endpoint", "http://127.0.0.1:18791")
	v.SetDefault("monitor.interval_seconds", 30)
}

// SetupEnv binds TUNNELGUARD_* environment variables on v.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("TUNNELGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix TUNNELGUARD_).
func Load(path string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, tgerr.Errorf(tgerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, tgerr.Errorf(tgerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, tgerr.Errorf(tgerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns all
// validation errors found rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateMitigation()...)
	errs = append(errs, c.validateMonitor()...)

	return errs
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, tgerr.Errorf(tgerr.CodeConfigValidateInvalidValue, "config: networking.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Networking.Listen)
	if err != nil {
		errs = append(errs, tgerr.Errorf(tgerr.CodeConfigValidateInvalidValue,
			"config: networking.listen must be a valid host:port address, got %q: %w",
			c.Networking.Listen, err,
		))
		return errs
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, tgerr.Errorf(tgerr.CodeConfigValidateInvalidValue,
			"config: networking.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, tgerr.Errorf(tgerr.CodeConfigValidateInvalidValue,
			"config: networking.listen port must be between 1 and 65535, got %d", port))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, tgerr.Errorf(tgerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite, memory], got %q",
			c.Storage.Backend,
		))
	}

	if c.Storage.RetainRecords < 0 {
		errs = append(errs, tgerr.Errorf(tgerr.CodeConfigValidateInvalidValue,
			"config: storage.retain_records must not be negative, got %d",
			c.Storage.RetainRecords,
		))
	}

	return errs
}

func (c *Config) validateMitigation() []error {
	var errs []error

	if c.Mitigation.InitialBackoffSeconds < 1 {
		errs = append(errs, tgerr.Errorf(tgerr.CodeConfigValidateInvalidValue,
			"config: mitigation.initial_backoff_seconds must be positive, got %d",
			c.Mitigation.InitialBackoffSeconds,
		))
	}

	if c.Mitigation.ResolutionWindowSeconds < 1 {
		errs = append(errs, tgerr.Errorf(tgerr.CodeConfigValidateInvalidValue,
			"config: mitigation.resolution_window_seconds must be positive, got %d",
			c.Mitigation.ResolutionWindowSeconds,
		))
	}

	if c.Mitigation.DebounceWindowMillis < 1 {
		errs = append(errs, tgerr.Errorf(tgerr.CodeConfigValidateInvalidValue,
			"config: mitigation.debounce_window_millis must be positive, got %d",
			c.Mitigation.DebounceWindowMillis,
		))
	}

	return errs
}

func (c *Config) validateMonitor() []error {
	var errs []error

	if c.Monitor.IntervalSeconds < 1 {
		errs = append(errs, tgerr.Errorf(tgerr.CodeConfigValidateInvalidValue,
			"config: monitor.interval_seconds must be positive, got %d",
			c.Monitor.IntervalSeconds,
		))
	}

	return errs
}
