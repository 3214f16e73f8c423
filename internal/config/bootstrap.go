// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package config

import (
	_ "embed"
	"os"
	"path/filepath"

	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
)

//go:embed tunnelguard.yaml.default
var defaultConfig []byte

// DefaultConfigPath returns the default location of the tunnelguard config
// file, ~/.config/tunnelguard/tunnelguard.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", tgerr.Errorf(tgerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "tunnelguard", "tunnelguard.yaml"), nil
}

// DefaultDataDir returns the default location for persistent state,
// ~/.local/share/tunnelguard.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", tgerr.Errorf(tgerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "tunnelguard"), nil
}

// BootstrapConfig writes the default config file to path if no file exists
// there yet. It returns true if a new file was written.
func BootstrapConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, tgerr.Errorf(tgerr.CodeConfigLoadReadFailure, "checking config file %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, tgerr.Errorf(tgerr.CodeConfigLoadReadFailure, "creating config directory: %w", err)
	}

	if err := os.WriteFile(path, defaultConfig, 0o600); err != nil {
		return false, tgerr.Errorf(tgerr.CodeConfigLoadReadFailure, "writing default config %s: %w", path, err)
	}

	return true, nil
}
