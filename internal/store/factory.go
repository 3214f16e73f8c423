// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package store

import (
	"sync"

	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
)

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Backend string
}

// Factory creates the settings and health-record stores rooted at dataPath.
type Factory func(dataPath string) (SettingsStore, HealthRecordStore, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend. Backend
// packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg == nil || cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// NewStores creates the settings and health-record stores for the
// configured backend.
func NewStores(cfg *StorageConfig, dataPath string) (SettingsStore, HealthRecordStore, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, nil, tgerr.Errorf(tgerr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	return factory(dataPath)
}
