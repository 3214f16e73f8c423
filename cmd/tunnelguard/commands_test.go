// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDaemon spins up an httptest server imitating the daemon's admin API
// and returns its host:port address.
func fakeDaemon(t *testing.T, handler http.Handler) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func TestStatusCommand(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"enabled":         true,
			"backoffSeconds":  60,
			"restartBoundary": "2026-08-30T10:01:00",
		})
	})
	addr := fakeDaemon(t, mux)

	out, err := runCommand(t, "status", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Mitigation:       enabled")
	assert.Contains(t, out, "60s")
	assert.Contains(t, out, "2026-08-30T10:01:00")
}

func TestStatusCommand_DaemonNotRunning(t *testing.T) {
	// Port from a closed listener — nothing is listening there.
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	out, err := runCommand(t, "status", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "not running")
}

func TestMitigationEnableDisable(t *testing.T) {
	var lastBody map[string]bool

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/mitigation", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lastBody))
		_ = json.NewEncoder(w).Encode(map[string]bool{"enabled": lastBody["enabled"]})
	})
	addr := fakeDaemon(t, mux)

	out, err := runCommand(t, "mitigation", "enable", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Mitigation enabled")
	assert.True(t, lastBody["enabled"])

	out, err = runCommand(t, "mitigation", "disable", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Mitigation disabled")
	assert.False(t, lastBody["enabled"])
}

func TestMitigationShow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"enabled": false, "backoffSeconds": 120})
	})
	addr := fakeDaemon(t, mux)

	out, err := runCommand(t, "mitigation", "show", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Mitigation disabled (backoff 120s)")
}

func TestRecordsCommand(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/records", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"records": []map[string]any{
				{
					"id":                      "r1",
					"type":                    "BAD",
					"alerts":                  []string{"tunnel_stalled"},
					"restartedAtEpochSeconds": 1767000000,
					"createdAt":               "2026-08-30T10:00:00Z",
				},
				{
					"id":        "r0",
					"type":      "GOOD",
					"createdAt": "2026-08-30T09:59:00Z",
				},
			},
		})
	})
	addr := fakeDaemon(t, mux)

	out, err := runCommand(t, "records", "--address", addr, "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "BAD")
	assert.Contains(t, out, "tunnel_stalled")
	assert.Contains(t, out, "restartedAt=1767000000")
	assert.Contains(t, out, "GOOD")
}

func TestRecordsCommand_Empty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/records", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"records": []any{}})
	})
	addr := fakeDaemon(t, mux)

	out, err := runCommand(t, "records", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "No health records.")
}
