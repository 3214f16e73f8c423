// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunnelguard-dev/tunnelguard/internal/metrics"
	"github.com/tunnelguard-dev/tunnelguard/internal/mitigation"
	"github.com/tunnelguard-dev/tunnelguard/internal/store"
	"github.com/tunnelguard-dev/tunnelguard/internal/telemetry"
)

type stubRestarter struct {
	calls int
}

func (r *stubRestarter) Restart(context.Context) { r.calls++ }

type testServer struct {
	srv       *Server
	settings  *store.MemorySettingsStore
	records   *store.MemoryHealthRecordStore
	restarter *stubRestarter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	settings := store.NewMemorySettingsStore()
	records := store.NewMemoryHealthRecordStore()

	reg := prometheus.NewRegistry()
	m := metrics.NewWith(reg)
	emitter := telemetry.NewEmitter(telemetry.NoopSink{}, telemetry.Envelope{}, m)

	policy, err := mitigation.NewRestartPolicy(settings, mitigation.DefaultInitialBackoff)
	require.NoError(t, err)

	restarter := &stubRestarter{}
	ctrl, err := mitigation.NewController(mitigation.Config{
		Settings:  settings,
		Records:   records,
		Policy:    policy,
		Restarter: restarter,
		Emitter:   emitter,
		Metrics:   m,
	})
	require.NoError(t, err)
	require.NoError(t, ctrl.SetEnabled(context.Background(), true))

	srv, err := New(Config{ListenAddr: "127.0.0.1:0"}, Deps{
		Controller: ctrl,
		Policy:     policy,
		Records:    records,
		Gatherer:   reg,
	})
	require.NoError(t, err)

	return &testServer{srv: srv, settings: settings, records: records, restarter: restarter}
}

func (ts *testServer) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.Error(t, err)

	_, err = New(Config{ListenAddr: "127.0.0.1:0"}, Deps{})
	assert.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStartAndShutdown(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ts.srv.Start(ctx)
	}()

	// Give the listener a moment, then shut down.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
