// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

// Package monitor drives the mitigation loop: it probes the tunnel
// service's health on a fixed interval and funnels every snapshot through
// the controller, one call at a time.
package monitor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tunnelguard-dev/tunnelguard/internal/store"
	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
	"github.com/tunnelguard-dev/tunnelguard/pkg/health"
)

// HealthSource produces one health snapshot per probe. How metrics are
// gathered is the source's concern, not the monitor's.
type HealthSource interface {
	Probe(ctx context.Context) (health.Report, error)
}

// HealthUpdater consumes snapshots; implemented by mitigation.Controller.
type HealthUpdater interface {
	OnHealthUpdate(ctx context.Context, report health.Report) (bool, error)
}

// Config configures a Monitor.
type Config struct {
	Source  HealthSource
	Updater HealthUpdater
	// Interval between probes. Defaults to 30s.
	Interval time.Duration
	// Records and RetainRecords enable opportunistic history trimming.
	// Zero RetainRecords disables trimming.
	Records       store.HealthRecordStore
	RetainRecords int
	Logger        *slog.Logger
}

// Monitor polls the health source until its context is cancelled. The
// controller is not reentrant-safe; the single loop goroutine is what
// serializes calls into it.
type Monitor struct {
	source  HealthSource
	updater HealthUpdater
	tick    time.Duration
	records store.HealthRecordStore
	retain  int
	log     *slog.Logger
}

// New validates cfg and creates a Monitor.
func New(cfg Config) (*Monitor, error) {
	if cfg.Source == nil || cfg.Updater == nil {
		return nil, tgerr.New(tgerr.CodeConfigValidateInvalidValue, "monitor requires a health source and an updater")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Monitor{
		source:  cfg.Source,
		updater: cfg.Updater,
		tick:    cfg.Interval,
		records: cfg.Records,
		retain:  cfg.RetainRecords,
		log:     cfg.Logger,
	}, nil
}

// Run blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.step(ctx)
		}
	}
}

// step runs one probe/update cycle.
func (m *Monitor) step(ctx context.Context) {
	report, err := m.source.Probe(ctx)
	if err != nil {
		m.log.Warn("health probe failed", "error", err)
		return
	}

	restarted, err := m.updater.OnHealthUpdate(ctx, report)
	if err != nil {
		m.log.Error("health update failed", "error", err)
		return
	}
	if restarted {
		m.log.Info("mitigation restarted the tunnel", "alerts", report.Alerts)
	}

	m.trim(ctx)
}

func (m *Monitor) trim(ctx context.Context) {
	if m.records == nil || m.retain <= 0 {
		return
	}

	deleted, err := m.records.Trim(ctx, m.retain)
	if err != nil {
		m.log.Warn("trimming health history failed", "error", err)
		return
	}
	if deleted > 0 {
		m.log.Debug("trimmed health history", "deleted", deleted, "retained", m.retain)
	}
}

// HTTPHealthSource probes a tunnel daemon's loopback health endpoint:
// GET {endpoint}/health returning a health.Report as JSON.
type HTTPHealthSource struct {
	endpoint string
	client   *http.Client
}

// NewHTTPHealthSource creates a source for the tunnel health endpoint.
func NewHTTPHealthSource(endpoint string) (*HTTPHealthSource, error) {
	if endpoint == "" {
		return nil, tgerr.New(tgerr.CodeConfigValidateInvalidValue, "tunnel health endpoint is required")
	}
	return &HTTPHealthSource{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *HTTPHealthSource) Probe(ctx context.Context) (health.Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/health", nil)
	if err != nil {
		return health.Report{}, tgerr.Wrap(err, tgerr.CodeMonitorProbeFailure, "building health probe request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return health.Report{}, tgerr.Wrap(err, tgerr.CodeMonitorProbeFailure, "probing tunnel health")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return health.Report{}, tgerr.Errorf(tgerr.CodeMonitorResponseInvalid, "tunnel health endpoint returned status %d", resp.StatusCode)
	}

	var report health.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return health.Report{}, tgerr.Wrap(err, tgerr.CodeMonitorResponseInvalid, "decoding health report")
	}
	return report, nil
}
