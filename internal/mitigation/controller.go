// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

// Package mitigation implements the bad-health detection and mitigation
// control loop: classify inbound health reports, decide restart-or-not
// under a persisted exponential-backoff boundary, trigger the tunnel
// restart, and emit deduplicated telemetry about the transition.
package mitigation

import (
	"context"
	"log/slog"
	"time"

	"github.com/tunnelguard-dev/tunnelguard/internal/metrics"
	"github.com/tunnelguard-dev/tunnelguard/internal/store"
	"github.com/tunnelguard-dev/tunnelguard/internal/telemetry"
	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
	"github.com/tunnelguard-dev/tunnelguard/pkg/health"
)

// DefaultResolutionWindow bounds how long after a restart a recovery still
// counts as resolved-by-restart.
const DefaultResolutionWindow = 45 * time.Second

// RestartTrigger invokes the external tunnel restart. Implementations must
// run to completion independent of the caller's cancellation and block
// until done.
type RestartTrigger interface {
	Restart(ctx context.Context)
}

// Config wires a Controller's collaborators.
type Config struct {
	Settings  store.SettingsStore
	Records   store.HealthRecordStore
	Policy    *RestartPolicy
	Restarter RestartTrigger
	Emitter   *telemetry.Emitter
	Metrics   *metrics.Metrics

	// Serializer defaults to health.JSONSerializer.
	Serializer health.Serializer
	// ResolutionWindow defaults to DefaultResolutionWindow.
	ResolutionWindow time.Duration
	Logger           *slog.Logger
}

// Controller is the health mitigation control loop. It is not safe for
// concurrent OnHealthUpdate calls against the same persisted state;
// callers serialize (in practice reports arrive from a single periodic
// monitor).
type Controller struct {
	settings   store.SettingsStore
	records    store.HealthRecordStore
	policy     *RestartPolicy
	restarter  RestartTrigger
	emitter    *telemetry.Emitter
	serializer health.Serializer
	m          *metrics.Metrics
	window     time.Duration
	log        *slog.Logger
	nowFunc    func() time.Time // for testing
}

// NewController validates cfg and creates the controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Settings == nil || cfg.Records == nil || cfg.Policy == nil ||
		cfg.Restarter == nil || cfg.Emitter == nil || cfg.Metrics == nil {
		return nil, tgerr.New(tgerr.CodeConfigValidateInvalidValue,
			"controller requires settings, records, policy, restarter, emitter, and metrics")
	}

	c := &Controller{
		settings:   cfg.Settings,
		records:    cfg.Records,
		policy:     cfg.Policy,
		restarter:  cfg.Restarter,
		emitter:    cfg.Emitter,
		serializer: cfg.Serializer,
		m:          cfg.Metrics,
		window:     cfg.ResolutionWindow,
		log:        cfg.Logger,
		nowFunc:    time.Now,
	}
	if c.serializer == nil {
		c.serializer = health.JSONSerializer{}
	}
	if c.window <= 0 {
		c.window = DefaultResolutionWindow
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c, nil
}

// SetNowFunc overrides the time source (for testing).
func (c *Controller) SetNowFunc(fn func() time.Time) {
	c.nowFunc = fn
}

// IsEnabled reads the persisted enabled flag.
func (c *Controller) IsEnabled(ctx context.Context) (bool, error) {
	enabled, err := c.settings.GetBool(ctx, store.KeyMitigationEnabled)
	if err != nil {
		return false, tgerr.Wrap(err, tgerr.CodeMitigationStateReadFailure, "reading enabled flag")
	}
	return enabled, nil
}

// SetEnabled persists the enabled flag.
func (c *Controller) SetEnabled(ctx context.Context, enabled bool) error {
	if err := c.settings.PutBool(ctx, store.KeyMitigationEnabled, enabled); err != nil {
		return tgerr.Wrap(err, tgerr.CodeMitigationStateWriteFailure, "persisting enabled flag")
	}
	return nil
}

// OnHealthUpdate processes one health snapshot and returns true iff a
// restart was triggered. When the feature is disabled it is a silent
// no-op: no storage, no telemetry.
func (c *Controller) OnHealthUpdate(ctx context.Context, report health.Report) (bool, error) {
	enabled, err := c.IsEnabled(ctx)
	if err != nil {
		return false, err
	}
	if !enabled {
		return false, nil
	}

	if report.IsBadHealth() {
		return c.onBadHealth(ctx, report)
	}
	return false, c.onGoodHealth(ctx)
}

func (c *Controller) onBadHealth(ctx context.Context, report health.Report) (bool, error) {
	// Best-effort, not on the decision path.
	for _, alert := range report.Alerts {
		c.emitter.AlertSeen(ctx, alert)
	}

	payload, err := c.serializer.Serialize(report.ForStorage())
	if err != nil {
		// A corrupt record must not be silently swallowed; fail the cycle.
		return false, err
	}

	shouldRestart, err := c.policy.Decide(ctx)
	if err != nil {
		return false, err
	}

	restartedAt, err := c.restartTime(ctx, shouldRestart)
	if err != nil {
		return false, err
	}

	rec := &store.HealthRecord{
		Type:        store.RecordBad,
		Alerts:      report.Alerts,
		ReportJSON:  payload,
		RestartedAt: restartedAt,
	}
	if err := c.records.Insert(ctx, rec); err != nil {
		return false, err
	}

	c.m.ReportsTotal.WithLabelValues(string(store.RecordBad)).Inc()
	c.emitter.BadHealthReported(ctx, report.Alerts, payload, shouldRestart)

	if shouldRestart {
		c.log.Info("bad health confirmed, restarting tunnel", "alerts", rec.Alerts)
		c.m.RestartsTotal.Inc()
		c.restarter.Restart(ctx)
	}
	return shouldRestart, nil
}

// restartTime returns the epoch seconds to persist on a BAD record: now
// when a restart fires, otherwise the prior BAD record's restart time
// carried forward so consecutive unresolved reports keep the original
// timestamp.
func (c *Controller) restartTime(ctx context.Context, restarting bool) (*int64, error) {
	if restarting {
		now := c.nowFunc().Unix()
		return &now, nil
	}

	prev, err := c.records.LatestByType(ctx, store.RecordBad)
	if err != nil {
		if tgerr.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return prev.RestartedAt, nil
}

func (c *Controller) onGoodHealth(ctx context.Context) error {
	latest, err := c.records.Latest(ctx)
	if err != nil && !tgerr.IsNotFound(err) {
		return err
	}

	if latest != nil && latest.Type == store.RecordBad {
		// Without a recorded restart the elapsed time is effectively
		// infinite and the recovery counts as spontaneous.
		byRestart := false
		if latest.RestartedAt != nil {
			elapsed := c.nowFunc().Unix() - *latest.RestartedAt
			byRestart = elapsed < int64(c.window/time.Second)
		}
		c.emitter.Resolved(ctx, byRestart)
	}

	if err := c.records.Insert(ctx, &store.HealthRecord{Type: store.RecordGood}); err != nil {
		return err
	}
	c.m.ReportsTotal.WithLabelValues(string(store.RecordGood)).Inc()

	return c.policy.Reset(ctx)
}
