// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package telemetry

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tunnelguard-dev/tunnelguard/internal/metrics"
)

// Event names submitted to the sink.
const (
	EventBadHealth             = "tunnel_bad_health"
	EventRestarted             = "tunnel_restarted"
	EventResolvedByRestart     = "tunnel_bad_health_resolved_by_restart"
	EventResolvedSpontaneously = "tunnel_bad_health_resolved"
	EventAlertSeen             = "tunnel_alert_seen"
)

// DefaultDebounceWindow is how long a bad-health event submission is held
// open, dropping duplicates that arrive in the meantime (e.g. the follow-up
// report right after a restart).
const DefaultDebounceWindow = time.Second

// Emitter sends the mitigation loop's telemetry events. Every send is
// best-effort: failures are logged and counted, never returned to the
// decision path.
type Emitter struct {
	sink   Sink
	env    Envelope
	window time.Duration
	m      *metrics.Metrics
	log    *slog.Logger

	mu         sync.Mutex
	debouncing bool
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithDebounceWindow overrides the bad-health debounce window.
func WithDebounceWindow(d time.Duration) Option {
	return func(e *Emitter) {
		if d > 0 {
			e.window = d
		}
	}
}

// WithLogger overrides the emitter's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Emitter) { e.log = log }
}

// NewEmitter creates an Emitter sending through sink with the given common
// envelope.
func NewEmitter(sink Sink, env Envelope, m *metrics.Metrics, opts ...Option) *Emitter {
	e := &Emitter{
		sink:   sink,
		env:    env,
		window: DefaultDebounceWindow,
		m:      m,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BadHealthReported emits the debounced bad-health event. The payload
// carries whether a restart fired and the URL-safe base64 (no padding) of
// the serialized filtered report. While a debounce window is open,
// subsequent calls are dropped silently — at most one submission is in
// flight, and new windows only open after the previous one fired.
func (e *Emitter) BadHealthReported(ctx context.Context, alerts []string, payloadJSON string, restarted bool) {
	e.mu.Lock()
	if e.debouncing {
		e.mu.Unlock()
		e.m.TelemetryDropped.Inc()
		return
	}
	e.debouncing = true
	e.mu.Unlock()

	attrs := e.env.Attrs()
	attrs["alerts"] = strings.Join(alerts, ",")
	attrs["restarted"] = strconv.FormatBool(restarted)
	attrs["badHealthData"] = base64.RawURLEncoding.EncodeToString([]byte(payloadJSON))

	// The caller may be torn down before the window elapses.
	sendCtx := context.WithoutCancel(ctx)
	time.AfterFunc(e.window, func() {
		e.send(sendCtx, EventBadHealth, attrs)
		e.mu.Lock()
		e.debouncing = false
		e.mu.Unlock()
	})
}

// RestartPerformed emits the restart event. Callers invoke it on a context
// detached from the original request so it completes even when the
// triggering call was cancelled.
func (e *Emitter) RestartPerformed(ctx context.Context) {
	e.send(ctx, EventRestarted, e.env.Attrs())
}

// Resolved emits the resolution event fired on the first GOOD report after
// a BAD record: resolved-by-restart when the recovery happened inside the
// resolution window of a triggered restart, resolved-spontaneously
// otherwise.
func (e *Emitter) Resolved(ctx context.Context, byRestart bool) {
	event := EventResolvedSpontaneously
	if byRestart {
		event = EventResolvedByRestart
	}
	e.send(ctx, event, e.env.Attrs())
}

// AlertSeen emits one event per alert identifier, fire-and-forget. The
// goroutine is not awaited and may be abandoned at process exit; this is
// accepted best-effort telemetry.
func (e *Emitter) AlertSeen(ctx context.Context, alert string) {
	attrs := e.env.Attrs()
	attrs["alert"] = alert

	sendCtx := context.WithoutCancel(ctx)
	go e.send(sendCtx, EventAlertSeen, attrs)
}

func (e *Emitter) send(ctx context.Context, event string, attrs map[string]string) {
	if err := e.sink.Send(ctx, event, attrs); err != nil {
		e.m.TelemetrySendErrors.Inc()
		e.log.Warn("telemetry send failed", "event", event, "error", err)
		return
	}
	e.m.TelemetryEvents.WithLabelValues(event).Inc()
}
