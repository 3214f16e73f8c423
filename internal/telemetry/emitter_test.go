// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package telemetry_test

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tunnelguard-dev/tunnelguard/internal/metrics"
	"github.com/tunnelguard-dev/tunnelguard/internal/telemetry"
)

// recordingSink captures events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []sentEvent
	err    error
}

type sentEvent struct {
	name  string
	attrs map[string]string
}

func (s *recordingSink) Send(_ context.Context, event string, attrs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, sentEvent{name: event, attrs: attrs})
	return nil
}

func (s *recordingSink) sent() []sentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentEvent(nil), s.events...)
}

func newEmitter(t *testing.T, sink telemetry.Sink, opts ...telemetry.Option) *telemetry.Emitter {
	t.Helper()
	env := telemetry.Envelope{Manufacturer: "linux", Model: "REDACTED", OSVersion: "24.04"}
	m := metrics.NewWith(prometheus.NewRegistry())
	return telemetry.NewEmitter(sink, env, m, opts...)
}

func TestBadHealthReportedCarriesEncodedPayload(t *testing.T) {
	sink := &recordingSink{}
	e := newEmitter(t, sink, telemetry.WithDebounceWindow(5*time.Millisecond))

	e.BadHealthReported(context.Background(), []string{"no-traffic", "dns-failing"}, `{"alerts":["no-traffic"]}`, true)

	require.Eventually(t, func() bool { return len(sink.sent()) == 1 }, time.Second, 5*time.Millisecond)

	ev := sink.sent()[0]
	assert.Equal(t, telemetry.EventBadHealth, ev.name)
	assert.Equal(t, "no-traffic,dns-failing", ev.attrs["alerts"])
	assert.Equal(t, "true", ev.attrs["restarted"])
	assert.Equal(t, "linux", ev.attrs["manufacturer"])
	assert.Equal(t, "REDACTED", ev.attrs["model"])

	decoded, err := base64.RawURLEncoding.DecodeString(ev.attrs["badHealthData"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"alerts":["no-traffic"]}`, string(decoded))
}

func TestBadHealthReportedDebouncesDuplicates(t *testing.T) {
	sink := &recordingSink{}
	e := newEmitter(t, sink, telemetry.WithDebounceWindow(50*time.Millisecond))

	// Two reports with the same alert set inside the window: one event.
	e.BadHealthReported(context.Background(), []string{"no-traffic"}, `{}`, true)
	e.BadHealthReported(context.Background(), []string{"no-traffic"}, `{}`, false)

	require.Eventually(t, func() bool { return len(sink.sent()) == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, sink.sent(), 1, "second report inside the window must be dropped")

	// The surviving event is the first one.
	assert.Equal(t, "true", sink.sent()[0].attrs["restarted"])
}

func TestBadHealthReportedReopensWindowAfterSend(t *testing.T) {
	sink := &recordingSink{}
	e := newEmitter(t, sink, telemetry.WithDebounceWindow(5*time.Millisecond))

	e.BadHealthReported(context.Background(), []string{"no-traffic"}, `{}`, false)
	require.Eventually(t, func() bool { return len(sink.sent()) == 1 }, time.Second, 5*time.Millisecond)

	e.BadHealthReported(context.Background(), []string{"no-traffic"}, `{}`, false)
	require.Eventually(t, func() bool { return len(sink.sent()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestRestartPerformed(t *testing.T) {
	sink := &recordingSink{}
	e := newEmitter(t, sink)

	e.RestartPerformed(context.Background())

	events := sink.sent()
	require.Len(t, events, 1)
	assert.Equal(t, telemetry.EventRestarted, events[0].name)
}

func TestResolvedVariants(t *testing.T) {
	sink := &recordingSink{}
	e := newEmitter(t, sink)

	e.Resolved(context.Background(), true)
	e.Resolved(context.Background(), false)

	events := sink.sent()
	require.Len(t, events, 2)
	assert.Equal(t, telemetry.EventResolvedByRestart, events[0].name)
	assert.Equal(t, telemetry.EventResolvedSpontaneously, events[1].name)
}

func TestAlertSeenFiresPerAlert(t *testing.T) {
	sink := &recordingSink{}
	e := newEmitter(t, sink)

	e.AlertSeen(context.Background(), "no-traffic")
	e.AlertSeen(context.Background(), "dns-failing")

	require.Eventually(t, func() bool { return len(sink.sent()) == 2 }, time.Second, 5*time.Millisecond)

	seen := map[string]bool{}
	for _, ev := range sink.sent() {
		assert.Equal(t, telemetry.EventAlertSeen, ev.name)
		seen[ev.attrs["alert"]] = true
	}
	assert.True(t, seen["no-traffic"])
	assert.True(t, seen["dns-failing"])
}

func TestSendFailuresAreSwallowed(t *testing.T) {
	sink := &recordingSink{err: errors.New("backend down")}
	e := newEmitter(t, sink)

	// Must not panic or propagate.
	e.RestartPerformed(context.Background())
	e.Resolved(context.Background(), false)
}
