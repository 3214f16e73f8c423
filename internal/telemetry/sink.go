// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
)

// Sink delivers a single telemetry event to the backend. Implementations
// are best-effort: callers log and drop failures, never propagate them.
type Sink interface {
	Send(ctx context.Context, event string, attrs map[string]string) error
}

// NoopSink discards every event. Used when no telemetry endpoint is
// configured.
type NoopSink struct{}

func (NoopSink) Send(context.Context, string, map[string]string) error { return nil }

// HTTPSink submits events as pixel-style GET requests:
// {endpoint}/t/{event}?attr=value&... The response body is discarded.
type HTTPSink struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSink creates a sink targeting the given base endpoint URL.
func NewHTTPSink(endpoint string) (*HTTPSink, error) {
	if endpoint == "" {
		return nil, tgerr.New(tgerr.CodeConfigValidateInvalidValue, "telemetry endpoint is required")
	}

	return &HTTPSink{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *HTTPSink) Send(ctx context.Context, event string, attrs map[string]string) error {
	values := url.Values{}
	for k, v := range attrs {
		values.Set(k, v)
	}

	target := s.endpoint + "/t/" + url.PathEscape(event)
	if len(values) > 0 {
		target += "?" + values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return tgerr.Wrap(err, tgerr.CodeTelemetrySendFailure, "building telemetry request", tgerr.FieldEvent(event))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return tgerr.Wrap(err, tgerr.CodeTelemetrySendFailure, "sending telemetry event", tgerr.FieldEvent(event))
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return tgerr.Errorf(tgerr.CodeTelemetrySendFailure, "telemetry backend returned status %d for %s", resp.StatusCode, event)
	}
	return nil
}
