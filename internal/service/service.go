// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

// Package service isolates the external tunnel restart operation from the
// mitigation loop's call lifecycle.
package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tunnelguard-dev/tunnelguard/internal/telemetry"
	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
)

// TunnelService is the restart entry point of the external tunneling
// service. Restart may fail silently at the platform level; the mitigation
// loop does not retry.
type TunnelService interface {
	Restart(ctx context.Context, forceCleanup bool) error
}

// Restarter runs the tunnel restart to completion independent of the
// caller's cancellation, then emits the restart-performed telemetry event.
// The caller blocks until both are done, guaranteeing the restart is never
// silently dropped.
type Restarter struct {
	svc     TunnelService
	emitter *telemetry.Emitter
	log     *slog.Logger
}

// NewRestarter creates a Restarter.
func NewRestarter(svc TunnelService, emitter *telemetry.Emitter, log *slog.Logger) *Restarter {
	if log == nil {
		log = slog.Default()
	}
	return &Restarter{svc: svc, emitter: emitter, log: log}
}

// Restart invokes the tunnel restart with the force-cleanup hint on a
// context detached from the caller's, and waits for it. Restart failure is
// logged, never propagated: the should-restart decision and the restart
// execution are separate concerns.
func (r *Restarter) Restart(ctx context.Context) {
	detached := context.WithoutCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := r.svc.Restart(detached, true); err != nil {
			r.log.Error("tunnel restart failed", "error", err)
		}
		r.emitter.RestartPerformed(detached)
	}()

	<-done
}

// HTTPTunnelService restarts a tunnel daemon exposing a loopback control
// endpoint: POST {endpoint}/restart?forceCleanup=true.
type HTTPTunnelService struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTunnelService creates a client for the tunnel control endpoint.
func NewHTTPTunnelService(endpoint string) (*HTTPTunnelService, error) {
	if endpoint == "" {
		return nil, tgerr.New(tgerr.CodeConfigValidateInvalidValue, "tunnel control endpoint is required")
	}
	return &HTTPTunnelService{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *HTTPTunnelService) Restart(ctx context.Context, forceCleanup bool) error {
	target := s.endpoint + "/restart"
	if forceCleanup {
		target += "?forceCleanup=true"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return tgerr.Wrap(err, tgerr.CodeServiceRestartFailure, "building restart request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return tgerr.Wrap(err, tgerr.CodeServiceRestartFailure, "requesting tunnel restart")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return tgerr.Errorf(tgerr.CodeServiceRestartFailure, "tunnel control returned status %d", resp.StatusCode)
	}
	return nil
}
