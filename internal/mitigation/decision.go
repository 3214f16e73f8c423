// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package mitigation

import (
	"context"
	"time"

	"github.com/tunnelguard-dev/tunnelguard/internal/store"
	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
)

// BoundaryFormat is the canonical restart-boundary timestamp layout:
// second precision, no zone offset. Comparison is lexicographic, which is
// chronological only because both sides always use this format in UTC.
const BoundaryFormat = "2006-01-02T15:04:05"

// DefaultInitialBackoff is the floor of the exponential backoff schedule:
// 30s, 60s, 120s, ...
const DefaultInitialBackoff = 30 * time.Second

// FormatBoundary renders t in the canonical boundary format.
func FormatBoundary(t time.Time) string {
	return t.UTC().Format(BoundaryFormat)
}

// BackoffState is the persisted backoff counter and boundary, exposed for
// the status surface.
type BackoffState struct {
	BackoffSeconds  int64  `json:"backoffSeconds"`
	RestartBoundary string `json:"restartBoundary,omitempty"`
}

// RestartPolicy decides whether a restart is currently allowed and
// advances the persisted backoff schedule when one fires. All state lives
// in the settings store; the policy itself is stateless and resumable
// after process death.
type RestartPolicy struct {
	settings store.SettingsStore
	initial  time.Duration
	nowFunc  func() time.Time // for testing
}

// NewRestartPolicy creates a policy with the given initial backoff
// increment. Returns an error if initial is zero or negative.
func NewRestartPolicy(settings store.SettingsStore, initial time.Duration) (*RestartPolicy, error) {
	if initial <= 0 {
		return nil, tgerr.Errorf(tgerr.CodeConfigValidateInvalidValue,
			"initial backoff must be positive, got %s", initial)
	}
	return &RestartPolicy{
		settings: settings,
		initial:  initial,
		nowFunc:  time.Now,
	}, nil
}

// SetNowFunc overrides the time source (for testing).
func (p *RestartPolicy) SetNowFunc(fn func() time.Time) {
	p.nowFunc = fn
}

// Decide reports whether a restart may fire now. A restart is allowed iff
// no boundary is persisted, or now has reached the boundary. On allow, the
// backoff increment doubles (from the configured floor) and the new
// boundary is persisted before returning; on deny, the persisted state is
// left untouched.
func (p *RestartPolicy) Decide(ctx context.Context) (bool, error) {
	boundary, err := p.settings.GetString(ctx, store.KeyRestartBoundary)
	if err != nil {
		return false, tgerr.Wrap(err, tgerr.CodeMitigationStateReadFailure, "reading restart boundary")
	}

	now := p.nowFunc()
	if boundary != "" && FormatBoundary(now) < boundary {
		return false, nil
	}

	prev, err := p.settings.GetInt64(ctx, store.KeyBackoffSeconds)
	if err != nil {
		return false, tgerr.Wrap(err, tgerr.CodeMitigationStateReadFailure, "reading backoff increment")
	}

	// The very first decision sees 0; doubling would pin it there.
	next := prev * 2
	if prev == 0 {
		next = int64(p.initial / time.Second)
	}

	if err := p.settings.PutInt64(ctx, store.KeyBackoffSeconds, next); err != nil {
		return false, tgerr.Wrap(err, tgerr.CodeMitigationStateWriteFailure, "persisting backoff increment")
	}
	newBoundary := FormatBoundary(now.Add(time.Duration(next) * time.Second))
	if err := p.settings.PutString(ctx, store.KeyRestartBoundary, newBoundary); err != nil {
		return false, tgerr.Wrap(err, tgerr.CodeMitigationStateWriteFailure, "persisting restart boundary")
	}
	return true, nil
}

// Reset restores the backoff state to its initial value. Called whenever a
// GOOD health report arrives.
func (p *RestartPolicy) Reset(ctx context.Context) error {
	if err := p.settings.PutInt64(ctx, store.KeyBackoffSeconds, 0); err != nil {
		return tgerr.Wrap(err, tgerr.CodeMitigationStateWriteFailure, "resetting backoff increment")
	}
	if err := p.settings.Delete(ctx, store.KeyRestartBoundary); err != nil {
		return tgerr.Wrap(err, tgerr.CodeMitigationStateWriteFailure, "clearing restart boundary")
	}
	return nil
}

// State returns the persisted backoff state.
func (p *RestartPolicy) State(ctx context.Context) (BackoffState, error) {
	backoff, err := p.settings.GetInt64(ctx, store.KeyBackoffSeconds)
	if err != nil {
		return BackoffState{}, tgerr.Wrap(err, tgerr.CodeMitigationStateReadFailure, "reading backoff increment")
	}
	boundary, err := p.settings.GetString(ctx, store.KeyRestartBoundary)
	if err != nil {
		return BackoffState{}, tgerr.Wrap(err, tgerr.CodeMitigationStateReadFailure, "reading restart boundary")
	}
	return BackoffState{BackoffSeconds: backoff, RestartBoundary: boundary}, nil
}
