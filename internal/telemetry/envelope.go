// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package telemetry

import (
	"context"

	"github.com/shirou/gopsutil/v3/host"

	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
)

// redactedModel replaces the host identifier on non-internal builds.
const redactedModel = "REDACTED"

// Envelope is the common attribute set attached to every telemetry event.
// Model identifies the individual host and is redacted unless the build is
// flagged internal, since hostnames are fingerprinting-grade data.
type Envelope struct {
	Manufacturer string
	Model        string
	OSVersion    string
}

// CollectEnvelope gathers host platform information. When internalBuild is
// false the host identifier is replaced with a fixed redaction marker.
func CollectEnvelope(ctx context.Context, internalBuild bool) (Envelope, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return Envelope{}, tgerr.Wrap(err, tgerr.CodeTelemetryEnvelopeFailure, "collecting host info")
	}

	env := Envelope{
		Manufacturer: info.OS,
		Model:        info.Hostname,
		OSVersion:    info.PlatformVersion,
	}
	if env.OSVersion == "" {
		env.OSVersion = info.KernelVersion
	}
	if !internalBuild {
		env.Model = redactedModel
	}
	return env, nil
}

// Attrs returns the envelope as event attributes.
func (e Envelope) Attrs() map[string]string {
	return map[string]string{
		"manufacturer": e.Manufacturer,
		"model":        e.Model,
		"osVersion":    e.OSVersion,
	}
}
