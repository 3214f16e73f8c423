// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the mitigation loop.
type Metrics struct {
	ReportsTotal        *prometheus.CounterVec
	RestartsTotal       prometheus.Counter
	TelemetryEvents     *prometheus.CounterVec
	TelemetryDropped    prometheus.Counter
	TelemetrySendErrors prometheus.Counter
}

// New creates Metrics registered against the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates Metrics registered against reg. Tests pass a fresh
// prometheus.NewRegistry to avoid duplicate registration.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ReportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tunnelguard_health_reports_total",
			Help: "Health reports processed, by observed type",
		}, []string{"type"}),
		RestartsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tunnelguard_restarts_total",
			Help: "Tunnel service restarts triggered by the mitigation loop",
		}),
		TelemetryEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tunnelguard_telemetry_events_total",
			Help: "Telemetry events submitted to the sink, by event name",
		}, []string{"event"}),
		TelemetryDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "tunnelguard_telemetry_dropped_total",
			Help: "Telemetry events dropped by the debounce window",
		}),
		TelemetrySendErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "tunnelguard_telemetry_send_errors_total",
			Help: "Telemetry submissions that failed at the sink",
		}),
	}
}
