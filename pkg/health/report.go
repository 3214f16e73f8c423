// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package health

// Metric is a single raw health metric reported by the tunnel service.
// Redacted metrics carry potentially fingerprinting values and are stripped
// before a report is persisted or submitted anywhere.
type Metric struct {
	Value         string `json:"value"`
	BadHealth     bool   `json:"badHealth,omitempty"`
	Informational bool   `json:"informational,omitempty"`
	Redacted      bool   `json:"-"`
}

// Report is one inbound health snapshot from the tunnel service. Alerts is
// an ordered sequence of alert identifiers; an empty Alerts slice means the
// service considers itself healthy.
type Report struct {
	Alerts  []string          `json:"alerts"`
	Metrics map[string]Metric `json:"metrics,omitempty"`
}

// IsBadHealth reports whether this snapshot signals a degraded service.
func (r Report) IsBadHealth() bool {
	return len(r.Alerts) > 0
}

// ForStorage returns a copy of the report keeping only metrics that are
// relevant (bad-health or informational) and not redacted. The original
// report is left untouched.
func (r Report) ForStorage() Report {
	out := Report{Alerts: r.Alerts}
	if len(r.Metrics) == 0 {
		return out
	}

	kept := make(map[string]Metric, len(r.Metrics))
	for name, m := range r.Metrics {
		if m.Redacted {
			continue
		}
		if !m.BadHealth && !m.Informational {
			continue
		}
		kept[name] = m
	}
	if len(kept) > 0 {
		out.Metrics = kept
	}
	return out
}
