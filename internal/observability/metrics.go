// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the savika counters. It satisfies the recorder interfaces of
// the intake and session packages.
type Metrics struct {
	SubmissionsTotal   *prometheus.CounterVec
	GatewayErrorsTotal *prometheus.CounterVec
	AuthEventsTotal    *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SubmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "savika_submissions_total",
				Help: "Credential form submissions by flow and outcome",
			},
			[]string{"flow", "outcome"},
		),
		GatewayErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "savika_gateway_errors_total",
				Help: "Failed authentication gateway calls by operation",
			},
			[]string{"operation"},
		),
		AuthEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "savika_auth_events_total",
				Help: "Auth session events received by kind",
			},
			[]string{"event"},
		),
	}

	reg.MustRegister(m.SubmissionsTotal, m.GatewayErrorsTotal, m.AuthEventsTotal)
	return m
}

// RecordSubmission counts one submission outcome.
func (m *Metrics) RecordSubmission(flow, outcome string) {
	m.SubmissionsTotal.WithLabelValues(flow, outcome).Inc()
}

// RecordGatewayError counts one failed gateway operation.
func (m *Metrics) RecordGatewayError(operation string) {
	m.GatewayErrorsTotal.WithLabelValues(operation).Inc()
}

// RecordAuthEvent counts one auth event.
func (m *Metrics) RecordAuthEvent(event string) {
	m.AuthEventsTotal.WithLabelValues(event).Inc()
}
