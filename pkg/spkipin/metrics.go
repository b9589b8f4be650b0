// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package spkipin

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts pin validation decisions. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Decisions counts decisions by outcome, reason and algorithm.
	Decisions *prometheus.CounterVec

	// GraceAccepts counts keys accepted through an expired pin inside the
	// grace window, by domain.
	GraceAccepts *prometheus.CounterVec
}

// NewMetrics registers the validation metrics with reg. A nil reg uses the
// default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keypin_validation_decisions_total",
			Help: "Total pin validation decisions by outcome, reason and algorithm",
		}, []string{"outcome", "reason", "algorithm"}),

		GraceAccepts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keypin_validation_grace_accepts_total",
			Help: "Keys accepted through an expired pin inside the grace period",
		}, []string{"domain"}),
	}
}

// Observe records one decision.
func (m *Metrics) Observe(d Decision) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if d.Accepted {
		outcome = "accepted"
	}
	m.Decisions.WithLabelValues(outcome, d.Reason.String(), d.Algorithm.String()).Inc()
	if d.Grace {
		m.GraceAccepts.WithLabelValues(d.Domain).Inc()
	}
}
