// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pinsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection rejection reasons.
const (
	rejectRateLimited    = "rate_limited"
	rejectMaxConnections = "max_connections"
	rejectHandshake      = "handshake"
)

// Metrics counts pin server activity. A nil *Metrics records nothing.
type Metrics struct {
	// Requests counts handled requests by method and outcome.
	Requests *prometheus.CounterVec

	// Rejected counts connections dropped before serving, by reason.
	Rejected *prometheus.CounterVec
}

// NewMetrics registers the pin server metrics with reg. A nil reg uses the
// default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keypin_pinsync_requests_total",
			Help: "Total pin server requests by method and outcome",
		}, []string{"method", "outcome"}),

		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keypin_pinsync_rejected_connections_total",
			Help: "Connections dropped before any request was served",
		}, []string{"reason"}),
	}
}

func (m *Metrics) observeRequest(method string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if method != MethodGetPins && method != MethodListDomains {
		method = "unknown"
	}
	m.Requests.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) observeRejected(reason string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(reason).Inc()
}
