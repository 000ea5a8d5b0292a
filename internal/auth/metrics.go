// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for operation metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Operations counts auth service operations by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var Operations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agora_auth_operations_total",
		Help: "Total number of auth operations by operation and outcome",
	},
	[]string{"operation", "outcome"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Operations)
}

func recordOperation(operation, outcome string) {
	Operations.WithLabelValues(operation, outcome).Inc()
}
