package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure|pending).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labtrack_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// LoanTransitions counts loan state transitions by action and outcome.
	LoanTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labtrack_loan_transitions_total",
			Help: "Total number of loan state transitions",
		},
		[]string{"action", "result"},
	)

	// RoleChecks counts admin-guard evaluations and their outcome (allowed|denied).
	RoleChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labtrack_role_checks_total",
			Help: "Total number of role guard evaluations",
		},
		[]string{"result"},
	)

	// OverdueLoans tracks the number of overdue loans seen by the last reminder sweep.
	OverdueLoans = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "labtrack_overdue_loans",
			Help: "Number of overdue loans detected by the most recent sweep",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labtrack_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
