// Package metrics holds the Prometheus collectors shared by the server and
// the worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Purge outcomes
const (
	PurgeOutcomeErased   = "erased"
	PurgeOutcomeFailed   = "failed"
	PurgeOutcomeSkipped  = "skipped"
	PurgeOutcomeEnqueued = "enqueued"
)

var (
	// HTTPRequestsTotal counts requests by method, route template and status
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagalog_http_requests_total",
		Help: "Total HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration tracks request latency
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tagalog_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// PanicsRecoveredTotal counts handler panics turned into 500 responses
	PanicsRecoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tagalog_http_panics_recovered_total",
		Help: "Handler panics recovered by the error middleware",
	})

	// TagCascadeLogs tracks how many logs each tag deletion rewrote
	TagCascadeLogs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tagalog_tag_cascade_logs",
		Help:    "Number of logs updated by a tag deletion",
		Buckets: []float64{0, 1, 5, 10, 50, 100, 500},
	})

	// PurgeAccountsTotal counts purge sweep results per account
	PurgeAccountsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagalog_purge_accounts_total",
		Help: "Accounts processed by the purge sweep by outcome",
	}, []string{"outcome"})

	// PurgeSweepDuration tracks how long a sweep takes
	PurgeSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tagalog_purge_sweep_duration_seconds",
		Help:    "Purge sweep duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})

	// DeadLettersDiscardedTotal counts purge jobs dropped from the DLQ after the retention period
	DeadLettersDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tagalog_dead_letters_discarded_total",
		Help: "Dead-lettered purge jobs discarded after the retention period",
	})

	// ActiveSubscriptions tracks open live subscriptions by collection kind
	ActiveSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tagalog_active_subscriptions",
		Help: "Open WebSocket live subscriptions",
	}, []string{"kind"})
)
