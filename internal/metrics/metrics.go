// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lo",
			Name:      "provider_requests_total",
			Help:      "Provider API calls by source and outcome (ok, error, rejected).",
		},
		[]string{"source", "outcome"},
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lo",
			Name:      "provider_request_duration_seconds",
			Help:      "Provider API call latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	ProviderEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lo",
			Name:      "provider_events_total",
			Help:      "Normalized events returned by providers.",
		},
		[]string{"source"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lo",
			Name:      "provider_circuit_state",
			Help:      "Provider circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"source"},
	)

	EventsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lo",
			Name:      "sync_events_total",
			Help:      "Events handled by the sync writer by result (created, skipped, failed, dropped).",
		},
		[]string{"result"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lo",
			Name:      "sync_duration_seconds",
			Help:      "End-to-end duration of a sync request.",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lo",
			Name:      "jobs_processed_total",
			Help:      "Background jobs handled by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	RealtimeClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lo",
			Name:      "realtime_clients",
			Help:      "Connected WebSocket clients.",
		},
	)
)
