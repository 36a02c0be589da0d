// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "addon",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "addon",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20, 45},
	}, []string{"method", "route"})

	IndexerRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "addon",
		Name:      "indexer_requests_total",
		Help:      "Torznab requests by indexer and outcome.",
	}, []string{"indexer", "status"})

	IndexerRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "addon",
		Name:      "indexer_request_duration_seconds",
		Help:      "Torznab request duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20},
	}, []string{"indexer"})

	ResolveAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "addon",
		Name:      "debrid_resolve_attempts_total",
		Help:      "Per-torrent debrid resolution attempts by provider and outcome.",
	}, []string{"provider", "outcome"})

	StreamsReturned = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "addon",
		Name:      "streams_returned",
		Help:      "Number of streams returned per request.",
		Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
	})

	MetadataCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "addon",
		Name:      "metadata_cache_total",
		Help:      "Metadata cache lookups by result (hit or miss).",
	}, []string{"result"})
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		IndexerRequestsTotal,
		IndexerRequestDuration,
		ResolveAttemptsTotal,
		StreamsReturned,
		MetadataCacheTotal,
	)
}
