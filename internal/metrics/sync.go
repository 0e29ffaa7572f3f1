// Package metrics exposes Prometheus metrics for sync, search and HTTP traffic.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "searchsync"

// Sync and search Prometheus metrics.
var (
	SyncOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sync_operations_total",
			Help:      "Total number of content sync operations by outcome",
		},
		[]string{"op", "outcome"},
	)

	BuildCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "build_cache_total",
			Help:      "Document build cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	RebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "rebuild_duration_seconds",
			Help:      "Full rebuild duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "search_requests_total",
			Help:      "Total number of search requests by outcome",
		},
		[]string{"outcome"}, // "served" / "declined" / "error"
	)
)

var registerOnce sync.Once

// Register registers all metrics with the default registerer. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SyncOperationsTotal,
			BuildCacheTotal,
			RebuildDuration,
			SearchRequestsTotal,
			httpRequestDuration,
			httpRequestsTotal,
		)
	})
}
