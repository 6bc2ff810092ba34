// Package metrics provides Prometheus metrics for Piramid collections.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared across every collection
// opened in one process. A Collection records through it the way the
// teacher's server records through a shared counter set; passing nil to
// Open disables metrics entirely.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	VectorCountTotal       *prometheus.GaugeVec
	IndexKind              *prometheus.GaugeVec
	WALSizeBytes           *prometheus.GaugeVec
	SecondsSinceCheckpoint *prometheus.GaugeVec
	CacheBytes             *prometheus.GaugeVec

	SearchResultsTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus collectors.
func NewMetrics() *Metrics {
	m := &Metrics{}

	m.OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "piramid_operations_total",
			Help: "Total number of collection operations by kind and outcome.",
		},
		[]string{"operation", "status"},
	)

	m.OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "piramid_operation_duration_seconds",
			Help:    "Duration of collection operations in seconds.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	m.VectorCountTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "piramid_vector_count",
			Help: "Live vector count per collection.",
		},
		[]string{"collection"},
	)

	m.IndexKind = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "piramid_index_kind",
			Help: "Set to 1 for the active ANN index kind of a collection, 0 for the others.",
		},
		[]string{"collection", "kind"},
	)

	m.WALSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "piramid_wal_size_bytes",
			Help: "Current WAL file size per collection.",
		},
		[]string{"collection"},
	)

	m.SecondsSinceCheckpoint = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "piramid_seconds_since_checkpoint",
			Help: "Seconds elapsed since the last successful checkpoint, per collection.",
		},
		[]string{"collection"},
	)

	m.CacheBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "piramid_cache_bytes",
			Help: "Approximate in-memory vector cache usage per collection.",
		},
		[]string{"collection"},
	)

	m.SearchResultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "piramid_search_results_total",
			Help: "Total number of hits returned across all search calls.",
		},
	)

	return m
}

var indexKinds = []string{"flat", "hnsw", "ivf"}

// RecordOperation records one insert/delete/search/checkpoint/compact
// call's outcome and latency.
func (m *Metrics) RecordOperation(operation, status string, duration time.Duration) {
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateCollectionStats refreshes the per-collection gauges from a fresh
// Collection.Stats() snapshot.
func (m *Metrics) UpdateCollectionStats(collection string, vectorCount int, indexKind string, walSizeBytes int64, secondsSinceCheckpoint float64, cacheBytes int64) {
	m.VectorCountTotal.WithLabelValues(collection).Set(float64(vectorCount))
	for _, kind := range indexKinds {
		v := 0.0
		if kind == indexKind {
			v = 1.0
		}
		m.IndexKind.WithLabelValues(collection, kind).Set(v)
	}
	m.WALSizeBytes.WithLabelValues(collection).Set(float64(walSizeBytes))
	m.SecondsSinceCheckpoint.WithLabelValues(collection).Set(secondsSinceCheckpoint)
	m.CacheBytes.WithLabelValues(collection).Set(float64(cacheBytes))
}

// RecordSearchResults adds resultCount to the running total of hits
// returned across all search calls.
func (m *Metrics) RecordSearchResults(resultCount int) {
	m.SearchResultsTotal.Add(float64(resultCount))
}
