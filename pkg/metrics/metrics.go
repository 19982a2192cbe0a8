// Package metrics exposes Prometheus instrumentation for the vault,
// sync, queue and cache engines.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Vault metrics
	VaultEntriesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "localcore_vault_entries_total",
			Help: "Total number of vault entries by namespace",
		},
		[]string{"namespace"},
	)

	VaultOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localcore_vault_ops_total",
			Help: "Total number of vault operations by kind and outcome",
		},
		[]string{"op", "outcome"},
	)

	VaultOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "localcore_vault_op_duration_seconds",
			Help:    "Vault operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Sync metrics
	SyncDocumentsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "localcore_sync_documents_total",
			Help: "Total number of documents held by the sync engine",
		},
	)

	SyncUnsyncedOpsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "localcore_sync_unsynced_ops_total",
			Help: "Number of operations in the op-log awaiting sync",
		},
	)

	SyncConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "localcore_sync_conflicts_total",
			Help: "Total number of field conflicts resolved by LWW merge",
		},
	)

	// Network queue metrics
	QueueSizeByPriority = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "localcore_queue_size",
			Help: "Number of pending requests by priority",
		},
		[]string{"priority"},
	)

	QueueRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localcore_queue_requests_total",
			Help: "Total number of queue requests by outcome",
		},
		[]string{"outcome"},
	)

	// Response cache metrics
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "localcore_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "localcore_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "localcore_cache_evictions_total",
			Help: "Total number of cache entries evicted",
		},
	)
)

func init() {
	prometheus.MustRegister(
		VaultEntriesTotal,
		VaultOpsTotal,
		VaultOpDuration,
		SyncDocumentsTotal,
		SyncUnsyncedOpsTotal,
		SyncConflictsTotal,
		QueueSizeByPriority,
		QueueRequestsTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheEvictionsTotal,
	)
}

// Handler returns the Prometheus HTTP handler for scraping. Exposing it
// over a listener is the caller's responsibility; this package never
// starts one itself.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
