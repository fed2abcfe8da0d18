// Package metrics provides internal Prometheus collectors for the context
// optimizer and the memory store. This package is internal and should not be
// imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Eviction reasons reported by the context optimizer.
const (
	ReasonExpired = "expired"
	ReasonDedup   = "dedup"
	ReasonItems   = "max_items"
	ReasonBudget  = "max_budget"
)

// Collector aggregates the module's Prometheus metrics. A nil *Collector is
// valid and records nothing, so instrumentation stays optional.
type Collector struct {
	itemsAdded       *prometheus.CounterVec
	itemsEvicted     *prometheus.CounterVec
	optimizeDuration prometheus.Histogram

	memoryOps        *prometheus.CounterVec
	memoryOpDuration *prometheus.HistogramVec
	retrievalResults prometheus.Histogram
}

// NewCollector registers the module's collectors on the given registerer.
// Pass prometheus.DefaultRegisterer for process-wide metrics or a private
// registry in tests.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		itemsAdded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "context_items_added_total",
				Help:      "Context items added, by type",
			},
			[]string{"type"},
		),
		itemsEvicted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "context_items_evicted_total",
				Help:      "Context items removed by the optimizer, by reason",
			},
			[]string{"reason"},
		),
		optimizeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "context_optimize_duration_seconds",
				Help:      "Duration of optimizer runs",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 8),
			},
		),
		memoryOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "memory_operations_total",
				Help:      "Memory store operations, by operation and status",
			},
			[]string{"operation", "status"},
		),
		memoryOpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "memory_operation_duration_seconds",
				Help:      "Duration of memory store operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		retrievalResults: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "memory_retrieval_results",
				Help:      "Result counts returned by relevance retrieval",
				Buckets:   prometheus.LinearBuckets(0, 2, 11),
			},
		),
	}
}

// ItemAdded records one context item insertion.
func (c *Collector) ItemAdded(itemType string) {
	if c == nil {
		return
	}
	c.itemsAdded.WithLabelValues(itemType).Inc()
}

// ItemsEvicted records n evictions for the given reason.
func (c *Collector) ItemsEvicted(reason string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.itemsEvicted.WithLabelValues(reason).Add(float64(n))
}

// OptimizeObserved records one optimizer run.
func (c *Collector) OptimizeObserved(d time.Duration) {
	if c == nil {
		return
	}
	c.optimizeDuration.Observe(d.Seconds())
}

// MemoryOp records one memory store operation outcome.
func (c *Collector) MemoryOp(operation string, err error, d time.Duration) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.memoryOps.WithLabelValues(operation, status).Inc()
	c.memoryOpDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RetrievalResults records the size of one retrieval result set.
func (c *Collector) RetrievalResults(n int) {
	if c == nil {
		return
	}
	c.retrievalResults.Observe(float64(n))
}
