package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorCounts(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewCollector("contextcore", reg)

	c.ItemAdded("user")
	c.ItemAdded("user")
	c.ItemAdded("system")
	c.ItemsEvicted(ReasonBudget, 3)
	c.ItemsEvicted(ReasonDedup, 0) // no-op
	c.OptimizeObserved(50 * time.Microsecond)
	c.MemoryOp("store_fact", nil, time.Millisecond)
	c.MemoryOp("store_fact", errors.New("boom"), time.Millisecond)
	c.RetrievalResults(5)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.itemsAdded.WithLabelValues("user")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.itemsAdded.WithLabelValues("system")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.itemsEvicted.WithLabelValues(ReasonBudget)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.memoryOps.WithLabelValues("store_fact", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.memoryOps.WithLabelValues("store_fact", "error")))
}

func TestNilCollectorIsSafe(t *testing.T) {
	t.Parallel()

	var c *Collector
	c.ItemAdded("user")
	c.ItemsEvicted(ReasonExpired, 1)
	c.OptimizeObserved(time.Millisecond)
	c.MemoryOp("retrieve", nil, time.Millisecond)
	c.RetrievalResults(0)
}
