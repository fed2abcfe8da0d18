package tokenizer

import (
	"sync"

	"go.uber.org/zap"

	"github.com/promptmesh/contextcore/types"
)

// DriftTracker cross-checks cost estimates against provider-reported token
// usage. It only observes: estimates already cached on items are never
// revised retroactively.
type DriftTracker struct {
	logger        *zap.Logger
	warnThreshold float64

	mu           sync.Mutex
	observations int64
	avgRatio     float64
}

// NewDriftTracker creates a tracker that warns when the actual/estimated
// ratio deviates from 1 by more than warnThreshold (default 0.25 when <= 0).
func NewDriftTracker(warnThreshold float64, logger *zap.Logger) *DriftTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if warnThreshold <= 0 {
		warnThreshold = 0.25
	}
	return &DriftTracker{
		logger:        logger.With(zap.String("component", "drift_tracker")),
		warnThreshold: warnThreshold,
	}
}

// Observe records one (estimated, actual) pair. Observations with a zero
// estimate or zero reported prompt tokens are ignored.
func (d *DriftTracker) Observe(estimated int, usage types.TokenUsage) {
	if estimated <= 0 || usage.PromptTokens <= 0 {
		return
	}
	ratio := float64(usage.PromptTokens) / float64(estimated)

	d.mu.Lock()
	d.observations++
	d.avgRatio += (ratio - d.avgRatio) / float64(d.observations)
	avg := d.avgRatio
	n := d.observations
	d.mu.Unlock()

	if ratio > 1+d.warnThreshold || ratio < 1-d.warnThreshold {
		d.logger.Warn("cost estimate drift",
			zap.Int("estimated", estimated),
			zap.Int("actual", usage.PromptTokens),
			zap.Float64("ratio", ratio),
			zap.Float64("avg_ratio", avg),
			zap.Int64("observations", n))
	}
}

// Ratio returns the rolling average actual/estimated ratio and the number of
// observations it is based on.
func (d *DriftTracker) Ratio() (float64, int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.observations == 0 {
		return 1, 0
	}
	return d.avgRatio, d.observations
}
