package contextstore

import (
	"sort"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/promptmesh/contextcore/internal/metrics"
	"github.com/promptmesh/contextcore/types"
)

// compressionEllipsis marks truncated content.
const compressionEllipsis = "..."

// optimize runs the full pipeline: rank, dedup, trim to item limit, trim to
// budget. It runs on every insert so reads never need filtering.
func (s *Store) optimize() {
	start := time.Now()
	now := s.now()

	// 1. Rank by effective priority desc; ties by recency desc, then by
	// insertion sequence desc so ordering is fully deterministic.
	sort.SliceStable(s.items, func(i, j int) bool {
		a, b := s.items[i], s.items[j]
		pa := a.EffectivePriority(now, s.config.DecayHalfLife)
		pb := b.EffectivePriority(now, s.config.DecayHalfLife)
		if pa != pb {
			return pa > pb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Seq > b.Seq
	})

	// 2. Semantic dedup among same-type items.
	if s.config.DedupEnabled {
		if dropped := s.dedup(now); dropped > 0 {
			s.stats.dedupEvictions += int64(dropped)
			s.metrics.ItemsEvicted(metrics.ReasonDedup, dropped)
		}
	}

	// 3. Trim the lowest-ranked tail past the item limit.
	if len(s.items) > s.config.MaxItems {
		removed := len(s.items) - s.config.MaxItems
		s.items = s.items[:s.config.MaxItems]
		s.stats.itemEvictions += int64(removed)
		s.metrics.ItemsEvicted(metrics.ReasonItems, removed)
		s.logger.Debug("items evicted by item limit", zap.Int("count", removed))
	}

	// 4. Pop the lowest-ranked items until the budget holds.
	total := s.TotalCost()
	popped := 0
	for total > s.config.MaxBudget && len(s.items) > 0 {
		last := s.items[len(s.items)-1]
		s.items = s.items[:len(s.items)-1]
		total -= last.CostUnits
		popped++
		s.logger.Debug("item evicted by budget",
			zap.String("type", string(last.Type)),
			zap.Int("cost_units", last.CostUnits))
	}
	if popped > 0 {
		s.stats.budgetEvictions += int64(popped)
		s.metrics.ItemsEvicted(metrics.ReasonBudget, popped)
	}

	elapsed := time.Since(start)
	s.stats.optimizeCalls++
	s.stats.avgOptimize += (elapsed - s.stats.avgOptimize) / time.Duration(s.stats.optimizeCalls)
	s.metrics.OptimizeObserved(elapsed)
}

// CompressOlderThan truncates the content of items older than maxAge to
// ratio of their current length, recomputing their cached cost. Already
// compressed items are left alone. It returns the number of items
// compressed; Optimize should be called by the next Add as usual.
func (s *Store) CompressOlderThan(maxAge time.Duration, ratio float64) int {
	if ratio <= 0 || ratio >= 1 {
		return 0
	}
	now := s.now()
	compressed := 0
	for _, it := range s.items {
		if it.Age(now) < maxAge || it.Compression != types.CompressionOriginal {
			continue
		}
		target := int(float64(len(it.Content)) * ratio)
		// The ellipsis counts against the shrink; skip items too short to
		// end up smaller than they started.
		if target+len(compressionEllipsis) >= len(it.Content) {
			continue
		}

		it.OriginalLength = len(it.Content)
		it.Content = truncateUTF8(it.Content, target) + compressionEllipsis
		it.Compression = types.CompressionCompressed
		it.CostUnits = s.cost.Cost(it.Content)
		compressed++
	}

	if compressed > 0 {
		s.logger.Info("compressed old context items",
			zap.Int("count", compressed),
			zap.Duration("max_age", maxAge))
	}
	return compressed
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
