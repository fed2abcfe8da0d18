package contextstore

import (
	"time"

	"go.uber.org/zap"

	"github.com/promptmesh/contextcore/embedding"
	"github.com/promptmesh/contextcore/types"
)

// dedup drops the lower-effective-priority member of every same-type pair
// whose embedding cosine similarity exceeds the configured threshold. Items
// without embeddings never participate. A System directive is never
// considered a duplicate of a User message regardless of text overlap:
// comparisons are restricted to items of the same type.
//
// Ties on effective priority keep the earlier-inserted item so the outcome
// is deterministic. The item slice must already be in ranked order; removal
// preserves that order. Returns the number of dropped items.
func (s *Store) dedup(now time.Time) int {
	remove := make(map[uint64]bool)

	for i := 0; i < len(s.items); i++ {
		a := s.items[i]
		if len(a.Embedding) == 0 || remove[a.Seq] {
			continue
		}
		for j := i + 1; j < len(s.items); j++ {
			b := s.items[j]
			if b.Type != a.Type || len(b.Embedding) == 0 || remove[b.Seq] {
				continue
			}
			sim := embedding.Cosine(a.Embedding, b.Embedding)
			if sim <= s.config.DedupThreshold {
				continue
			}

			victim := lowerRanked(a, b, now, s.config.DecayHalfLife)
			remove[victim.Seq] = true
			s.logger.Debug("redundant context item dropped",
				zap.String("type", string(victim.Type)),
				zap.Float64("similarity", sim),
				zap.Uint64("kept_seq", otherOf(victim, a, b).Seq),
				zap.Uint64("dropped_seq", victim.Seq))

			if victim == a {
				break // a is gone; stop comparing against it
			}
		}
	}

	if len(remove) == 0 {
		return 0
	}
	kept := s.items[:0]
	for _, it := range s.items {
		if !remove[it.Seq] {
			kept = append(kept, it)
		}
	}
	s.items = kept
	return len(remove)
}

// lowerRanked picks the item to drop from a redundant pair: the lower
// effective priority, or on a tie the later insertion.
func lowerRanked(a, b *types.ContextItem, now time.Time, halfLife time.Duration) *types.ContextItem {
	pa := a.EffectivePriority(now, halfLife)
	pb := b.EffectivePriority(now, halfLife)
	switch {
	case pa < pb:
		return a
	case pb < pa:
		return b
	case a.Seq > b.Seq:
		return a
	default:
		return b
	}
}

func otherOf(victim, a, b *types.ContextItem) *types.ContextItem {
	if victim == a {
		return b
	}
	return a
}
