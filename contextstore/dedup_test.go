package contextstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptmesh/contextcore/types"
)

func embedded(typ types.ContextType, content string, vec []float32, priority int) types.ContextItem {
	return types.ContextItem{Type: typ, Content: content, Embedding: vec, Priority: priority}
}

func TestDedupDropsLowerEffectivePriority(t *testing.T) {
	t.Parallel()

	clock := newClock()
	s := newStore(Config{MaxItems: 10, MaxBudget: 10000, DedupEnabled: true, DedupThreshold: 0.8},
		WithClock(clock.Now))

	vec := []float32{0.6, 0.8}
	s.Add(embedded(types.ContextUser, "low", vec, 3))
	s.Add(embedded(types.ContextUser, "high", vec, 9))

	items := s.Items()
	require.Len(t, items, 1, "exactly one of a redundant pair remains")
	assert.Equal(t, "high", items[0].Content)
	assert.EqualValues(t, 1, s.Summary().DedupEvictions)
}

func TestDedupTieKeepsEarlierInsertion(t *testing.T) {
	t.Parallel()

	clock := newClock()
	s := newStore(Config{MaxItems: 10, MaxBudget: 10000, DedupEnabled: true, DedupThreshold: 0.8},
		WithClock(clock.Now))

	vec := []float32{1, 0, 0}
	s.Add(embedded(types.ContextUser, "first", vec, 5))
	s.Add(embedded(types.ContextUser, "second", vec, 5))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "first", items[0].Content, "deterministic tie-break favors the earlier item")
}

func TestDedupIsTypeScoped(t *testing.T) {
	t.Parallel()

	s := newStore(Config{MaxItems: 10, MaxBudget: 10000, DedupEnabled: true, DedupThreshold: 0.8})

	// Identical vectors, different types: never considered duplicates.
	vec := []float32{0, 1}
	s.Add(embedded(types.ContextSystem, "directive", vec, 10))
	s.Add(embedded(types.ContextUser, "message", vec, 8))

	assert.Len(t, s.Items(), 2)
}

func TestDedupIgnoresItemsWithoutEmbeddings(t *testing.T) {
	t.Parallel()

	s := newStore(Config{MaxItems: 10, MaxBudget: 10000, DedupEnabled: true, DedupThreshold: 0.8})

	s.AddUser("no embedding a", nil)
	s.AddUser("no embedding b", nil)
	s.Add(embedded(types.ContextUser, "vec", []float32{1, 0}, 8))

	assert.Len(t, s.Items(), 3)
}

func TestDedupDisabled(t *testing.T) {
	t.Parallel()

	s := newStore(Config{MaxItems: 10, MaxBudget: 10000, DedupEnabled: false})

	vec := []float32{1, 1}
	s.Add(embedded(types.ContextUser, "a", vec, 8))
	s.Add(embedded(types.ContextUser, "b", vec, 8))

	assert.Len(t, s.Items(), 2)
}

func TestDedupBelowThresholdKeptApart(t *testing.T) {
	t.Parallel()

	s := newStore(Config{MaxItems: 10, MaxBudget: 10000, DedupEnabled: true, DedupThreshold: 0.8})

	// Orthogonal vectors: similarity 0.
	s.Add(embedded(types.ContextUser, "a", []float32{1, 0}, 8))
	s.Add(embedded(types.ContextUser, "b", []float32{0, 1}, 8))

	assert.Len(t, s.Items(), 2)
}

func TestDedupChainDropsAllRedundant(t *testing.T) {
	t.Parallel()

	clock := newClock()
	s := newStore(Config{MaxItems: 10, MaxBudget: 10000, DedupEnabled: true, DedupThreshold: 0.8},
		WithClock(clock.Now))

	vec := []float32{0.5, 0.5}
	for i, c := range []string{"one", "two", "three"} {
		s.Add(embedded(types.ContextTool, c, vec, 5-i))
		clock.Advance(time.Second)
	}

	items := s.ItemsByType(types.ContextTool)
	require.Len(t, items, 1)
	assert.Equal(t, "one", items[0].Content, "highest priority survives the chain")
}
