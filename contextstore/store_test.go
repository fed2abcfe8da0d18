package contextstore

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptmesh/contextcore/types"
)

// fixedClock returns a store clock pinned to a mutable instant.
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time             { return c.now }
func (c *fixedClock) Advance(d time.Duration)    { c.now = c.now.Add(d) }
func newClock() *fixedClock                      { return &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)} }
func newStore(cfg Config, opts ...Option) *Store { return New(cfg, nil, opts...) }

// text returns a string costing exactly n units under the len/4 estimator.
func text(n int) string { return strings.Repeat("a", n*4) }

func TestAddFillsDefaults(t *testing.T) {
	t.Parallel()

	clock := newClock()
	s := newStore(DefaultConfig(), WithClock(clock.Now))

	s.Add(types.ContextItem{Type: types.ContextUser, Content: text(10)})

	items := s.Items()
	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, 8, it.Priority)
	assert.Equal(t, 1.0, it.Relevance)
	assert.Equal(t, 10, it.CostUnits)
	assert.Equal(t, clock.Now(), it.CreatedAt)
	assert.Equal(t, len(it.Content), it.OriginalLength)
}

func TestAddClampsOutOfRangeValues(t *testing.T) {
	t.Parallel()

	s := newStore(DefaultConfig())
	s.Add(types.ContextItem{Type: types.ContextUser, Content: "x", Priority: 99, Relevance: 3})

	it := s.Items()[0]
	assert.Equal(t, 10, it.Priority)
	assert.Equal(t, 1.0, it.Relevance)
}

func TestTypedAdders(t *testing.T) {
	t.Parallel()

	s := newStore(DefaultConfig())
	s.AddSystem("be helpful", nil)
	s.AddUser("hello", map[string]any{"turn": 1})
	s.AddMemory("likes jazz", 0.6, nil)
	s.AddAgent("planner says go", "planner", nil)
	s.AddTool("42", "calculator", nil)
	s.AddCollaboration("handoff", "collab-7", nil)
	s.AddEnvironment("tz=UTC", nil)

	require.Len(t, s.Items(), 7)

	mem := s.ItemsByType(types.ContextMemory)
	require.Len(t, mem, 1)
	assert.Equal(t, 6, mem[0].Priority, "memory priority derives from relevance")
	assert.Equal(t, 0.6, mem[0].Metadata["relevance"])

	tools := s.ItemsByType(types.ContextTool)
	require.Len(t, tools, 1)
	assert.Equal(t, "calculator", tools[0].Metadata["tool"])

	collab := s.ItemsByType(types.ContextCollaboration)
	require.Len(t, collab, 1)
	assert.Equal(t, "collab-7", collab[0].Metadata["collaboration_id"])

	agents := s.ItemsByType(types.ContextAgent)
	require.Len(t, agents, 1)
	assert.Equal(t, "planner", agents[0].Metadata["agent"])
}

func TestAddMemoryRecordCarriesEmbedding(t *testing.T) {
	t.Parallel()

	s := newStore(DefaultConfig())
	s.AddMemoryRecord(types.MemoryRecord{
		ID:        "mem-1",
		Type:      types.MemoryPreference,
		Content:   "prefers dark mode",
		Relevance: 0.9,
		Embedding: []float32{0.1, 0.2},
	})

	items := s.ItemsByType(types.ContextMemory)
	require.Len(t, items, 1)
	assert.Equal(t, []float32{0.1, 0.2}, items[0].Embedding)
	assert.Equal(t, "mem-1", items[0].Metadata["memory_id"])
	assert.Equal(t, 9, items[0].Priority)
}

func TestExpiredItemRemovedOnNextAdd(t *testing.T) {
	t.Parallel()

	clock := newClock()
	s := newStore(DefaultConfig(), WithClock(clock.Now))

	expires := clock.Now().Add(time.Minute)
	s.Add(types.ContextItem{Type: types.ContextSystem, Content: "ephemeral", ExpiresAt: &expires})
	require.Len(t, s.Items(), 1)

	clock.Advance(2 * time.Minute)
	s.AddUser("trigger cleanup", nil)

	items := s.Items()
	require.Len(t, items, 1, "expired item gone despite top priority")
	assert.Equal(t, types.ContextUser, items[0].Type)
	assert.EqualValues(t, 1, s.Summary().ExpiredEvictions)
}

func TestClearTypeAndClearAll(t *testing.T) {
	t.Parallel()

	s := newStore(DefaultConfig())
	s.AddSystem("sys", nil)
	s.AddUser("u1", nil)
	s.AddUser("u2", nil)

	s.ClearType(types.ContextUser)
	require.Len(t, s.Items(), 1)
	assert.Empty(t, s.ItemsByType(types.ContextUser))

	s.ClearAll()
	assert.Empty(t, s.Items())
}

func TestRecentItems(t *testing.T) {
	t.Parallel()

	clock := newClock()
	s := newStore(DefaultConfig(), WithClock(clock.Now))

	s.AddUser("old", nil)
	clock.Advance(2 * time.Hour)
	s.AddUser("fresh", nil)

	recent := s.RecentItems(time.Hour)
	require.Len(t, recent, 1)
	assert.Equal(t, "fresh", recent[0].Content)
}

func TestSummary(t *testing.T) {
	t.Parallel()

	clock := newClock()
	s := newStore(DefaultConfig(), WithClock(clock.Now))

	s.AddSystem(text(5), nil)
	clock.Advance(30 * time.Minute)
	s.AddUser(text(10), nil)

	sum := s.Summary()
	assert.Equal(t, 2, sum.TotalItems)
	assert.Equal(t, 15, sum.TotalCost)
	assert.Equal(t, TypeSummary{Count: 1, CostUnits: 5}, sum.ByType[types.ContextSystem])
	assert.Equal(t, TypeSummary{Count: 1, CostUnits: 10}, sum.ByType[types.ContextUser])
	assert.Equal(t, 30*time.Minute, sum.OldestItemAge)
	assert.Equal(t, time.Duration(0), sum.NewestItemAge)
	assert.EqualValues(t, 2, sum.ItemsAdded)
	assert.EqualValues(t, 2, sum.OptimizeCalls)
}

func TestPostAddHook(t *testing.T) {
	t.Parallel()

	var seen []types.ContextType
	hook := func(it *types.ContextItem) error {
		seen = append(seen, it.Type)
		return nil
	}
	failing := func(it *types.ContextItem) error {
		return errors.New("hook exploded")
	}

	s := newStore(DefaultConfig(), WithHook(hook), WithHook(failing))
	s.AddUser("hi", nil)
	s.AddSystem("sys", nil)

	// Failing hook is logged, never blocks the add.
	assert.Equal(t, []types.ContextType{types.ContextUser, types.ContextSystem}, seen)
	assert.Len(t, s.Items(), 2)
}
