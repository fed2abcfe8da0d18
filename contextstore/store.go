package contextstore

import (
	"time"

	"go.uber.org/zap"

	"github.com/promptmesh/contextcore/internal/metrics"
	"github.com/promptmesh/contextcore/tokenizer"
	"github.com/promptmesh/contextcore/types"
)

// Config defines the context store limits and optimizer behavior.
type Config struct {
	// MaxItems bounds the number of live items.
	MaxItems int `json:"max_items" yaml:"max_items"`
	// MaxBudget bounds the cumulative cost units of live items.
	MaxBudget int `json:"max_budget" yaml:"max_budget"`
	// Model selects the token codec used for cost estimation.
	Model string `json:"model" yaml:"model"`
	// DedupEnabled turns on semantic deduplication during optimize.
	DedupEnabled bool `json:"dedup_enabled" yaml:"dedup_enabled"`
	// DedupThreshold is the cosine similarity above which two same-type
	// items count as redundant.
	DedupThreshold float64 `json:"dedup_threshold" yaml:"dedup_threshold"`
	// DecayHalfLife controls age decay in effective priority.
	DecayHalfLife time.Duration `json:"decay_half_life" yaml:"decay_half_life"`
}

// DefaultConfig returns reasonable defaults for a 4k-unit prompt budget.
func DefaultConfig() Config {
	return Config{
		MaxItems:       100,
		MaxBudget:      4000,
		DedupEnabled:   true,
		DedupThreshold: 0.8,
		DecayHalfLife:  time.Hour,
	}
}

// Hook is a synchronous post-add callback. Hook errors are logged and never
// fail the add, so hook failures stay observable without blocking inserts.
type Hook func(item *types.ContextItem) error

// Option configures a Store.
type Option func(*Store)

// WithHook appends a synchronous post-add hook.
func WithHook(h Hook) Option {
	return func(s *Store) { s.hooks = append(s.hooks, h) }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Store) { s.metrics = c }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// counters tracks optimizer activity for Summary.
type counters struct {
	added            int64
	expiredEvictions int64
	dedupEvictions   int64
	itemEvictions    int64
	budgetEvictions  int64
	optimizeCalls    int64
	avgOptimize      time.Duration
}

// Store is the bounded, ordered collection of context items for one agent
// session. After optimize the item slice is kept in ranked order (highest
// effective priority first); prompt assembly and reads use that order.
type Store struct {
	config  Config
	cost    *tokenizer.CostEstimator
	logger  *zap.Logger
	metrics *metrics.Collector
	hooks   []Hook
	now     func() time.Time

	items []*types.ContextItem
	seq   uint64
	stats counters
}

// New creates a context store. The logger may be nil.
func New(config Config, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxItems <= 0 {
		config.MaxItems = DefaultConfig().MaxItems
	}
	if config.MaxBudget <= 0 {
		config.MaxBudget = DefaultConfig().MaxBudget
	}
	if config.DedupThreshold <= 0 || config.DedupThreshold > 1 {
		config.DedupThreshold = DefaultConfig().DedupThreshold
	}

	s := &Store{
		config: config,
		cost:   tokenizer.NewCostEstimator(config.Model, logger),
		logger: logger.With(zap.String("component", "context_store")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add inserts an item, filling defaults, pricing it, and running cleanup and
// optimize. It never blocks and never rejects: capacity is enforced by
// eviction only.
func (s *Store) Add(item types.ContextItem) {
	if item.Priority == 0 {
		item.Priority = item.Type.DefaultPriority()
	}
	item.Priority = types.ClampPriority(item.Priority)
	if item.Relevance == 0 {
		item.Relevance = 1
	}
	item.Relevance = types.ClampUnit(item.Relevance)
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	if item.OriginalLength == 0 {
		item.OriginalLength = len(item.Content)
	}
	item.CostUnits = s.cost.Cost(item.Content)

	s.seq++
	item.Seq = s.seq
	stored := &item
	s.items = append(s.items, stored)
	s.stats.added++
	s.metrics.ItemAdded(string(item.Type))

	s.logger.Debug("context item added",
		zap.String("type", string(item.Type)),
		zap.Int("priority", item.Priority),
		zap.Int("cost_units", item.CostUnits))

	s.cleanupExpired()
	s.optimize()

	for _, hook := range s.hooks {
		if err := hook(stored); err != nil {
			s.logger.Error("post-add hook failed",
				zap.String("type", string(item.Type)),
				zap.Uint64("seq", item.Seq),
				zap.Error(err))
		}
	}
}

// AddSystem adds system-level context (highest priority).
func (s *Store) AddSystem(content string, metadata map[string]any) {
	s.Add(types.ContextItem{
		Type:     types.ContextSystem,
		Content:  content,
		Metadata: metadata,
	})
}

// AddUser adds a user interaction.
func (s *Store) AddUser(content string, metadata map[string]any) {
	s.Add(types.ContextItem{
		Type:     types.ContextUser,
		Content:  content,
		Metadata: metadata,
	})
}

// AddMemory adds a retrieved memory with its relevance score. The item's
// priority is derived from relevance rather than the static type table.
func (s *Store) AddMemory(content string, relevance float64, metadata map[string]any) {
	relevance = types.ClampUnit(relevance)
	s.Add(types.ContextItem{
		Type:      types.ContextMemory,
		Content:   content,
		Metadata:  withMeta(metadata, "relevance", relevance),
		Priority:  int(relevance * 10),
		Relevance: relevance,
	})
}

// AddMemoryRecord injects a retrieved memory record, carrying its embedding
// so the deduplicator can compare it against other memory items.
func (s *Store) AddMemoryRecord(rec types.MemoryRecord) {
	relevance := types.ClampUnit(rec.Relevance)
	meta := withMeta(nil, "relevance", relevance)
	meta["memory_id"] = rec.ID
	meta["memory_type"] = string(rec.Type)
	s.Add(types.ContextItem{
		Type:      types.ContextMemory,
		Content:   rec.Content,
		Metadata:  meta,
		Priority:  int(relevance * 10),
		Relevance: relevance,
		Embedding: rec.Embedding,
	})
}

// AddAgent adds inter-agent communication context.
func (s *Store) AddAgent(content, agentName string, metadata map[string]any) {
	s.Add(types.ContextItem{
		Type:     types.ContextAgent,
		Content:  content,
		Metadata: withMeta(metadata, "agent", agentName),
	})
}

// AddTool adds tool execution output.
func (s *Store) AddTool(content, toolName string, metadata map[string]any) {
	s.Add(types.ContextItem{
		Type:     types.ContextTool,
		Content:  content,
		Metadata: withMeta(metadata, "tool", toolName),
	})
}

// AddCollaboration adds collaboration context between agents.
func (s *Store) AddCollaboration(content, collaborationID string, metadata map[string]any) {
	s.Add(types.ContextItem{
		Type:     types.ContextCollaboration,
		Content:  content,
		Metadata: withMeta(metadata, "collaboration_id", collaborationID),
	})
}

// AddEnvironment adds ambient environment state.
func (s *Store) AddEnvironment(content string, metadata map[string]any) {
	s.Add(types.ContextItem{
		Type:     types.ContextEnvironment,
		Content:  content,
		Metadata: metadata,
	})
}

// cleanupExpired removes items past their expiry.
func (s *Store) cleanupExpired() {
	now := s.now()
	kept := s.items[:0]
	removed := 0
	for _, it := range s.items {
		if it.Expired(now) {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	s.items = kept

	if removed > 0 {
		s.stats.expiredEvictions += int64(removed)
		s.metrics.ItemsEvicted(metrics.ReasonExpired, removed)
		s.logger.Debug("expired context items removed", zap.Int("count", removed))
	}
}

// Items returns the current items in store (ranked) order. The returned
// slice is a copy; the items themselves are owned by the store and must not
// be mutated.
func (s *Store) Items() []*types.ContextItem {
	out := make([]*types.ContextItem, len(s.items))
	copy(out, s.items)
	return out
}

// ItemsByType returns the current items of one type in store order.
func (s *Store) ItemsByType(t types.ContextType) []*types.ContextItem {
	var out []*types.ContextItem
	for _, it := range s.items {
		if it.Type == t {
			out = append(out, it)
		}
	}
	return out
}

// RecentItems returns items no older than maxAge, in store order.
func (s *Store) RecentItems(maxAge time.Duration) []*types.ContextItem {
	now := s.now()
	var out []*types.ContextItem
	for _, it := range s.items {
		if it.Age(now) <= maxAge {
			out = append(out, it)
		}
	}
	return out
}

// ClearType removes all items of the given type.
func (s *Store) ClearType(t types.ContextType) {
	kept := s.items[:0]
	removed := 0
	for _, it := range s.items {
		if it.Type == t {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	s.items = kept
	s.logger.Info("cleared context items",
		zap.String("type", string(t)),
		zap.Int("count", removed))
}

// ClearAll removes every item.
func (s *Store) ClearAll() {
	count := len(s.items)
	s.items = s.items[:0]
	s.logger.Info("cleared all context items", zap.Int("count", count))
}

// TotalCost returns the cumulative cost units of the live items.
func (s *Store) TotalCost() int {
	total := 0
	for _, it := range s.items {
		total += it.CostUnits
	}
	return total
}

// TypeSummary aggregates one context type.
type TypeSummary struct {
	Count     int `json:"count"`
	CostUnits int `json:"cost_units"`
}

// Summary reports the current store state and optimizer counters.
type Summary struct {
	TotalItems int                               `json:"total_items"`
	TotalCost  int                               `json:"total_cost"`
	ByType     map[types.ContextType]TypeSummary `json:"by_type"`

	OldestItemAge time.Duration `json:"oldest_item_age"`
	NewestItemAge time.Duration `json:"newest_item_age"`

	ItemsAdded         int64         `json:"items_added"`
	ExpiredEvictions   int64         `json:"expired_evictions"`
	DedupEvictions     int64         `json:"dedup_evictions"`
	ItemEvictions      int64         `json:"item_evictions"`
	BudgetEvictions    int64         `json:"budget_evictions"`
	OptimizeCalls      int64         `json:"optimize_calls"`
	AvgOptimizeLatency time.Duration `json:"avg_optimize_latency"`
}

// Summary returns a snapshot of the store state.
func (s *Store) Summary() Summary {
	now := s.now()
	sum := Summary{
		TotalItems:         len(s.items),
		TotalCost:          s.TotalCost(),
		ByType:             make(map[types.ContextType]TypeSummary, len(types.AllContextTypes)),
		ItemsAdded:         s.stats.added,
		ExpiredEvictions:   s.stats.expiredEvictions,
		DedupEvictions:     s.stats.dedupEvictions,
		ItemEvictions:      s.stats.itemEvictions,
		BudgetEvictions:    s.stats.budgetEvictions,
		OptimizeCalls:      s.stats.optimizeCalls,
		AvgOptimizeLatency: s.stats.avgOptimize,
	}

	for i, it := range s.items {
		ts := sum.ByType[it.Type]
		ts.Count++
		ts.CostUnits += it.CostUnits
		sum.ByType[it.Type] = ts

		age := it.Age(now)
		if i == 0 || age > sum.OldestItemAge {
			sum.OldestItemAge = age
		}
		if i == 0 || age < sum.NewestItemAge {
			sum.NewestItemAge = age
		}
	}
	return sum
}

func withMeta(metadata map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out[key] = value
	return out
}
