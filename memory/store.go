package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/promptmesh/contextcore/embedding"
	"github.com/promptmesh/contextcore/internal/metrics"
	"github.com/promptmesh/contextcore/types"
)

const (
	// preferenceImportance is the default score for explicit user preferences.
	preferenceImportance = 0.8

	// Consolidation drops low-importance old records beyond the keep count.
	consolidationImportanceCeiling = 0.6
	consolidationKeep              = 3
)

// Config controls a memory Store.
type Config struct {
	// AgentName owns the records and prefixes generated record IDs.
	AgentName string `yaml:"agent_name"`
	// MaxMemories caps stored records; excess is evicted lowest
	// importance first, oldest first within equal importance.
	MaxMemories int `yaml:"max_memories"`
	// DefaultMinRelevance filters retrieval results when the caller does
	// not set a threshold.
	DefaultMinRelevance float64 `yaml:"default_min_relevance"`
	// DefaultMaxResults caps retrieval results when the caller does not
	// set a limit.
	DefaultMaxResults int `yaml:"default_max_results"`
	// IndexLoadConcurrency bounds parallel embeds during LoadIndex.
	IndexLoadConcurrency int `yaml:"index_load_concurrency"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		AgentName:            "agent",
		MaxMemories:          1000,
		DefaultMinRelevance:  0.3,
		DefaultMaxResults:    5,
		IndexLoadConcurrency: 4,
	}
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Store) { s.metrics = c }
}

// Store is one agent's long-term memory: durable records plus a
// process-local vector index for similarity retrieval.
type Store struct {
	config  Config
	emb     embedding.Embedder
	index   VectorIndex
	records RecordStore
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics *metrics.Collector
	now     func() time.Time
}

// NewStore wires a memory store from its parts.
func NewStore(cfg Config, emb embedding.Embedder, index VectorIndex, records RecordStore, logger *zap.Logger, opts ...Option) (*Store, error) {
	if emb == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if index == nil {
		return nil, fmt.Errorf("vector index is required")
	}
	if records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AgentName == "" {
		cfg.AgentName = DefaultConfig().AgentName
	}
	if cfg.MaxMemories <= 0 {
		cfg.MaxMemories = DefaultConfig().MaxMemories
	}
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = DefaultConfig().DefaultMaxResults
	}
	if cfg.DefaultMinRelevance <= 0 {
		cfg.DefaultMinRelevance = DefaultConfig().DefaultMinRelevance
	}
	if cfg.IndexLoadConcurrency <= 0 {
		cfg.IndexLoadConcurrency = DefaultConfig().IndexLoadConcurrency
	}

	s := &Store{
		config:  cfg,
		emb:     emb,
		index:   index,
		records: records,
		logger:  logger.With(zap.String("component", "memory_store"), zap.String("agent", cfg.AgentName)),
		tracer:  otel.Tracer("github.com/promptmesh/contextcore/memory"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// StoreInteraction persists one user/agent exchange as a conversation
// record. importance <= 0 means estimate it from the user message and
// tool usage.
func (s *Store) StoreInteraction(ctx context.Context, userID, userMessage, agentResponse string, importance float64, toolsUsed []string) (*types.MemoryRecord, error) {
	if importance <= 0 {
		importance = estimateImportance(userMessage, len(toolsUsed) > 0)
	}
	rec := &types.MemoryRecord{
		ID:         s.newID(),
		AgentID:    s.config.AgentName,
		UserID:     userID,
		Type:       types.MemoryConversation,
		Content:    "User: " + userMessage + "\nAgent: " + agentResponse,
		Importance: types.ClampUnit(importance),
		CreatedAt:  s.now(),
	}
	if len(toolsUsed) > 0 {
		rec.Metadata = map[string]any{"tools_used": toolsUsed}
	}
	return rec, s.store(ctx, rec)
}

// StoreFact persists a standalone fact. importance <= 0 means estimate it
// from the content.
func (s *Store) StoreFact(ctx context.Context, userID, fact string, importance float64, metadata map[string]any) (*types.MemoryRecord, error) {
	if importance <= 0 {
		importance = estimateImportance(fact, false)
	}
	rec := &types.MemoryRecord{
		ID:         s.newID(),
		AgentID:    s.config.AgentName,
		UserID:     userID,
		Type:       types.MemoryFact,
		Content:    fact,
		Importance: types.ClampUnit(importance),
		Metadata:   metadata,
		CreatedAt:  s.now(),
	}
	return rec, s.store(ctx, rec)
}

// StorePreference persists a user preference. importance <= 0 falls back
// to the preference default.
func (s *Store) StorePreference(ctx context.Context, userID, preference string, importance float64, metadata map[string]any) (*types.MemoryRecord, error) {
	if importance <= 0 {
		importance = preferenceImportance
	}
	rec := &types.MemoryRecord{
		ID:         s.newID(),
		AgentID:    s.config.AgentName,
		UserID:     userID,
		Type:       types.MemoryPreference,
		Content:    preference,
		Importance: types.ClampUnit(importance),
		Metadata:   metadata,
		CreatedAt:  s.now(),
	}
	return rec, s.store(ctx, rec)
}

func (s *Store) newID() string {
	return s.config.AgentName + "-" + uuid.NewString()
}

// store embeds, persists and indexes a record. The record write is rolled
// back if indexing fails, so a stored record is always retrievable.
func (s *Store) store(ctx context.Context, rec *types.MemoryRecord) error {
	ctx, span := s.tracer.Start(ctx, "memory.store",
		trace.WithAttributes(attribute.String("memory.type", string(rec.Type))))
	defer span.End()
	start := s.now()

	err := s.persistAndIndex(ctx, rec)
	s.metrics.MemoryOp("store", err, s.now().Sub(start))
	if err != nil {
		s.logger.Error("memory store failed",
			zap.String("type", string(rec.Type)), zap.Error(err))
		return err
	}

	s.logger.Debug("memory stored",
		zap.String("id", rec.ID),
		zap.String("type", string(rec.Type)),
		zap.Float64("importance", rec.Importance))

	// The record is durable and indexed at this point; a pruning failure
	// is not a failed write.
	if err := s.enforceCapacity(ctx); err != nil {
		s.logger.Error("capacity enforcement failed", zap.Error(err))
	}
	return nil
}

func (s *Store) persistAndIndex(ctx context.Context, rec *types.MemoryRecord) error {
	vec, err := s.emb.Embed(ctx, rec.Content)
	if err != nil {
		return types.NewError(types.ErrEmbeddingFailed, "failed to embed memory content").WithCause(err)
	}
	rec.Embedding = vec

	if err := s.records.Put(ctx, rec); err != nil {
		return types.NewError(types.ErrWriteFailed, "failed to persist memory record").WithCause(err)
	}

	meta := map[string]any{
		"agent_id": rec.AgentID,
		"type":     string(rec.Type),
	}
	if rec.UserID != "" {
		meta["user_id"] = rec.UserID
	}
	if err := s.index.Upsert(ctx, rec.ID, vec, meta); err != nil {
		if delErr := s.records.Delete(ctx, rec.ID); delErr != nil {
			s.logger.Warn("rollback of unindexed record failed",
				zap.String("id", rec.ID), zap.Error(delErr))
		}
		return types.NewError(types.ErrWriteFailed, "failed to index memory record").WithCause(err)
	}
	return nil
}

// RetrieveOptions narrow a RetrieveRelevant call. Zero values take the
// store's configured defaults.
type RetrieveOptions struct {
	MaxResults   int
	MinRelevance float64
	UserID       string
	Type         types.MemoryType
}

// RetrieveRelevant returns the memories most similar to the query, sorted
// by relevance, importance, then ID. Retrieval failures degrade to an empty
// result so a broken memory backend never takes the caller down.
func (s *Store) RetrieveRelevant(ctx context.Context, query string, opts RetrieveOptions) []*types.MemoryRecord {
	ctx, span := s.tracer.Start(ctx, "memory.retrieve")
	defer span.End()
	start := s.now()

	if opts.MaxResults <= 0 {
		opts.MaxResults = s.config.DefaultMaxResults
	}
	if opts.MinRelevance <= 0 {
		opts.MinRelevance = s.config.DefaultMinRelevance
	}

	recs, err := s.retrieve(ctx, query, opts)
	s.metrics.MemoryOp("retrieve", err, s.now().Sub(start))
	if err != nil {
		s.logger.Error("memory retrieval failed", zap.Error(err))
		return []*types.MemoryRecord{}
	}

	s.metrics.RetrievalResults(len(recs))
	return recs
}

func (s *Store) retrieve(ctx context.Context, query string, opts RetrieveOptions) ([]*types.MemoryRecord, error) {
	vec, err := s.emb.Embed(ctx, query)
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingFailed, "failed to embed query").WithCause(err)
	}

	filter := map[string]any{"agent_id": s.config.AgentName}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	if opts.UserID != "" {
		filter["user_id"] = opts.UserID
	}

	// Overfetch so relevance filtering can still fill MaxResults.
	matches, err := s.index.Search(ctx, vec, opts.MaxResults*2, filter)
	if err != nil {
		return nil, types.NewError(types.ErrRetrievalFailed, "index search failed").WithCause(err)
	}

	recs := make([]*types.MemoryRecord, 0, len(matches))
	for _, m := range matches {
		rel := types.ClampUnit((1 + m.Score) / 2)
		if rel < opts.MinRelevance {
			continue
		}
		rec, err := s.records.Get(ctx, m.ID)
		if err != nil {
			// Index entry without a record; stale after external deletes.
			s.logger.Warn("indexed record missing from store", zap.String("id", m.ID))
			continue
		}
		rec.Relevance = rel
		recs = append(recs, rec)
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Relevance != recs[j].Relevance {
			return recs[i].Relevance > recs[j].Relevance
		}
		if recs[i].Importance != recs[j].Importance {
			return recs[i].Importance > recs[j].Importance
		}
		return recs[i].ID < recs[j].ID
	})

	if len(recs) > opts.MaxResults {
		recs = recs[:opts.MaxResults]
	}
	return recs, nil
}

// GetRecent returns records created within the past given hours, newest
// first, optionally limited to the listed types.
func (s *Store) GetRecent(ctx context.Context, hours, maxResults int, memTypes ...types.MemoryType) ([]*types.MemoryRecord, error) {
	if hours <= 0 {
		hours = 24
	}
	if maxResults <= 0 {
		maxResults = s.config.DefaultMaxResults
	}
	cutoff := s.now().Add(-time.Duration(hours) * time.Hour)

	filter := RecordFilter{AgentID: s.config.AgentName, CreatedAfter: &cutoff}
	if len(memTypes) == 1 {
		filter.Type = memTypes[0]
		filter.Limit = maxResults
	}

	recs, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, types.NewError(types.ErrRetrievalFailed, "failed to list recent memories").WithCause(err)
	}

	if len(memTypes) > 1 {
		wanted := make(map[types.MemoryType]bool, len(memTypes))
		for _, t := range memTypes {
			wanted[t] = true
		}
		filtered := recs[:0]
		for _, rec := range recs {
			if wanted[rec.Type] {
				filtered = append(filtered, rec)
			}
		}
		recs = filtered
	}
	if len(recs) > maxResults {
		recs = recs[:maxResults]
	}
	return recs, nil
}

// UpdateImportance sets a record's importance, clamped to [0,1].
func (s *Store) UpdateImportance(ctx context.Context, id string, importance float64) error {
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return err
	}
	rec.Importance = types.ClampUnit(importance)
	return s.records.Put(ctx, rec)
}

// Delete removes a record from both the record store and the index.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}
	return s.index.Delete(ctx, id)
}

// Stats summarizes the agent's stored memories.
func (s *Store) Stats(ctx context.Context) (*types.MemoryStats, error) {
	recs, err := s.records.List(ctx, RecordFilter{AgentID: s.config.AgentName})
	if err != nil {
		return nil, err
	}

	stats := &types.MemoryStats{
		TotalRecords: len(recs),
		ByType:       make(map[string]int),
	}
	for i, rec := range recs {
		stats.ByType[string(rec.Type)]++
		switch {
		case rec.Importance < 0.4:
			stats.ByImportance.Low++
		case rec.Importance < 0.7:
			stats.ByImportance.Medium++
		default:
			stats.ByImportance.High++
		}
		if i == 0 || rec.CreatedAt.After(stats.NewestRecord) {
			stats.NewestRecord = rec.CreatedAt
		}
		if i == 0 || rec.CreatedAt.Before(stats.OldestRecord) {
			stats.OldestRecord = rec.CreatedAt
		}
	}
	return stats, nil
}

// Consolidate prunes low-importance records older than maxAgeDays. Within
// each memory type, only the top few by importance survive; ties keep the
// newer record. Returns the number of records deleted.
func (s *Store) Consolidate(ctx context.Context, maxAgeDays int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "memory.consolidate")
	defer span.End()
	start := s.now()

	deleted, err := s.consolidate(ctx, maxAgeDays)
	s.metrics.MemoryOp("consolidate", err, s.now().Sub(start))
	if err != nil {
		return deleted, err
	}
	if deleted > 0 {
		s.logger.Info("memories consolidated", zap.Int("deleted", deleted))
	}
	return deleted, nil
}

func (s *Store) consolidate(ctx context.Context, maxAgeDays int) (int, error) {
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	cutoff := s.now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)

	recs, err := s.records.List(ctx, RecordFilter{AgentID: s.config.AgentName, CreatedBefore: &cutoff})
	if err != nil {
		return 0, err
	}

	groups := make(map[types.MemoryType][]*types.MemoryRecord)
	for _, rec := range recs {
		if rec.Importance >= consolidationImportanceCeiling {
			continue
		}
		groups[rec.Type] = append(groups[rec.Type], rec)
	}

	deleted := 0
	for _, group := range groups {
		if len(group) <= consolidationKeep {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if group[i].Importance != group[j].Importance {
				return group[i].Importance > group[j].Importance
			}
			return group[i].CreatedAt.After(group[j].CreatedAt)
		})
		for _, victim := range group[consolidationKeep:] {
			if err := s.Delete(ctx, victim.ID); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
	return deleted, nil
}

// enforceCapacity evicts records beyond MaxMemories, lowest importance
// first and oldest first within equal importance.
func (s *Store) enforceCapacity(ctx context.Context) error {
	count, err := s.records.Count(ctx, s.config.AgentName)
	if err != nil {
		return err
	}
	excess := count - s.config.MaxMemories
	if excess <= 0 {
		return nil
	}

	recs, err := s.records.List(ctx, RecordFilter{AgentID: s.config.AgentName})
	if err != nil {
		return err
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Importance != recs[j].Importance {
			return recs[i].Importance < recs[j].Importance
		}
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
	if excess > len(recs) {
		excess = len(recs)
	}

	for _, victim := range recs[:excess] {
		if err := s.Delete(ctx, victim.ID); err != nil {
			return err
		}
		s.metrics.MemoryOp("evict", nil, 0)
		s.logger.Debug("memory evicted over capacity",
			zap.String("id", victim.ID),
			zap.Float64("importance", victim.Importance))
	}
	return nil
}

// LoadIndex rebuilds the vector index from persisted records. Records
// without a stored embedding are re-embedded, with bounded concurrency.
func (s *Store) LoadIndex(ctx context.Context) error {
	recs, err := s.records.List(ctx, RecordFilter{AgentID: s.config.AgentName})
	if err != nil {
		return types.NewError(types.ErrRetrievalFailed, "failed to list records for index load").WithCause(err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.IndexLoadConcurrency)
	for _, rec := range recs {
		rec := rec
		g.Go(func() error {
			vec := rec.Embedding
			if len(vec) == 0 {
				var err error
				vec, err = s.emb.Embed(ctx, rec.Content)
				if err != nil {
					return types.NewError(types.ErrEmbeddingFailed, "failed to re-embed record "+rec.ID).WithCause(err)
				}
			}
			meta := map[string]any{
				"agent_id": rec.AgentID,
				"type":     string(rec.Type),
			}
			if rec.UserID != "" {
				meta["user_id"] = rec.UserID
			}
			return s.index.Upsert(ctx, rec.ID, vec, meta)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info("memory index loaded", zap.Int("records", len(recs)))
	return nil
}
