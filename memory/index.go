package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/promptmesh/contextcore/embedding"
)

// Match is a single similarity hit returned by a VectorIndex search.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// VectorIndex is the process-local similarity index over memory embeddings.
// Implementations must be safe for concurrent use.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error
	Search(ctx context.Context, query []float32, topK int, filter map[string]any) ([]Match, error)
	Delete(ctx context.Context, ids ...string) error
}

type indexEntry struct {
	vector   []float32
	metadata map[string]any
}

// InMemoryIndex is a brute-force cosine index over cloned vectors. It
// supports metadata filtering by equality. Dimension is validated when
// configured > 0.
type InMemoryIndex struct {
	mu        sync.RWMutex
	items     map[string]indexEntry
	dimension int
}

// NewInMemoryIndex creates an empty index. dimension 0 disables the
// dimension check.
func NewInMemoryIndex(dimension int) *InMemoryIndex {
	return &InMemoryIndex{
		items:     make(map[string]indexEntry),
		dimension: dimension,
	}
}

func (x *InMemoryIndex) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("id is required")
	}
	if len(vector) == 0 {
		return fmt.Errorf("vector is required")
	}
	if x.dimension > 0 && len(vector) != x.dimension {
		return fmt.Errorf("vector dimension mismatch: got %d want %d", len(vector), x.dimension)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.items[id] = indexEntry{
		vector:   append([]float32(nil), vector...),
		metadata: cloneMeta(metadata),
	}
	return nil
}

func (x *InMemoryIndex) Search(ctx context.Context, query []float32, topK int, filter map[string]any) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}
	if x.dimension > 0 && len(query) != x.dimension {
		return nil, fmt.Errorf("query vector dimension mismatch: got %d want %d", len(query), x.dimension)
	}
	if topK <= 0 {
		return []Match{}, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	results := make([]Match, 0, len(x.items))
	for id, ent := range x.items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !matchesFilter(ent.metadata, filter) {
			continue
		}
		results = append(results, Match{
			ID:       id,
			Score:    embedding.Cosine(query, ent.vector),
			Metadata: cloneMeta(ent.metadata),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func (x *InMemoryIndex) Delete(ctx context.Context, ids ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	for _, id := range ids {
		delete(x.items, id)
	}
	return nil
}

// Len reports the number of indexed vectors.
func (x *InMemoryIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.items)
}

func matchesFilter(metadata, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	if metadata == nil {
		return false
	}
	for k, v := range filter {
		mv, ok := metadata[k]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(mv, v) {
			return false
		}
	}
	return true
}

func cloneMeta(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ VectorIndex = (*InMemoryIndex)(nil)
