package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIndexSearchOrdersByScore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := NewInMemoryIndex(3)

	require.NoError(t, idx.Upsert(ctx, "exact", []float32{1, 0, 0}, nil))
	require.NoError(t, idx.Upsert(ctx, "close", []float32{0.9, 0.1, 0}, nil))
	require.NoError(t, idx.Upsert(ctx, "orthogonal", []float32{0, 1, 0}, nil))

	matches, err := idx.Search(ctx, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "exact", matches[0].ID)
	assert.Equal(t, "close", matches[1].ID)
	assert.Equal(t, "orthogonal", matches[2].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
}

func TestInMemoryIndexTopK(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := NewInMemoryIndex(0)
	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0}, nil))
	require.NoError(t, idx.Upsert(ctx, "b", []float32{0, 1}, nil))

	matches, err := idx.Search(ctx, []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].ID)

	matches, err = idx.Search(ctx, []float32{1, 0}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestInMemoryIndexMetadataFilter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := NewInMemoryIndex(0)
	require.NoError(t, idx.Upsert(ctx, "mine", []float32{1, 0}, map[string]any{"agent_id": "alpha"}))
	require.NoError(t, idx.Upsert(ctx, "theirs", []float32{1, 0}, map[string]any{"agent_id": "beta"}))
	require.NoError(t, idx.Upsert(ctx, "unmarked", []float32{1, 0}, nil))

	matches, err := idx.Search(ctx, []float32{1, 0}, 10, map[string]any{"agent_id": "alpha"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "mine", matches[0].ID)
}

func TestInMemoryIndexUpsertReplaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := NewInMemoryIndex(0)
	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0}, nil))
	require.NoError(t, idx.Upsert(ctx, "a", []float32{0, 1}, nil))
	assert.Equal(t, 1, idx.Len())

	matches, err := idx.Search(ctx, []float32{0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
}

func TestInMemoryIndexDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := NewInMemoryIndex(0)
	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0}, nil))
	require.NoError(t, idx.Upsert(ctx, "b", []float32{0, 1}, nil))

	require.NoError(t, idx.Delete(ctx, "a", "missing"))
	assert.Equal(t, 1, idx.Len())

	matches, err := idx.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].ID)
}

func TestInMemoryIndexDimensionCheck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := NewInMemoryIndex(3)

	assert.Error(t, idx.Upsert(ctx, "bad", []float32{1, 0}, nil))
	_, err := idx.Search(ctx, []float32{1, 0}, 5, nil)
	assert.Error(t, err)

	assert.Error(t, idx.Upsert(ctx, "", []float32{1, 0, 0}, nil))
	assert.Error(t, idx.Upsert(ctx, "nil-vec", nil, nil))
}

func TestInMemoryIndexContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	idx := NewInMemoryIndex(0)
	assert.Error(t, idx.Upsert(ctx, "a", []float32{1}, nil))
	_, err := idx.Search(ctx, []float32{1}, 1, nil)
	assert.Error(t, err)
	assert.Error(t, idx.Delete(ctx, "a"))
}
