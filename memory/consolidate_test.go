package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptmesh/contextcore/types"
)

func TestConsolidateKeepsTopThreePerType(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newTestStore(t, Config{})
	old := fx.clock.Now().Add(-60 * 24 * time.Hour)

	// Ten old low-importance conversations with distinct scores.
	for i := 0; i < 10; i++ {
		require.NoError(t, fx.records.Put(ctx, &types.MemoryRecord{
			ID:         fmt.Sprintf("helper-conv-%d", i),
			AgentID:    "helper",
			Type:       types.MemoryConversation,
			Content:    "chit chat",
			Importance: 0.30 + float64(i)*0.02,
			CreatedAt:  old.Add(time.Duration(i) * time.Minute),
		}))
	}

	deleted, err := fx.store.Consolidate(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 7, deleted)

	recs, err := fx.records.List(ctx, RecordFilter{AgentID: "helper"})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for _, rec := range recs {
		// Top three by importance: 0.48, 0.46, 0.44.
		assert.GreaterOrEqual(t, rec.Importance, 0.44-1e-9)
	}
}

func TestConsolidateSparesHighImportanceAndRecent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newTestStore(t, Config{})
	old := fx.clock.Now().Add(-60 * 24 * time.Hour)

	for i := 0; i < 5; i++ {
		require.NoError(t, fx.records.Put(ctx, &types.MemoryRecord{
			ID:         fmt.Sprintf("helper-old-%d", i),
			AgentID:    "helper",
			Type:       types.MemoryFact,
			Content:    "background detail",
			Importance: 0.3,
			CreatedAt:  old.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, fx.records.Put(ctx, &types.MemoryRecord{
		ID: "helper-keystone", AgentID: "helper", Type: types.MemoryFact,
		Content: "master key location", Importance: 0.9, CreatedAt: old,
	}))
	require.NoError(t, fx.records.Put(ctx, &types.MemoryRecord{
		ID: "helper-recent", AgentID: "helper", Type: types.MemoryFact,
		Content: "fresh detail", Importance: 0.3, CreatedAt: fx.clock.Now(),
	}))

	deleted, err := fx.store.Consolidate(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = fx.records.Get(ctx, "helper-keystone")
	assert.NoError(t, err)
	_, err = fx.records.Get(ctx, "helper-recent")
	assert.NoError(t, err)
}

func TestConsolidateTieKeepsNewer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newTestStore(t, Config{})
	old := fx.clock.Now().Add(-60 * 24 * time.Hour)

	for i := 0; i < 4; i++ {
		require.NoError(t, fx.records.Put(ctx, &types.MemoryRecord{
			ID:         fmt.Sprintf("helper-tied-%d", i),
			AgentID:    "helper",
			Type:       types.MemoryConversation,
			Content:    "equal footing",
			Importance: 0.4,
			CreatedAt:  old.Add(time.Duration(i) * time.Hour),
		}))
	}

	deleted, err := fx.store.Consolidate(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	// The oldest of the tied group is the one dropped.
	_, err = fx.records.Get(ctx, "helper-tied-0")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestConsolidateSmallGroupsUntouched(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newTestStore(t, Config{})
	old := fx.clock.Now().Add(-60 * 24 * time.Hour)

	for i := 0; i < 3; i++ {
		require.NoError(t, fx.records.Put(ctx, &types.MemoryRecord{
			ID:         fmt.Sprintf("helper-few-%d", i),
			AgentID:    "helper",
			Type:       types.MemoryPreference,
			Content:    "small group",
			Importance: 0.3,
			CreatedAt:  old,
		}))
	}

	deleted, err := fx.store.Consolidate(ctx, 30)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
