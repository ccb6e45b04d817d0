package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fishyu-mushroom/Chaterm-sub004/internal/models"
)

func TestLastSequenceID_DefaultZero(t *testing.T) {
	store := newTestStore(t)

	seq, err := store.LastSequenceID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}

func TestLastSequenceID_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetLastSequenceID(ctx, 12345))

	seq, err := store.LastSequenceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), seq)

	require.NoError(t, store.SetLastSequenceID(ctx, 12346))
	seq, err = store.LastSequenceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12346), seq)
}

func TestLastSyncTime(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ts, err := store.LastSyncTime(ctx, models.SyncTableAssets)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	require.NoError(t, store.SetLastSyncTime(ctx, models.SyncTableAssets, now))

	ts, err = store.LastSyncTime(ctx, models.SyncTableAssets)
	require.NoError(t, err)
	assert.Equal(t, now, ts.UTC())

	// Other tables are unaffected.
	ts, err = store.LastSyncTime(ctx, models.SyncTableChains)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}
