package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fishyu-mushroom/Chaterm-sub004/internal/models"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/remote"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/storage/sqlite"
	"github.com/fishyu-mushroom/Chaterm-sub004/pkg/api"
)

// insertHistoricalAssets writes assets under the remote-apply guard so they
// exist without change-log records, like data created before sync was
// enabled.
func insertHistoricalAssets(t *testing.T, store *sqlite.Store, n int) {
	t.Helper()
	err := store.WithRemoteApplyGuard(context.Background(), func(ctx context.Context) error {
		for i := 0; i < n; i++ {
			if err := store.UpsertAsset(ctx, &models.Asset{
				UUID:     fmt.Sprintf("old-uuid-%03d", i),
				Label:    fmt.Sprintf("legacy-%d", i),
				AssetIP:  fmt.Sprintf("10.1.0.%d", i+1),
				Username: "root",
				Port:     22,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestUploadHistorical_NothingToDo(t *testing.T) {
	store := newTestStore(t)
	client := &remote.ClientAPIMock{}
	eng := newTestEngine(t, store, client)

	n, err := eng.UploadHistorical(context.Background(), models.SyncTableAssets, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, client.IncrementalSyncCalls())
}

func TestUploadHistorical_PagesWithProgress(t *testing.T) {
	store := newTestStore(t)
	insertHistoricalAssets(t, store, 5)

	client := &remote.ClientAPIMock{
		IncrementalSyncFunc: func(ctx context.Context, tableName string, changes []api.ChangeUpload) (*api.IncrementalSyncResponse, error) {
			for _, c := range changes {
				assert.Equal(t, models.OpInsert, c.OperationType)
				assert.NotEmpty(t, c.ChangeData)
			}
			return &api.IncrementalSyncResponse{SyncedCount: len(changes)}, nil
		},
	}
	eng := newTestEngine(t, store, client, WithUploadPageSize(2))

	var snapshots []Progress
	n, err := eng.UploadHistorical(context.Background(), models.SyncTableAssets,
		func(p Progress) { snapshots = append(snapshots, p) })
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.Len(t, snapshots, 3)
	assert.Equal(t, Progress{Current: 2, Total: 5, Percentage: 40}, snapshots[0])
	assert.Equal(t, Progress{Current: 4, Total: 5, Percentage: 80}, snapshots[1])
	assert.Equal(t, Progress{Current: 5, Total: 5, Percentage: 100}, snapshots[2])

	// The backfilled rows are no longer historical and not pending either.
	hist, err := store.HistoricalDataCount(context.Background(), models.SyncTableAssets)
	require.NoError(t, err)
	assert.Zero(t, hist)

	pending, err := store.TotalPendingCount(context.Background(), models.SyncTableAssets)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestUploadHistorical_NetworkErrorResumable(t *testing.T) {
	store := newTestStore(t)
	insertHistoricalAssets(t, store, 4)

	calls := 0
	client := &remote.ClientAPIMock{
		IncrementalSyncFunc: func(ctx context.Context, tableName string, changes []api.ChangeUpload) (*api.IncrementalSyncResponse, error) {
			calls++
			if calls == 2 {
				return nil, fmt.Errorf("%w: connection reset", remote.ErrNetworkUnavailable)
			}
			return &api.IncrementalSyncResponse{SyncedCount: len(changes)}, nil
		},
	}
	eng := newTestEngine(t, store, client, WithUploadPageSize(2))

	n, err := eng.UploadHistorical(context.Background(), models.SyncTableAssets, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrNetworkUnavailable)
	assert.Equal(t, 2, n)

	// Only the unacknowledged remainder is still historical.
	hist, err := store.HistoricalDataCount(context.Background(), models.SyncTableAssets)
	require.NoError(t, err)
	assert.Equal(t, 2, hist)

	// A second run picks up where the first stopped.
	n, err = eng.UploadHistorical(context.Background(), models.SyncTableAssets, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hist, err = store.HistoricalDataCount(context.Background(), models.SyncTableAssets)
	require.NoError(t, err)
	assert.Zero(t, hist)
}
