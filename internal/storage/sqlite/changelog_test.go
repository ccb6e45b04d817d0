package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fishyu-mushroom/Chaterm-sub004/internal/models"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/storage"
)

func TestPendingChanges_OldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Insert change records with explicit timestamps to pin the order.
	stmts := []struct {
		id, created string
	}{
		{"ch-2", "2025-02-01T00:00:00.000Z"},
		{"ch-1", "2025-01-01T00:00:00.000Z"},
		{"ch-3", "2025-03-01T00:00:00.000Z"},
	}
	for _, st := range stmts {
		_, err := store.DB().Exec(
			`INSERT INTO t_change_log (id, table_name, record_uuid, operation_type, change_data, created_at)
			 VALUES (?, 't_assets_sync', 'rec-1', 'UPDATE', '{}', ?)`, st.id, st.created)
		require.NoError(t, err)
	}

	pending, err := store.PendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "ch-1", pending[0].ID)
	assert.Equal(t, "ch-2", pending[1].ID)
	assert.Equal(t, "ch-3", pending[2].ID)
}

func TestPendingChangesPage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.UpsertAsset(ctx, newTestAsset()))
	}
	require.NoError(t, store.UpsertAssetChain(ctx, newTestChain()))

	total, err := store.TotalPendingCount(ctx, models.SyncTableAssets)
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	page1, err := store.PendingChangesPage(ctx, models.SyncTableAssets, 2, 0)
	require.NoError(t, err)
	require.Len(t, page1, 2)

	page2, err := store.PendingChangesPage(ctx, models.SyncTableAssets, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)

	page3, err := store.PendingChangesPage(ctx, models.SyncTableAssets, 2, 4)
	require.NoError(t, err)
	require.Len(t, page3, 1)

	// Pages never overlap.
	seen := map[string]bool{}
	for _, rec := range append(append(page1, page2...), page3...) {
		assert.False(t, seen[rec.ID])
		seen[rec.ID] = true
		assert.Equal(t, models.SyncTableAssets, rec.TableName)
	}
}

func TestMarkChangesSynced_Convergence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, store.UpsertAsset(ctx, newTestAsset()))
	}

	pending, err := store.PendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 4)

	marked := []string{pending[0].ID, pending[2].ID}
	require.NoError(t, store.MarkChangesSynced(ctx, marked))

	remaining, err := store.PendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 2)

	// Exactly the unmarked ids remain, no others.
	assert.Equal(t, pending[1].ID, remaining[0].ID)
	assert.Equal(t, pending[3].ID, remaining[1].ID)
}

func TestMarkChangesFailed_KeepsReason(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertAsset(ctx, newTestAsset()))
	pending, err := store.PendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, store.MarkChangesFailed(ctx, []string{pending[0].ID}, "version conflict"))

	var status, reason string
	require.NoError(t, store.DB().QueryRow(
		`SELECT sync_status, error_message FROM t_change_log WHERE id = ?`,
		pending[0].ID).Scan(&status, &reason))
	assert.Equal(t, models.StatusFailed, status)
	assert.Equal(t, "version conflict", reason)

	// Failed records are out of the pending set; they are not retried.
	remaining, err := store.PendingChanges(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestMarkChanges_EmptyIDs(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.MarkChangesSynced(context.Background(), nil))
}

func TestMarkChanges_UnknownIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Ids the server invented match no change record; silently succeeding
	// here would let a bad acknowledgment pass as progress.
	err := store.MarkChangesSynced(ctx, []string{"no-such-id"})
	require.ErrorIs(t, err, storage.ErrRecordNotFound)

	err = store.MarkChangesFailed(ctx, []string{"no-such-id"}, "whatever")
	require.ErrorIs(t, err, storage.ErrRecordNotFound)

	// A mix of known and unknown ids still marks the known ones.
	require.NoError(t, store.UpsertAsset(ctx, newTestAsset()))
	pending, err := store.PendingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, store.MarkChangesSynced(ctx, []string{pending[0].ID, "no-such-id"}))
	remaining, err := store.PendingChanges(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestHistoricalDataCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Rows written under the guard have no change-log record: they look
	// exactly like data created before tracking was enabled.
	err := store.WithRemoteApplyGuard(ctx, func(ctx context.Context) error {
		for i := 0; i < 3; i++ {
			if err := store.UpsertAsset(ctx, newTestAsset()); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	count, err := store.HistoricalDataCount(ctx, models.SyncTableAssets)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// A tracked row is not historical.
	require.NoError(t, store.UpsertAsset(ctx, newTestAsset()))
	count, err = store.HistoricalDataCount(ctx, models.SyncTableAssets)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = store.HistoricalDataCount(ctx, models.SyncTableChains)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestHistoricalDataCount_UnknownTable(t *testing.T) {
	store := newTestStore(t)
	_, err := store.HistoricalDataCount(context.Background(), "t_bogus")
	require.ErrorIs(t, err, storage.ErrUnknownTable)
}

func TestHistoricalRecords_SynthesizesInserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithRemoteApplyGuard(ctx, func(ctx context.Context) error {
		for i := 0; i < 3; i++ {
			if err := store.UpsertAsset(ctx, newTestAsset()); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	recs, err := store.HistoricalRecords(ctx, models.SyncTableAssets, 2, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, models.SyncTableAssets, rec.TableName)
		assert.Equal(t, models.OpInsert, rec.OperationType)
		assert.Equal(t, models.StatusPending, rec.SyncStatus)

		// The synthesized payload is the full entity image.
		data, err := rec.DecodeData()
		require.NoError(t, err)
		assert.Equal(t, rec.RecordUUID, data["uuid"])
	}

	// Synthesizing does not write the change log.
	count, err := store.HistoricalDataCount(ctx, models.SyncTableAssets)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRecordSyncedChanges_RemovesFromHistoricalSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithRemoteApplyGuard(ctx, func(ctx context.Context) error {
		for i := 0; i < 2; i++ {
			if err := store.UpsertAsset(ctx, newTestAsset()); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	recs, err := store.HistoricalRecords(ctx, models.SyncTableAssets, 10, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	require.NoError(t, store.RecordSyncedChanges(ctx, recs))

	// Recorded rows stop counting as historical and never become pending.
	count, err := store.HistoricalDataCount(ctx, models.SyncTableAssets)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	pending, err := store.TotalPendingCount(ctx, models.SyncTableAssets)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)

	// Empty input is a no-op.
	require.NoError(t, store.RecordSyncedChanges(ctx, nil))
}
