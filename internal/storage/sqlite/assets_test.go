package sqlite

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fishyu-mushroom/Chaterm-sub004/internal/models"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/storage"
)

func TestUpsertAsset_InsertThenGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	asset := newTestAsset()
	require.NoError(t, store.UpsertAsset(ctx, asset))

	got, err := store.GetAssetByUUID(ctx, asset.UUID)
	require.NoError(t, err)
	assert.Equal(t, asset.UUID, got.UUID)
	assert.Equal(t, "build server", got.Label)
	assert.Equal(t, "10.0.0.7", got.AssetIP)
	assert.Equal(t, int64(1), got.Version)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestUpsertAsset_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	asset := newTestAsset()
	asset.Version = 5
	require.NoError(t, store.UpsertAsset(ctx, asset))
	require.NoError(t, store.UpsertAsset(ctx, asset))

	var count int
	require.NoError(t, store.DB().QueryRow(
		`SELECT COUNT(*) FROM t_assets WHERE uuid = ?`, asset.UUID).Scan(&count))
	assert.Equal(t, 1, count, "re-applying the same row must not duplicate it")

	got, err := store.GetAssetByUUID(ctx, asset.UUID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Version)
}

func TestUpsertAsset_VersionNeverRegresses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	asset := newTestAsset()
	asset.Version = 9
	require.NoError(t, store.UpsertAsset(ctx, asset))

	stale := *asset
	stale.Version = 3
	stale.Label = "stale label"
	require.NoError(t, store.UpsertAsset(ctx, &stale))

	got, err := store.GetAssetByUUID(ctx, asset.UUID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.Version, "lower incoming version must not overwrite")
	assert.Equal(t, "stale label", got.Label, "non-version fields still follow last write")
}

func TestUpsertAsset_NaturalKeyReconciliation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	local := newTestAsset()
	require.NoError(t, store.UpsertAsset(ctx, local))

	// Same host from another device under a different uuid: the existing
	// row adopts the incoming uuid instead of duplicating.
	remote := newTestAsset()
	remote.UUID = uuid.New().String()
	require.NoError(t, store.UpsertAsset(ctx, remote))

	var count int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM t_assets`).Scan(&count))
	assert.Equal(t, 1, count)

	_, err := store.GetAssetByUUID(ctx, local.UUID)
	assert.ErrorIs(t, err, storage.ErrAssetNotFound)

	got, err := store.GetAssetByUUID(ctx, remote.UUID)
	require.NoError(t, err)
	assert.Equal(t, remote.UUID, got.UUID)
}

func TestUpsertAssetChain_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chain := newTestChain()
	require.NoError(t, store.UpsertAssetChain(ctx, chain))

	got, err := store.GetAssetChainByUUID(ctx, chain.UUID)
	require.NoError(t, err)
	assert.Equal(t, chain.ChainName, got.ChainName)
	assert.Equal(t, chain.PrivateKey, got.PrivateKey)
	assert.Equal(t, int64(1), got.Version)
}

func TestDelete_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.DeleteAssetByUUID(ctx, "missing"), storage.ErrAssetNotFound)
	assert.ErrorIs(t, store.DeleteAssetChainByUUID(ctx, "missing"), storage.ErrChainNotFound)
}

func TestSetVersion_UnknownTable(t *testing.T) {
	store := newTestStore(t)
	err := store.SetVersion(context.Background(), "t_bogus", "u", 1)
	require.ErrorIs(t, err, storage.ErrUnknownTable)
}

func TestUpsert_NotifiesChangeNotifier(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var notified []string
	store.SetChangeNotifier(storage.ChangeNotifierFunc(func(table string) {
		notified = append(notified, table)
	}))

	require.NoError(t, store.UpsertAsset(ctx, newTestAsset()))
	require.NoError(t, store.UpsertAssetChain(ctx, newTestChain()))
	assert.Equal(t, []string{models.SyncTableAssets, models.SyncTableChains}, notified)

	// Writes under the guard must not kick off a sync: the write is an
	// echo of a server change.
	notified = nil
	err := store.WithRemoteApplyGuard(ctx, func(ctx context.Context) error {
		return store.UpsertAsset(ctx, newTestAsset())
	})
	require.NoError(t, err)
	assert.Empty(t, notified)
}
