package storage

import (
	"context"

	"github.com/fishyu-mushroom/Chaterm-sub004/internal/models"
)

//go:generate moq -out assets_mock.go . AssetStore

// AssetStore exposes entity reads and writes on the synced tables.
//
// Upserts reconcile a natural-key match (ip+user+port+label+type for assets,
// chain name+type for chains) against a uuid match, preferring the
// uuid-identified row. Every local write outside the remote-apply guard is
// captured by the change-log triggers and kicks off an asynchronous
// incremental sync through the configured ChangeNotifier.
type AssetStore interface {
	GetAssetByUUID(ctx context.Context, uuid string) (*models.Asset, error)
	GetAssetChainByUUID(ctx context.Context, uuid string) (*models.AssetChain, error)

	UpsertAsset(ctx context.Context, asset *models.Asset) error
	UpsertAssetChain(ctx context.Context, chain *models.AssetChain) error

	DeleteAssetByUUID(ctx context.Context, uuid string) error
	DeleteAssetChainByUUID(ctx context.Context, uuid string) error

	// SetVersion writes the entity version and updated_at under the
	// remote-apply guard so the write is not re-captured.
	SetVersion(ctx context.Context, table, uuid string, version int64) error

	// BumpVersion increments the entity version under the remote-apply
	// guard and returns the new value.
	BumpVersion(ctx context.Context, table, uuid string) (int64, error)
}

// ChangeNotifier receives a signal after a local mutation that should
// propagate. Implementations must not block: the gateway calls this on the
// write path. Injected at construction time so the storage layer never
// reaches for a process-wide singleton.
type ChangeNotifier interface {
	NotifyLocalChange(table string)
}

// ChangeNotifierFunc adapts a function to the ChangeNotifier interface.
type ChangeNotifierFunc func(table string)

// NotifyLocalChange implements ChangeNotifier.
func (f ChangeNotifierFunc) NotifyLocalChange(table string) { f(table) }
