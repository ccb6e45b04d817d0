// Package engine executes individual sync passes: uploading captured local
// changes, downloading and applying server changes under the remote-apply
// guard, and driving paged full-table downloads.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fishyu-mushroom/Chaterm-sub004/internal/models"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/remote"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/retry"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/storage"
	"github.com/fishyu-mushroom/Chaterm-sub004/pkg/api"
)

const (
	// DefaultSmartThreshold is the pending-change count above which an
	// incremental upload switches from one batched request to paged upload.
	DefaultSmartThreshold = 100

	// DefaultUploadPageSize is the page size for paged uploads.
	DefaultUploadPageSize = 500

	// DefaultDownloadLimit caps one incremental download request.
	DefaultDownloadLimit = 300

	// DefaultFullSyncPageSize is the page size requested for full-sync
	// download sessions.
	DefaultFullSyncPageSize = 500
)

// ErrAmbiguousAck reports an upload acknowledgment that names no change ids
// and does not cover the whole batch. Nothing can be marked synced from
// such a response, so retrying the same page would loop forever.
var ErrAmbiguousAck = errors.New("ambiguous upload acknowledgment")

// Store is the storage surface the engine needs: change log, entity writes
// and sync metadata.
type Store interface {
	storage.ChangeLogStore
	storage.AssetStore
	storage.MetaStore
}

// UploadResult summarizes one incremental upload pass for one table.
type UploadResult struct {
	Uploaded int
	Rejected int
}

// Engine runs one sync pass at a time against one table. It holds no state
// of its own beyond configuration; concurrency control lives with the
// caller.
type Engine struct {
	store  Store
	client remote.ClientAPI
	retry  retry.Policy
	logger *slog.Logger

	smartThreshold   int
	uploadPageSize   int
	downloadLimit    int
	fullSyncPageSize int
}

// Option configures an Engine.
type Option func(*Engine)

// WithSmartThreshold overrides the single-batch/paged upload cutover.
func WithSmartThreshold(n int) Option {
	return func(e *Engine) { e.smartThreshold = n }
}

// WithUploadPageSize overrides the paged-upload page size.
func WithUploadPageSize(n int) Option {
	return func(e *Engine) { e.uploadPageSize = n }
}

// WithDownloadLimit overrides the per-request download limit.
func WithDownloadLimit(n int) Option {
	return func(e *Engine) { e.downloadLimit = n }
}

// WithFullSyncPageSize overrides the full-sync session page size.
func WithFullSyncPageSize(n int) Option {
	return func(e *Engine) { e.fullSyncPageSize = n }
}

// New creates a sync engine.
func New(store Store, client remote.ClientAPI, policy retry.Policy, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:            store,
		client:           client,
		retry:            policy,
		logger:           logger,
		smartThreshold:   DefaultSmartThreshold,
		uploadPageSize:   DefaultUploadPageSize,
		downloadLimit:    DefaultDownloadLimit,
		fullSyncPageSize: DefaultFullSyncPageSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IncrementalSync uploads the table's pending changes. Small backlogs go up
// in one request; large ones are paged. Acknowledged records are marked
// synced, rejected ones failed with the server's reason. Rejected records
// are not retried automatically.
func (e *Engine) IncrementalSync(ctx context.Context, table string) (*UploadResult, error) {
	count, err := e.store.TotalPendingCount(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("count pending changes for %s: %w", table, err)
	}
	if count == 0 {
		return &UploadResult{}, nil
	}

	result := &UploadResult{}
	if count <= e.smartThreshold {
		changes, err := e.store.PendingChangesPage(ctx, table, count, 0)
		if err != nil {
			return nil, fmt.Errorf("read pending changes for %s: %w", table, err)
		}
		if err := e.uploadBatch(ctx, table, changes, result); err != nil {
			return result, err
		}
		e.logger.Debug("incremental sync complete",
			"table", table, "uploaded", result.Uploaded, "rejected", result.Rejected)
		return result, nil
	}

	// Large backlog: upload in pages. Acknowledged records leave the
	// pending set, so every page is read from offset zero.
	for {
		changes, err := e.store.PendingChangesPage(ctx, table, e.uploadPageSize, 0)
		if err != nil {
			return result, fmt.Errorf("read pending changes for %s: %w", table, err)
		}
		if len(changes) == 0 {
			break
		}
		if err := e.uploadBatch(ctx, table, changes, result); err != nil {
			return result, err
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}
	e.logger.Debug("paged incremental sync complete",
		"table", table, "uploaded", result.Uploaded, "rejected", result.Rejected)
	return result, nil
}

func (e *Engine) uploadBatch(ctx context.Context, table string, changes []*models.ChangeRecord, result *UploadResult) error {
	payload := make([]api.ChangeUpload, len(changes))
	for i, c := range changes {
		payload[i] = api.ChangeUpload{
			ID:            c.ID,
			TableName:     c.TableName,
			RecordUUID:    c.RecordUUID,
			OperationType: c.OperationType,
			ChangeData:    c.ChangeData,
			BeforeData:    c.BeforeData,
			CreatedAt:     c.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	}

	var resp *api.IncrementalSyncResponse
	err := e.retry.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		resp, err = e.client.IncrementalSync(ctx, table, payload)
		return err
	})
	if err != nil {
		return fmt.Errorf("upload %d changes for %s: %w", len(changes), table, err)
	}

	syncedIDs := resp.SyncedIDs
	if len(syncedIDs) == 0 && resp.SyncedCount == len(changes) && len(resp.Rejected) == 0 {
		// Older servers acknowledge with a count only.
		syncedIDs = make([]string, len(changes))
		for i, c := range changes {
			syncedIDs[i] = c.ID
		}
	}
	if len(syncedIDs) == 0 && len(resp.Rejected) == 0 {
		// A count-only ack that covers part of the batch names nothing to
		// mark, so the same page would be re-uploaded indefinitely.
		return fmt.Errorf("upload %d changes for %s: server acknowledged %d without ids: %w",
			len(changes), table, resp.SyncedCount, ErrAmbiguousAck)
	}

	if err := e.store.MarkChangesSynced(ctx, syncedIDs); err != nil {
		return fmt.Errorf("mark %d changes synced: %w", len(syncedIDs), err)
	}
	result.Uploaded += len(syncedIDs)

	for _, rej := range resp.Rejected {
		if err := e.store.MarkChangesFailed(ctx, []string{rej.ID}, rej.Reason); err != nil {
			return fmt.Errorf("mark change %s failed: %w", rej.ID, err)
		}
		e.logger.Warn("server rejected change", "table", table, "id", rej.ID, "reason", rej.Reason)
		result.Rejected++
	}
	return nil
}

// DownloadAndApply fetches server changes past the local watermark and
// applies them in server order with the remote-apply guard engaged. The
// watermark advances only after each change is applied, so a crash mid-way
// re-downloads from the last confirmed point.
func (e *Engine) DownloadAndApply(ctx context.Context) (int, error) {
	applied := 0
	for {
		since, err := e.store.LastSequenceID(ctx)
		if err != nil {
			return applied, fmt.Errorf("read download watermark: %w", err)
		}

		var resp *api.GetChangesResponse
		err = e.retry.WithRetry(ctx, func(ctx context.Context) error {
			var err error
			resp, err = e.client.GetChanges(ctx, since, e.downloadLimit)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("download changes since %d: %w", since, err)
		}
		if len(resp.Changes) == 0 {
			// Nothing to apply; still adopt the server's watermark so a
			// fresh device does not look like it never downloaded.
			if resp.LatestSequence > since {
				if err := e.store.SetLastSequenceID(ctx, resp.LatestSequence); err != nil {
					return applied, fmt.Errorf("advance watermark to %d: %w", resp.LatestSequence, err)
				}
			}
			return applied, nil
		}

		err = e.store.WithRemoteApplyGuard(ctx, func(ctx context.Context) error {
			for _, change := range resp.Changes {
				if err := e.applyCloudChange(ctx, change); err != nil {
					return err
				}
				if err := e.store.SetLastSequenceID(ctx, change.SequenceID); err != nil {
					return fmt.Errorf("advance watermark to %d: %w", change.SequenceID, err)
				}
				applied++
			}
			return nil
		})
		if err != nil {
			return applied, err
		}

		if len(resp.Changes) < e.downloadLimit {
			return applied, nil
		}
	}
}

// applyCloudChange applies one server change. Unknown tables are logged and
// skipped so one bad row cannot wedge the download stream. Deletes of
// already-absent rows are treated as applied.
func (e *Engine) applyCloudChange(ctx context.Context, change api.CloudChange) error {
	switch change.TableName {
	case models.SyncTableAssets:
		if change.OperationType == models.OpDelete {
			err := e.store.DeleteAssetByUUID(ctx, change.RecordUUID)
			if err != nil && !errors.Is(err, storage.ErrAssetNotFound) {
				return fmt.Errorf("apply delete %s: %w", change.RecordUUID, err)
			}
			return nil
		}
		var asset models.Asset
		if err := json.Unmarshal(change.ChangeData, &asset); err != nil {
			return fmt.Errorf("decode asset change %d: %w", change.SequenceID, err)
		}
		if asset.UUID == "" {
			asset.UUID = change.RecordUUID
		}
		if change.Version > asset.Version {
			asset.Version = change.Version
		}
		if err := e.store.UpsertAsset(ctx, &asset); err != nil {
			return fmt.Errorf("apply asset change %d: %w", change.SequenceID, err)
		}
		return nil

	case models.SyncTableChains:
		if change.OperationType == models.OpDelete {
			err := e.store.DeleteAssetChainByUUID(ctx, change.RecordUUID)
			if err != nil && !errors.Is(err, storage.ErrChainNotFound) {
				return fmt.Errorf("apply delete %s: %w", change.RecordUUID, err)
			}
			return nil
		}
		var chain models.AssetChain
		if err := json.Unmarshal(change.ChangeData, &chain); err != nil {
			return fmt.Errorf("decode chain change %d: %w", change.SequenceID, err)
		}
		if chain.UUID == "" {
			chain.UUID = change.RecordUUID
		}
		if change.Version > chain.Version {
			chain.Version = change.Version
		}
		if err := e.store.UpsertAssetChain(ctx, &chain); err != nil {
			return fmt.Errorf("apply chain change %d: %w", change.SequenceID, err)
		}
		return nil
	}

	e.logger.Warn("skipping change for unknown table",
		"table", change.TableName, "sequence", change.SequenceID)
	return nil
}

// FullSyncAndApply drives a paged full-sync download session for one table
// and applies every row under the remote-apply guard. The context is
// checked between pages so a shutdown does not hang on a large table.
func (e *Engine) FullSyncAndApply(ctx context.Context, table string) (int, error) {
	if models.PhysicalTable(table) == "" {
		return 0, fmt.Errorf("full sync: %w: %s", storage.ErrUnknownTable, table)
	}

	var sess *api.FullSyncSession
	err := e.retry.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		sess, err = e.client.StartFullSync(ctx, table, e.fullSyncPageSize)
		return err
	})
	if err != nil {
		if errors.Is(err, remote.ErrNetworkUnavailable) || errors.Is(err, remote.ErrUnauthorized) {
			return 0, fmt.Errorf("start full sync for %s: %w", table, err)
		}
		// Older servers have no session endpoints and reject the start
		// request outright; take the single-shot snapshot instead.
		e.logger.Debug("paged full sync unavailable, using snapshot",
			"table", table, "error", err)
		return e.snapshotFullSync(ctx, table)
	}

	defer func() {
		// Best-effort session teardown; the server expires sessions anyway.
		if _, err := e.client.FinishFullSync(context.WithoutCancel(ctx), sess.SessionID); err != nil {
			e.logger.Warn("failed to finish full sync session",
				"session", sess.SessionID, "error", err)
		}
	}()

	applied := 0
	err = e.store.WithRemoteApplyGuard(ctx, func(ctx context.Context) error {
		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			var batch *api.FullSyncBatchResponse
			err := e.retry.WithRetry(ctx, func(ctx context.Context) error {
				var err error
				batch, err = e.client.FullSyncBatch(ctx, sess.SessionID, page)
				return err
			})
			if err != nil {
				return fmt.Errorf("fetch full sync page %d for %s: %w", page, table, err)
			}

			for _, row := range batch.Rows {
				if err := e.applyFullSyncRow(ctx, table, row); err != nil {
					return err
				}
				applied++
			}

			if !batch.HasMore {
				return nil
			}
		}
	})
	if err != nil {
		return applied, err
	}

	if err := e.store.SetLastSyncTime(ctx, table, time.Now()); err != nil {
		return applied, fmt.Errorf("record full sync time for %s: %w", table, err)
	}
	e.logger.Info("full sync applied", "table", table, "rows", applied)
	return applied, nil
}

// snapshotFullSync downloads the whole table in one response and applies it
// under the remote-apply guard.
func (e *Engine) snapshotFullSync(ctx context.Context, table string) (int, error) {
	var resp *api.FullSyncResponse
	err := e.retry.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		resp, err = e.client.FullSync(ctx, table)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("full sync snapshot for %s: %w", table, err)
	}

	applied := 0
	err = e.store.WithRemoteApplyGuard(ctx, func(ctx context.Context) error {
		for _, row := range resp.Rows {
			if err := e.applyFullSyncRow(ctx, table, row); err != nil {
				return err
			}
			applied++
		}
		return nil
	})
	if err != nil {
		return applied, err
	}

	if err := e.store.SetLastSyncTime(ctx, table, time.Now()); err != nil {
		return applied, fmt.Errorf("record full sync time for %s: %w", table, err)
	}
	e.logger.Info("full sync snapshot applied", "table", table, "rows", applied)
	return applied, nil
}

func (e *Engine) applyFullSyncRow(ctx context.Context, table string, row json.RawMessage) error {
	switch table {
	case models.SyncTableAssets:
		var asset models.Asset
		if err := json.Unmarshal(row, &asset); err != nil {
			return fmt.Errorf("decode full sync asset row: %w", err)
		}
		return e.store.UpsertAsset(ctx, &asset)
	case models.SyncTableChains:
		var chain models.AssetChain
		if err := json.Unmarshal(row, &chain); err != nil {
			return fmt.Errorf("decode full sync chain row: %w", err)
		}
		return e.store.UpsertAssetChain(ctx, &chain)
	}
	return fmt.Errorf("full sync row: %w: %s", storage.ErrUnknownTable, table)
}
