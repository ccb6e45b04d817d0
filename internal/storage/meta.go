package storage

import (
	"context"
	"time"
)

//go:generate moq -out meta_mock.go . MetaStore

// MetaStore exposes the persisted sync metadata: the incremental download
// watermark, the remote-apply guard and the last-change signal.
type MetaStore interface {
	// LastSequenceID returns the incremental-download watermark.
	// Returns 0 when no download has completed yet.
	LastSequenceID(ctx context.Context) (int64, error)

	// SetLastSequenceID persists the incremental-download watermark.
	SetLastSequenceID(ctx context.Context, seq int64) error

	// SyncSignal returns the timestamp of the most recent captured local
	// change, or the zero time when nothing was ever captured.
	SyncSignal(ctx context.Context) (time.Time, error)

	// WithRemoteApplyGuard runs fn with the remote-apply guard engaged.
	// While the guard is held the capture triggers do not log and upserts
	// do not kick off incremental syncs. The guard is always cleared when
	// fn returns, error or not.
	WithRemoteApplyGuard(ctx context.Context, fn func(ctx context.Context) error) error

	// LastSyncTime returns the per-table last successful sync time,
	// or the zero time when the table was never synced.
	LastSyncTime(ctx context.Context, table string) (time.Time, error)

	// SetLastSyncTime records a successful sync for a table.
	SetLastSyncTime(ctx context.Context, table string, t time.Time) error
}
