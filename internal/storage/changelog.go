package storage

import (
	"context"

	"github.com/fishyu-mushroom/Chaterm-sub004/internal/models"
)

//go:generate moq -out changelog_mock.go . ChangeLogStore

// ChangeLogStore exposes the append-only change log written by the capture
// triggers. Records are immutable except for their sync status; the engine
// marks them, it never deletes them.
type ChangeLogStore interface {
	// PendingChanges returns every pending record across all tables,
	// oldest first.
	PendingChanges(ctx context.Context) ([]*models.ChangeRecord, error)

	// PendingChangesPage returns one page of pending records for a single
	// sync table, oldest first.
	PendingChangesPage(ctx context.Context, table string, limit, offset int) ([]*models.ChangeRecord, error)

	// TotalPendingCount returns the number of pending records for a table.
	TotalPendingCount(ctx context.Context, table string) (int, error)

	// HistoricalDataCount counts entity rows that have no change-log record
	// at all: data that predates change tracking and was never captured.
	HistoricalDataCount(ctx context.Context, table string) (int, error)

	// HistoricalRecords synthesizes INSERT change records for one page of
	// untracked entity rows, oldest row first. The synthesized records are
	// not written to the change log; they exist only to be uploaded.
	HistoricalRecords(ctx context.Context, table string, limit, offset int) ([]*models.ChangeRecord, error)

	// RecordSyncedChanges writes change records directly in the synced
	// state. Used after a historical backfill so the uploaded rows stop
	// counting as historical.
	RecordSyncedChanges(ctx context.Context, records []*models.ChangeRecord) error

	// MarkChangesSynced transitions the given records to synced in one
	// transaction.
	MarkChangesSynced(ctx context.Context, ids []string) error

	// MarkChangesFailed transitions the given records to failed with the
	// server-supplied reason, in one transaction.
	MarkChangesFailed(ctx context.Context, ids []string, reason string) error
}
