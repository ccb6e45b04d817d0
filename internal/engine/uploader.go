package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/fishyu-mushroom/Chaterm-sub004/internal/models"
	"github.com/fishyu-mushroom/Chaterm-sub004/pkg/api"
)

// Progress reports batch-upload advancement after each page.
type Progress struct {
	Current    int
	Total      int
	Percentage int
}

// ProgressFunc receives progress callbacks. May be nil.
type ProgressFunc func(Progress)

// BatchProgress computes the snapshot for current of total rows done.
func BatchProgress(current, total int) Progress {
	pct := 100
	if total > 0 {
		pct = current * 100 / total
	}
	return Progress{Current: current, Total: total, Percentage: pct}
}

// UploadHistorical pushes the table's untracked backlog (rows that predate
// change capture) to the server in fixed-size pages, reporting progress
// after each page. After each acknowledged page the rows are recorded in the
// change log as already synced, so they stop counting as historical and a
// crash resumes from the unrecorded remainder.
func (e *Engine) UploadHistorical(ctx context.Context, table string, progress ProgressFunc) (int, error) {
	total, err := e.store.HistoricalDataCount(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("count historical rows for %s: %w", table, err)
	}
	if total == 0 {
		return 0, nil
	}

	uploaded := 0
	for uploaded < total {
		if err := ctx.Err(); err != nil {
			return uploaded, err
		}

		// Recorded pages leave the historical set, so every page is read
		// from offset zero.
		records, err := e.store.HistoricalRecords(ctx, table, e.uploadPageSize, 0)
		if err != nil {
			return uploaded, fmt.Errorf("read historical rows for %s: %w", table, err)
		}
		if len(records) == 0 {
			break
		}

		payload := make([]api.ChangeUpload, len(records))
		for i, rec := range records {
			payload[i] = api.ChangeUpload{
				ID:            rec.ID,
				TableName:     rec.TableName,
				RecordUUID:    rec.RecordUUID,
				OperationType: models.OpInsert,
				ChangeData:    rec.ChangeData,
				CreatedAt:     rec.CreatedAt.UTC().Format(time.RFC3339Nano),
			}
		}

		err = e.retry.WithRetry(ctx, func(ctx context.Context) error {
			_, err := e.client.IncrementalSync(ctx, table, payload)
			return err
		})
		if err != nil {
			return uploaded, fmt.Errorf("upload historical page for %s: %w", table, err)
		}

		if err := e.store.RecordSyncedChanges(ctx, records); err != nil {
			return uploaded, fmt.Errorf("record backfilled rows for %s: %w", table, err)
		}

		uploaded += len(records)
		if progress != nil {
			progress(BatchProgress(uploaded, total))
		}
	}

	e.logger.Info("historical backfill uploaded", "table", table, "rows", uploaded)
	return uploaded, nil
}
