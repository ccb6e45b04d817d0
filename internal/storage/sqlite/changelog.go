package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fishyu-mushroom/Chaterm-sub004/internal/models"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/storage"
)

const changeLogColumns = `id, table_name, record_uuid, operation_type,
	change_data, before_data, created_at, sync_status, retry_count, error_message`

// PendingChanges returns all pending change records across tables, oldest
// first.
func (s *Store) PendingChanges(ctx context.Context) ([]*models.ChangeRecord, error) {
	query := `SELECT ` + changeLogColumns + `
		FROM t_change_log
		WHERE sync_status = ?
		ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, models.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending changes: %w", err)
	}
	defer rows.Close()

	return scanChangeRecords(rows)
}

// PendingChangesPage returns one page of pending records for a single sync
// table, oldest first.
func (s *Store) PendingChangesPage(ctx context.Context, table string, limit, offset int) ([]*models.ChangeRecord, error) {
	query := `SELECT ` + changeLogColumns + `
		FROM t_change_log
		WHERE table_name = ? AND sync_status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, table, models.StatusPending, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending changes page for %s: %w", table, err)
	}
	defer rows.Close()

	return scanChangeRecords(rows)
}

// TotalPendingCount returns the number of pending records for a table.
func (s *Store) TotalPendingCount(ctx context.Context, table string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM t_change_log WHERE table_name = ? AND sync_status = ?`,
		table, models.StatusPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending changes for %s: %w", table, err)
	}
	return count, nil
}

// HistoricalDataCount counts entity rows with no change-log record at all:
// rows that predate change tracking and were never captured. A non-zero
// count means a full backfill is needed even when the download watermark is
// already set.
func (s *Store) HistoricalDataCount(ctx context.Context, table string) (int, error) {
	physical := models.PhysicalTable(table)
	if physical == "" {
		return 0, fmt.Errorf("historical count for %q: %w", table, storage.ErrUnknownTable)
	}

	// Physical table names come from the models constants, never from input.
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s e
		WHERE NOT EXISTS (
			SELECT 1 FROM t_change_log c
			WHERE c.table_name = ? AND c.record_uuid = e.uuid
		)`, physical)

	var count int
	if err := s.db.QueryRowContext(ctx, query, table).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count historical rows for %s: %w", table, err)
	}
	return count, nil
}

// HistoricalRecords synthesizes INSERT change records for one page of
// untracked entity rows, oldest row first. The records are built in memory
// for upload only; nothing is written to the change log.
func (s *Store) HistoricalRecords(ctx context.Context, table string, limit, offset int) ([]*models.ChangeRecord, error) {
	physical := models.PhysicalTable(table)
	if physical == "" {
		return nil, fmt.Errorf("historical records for %q: %w", table, storage.ErrUnknownTable)
	}

	query := fmt.Sprintf(`SELECT e.uuid, e.created_at FROM %s e
		WHERE NOT EXISTS (
			SELECT 1 FROM t_change_log c
			WHERE c.table_name = ? AND c.record_uuid = e.uuid
		)
		ORDER BY e.id ASC
		LIMIT ? OFFSET ?`, physical)

	rows, err := s.db.QueryContext(ctx, query, table, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query historical rows for %s: %w", table, err)
	}
	defer rows.Close()

	type rowRef struct {
		uuid      string
		createdAt string
	}
	var refs []rowRef
	for rows.Next() {
		var r rowRef
		if err := rows.Scan(&r.uuid, &r.createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan historical row: %w", err)
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate historical rows: %w", err)
	}

	records := make([]*models.ChangeRecord, 0, len(refs))
	for _, ref := range refs {
		data, err := s.entityJSON(ctx, table, ref.uuid)
		if err != nil {
			return nil, err
		}
		records = append(records, &models.ChangeRecord{
			ID:            uuid.NewString(),
			TableName:     table,
			RecordUUID:    ref.uuid,
			OperationType: models.OpInsert,
			ChangeData:    data,
			CreatedAt:     parseTime(ref.createdAt),
			SyncStatus:    models.StatusPending,
		})
	}
	return records, nil
}

func (s *Store) entityJSON(ctx context.Context, table, entityUUID string) (json.RawMessage, error) {
	switch table {
	case models.SyncTableAssets:
		asset, err := s.GetAssetByUUID(ctx, entityUUID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(asset)
	case models.SyncTableChains:
		chain, err := s.GetAssetChainByUUID(ctx, entityUUID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(chain)
	}
	return nil, storage.ErrUnknownTable
}

// RecordSyncedChanges writes change records directly in the synced state,
// in one transaction. The change-log table has no triggers of its own, so no
// guard is needed.
func (s *Store) RecordSyncedChanges(ctx context.Context, records []*models.ChangeRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin record transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO t_change_log (
			id, table_name, record_uuid, operation_type, change_data,
			before_data, created_at, sync_status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var changeData, beforeData any
		if len(rec.ChangeData) > 0 {
			changeData = string(rec.ChangeData)
		}
		if len(rec.BeforeData) > 0 {
			beforeData = string(rec.BeforeData)
		}
		if _, err := stmt.ExecContext(ctx,
			rec.ID, rec.TableName, rec.RecordUUID, rec.OperationType,
			changeData, beforeData, formatTime(rec.CreatedAt), models.StatusSynced,
		); err != nil {
			return fmt.Errorf("failed to record synced change %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit record transaction: %w", err)
	}
	return nil
}

// MarkChangesSynced transitions the given records to synced in one
// transaction.
func (s *Store) MarkChangesSynced(ctx context.Context, ids []string) error {
	return s.markChanges(ctx, ids, models.StatusSynced, "")
}

// MarkChangesFailed transitions the given records to failed with the
// server-supplied reason, in one transaction.
func (s *Store) MarkChangesFailed(ctx context.Context, ids []string, reason string) error {
	return s.markChanges(ctx, ids, models.StatusFailed, reason)
}

func (s *Store) markChanges(ctx context.Context, ids []string, status, reason string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin mark transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+2)
	args = append(args, status)
	var errMsg any
	if reason != "" {
		errMsg = reason
	}
	args = append(args, errMsg)
	for _, id := range ids {
		args = append(args, id)
	}

	query := `UPDATE t_change_log SET sync_status = ?, error_message = ?
		WHERE id IN (` + placeholders + `)`
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark %d changes %s: %w", len(ids), status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read mark result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("failed to mark %d changes %s: %w", len(ids), status, storage.ErrRecordNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mark transaction: %w", err)
	}
	return nil
}

func scanChangeRecords(rows *sql.Rows) ([]*models.ChangeRecord, error) {
	var records []*models.ChangeRecord
	for rows.Next() {
		rec := &models.ChangeRecord{}
		var changeData, beforeData, errMsg sql.NullString
		var createdAt string

		if err := rows.Scan(
			&rec.ID,
			&rec.TableName,
			&rec.RecordUUID,
			&rec.OperationType,
			&changeData,
			&beforeData,
			&createdAt,
			&rec.SyncStatus,
			&rec.RetryCount,
			&errMsg,
		); err != nil {
			return nil, fmt.Errorf("failed to scan change record: %w", err)
		}

		if changeData.Valid {
			rec.ChangeData = []byte(changeData.String)
		}
		if beforeData.Valid {
			rec.BeforeData = []byte(beforeData.String)
		}
		rec.ErrorMessage = errMsg.String
		rec.CreatedAt = parseTime(createdAt)

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate change records: %w", err)
	}
	return records, nil
}
