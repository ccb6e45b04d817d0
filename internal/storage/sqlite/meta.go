package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Sync meta keys. The rest of the application must not touch these rows
// directly: the triggers read apply_remote_guard in their WHEN clause and
// write sync_signal on every capture.
const (
	metaKeyLastSequenceID = "last_sequence_id"
	metaKeyApplyGuard     = "apply_remote_guard"
	metaKeySyncSignal     = "sync_signal"
)

// LastSequenceID returns the incremental-download watermark, 0 when unset.
func (s *Store) LastSequenceID(ctx context.Context) (int64, error) {
	value, err := s.getMeta(ctx, metaKeyLastSequenceID)
	if err != nil {
		return 0, err
	}
	if value == "" {
		return 0, nil
	}
	seq, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed last_sequence_id %q: %w", value, err)
	}
	return seq, nil
}

// SetLastSequenceID persists the incremental-download watermark.
func (s *Store) SetLastSequenceID(ctx context.Context, seq int64) error {
	return s.setMeta(ctx, metaKeyLastSequenceID, strconv.FormatInt(seq, 10))
}

// SyncSignal returns the timestamp of the most recent captured change,
// or the zero time when nothing was ever captured.
func (s *Store) SyncSignal(ctx context.Context) (time.Time, error) {
	value, err := s.getMeta(ctx, metaKeySyncSignal)
	if err != nil {
		return time.Time{}, err
	}
	return parseTime(value), nil
}

// WithRemoteApplyGuard runs fn with the remote-apply guard engaged so that
// the capture triggers stay silent and upserts do not kick off incremental
// syncs. The guard is cleared on every exit path; leaving it behind would
// permanently disable change capture.
func (s *Store) WithRemoteApplyGuard(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO t_sync_meta (key, value) VALUES (?, '1')`, metaKeyApplyGuard); err != nil {
		return fmt.Errorf("failed to set remote-apply guard: %w", err)
	}
	s.guarded.Store(true)

	defer func() {
		s.guarded.Store(false)
		// Clearing must not depend on the caller's context still being alive.
		if _, err := s.db.ExecContext(context.Background(),
			`DELETE FROM t_sync_meta WHERE key = ?`, metaKeyApplyGuard); err != nil {
			s.logger.Error("failed to clear remote-apply guard", "error", err)
		}
	}()

	return fn(ctx)
}

// LastSyncTime returns the per-table last successful sync time.
func (s *Store) LastSyncTime(ctx context.Context, table string) (time.Time, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_sync_time FROM t_sync_status WHERE table_name = ?`, table).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last sync time for %s: %w", table, err)
	}
	return parseTime(value), nil
}

// SetLastSyncTime records a successful sync for a table.
func (s *Store) SetLastSyncTime(ctx context.Context, table string, t time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO t_sync_status (table_name, last_sync_time) VALUES (?, ?)`,
		table, formatTime(t)); err != nil {
		return fmt.Errorf("failed to set last sync time for %s: %w", table, err)
	}
	return nil
}

func (s *Store) getMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM t_sync_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) setMeta(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO t_sync_meta (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}
