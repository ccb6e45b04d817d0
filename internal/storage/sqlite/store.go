// Package sqlite implements the local store gateway on an embedded SQLite
// database. Change capture happens entirely inside the database through the
// triggers installed by the migrations; the gateway only has to manage the
// remote-apply guard and hand out typed reads and writes.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/fishyu-mushroom/Chaterm-sub004/internal/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const timeLayout = "2006-01-02T15:04:05.000Z"

// Compile-time checks that Store implements the gateway interfaces
var (
	_ storage.AssetStore     = (*Store)(nil)
	_ storage.ChangeLogStore = (*Store)(nil)
	_ storage.MetaStore      = (*Store)(nil)
)

// Store is the SQLite-backed local store gateway. It owns the database
// connection exclusively; the rest of the application must go through it.
type Store struct {
	db       *sql.DB
	logger   *slog.Logger
	notifier atomic.Value // storage.ChangeNotifier, set after construction
	guarded  atomic.Bool  // mirrors the apply_remote_guard meta row
}

// Open opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for an in-memory database in tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite in WAL mode supports many readers but a single writer.
	// A single pooled connection keeps trigger-visible state (the guard
	// row) and writes serialized.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db, logger: logger}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// A crash while the guard was held must not leave capture disabled
	// forever. Nothing can legitimately hold the guard at open time.
	if _, err := db.ExecContext(ctx, `DELETE FROM t_sync_meta WHERE key = ?`, metaKeyApplyGuard); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to clear stale remote-apply guard: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for testing purposes.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SetChangeNotifier installs the notifier invoked after local mutations that
// should propagate. May be called after construction because the notifier
// (the polling manager) is built later in the composition root.
func (s *Store) SetChangeNotifier(n storage.ChangeNotifier) {
	s.notifier.Store(n)
}

// notifyLocalChange kicks off an asynchronous incremental sync unless the
// remote-apply guard is engaged (echoed server writes must not re-trigger
// an upload).
func (s *Store) notifyLocalChange(table string) {
	if s.guarded.Load() {
		return
	}
	n, ok := s.notifier.Load().(storage.ChangeNotifier)
	if !ok || n == nil {
		return
	}
	n.NotifyLocalChange(table)
}

func (s *Store) runMigrations() error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	goose.SetBaseFS(embedMigrations)

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
