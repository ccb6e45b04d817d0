// Package controller is the façade over the sync subsystem: it composes the
// storage gateway, remote client, sync engine, polling loop, full-sync timer
// and state machine behind a small operation surface consumed by the
// application layer.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fishyu-mushroom/Chaterm-sub004/internal/config"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/cryptoprov"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/engine"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/fulltimer"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/models"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/poller"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/remote"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/retry"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/storage"
	"github.com/fishyu-mushroom/Chaterm-sub004/internal/syncstate"
)

// destroyWait bounds how long Destroy waits for an in-flight sync.
const destroyWait = 5 * time.Second

// Store is the storage surface the controller composes: the engine's needs
// plus notifier wiring and shutdown.
type Store interface {
	engine.Store
	SetChangeNotifier(n storage.ChangeNotifier)
	Close() error
}

// Result is the outcome of a public sync operation. Network unavailability
// is reported as a successful no-op with a "skipped" message, never as a
// failure: an offline client is not broken.
type Result struct {
	Success     bool
	Message     string
	SyncedCount int
}

// SystemStatus is the diagnostic snapshot for the application layer.
type SystemStatus struct {
	EncryptionReady bool
	AutoSync        bool
	PollInterval    time.Duration
	LastSequenceID  int64
	PendingChanges  map[string]int
	LastFullSync    map[string]time.Time
}

// Controller composes the sync subsystem.
type Controller struct {
	cfg    config.Config
	store  Store
	client remote.ClientAPI
	engine *engine.Engine
	state  *syncstate.Manager
	crypto *cryptoprov.Provider
	logger *slog.Logger

	poller    *poller.Poller
	fullTimer *fulltimer.Manager

	mu       sync.Mutex
	autoSync bool

	backupReady atomic.Bool
}

// New wires the controller. The caller owns the store, client and crypto
// provider lifecycles up to Destroy.
func New(cfg config.Config, store Store, client remote.ClientAPI, crypto *cryptoprov.Provider, logger *slog.Logger) *Controller {
	c := &Controller{
		cfg:    cfg,
		store:  store,
		client: client,
		crypto: crypto,
		state:  syncstate.NewManager(logger),
		logger: logger,
	}

	c.engine = engine.New(store, client, retry.DefaultPolicy(), logger,
		engine.WithSmartThreshold(cfg.SmartThreshold),
		engine.WithUploadPageSize(cfg.UploadPageSize),
		engine.WithDownloadLimit(cfg.DownloadLimit),
	)

	c.poller = poller.New(poller.Config{
		InitialInterval: cfg.PollInitialInterval,
		MinInterval:     cfg.PollMinInterval,
		MaxInterval:     cfg.PollMaxInterval,
		Adaptive:        cfg.PollAdaptive,
	}, c.pollTick, logger)

	c.fullTimer = fulltimer.New(cfg.FullSyncInterval, c.state, c.poller,
		c.incrementalRunning, c.runFullSync, logger)

	return c
}

// StartAutoSync starts the polling loop and the full-sync timer, and wires
// local writes to immediate sync triggers.
func (c *Controller) StartAutoSync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.autoSync {
		return
	}
	c.autoSync = true

	c.store.SetChangeNotifier(c.poller)
	c.poller.Start()
	c.fullTimer.Start()
	c.logger.Info("auto sync started")
}

// StopAutoSync stops both loops.
func (c *Controller) StopAutoSync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.autoSync {
		return
	}
	c.autoSync = false

	c.fullTimer.Stop()
	c.poller.Stop()
	c.logger.Info("auto sync stopped")
}

// SyncNow runs one incremental pass immediately.
func (c *Controller) SyncNow(ctx context.Context) Result {
	return c.IncrementalSyncAll(ctx)
}

// FullSyncNow forces a full sync regardless of the idempotence guard,
// subject to the usual mutual-exclusion rules.
func (c *Controller) FullSyncNow(ctx context.Context) Result {
	return c.executeFullSync(ctx)
}

// IncrementalSyncAll uploads pending changes for every table and downloads
// cloud changes. Tables fail independently: one unreachable upload does not
// block the others.
func (c *Controller) IncrementalSyncAll(ctx context.Context) Result {
	if !c.crypto.Initialized() {
		return Result{Success: true, Message: "skipped: encryption not initialized"}
	}
	token, err := c.state.Request(syncstate.TypeIncremental)
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}

	synced, offline, err := c.incrementalPass(ctx)
	if err != nil {
		c.state.Fail(token, err)
		if errors.Is(err, remote.ErrUnauthorized) {
			c.HandleAuthFailure()
		}
		return Result{Success: false, Message: err.Error(), SyncedCount: synced}
	}

	c.state.Finish(token)
	if offline {
		return Result{Success: true, Message: "skipped: network unavailable", SyncedCount: synced}
	}
	return Result{Success: true, SyncedCount: synced}
}

// incrementalPass runs one upload-then-download cycle. Network
// unavailability is reported through the offline flag, not the error.
func (c *Controller) incrementalPass(ctx context.Context) (synced int, offline bool, err error) {
	for _, table := range models.SyncTables {
		res, upErr := c.engine.IncrementalSync(ctx, table)
		if res != nil {
			synced += res.Uploaded
		}
		if upErr != nil {
			if errors.Is(upErr, remote.ErrNetworkUnavailable) {
				offline = true
				continue
			}
			return synced, false, fmt.Errorf("upload %s: %w", table, upErr)
		}
	}

	applied, downErr := c.engine.DownloadAndApply(ctx)
	synced += applied
	if downErr != nil {
		if errors.Is(downErr, remote.ErrNetworkUnavailable) {
			return synced, true, nil
		}
		return synced, false, fmt.Errorf("download: %w", downErr)
	}
	return synced, offline, nil
}

// FullSyncAll performs the startup full sync unless the idempotence guard
// holds: a device that has a download watermark and no untracked rows is
// already converged and performs zero network calls.
func (c *Controller) FullSyncAll(ctx context.Context) Result {
	if !c.crypto.Initialized() {
		return Result{Success: true, Message: "skipped: encryption not initialized"}
	}

	skip, err := c.fullSyncRedundant(ctx)
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	if skip {
		c.logger.Info("full sync skipped, already converged")
		return Result{Success: true, Message: "skipped: already in sync"}
	}

	return c.executeFullSync(ctx)
}

func (c *Controller) fullSyncRedundant(ctx context.Context) (bool, error) {
	seq, err := c.store.LastSequenceID(ctx)
	if err != nil {
		return false, fmt.Errorf("read watermark: %w", err)
	}
	if seq == 0 {
		return false, nil
	}
	for _, table := range models.SyncTables {
		n, err := c.store.HistoricalDataCount(ctx, table)
		if err != nil {
			return false, fmt.Errorf("count historical rows for %s: %w", table, err)
		}
		if n > 0 {
			return false, nil
		}
	}
	return true, nil
}

func (c *Controller) executeFullSync(ctx context.Context) Result {
	token, err := c.state.Request(syncstate.TypeFull)
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}

	c.poller.Pause()
	defer c.poller.Resume()

	err = c.runFullSync(ctx, func(pct int, message string) {
		c.state.UpdateProgress(token, pct, message)
	})
	if err != nil {
		c.state.Fail(token, err)
		if errors.Is(err, remote.ErrUnauthorized) {
			c.HandleAuthFailure()
			return Result{Success: false, Message: err.Error()}
		}
		if errors.Is(err, remote.ErrNetworkUnavailable) {
			return Result{Success: true, Message: "skipped: network unavailable"}
		}
		return Result{Success: false, Message: err.Error()}
	}

	c.state.Finish(token)
	return Result{Success: true}
}

// ensureBackupInit registers this device with the server before its first
// full sync. Repeat runs skip the handshake once the server has
// acknowledged the device.
func (c *Controller) ensureBackupInit(ctx context.Context) error {
	if c.backupReady.Load() {
		return nil
	}
	resp, err := c.client.BackupInit(ctx)
	if err != nil {
		return fmt.Errorf("backup init: %w", err)
	}
	c.backupReady.Store(true)
	c.logger.Info("backup init complete", "tables", len(resp.TableMappings))
	return nil
}

// runFullSync is the full-sync routine shared by the scheduled timer and
// the explicit entry points: register the device, backfill untracked rows,
// push pending changes, resync both tables from the server, then catch up
// the watermark.
func (c *Controller) runFullSync(ctx context.Context, checkpoint func(pct int, message string)) error {
	if err := c.ensureBackupInit(ctx); err != nil {
		return err
	}

	checkpoint(10, "uploading local changes")
	for _, table := range models.SyncTables {
		if _, err := c.engine.IncrementalSync(ctx, table); err != nil {
			return fmt.Errorf("upload %s: %w", table, err)
		}
	}

	checkpoint(20, "uploading historical data")
	for _, table := range models.SyncTables {
		if _, err := c.engine.UploadHistorical(ctx, table, nil); err != nil {
			return fmt.Errorf("backfill %s: %w", table, err)
		}
	}

	checkpoint(30, "downloading assets")
	if _, err := c.engine.FullSyncAndApply(ctx, models.SyncTableAssets); err != nil {
		return fmt.Errorf("full sync %s: %w", models.SyncTableAssets, err)
	}

	checkpoint(70, "downloading asset chains")
	if _, err := c.engine.FullSyncAndApply(ctx, models.SyncTableChains); err != nil {
		return fmt.Errorf("full sync %s: %w", models.SyncTableChains, err)
	}

	if _, err := c.engine.DownloadAndApply(ctx); err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	return nil
}

// pollTick is the recurring incremental pass driven by the poller.
func (c *Controller) pollTick(ctx context.Context) (bool, error) {
	if !c.crypto.Initialized() {
		return false, nil
	}
	token, err := c.state.Request(syncstate.TypeIncremental)
	if err != nil {
		// Another sync holds the gate; this tick just skips.
		return false, nil
	}

	synced, offline, err := c.incrementalPass(ctx)
	if err != nil {
		c.state.Fail(token, err)
		if errors.Is(err, remote.ErrUnauthorized) {
			// Stopping the loops from inside a tick would deadlock Stop's
			// wait on the tick; hand off.
			go c.HandleAuthFailure()
		}
		return synced > 0, err
	}

	c.state.Finish(token)
	if offline {
		return synced > 0, remote.ErrNetworkUnavailable
	}
	return synced > 0, nil
}

func (c *Controller) incrementalRunning() bool {
	st := c.state.Status()
	return st.State == syncstate.StateRunning && st.Type == syncstate.TypeIncremental
}

// GetSyncStatus returns the state machine snapshot.
func (c *Controller) GetSyncStatus() syncstate.Status {
	return c.state.Status()
}

// AddSyncStatusListener registers a listener for sync state transitions and
// returns its id.
func (c *Controller) AddSyncStatusListener(l syncstate.Listener) int {
	return c.state.AddListener(l)
}

// RemoveSyncStatusListener unregisters a previously added listener.
func (c *Controller) RemoveSyncStatusListener(id int) {
	c.state.RemoveListener(id)
}

// GetSystemStatus assembles the diagnostic snapshot.
func (c *Controller) GetSystemStatus(ctx context.Context) (*SystemStatus, error) {
	seq, err := c.store.LastSequenceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read watermark: %w", err)
	}

	status := &SystemStatus{
		EncryptionReady: c.crypto.Initialized(),
		AutoSync:        c.poller.Running(),
		PollInterval:    c.poller.Interval(),
		LastSequenceID:  seq,
		PendingChanges:  make(map[string]int, len(models.SyncTables)),
		LastFullSync:    make(map[string]time.Time, len(models.SyncTables)),
	}
	for _, table := range models.SyncTables {
		n, err := c.store.TotalPendingCount(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("count pending for %s: %w", table, err)
		}
		status.PendingChanges[table] = n

		last, err := c.store.LastSyncTime(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("read last sync time for %s: %w", table, err)
		}
		status.LastFullSync[table] = last
	}
	return status, nil
}

// CancelCurrentSync stops the polling loop and forces the state machine
// back to IDLE. A full sync page in flight completes before the loop
// observes the stop.
func (c *Controller) CancelCurrentSync() {
	c.mu.Lock()
	c.autoSync = false
	c.mu.Unlock()

	c.poller.Stop()
	c.state.ForceStop()
	c.logger.Info("current sync cancelled")
}

// HandleAuthFailure stops all sync loops after a credential rejection.
// Retrying with a known-bad token is pointless; the auth collaborator must
// re-authenticate and restart auto sync.
func (c *Controller) HandleAuthFailure() {
	c.logger.Warn("auth failure, stopping sync loops")
	c.StopAutoSync()
}

// Destroy shuts the subsystem down in order: stop the timers, wait up to 5s
// for an in-flight sync, release the HTTP pool, close the store.
func (c *Controller) Destroy(ctx context.Context) error {
	c.StopAutoSync()

	deadline := time.Now().Add(destroyWait)
	for c.state.Status().State == syncstate.StateRunning {
		if time.Now().After(deadline) {
			c.logger.Warn("destroy proceeding with sync still in flight")
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}

	c.client.CloseIdleConnections()

	if err := c.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	c.logger.Info("sync controller destroyed")
	return nil
}
