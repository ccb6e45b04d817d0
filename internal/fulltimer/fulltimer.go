// Package fulltimer schedules the recurring full-table resync,
// independently of the incremental polling loop. Runs are skipped while an
// incremental sync is in flight, and the polling loop is paused for the
// duration of a run so the two never work the same tables concurrently.
package fulltimer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fishyu-mushroom/Chaterm-sub004/internal/syncstate"
)

// DefaultInterval between scheduled full syncs.
const DefaultInterval = time.Hour

// stopWait bounds how long Stop blocks on an in-flight run.
const stopWait = 30 * time.Second

// Pauser suspends and resumes the incremental polling loop around a full
// sync.
type Pauser interface {
	Pause()
	Resume()
}

// Runner executes one full sync. It reports coarse progress through the
// checkpoint callback.
type Runner func(ctx context.Context, checkpoint func(pct int, message string)) error

// Manager owns the recurring full-sync timer.
type Manager struct {
	interval time.Duration
	state    *syncstate.Manager
	pauser   Pauser
	// conflict reports whether a run must be skipped right now, wired to
	// "is an incremental sync currently running".
	conflict func() bool
	run      Runner
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a full-sync timer manager. A non-positive interval takes the
// default.
func New(interval time.Duration, state *syncstate.Manager, pauser Pauser, conflict func() bool, run Runner, logger *slog.Logger) *Manager {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Manager{
		interval: interval,
		state:    state,
		pauser:   pauser,
		conflict: conflict,
		run:      run,
		logger:   logger,
	}
}

// Start launches the timer. Starting a running manager is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})

	go m.loop(m.stopCh, m.doneCh)
	m.logger.Info("full sync timer started", "interval", m.interval)
}

// Stop halts the timer, waiting up to 30s for an in-flight run.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stopCh, doneCh := m.stopCh, m.doneCh
	m.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
	case <-time.After(stopWait):
		m.logger.Warn("full sync timer stop timed out waiting for in-flight run")
	}
}

// Running reports whether the timer is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// TriggerNow runs a full sync immediately on the caller's goroutine,
// subject to the same conflict rules as a scheduled run.
func (m *Manager) TriggerNow(ctx context.Context) {
	m.runOnce(ctx)
}

func (m *Manager) loop(stopCh chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stopCh
		cancel()
	}()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.runOnce(ctx)
		}
	}
}

func (m *Manager) runOnce(ctx context.Context) {
	if m.conflict != nil && m.conflict() {
		m.logger.Info("full sync skipped, incremental sync in progress")
		return
	}
	token, err := m.state.Request(syncstate.TypeFull)
	if err != nil {
		m.logger.Info("full sync skipped", "reason", err)
		return
	}

	m.pauser.Pause()
	defer m.pauser.Resume()

	err = m.run(ctx, func(pct int, message string) {
		m.state.UpdateProgress(token, pct, message)
	})
	if err != nil {
		m.state.Fail(token, err)
		m.logger.Error("scheduled full sync failed", "error", err)
		return
	}
	m.state.Finish(token)
	m.logger.Info("scheduled full sync complete")
}
