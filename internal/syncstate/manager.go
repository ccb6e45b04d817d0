// Package syncstate serializes sync operations. The storage layer's own
// transactions protect row consistency; this manager enforces the
// protocol-level invariant that only one logical sync runs at a time.
package syncstate

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the lifecycle phase of the current (or last) sync.
type State string

const (
	StateIdle    State = "IDLE"
	StateRunning State = "RUNNING"
	StateSuccess State = "SUCCESS"
	StateFailed  State = "FAILED"
)

// Type distinguishes incremental ticks from full table syncs.
type Type string

const (
	TypeNone        Type = "NONE"
	TypeIncremental Type = "INCREMENTAL"
	TypeFull        Type = "FULL"
)

// Status is the snapshot delivered to listeners on every transition.
type Status struct {
	State     State
	Type      Type
	Progress  int
	Message   string
	Err       error
	StartedAt time.Time
	UpdatedAt time.Time
}

// Listener receives status snapshots. Called synchronously on the
// transitioning goroutine.
type Listener func(Status)

type registeredListener struct {
	id int
	fn Listener
}

// Token identifies one granted sync run. Completion calls carry it back so
// a finisher that lost the gate to a preempting full sync cannot close out
// the run that replaced it.
type Token int64

// Manager is the single-writer gate for sync operations.
type Manager struct {
	mu         sync.Mutex
	status     Status
	runToken   Token
	listeners  []registeredListener
	nextListID int
	logger     *slog.Logger
}

// NewManager returns a manager in the IDLE state.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		status: Status{State: StateIdle, Type: TypeNone},
		logger: logger,
	}
}

// CanStart reports whether a sync of the given type may begin now. A full
// sync may preempt a running incremental one; nothing preempts a running
// full sync.
func (m *Manager) CanStart(t Type) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canStartLocked(t)
}

func (m *Manager) canStartLocked(t Type) bool {
	if m.status.State != StateRunning {
		return true
	}
	return m.status.Type == TypeIncremental && t == TypeFull
}

// Request transitions to RUNNING for the given type and returns the run's
// token, or an error if another sync holds the gate. A preempting request
// invalidates the preempted run's token.
func (m *Manager) Request(t Type) (Token, error) {
	m.mu.Lock()
	if !m.canStartLocked(t) {
		current := m.status.Type
		m.mu.Unlock()
		return 0, fmt.Errorf("cannot start %s sync: %s sync already running", t, current)
	}

	m.runToken++
	now := time.Now()
	m.status = Status{
		State:     StateRunning,
		Type:      t,
		StartedAt: now,
		UpdatedAt: now,
	}
	m.notifyLocked()
	token := m.runToken
	m.mu.Unlock()
	return token, nil
}

// ownsRunLocked reports whether the token still owns the running sync.
func (m *Manager) ownsRunLocked(token Token) bool {
	if m.status.State != StateRunning || token != m.runToken {
		m.logger.Debug("ignoring completion from a preempted sync", "token", int64(token))
		return false
	}
	return true
}

// UpdateProgress publishes a progress checkpoint for the running sync.
// Checkpoints from a preempted run are dropped.
func (m *Manager) UpdateProgress(token Token, pct int, message string) {
	m.mu.Lock()
	if !m.ownsRunLocked(token) {
		m.mu.Unlock()
		return
	}
	m.status.Progress = pct
	m.status.Message = message
	m.status.UpdatedAt = time.Now()
	m.notifyLocked()
	m.mu.Unlock()
}

// Finish marks the token's sync as succeeded. A stale token is a no-op.
func (m *Manager) Finish(token Token) {
	m.mu.Lock()
	if !m.ownsRunLocked(token) {
		m.mu.Unlock()
		return
	}
	m.status.State = StateSuccess
	m.status.Progress = 100
	m.status.Err = nil
	m.status.UpdatedAt = time.Now()
	m.notifyLocked()
	m.mu.Unlock()
}

// Fail marks the token's sync as failed with the given error. A stale
// token is a no-op.
func (m *Manager) Fail(token Token, err error) {
	m.mu.Lock()
	if !m.ownsRunLocked(token) {
		m.mu.Unlock()
		return
	}
	m.status.State = StateFailed
	m.status.Err = err
	m.status.UpdatedAt = time.Now()
	m.notifyLocked()
	m.mu.Unlock()
}

// ForceStop returns the manager to IDLE unconditionally. Used for
// cancellation.
func (m *Manager) ForceStop() {
	m.mu.Lock()
	m.runToken++
	m.status = Status{
		State:     StateIdle,
		Type:      TypeNone,
		UpdatedAt: time.Now(),
	}
	m.notifyLocked()
	m.mu.Unlock()
}

// Status returns a snapshot of the current state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// AddListener registers a listener for every subsequent transition and
// returns an id usable with RemoveListener.
func (m *Manager) AddListener(l Listener) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextListID++
	m.listeners = append(m.listeners, registeredListener{id: m.nextListID, fn: l})
	return m.nextListID
}

// RemoveListener unregisters a listener. Unknown ids are ignored.
func (m *Manager) RemoveListener(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rl := range m.listeners {
		if rl.id == id {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

// notifyLocked delivers the current snapshot to every listener. A panicking
// listener must not break the manager or starve the others.
func (m *Manager) notifyLocked() {
	snapshot := m.status
	for _, rl := range m.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("sync status listener panicked", "panic", r)
				}
			}()
			rl.fn(snapshot)
		}()
	}
}
