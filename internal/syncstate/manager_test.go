package syncstate

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// request is a test shorthand for a Request that must succeed.
func request(t *testing.T, m *Manager, typ Type) Token {
	t.Helper()
	token, err := m.Request(typ)
	require.NoError(t, err)
	return token
}

func TestRequest_MutualExclusion(t *testing.T) {
	m := newTestManager()

	token := request(t, m, TypeIncremental)
	assert.Equal(t, StateRunning, m.Status().State)

	// A second incremental must be refused while one runs.
	_, err := m.Request(TypeIncremental)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot start")

	m.Finish(token)
	assert.Equal(t, StateSuccess, m.Status().State)

	// After completion the gate reopens.
	request(t, m, TypeIncremental)
}

func TestRequest_FullPreemptsIncremental(t *testing.T) {
	m := newTestManager()

	request(t, m, TypeIncremental)
	assert.True(t, m.CanStart(TypeFull))

	request(t, m, TypeFull)
	st := m.Status()
	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, TypeFull, st.Type)

	// Nothing preempts a running full sync.
	assert.False(t, m.CanStart(TypeFull))
	assert.False(t, m.CanStart(TypeIncremental))
	_, err := m.Request(TypeFull)
	require.Error(t, err)
}

func TestPreemptedRun_CannotFinishTheNewOne(t *testing.T) {
	m := newTestManager()

	incToken := request(t, m, TypeIncremental)
	fullToken := request(t, m, TypeFull)

	// The preempted incremental's completion calls are all dropped.
	m.UpdateProgress(incToken, 90, "late")
	m.Finish(incToken)
	st := m.Status()
	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, TypeFull, st.Type)
	assert.Zero(t, st.Progress)

	m.Fail(incToken, errors.New("late failure"))
	st = m.Status()
	assert.Equal(t, StateRunning, st.State)
	assert.NoError(t, st.Err)

	// The gate stays shut against a new incremental until the full sync
	// itself completes.
	_, err := m.Request(TypeIncremental)
	require.Error(t, err)

	m.Finish(fullToken)
	assert.Equal(t, StateSuccess, m.Status().State)
}

func TestForceStop_ReturnsToIdle(t *testing.T) {
	m := newTestManager()

	token := request(t, m, TypeFull)
	m.UpdateProgress(token, 30, "downloading assets")

	m.ForceStop()
	st := m.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, TypeNone, st.Type)
	assert.Zero(t, st.Progress)
	assert.True(t, m.CanStart(TypeIncremental))

	// The cancelled run's token died with it.
	m.Finish(token)
	assert.Equal(t, StateIdle, m.Status().State)
}

func TestFail_RecordsError(t *testing.T) {
	m := newTestManager()

	token := request(t, m, TypeIncremental)
	wantErr := errors.New("server error (500)")
	m.Fail(token, wantErr)

	st := m.Status()
	assert.Equal(t, StateFailed, st.State)
	assert.ErrorIs(t, st.Err, wantErr)

	// Finish after a new run clears the previous error.
	token = request(t, m, TypeIncremental)
	m.Finish(token)
	assert.NoError(t, m.Status().Err)
}

func TestListeners_ReceiveEveryTransition(t *testing.T) {
	m := newTestManager()

	var seen []Status
	m.AddListener(func(s Status) { seen = append(seen, s) })

	token := request(t, m, TypeFull)
	m.UpdateProgress(token, 50, "halfway")
	m.Finish(token)

	require.Len(t, seen, 3)
	assert.Equal(t, StateRunning, seen[0].State)
	assert.Equal(t, 50, seen[1].Progress)
	assert.Equal(t, "halfway", seen[1].Message)
	assert.Equal(t, StateSuccess, seen[2].State)
	assert.Equal(t, 100, seen[2].Progress)
}

func TestListeners_Remove(t *testing.T) {
	m := newTestManager()

	kept, removed := 0, 0
	m.AddListener(func(Status) { kept++ })
	id := m.AddListener(func(Status) { removed++ })

	token := request(t, m, TypeIncremental)
	m.RemoveListener(id)
	m.Finish(token)

	assert.Equal(t, 2, kept)
	assert.Equal(t, 1, removed)

	// Removing an unknown id is a no-op.
	m.RemoveListener(9999)
}

func TestListeners_PanicIsolated(t *testing.T) {
	m := newTestManager()

	m.AddListener(func(Status) { panic("listener bug") })
	calls := 0
	m.AddListener(func(Status) { calls++ })

	token := request(t, m, TypeIncremental)
	m.Finish(token)

	// The panicking listener never blocks transitions or its neighbors.
	assert.Equal(t, 2, calls)
	assert.Equal(t, StateSuccess, m.Status().State)
}
