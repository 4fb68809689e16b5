package training

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

func newTestRunner(t *testing.T, interval time.Duration, opts ...RunnerOption) (*Runner, *Store, string) {
	t.Helper()

	store := NewStore()
	dir := t.TempDir()
	runner := NewRunner(store, dir, interval, opts...)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = runner.Shutdown(ctx)
	})

	return runner, store, dir
}

func waitDone(t *testing.T, task *Task) {
	t.Helper()

	select {
	case <-task.Done():
	case <-time.After(waitTimeout):
		t.Fatalf("training run %s did not finish", task.ID)
	}
}

// recorder collects every status written for one model.
type recorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *recorder) observe(status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses = append(r.statuses, status)
}

func (r *recorder) progress() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	values := make([]float64, 0, len(r.statuses))
	for _, s := range r.statuses {
		values = append(values, s.Progress)
	}

	return values
}

func TestRunner_StartReturnsInitialStatus(t *testing.T) {
	runner, store, _ := newTestRunner(t, time.Hour)

	initial, task, err := runner.Start(Request{ModelID: "demo", Epochs: 5})
	require.NoError(t, err)
	require.NotNil(t, task)

	assert.Equal(t, Status{ID: "demo", Status: StateTraining, Progress: 0.1}, initial)
	assert.Equal(t, initial, store.Lookup("demo"))
	assert.Equal(t, StateTraining, task.State())
	assert.NotEmpty(t, task.ID)
}

func TestRunner_ConvergesToReady(t *testing.T) {
	runner, store, dir := newTestRunner(t, time.Millisecond)

	_, task, err := runner.Start(Request{ModelID: "demo", Epochs: 5})
	require.NoError(t, err)
	waitDone(t, task)

	got := store.Lookup("demo")
	assert.Equal(t, StateReady, got.Status)
	assert.InDelta(t, 1.0, got.Progress, 1e-9)
	require.NotNil(t, got.Message)
	assert.Equal(t, "Trening ukończony", *got.Message)

	assert.NoError(t, task.Err())
	assert.Equal(t, StateReady, task.State())

	info, err := os.Stat(filepath.Join(dir, "demo"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRunner_ProgressSequence(t *testing.T) {
	runner, store, _ := newTestRunner(t, time.Millisecond)
	rec := &recorder{}
	store.Subscribe(rec.observe)

	_, task, err := runner.Start(Request{ModelID: "demo", Epochs: 5})
	require.NoError(t, err)
	waitDone(t, task)

	expected := []float64{0.1, 0.3, 0.5, 0.7, 0.9, 0.9, 1.0}
	got := rec.progress()
	require.Len(t, got, len(expected))
	for i := range expected {
		assert.InDelta(t, expected[i], got[i], 1e-9, "step %d", i)
	}

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1], "progress must not decrease")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotNil(t, rec.statuses[1].Message)
	assert.Equal(t, "Epoka 1/5", *rec.statuses[1].Message)
	assert.Equal(t, "Epoka 5/5", *rec.statuses[5].Message)
}

func TestRunner_SingleEpoch(t *testing.T) {
	runner, store, _ := newTestRunner(t, time.Millisecond)
	rec := &recorder{}
	store.Subscribe(rec.observe)

	_, task, err := runner.Start(Request{ModelID: "one", Epochs: 1})
	require.NoError(t, err)
	waitDone(t, task)

	got := rec.progress()
	require.Len(t, got, 3)
	assert.InDelta(t, 0.9, got[1], 1e-9)
	assert.Equal(t, StateReady, store.Lookup("one").Status)
}

func TestRunner_ResubmitAfterReadyResets(t *testing.T) {
	runner, store, _ := newTestRunner(t, time.Millisecond)

	_, task, err := runner.Start(Request{ModelID: "demo", Epochs: 2})
	require.NoError(t, err)
	waitDone(t, task)
	require.Equal(t, StateReady, store.Lookup("demo").Status)

	runner.SetStepInterval(time.Hour)

	initial, _, err := runner.Start(Request{ModelID: "demo", Epochs: 2})
	require.NoError(t, err)

	assert.Equal(t, StateTraining, initial.Status)
	assert.Equal(t, Status{ID: "demo", Status: StateTraining, Progress: 0.1}, store.Lookup("demo"))
}

func TestRunner_SupersededRunStopsWriting(t *testing.T) {
	runner, store, _ := newTestRunner(t, 20*time.Millisecond)

	_, first, err := runner.Start(Request{ModelID: "demo", Epochs: 100})
	require.NoError(t, err)

	_, second, err := runner.Start(Request{ModelID: "demo", Epochs: 1})
	require.NoError(t, err)

	waitDone(t, first)
	assert.ErrorIs(t, first.Err(), ErrSuperseded)

	waitDone(t, second)
	assert.NoError(t, second.Err())

	current, ok := runner.Task("demo")
	require.True(t, ok)
	assert.Equal(t, second.ID, current.ID)
	assert.Equal(t, StateReady, store.Lookup("demo").Status)
}

func TestRunner_IndependentModels(t *testing.T) {
	runner, store, dir := newTestRunner(t, time.Millisecond)

	for i := range 10 {
		_, _, err := runner.Start(Request{ModelID: fmt.Sprintf("model-%d", i), Epochs: 3})
		require.NoError(t, err)
	}

	runner.Wait()

	for i := range 10 {
		id := fmt.Sprintf("model-%d", i)
		assert.Equal(t, StateReady, store.Lookup(id).Status, id)
		assert.DirExists(t, filepath.Join(dir, id))
	}
}

func TestRunner_MkdirFailureRecordsFailed(t *testing.T) {
	errDisk := errors.New("disk full")
	runner, store, _ := newTestRunner(t, time.Millisecond, WithMkdir(func(string) error {
		return errDisk
	}))

	_, task, err := runner.Start(Request{ModelID: "demo", Epochs: 2})
	require.NoError(t, err)
	waitDone(t, task)

	got := store.Lookup("demo")
	assert.Equal(t, StateFailed, got.Status)
	assert.InDelta(t, 0.9, got.Progress, 1e-9)
	require.NotNil(t, got.Message)
	assert.Equal(t, "disk full", *got.Message)
	assert.True(t, got.IsTerminal())

	assert.ErrorIs(t, task.Err(), errDisk)
	assert.Equal(t, StateFailed, task.State())
}

func TestRunner_PanicRecordsFailed(t *testing.T) {
	runner, store, _ := newTestRunner(t, time.Millisecond, WithMkdir(func(string) error {
		panic("boom")
	}))

	_, task, err := runner.Start(Request{ModelID: "demo", Epochs: 1})
	require.NoError(t, err)
	waitDone(t, task)

	assert.ErrorIs(t, task.Err(), ErrPanic)
	assert.Equal(t, StateFailed, store.Lookup("demo").Status)
}

func TestRunner_RejectsInvalidRequests(t *testing.T) {
	runner, store, _ := newTestRunner(t, time.Millisecond)

	tests := map[string]struct {
		req  Request
		want error
	}{
		"empty id":       {Request{Epochs: 1}, ErrEmptyModelID},
		"path traversal": {Request{ModelID: "../etc", Epochs: 1}, ErrInvalidModelID},
		"nested path":    {Request{ModelID: "a/b", Epochs: 1}, ErrInvalidModelID},
		"zero epochs":    {Request{ModelID: "demo", Epochs: 0}, ErrInvalidEpochs},
		"negative":       {Request{ModelID: "demo", Epochs: -3}, ErrInvalidEpochs},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, task, err := runner.Start(tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.Nil(t, task)
		})
	}

	assert.Empty(t, store.List())
}

func TestRunner_Shutdown(t *testing.T) {
	store := NewStore()
	runner := NewRunner(store, t.TempDir(), 10*time.Millisecond)

	_, task, err := runner.Start(Request{ModelID: "demo", Epochs: 1000})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, runner.Shutdown(ctx))

	waitDone(t, task)
	assert.ErrorIs(t, task.Err(), context.Canceled)
	assert.Equal(t, StateTraining, store.Lookup("demo").Status)

	_, _, err = runner.Start(Request{ModelID: "other", Epochs: 1})
	assert.ErrorIs(t, err, ErrRunnerClosed)
}
