package training

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/polski-lektor/lektor-tts/internal/xfs"
)

// Request describes one training run.
type Request struct {
	ModelID         string
	Architecture    string
	Epochs          int
	LearningRate    float64
	DatasetManifest *string
}

// Validate checks the request before a run is started.
func (r Request) Validate() error {
	if r.ModelID == "" {
		return ErrEmptyModelID
	}
	if r.ModelID == "." || r.ModelID == ".." || filepath.Base(r.ModelID) != r.ModelID {
		return fmt.Errorf("%w: %q", ErrInvalidModelID, r.ModelID)
	}
	if r.Epochs < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidEpochs, r.Epochs)
	}

	return nil
}

// Task is the handle of one background training run.
type Task struct {
	ID        string
	Request   Request
	StartedAt time.Time

	cancel context.CancelCauseFunc
	done   chan struct{}

	mu    sync.Mutex
	state State
	err   error
}

// Done is closed once the run has stopped.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns why the run stopped, nil after a successful run.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.err
}

// State returns the last state the run wrote.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

func (t *Task) setState(state State) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

func (t *Task) finish(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMkdir replaces the function used to create model directories.
func WithMkdir(mkdir func(string) error) RunnerOption {
	return func(r *Runner) {
		r.mkdir = mkdir
	}
}

// WithLogger sets the logger used by the runner.
func WithLogger(log *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = log
	}
}

// Runner advances training runs in the background and records their
// progress in a Store. Starting a run for a model id that already has one in
// flight supersedes it: the old run stops without writing again.
type Runner struct {
	store     *Store
	modelsDir string
	interval  atomic.Int64
	mkdir     func(string) error
	log       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	runs   map[string]*Task
	closed bool
}

// NewRunner creates a runner writing to store. Completed models get a
// directory under modelsDir.
func NewRunner(store *Store, modelsDir string, stepInterval time.Duration, opts ...RunnerOption) *Runner {
	ctx, cancel := context.WithCancel(context.Background())

	r := &Runner{
		store:     store,
		modelsDir: modelsDir,
		mkdir:     xfs.EnsureDir,
		log:       slog.Default(),
		ctx:       ctx,
		cancel:    cancel,
		runs:      map[string]*Task{},
	}
	r.interval.Store(int64(stepInterval))

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// StepInterval returns the wait between two epochs.
func (r *Runner) StepInterval() time.Duration {
	return time.Duration(r.interval.Load())
}

// SetStepInterval changes the wait between epochs, including for runs in flight.
func (r *Runner) SetStepInterval(interval time.Duration) {
	r.interval.Store(int64(interval))
}

// Start records the initial training status for req.ModelID and launches the
// run. It returns immediately.
func (r *Runner) Start(req Request) (Status, *Task, error) {
	if err := req.Validate(); err != nil {
		return Status{}, nil, err
	}

	ctx, cancel := context.WithCancelCause(r.ctx)
	task := &Task{
		ID:        uuid.NewString(),
		Request:   req,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateTraining,
	}

	initial := Status{ID: req.ModelID, Status: StateTraining, Progress: initialProgress}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel(ErrRunnerClosed)
		return Status{}, nil, ErrRunnerClosed
	}

	if previous, ok := r.runs[req.ModelID]; ok {
		previous.cancel(ErrSuperseded)
		r.log.Info("Superseding training run", "model_id", req.ModelID, "previous_run", previous.ID, "run", task.ID)
	}

	r.runs[req.ModelID] = task
	r.store.Set(initial)
	r.wg.Add(1)
	r.mu.Unlock()

	r.log.Info("Training started",
		"model_id", req.ModelID,
		"run", task.ID,
		"architecture", req.Architecture,
		"epochs", req.Epochs,
		"learning_rate", req.LearningRate,
	)

	go r.run(ctx, task)

	return initial, task, nil
}

// Task returns the latest run started for modelID.
func (r *Runner) Task(modelID string) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.runs[modelID]
	return task, ok
}

// Wait blocks until every started run has stopped.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown refuses new runs, cancels the ones in flight and waits for them
// or for ctx to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("training runner shutdown: %w", ctx.Err())
	}
}

func (r *Runner) run(ctx context.Context, task *Task) {
	defer r.wg.Done()
	defer close(task.done)
	defer func() {
		if recovered := recover(); recovered != nil {
			r.fail(task, fmt.Errorf("%w: %v", ErrPanic, recovered))
		}
	}()

	req := task.Request
	epochs := req.Epochs

	for step := 1; step <= epochs; step++ {
		if err := r.sleep(ctx); err != nil {
			task.finish(err)
			r.log.Debug("Training run stopped", "model_id", req.ModelID, "run", task.ID, "reason", err)
			return
		}

		progress := math.Min(initialProgress+float64(step)/float64(epochs), maxStepProgress)
		status := Status{
			ID:       req.ModelID,
			Status:   StateTraining,
			Progress: progress,
			Message:  message(fmt.Sprintf(messageEpochFormat, step, epochs)),
		}

		if err := r.write(task, status); err != nil {
			task.finish(err)
			return
		}

		r.log.Debug("Epoch finished", "model_id", req.ModelID, "run", task.ID, "epoch", step, "progress", progress)
	}

	modelDir := filepath.Join(r.modelsDir, req.ModelID)
	if err := r.mkdir(modelDir); err != nil {
		r.fail(task, err)
		return
	}

	err := r.write(task, Status{
		ID:       req.ModelID,
		Status:   StateReady,
		Progress: completeProgress,
		Message:  message(messageComplete),
	})
	task.finish(err)

	if err == nil {
		r.log.Info("Training complete", "model_id", req.ModelID, "run", task.ID, "model_dir", modelDir, "elapsed", time.Since(task.StartedAt))
	}
}

// sleep waits one step interval or until the run is cancelled.
func (r *Runner) sleep(ctx context.Context) error {
	timer := time.NewTimer(r.StepInterval())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-timer.C:
		return nil
	}
}

// write stores status if task is still the current run for its model.
func (r *Runner) write(task *Task, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.runs[status.ID] != task {
		return ErrSuperseded
	}

	r.store.Set(status)
	task.setState(status.Status)

	return nil
}

// fail records a failed status that keeps the last reported progress.
func (r *Runner) fail(task *Task, cause error) {
	modelID := task.Request.ModelID
	r.log.Error("Training failed", "model_id", modelID, "run", task.ID, "error", cause)

	last := r.store.Lookup(modelID)
	if err := r.write(task, Status{
		ID:       modelID,
		Status:   StateFailed,
		Progress: last.Progress,
		Message:  message(cause.Error()),
	}); err != nil {
		r.log.Debug("Failed status not recorded", "model_id", modelID, "run", task.ID, "reason", err)
	}

	task.finish(cause)
}
