package service

import (
	"context"
	"time"

	"github.com/polski-lektor/lektor-tts/internal/config"
	"github.com/polski-lektor/lektor-tts/internal/training"
)

const minWatchInterval = 10 * time.Millisecond

// TrainInput is a training request before defaults are applied.
type TrainInput struct {
	ModelID         string
	Architecture    string
	Epochs          *int
	LearningRate    *float64
	DatasetManifest *string
}

// Training is a service abstraction over the training runner and its status store.
type Training struct {
	runner   *training.Runner
	store    *training.Store
	defaults config.TrainingConfig
}

// NewTraining creates a new Training service.
func NewTraining(runner *training.Runner, store *training.Store, defaults config.TrainingConfig) *Training {
	return &Training{
		runner:   runner,
		store:    store,
		defaults: defaults,
	}
}

// Start fills in missing parameters from the configured defaults and starts a run.
func (s *Training) Start(in TrainInput) (training.Status, error) {
	req := training.Request{
		ModelID:         in.ModelID,
		Architecture:    in.Architecture,
		Epochs:          s.defaults.DefaultEpochs,
		LearningRate:    s.defaults.DefaultLearningRate,
		DatasetManifest: in.DatasetManifest,
	}

	if req.Architecture == "" {
		req.Architecture = s.defaults.DefaultArchitecture
	}
	if in.Epochs != nil {
		req.Epochs = *in.Epochs
	}
	if in.LearningRate != nil {
		req.LearningRate = *in.LearningRate
	}

	status, _, err := s.runner.Start(req)
	return status, err
}

// Status returns the latest status of modelID, unknown if it was never started.
func (s *Training) Status(modelID string) training.Status {
	return s.store.Lookup(modelID)
}

// List returns the status of every model ever started.
func (s *Training) List() []training.Status {
	return s.store.List()
}

// Watch emits the status of modelID every time it changes, starting with the
// current one. The channel is closed once the status is terminal or unknown,
// or when ctx is done.
func (s *Training) Watch(ctx context.Context, modelID string) <-chan training.Status {
	out := make(chan training.Status)

	go func() {
		defer close(out)

		ticker := time.NewTicker(watchInterval(s.runner.StepInterval()))
		defer ticker.Stop()

		var last *training.Status
		for {
			current := s.store.Lookup(modelID)
			if last == nil || current != *last {
				select {
				case out <- current:
				case <-ctx.Done():
					return
				}
				last = &current
			}

			if current.IsTerminal() || current.Status == training.StateUnknown {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return out
}

func watchInterval(step time.Duration) time.Duration {
	return max(step/2, minWatchInterval)
}
