package training

import "errors"

// Error definitions for the training package.
var (
	ErrEmptyModelID   = errors.New("model id cannot be empty")
	ErrInvalidModelID = errors.New("model id must be a single path element")
	ErrInvalidEpochs  = errors.New("epochs must be at least 1")
	ErrSuperseded     = errors.New("training run superseded by a newer run")
	ErrRunnerClosed   = errors.New("training runner is shut down")
	ErrPanic          = errors.New("training run panicked")
)
