// Package training tracks simulated voice-model training runs.
package training

// State is the lifecycle state of a training run.
type State string

const (
	// StateTraining indicates the run is advancing through its epochs.
	StateTraining State = "training"

	// StateReady indicates the run completed and the model directory exists.
	StateReady State = "ready"

	// StateUnknown is reported for model ids that were never submitted.
	StateUnknown State = "unknown"

	// StateFailed indicates the run aborted with an error.
	StateFailed State = "failed"
)

const (
	initialProgress  = 0.1
	maxStepProgress  = 0.9
	completeProgress = 1.0

	messageEpochFormat = "Epoka %d/%d"
	messageComplete    = "Trening ukończony"
)

// Status is the latest known state of one model's training run.
type Status struct {
	ID       string  `json:"id"       doc:"Model identifier"`
	Status   State   `json:"status"   doc:"training, ready, failed or unknown" enum:"training,ready,failed,unknown"`
	Progress float64 `json:"progress" doc:"Fraction of the run completed"   minimum:"0" maximum:"1"`
	Message  *string `json:"message"  doc:"Human readable note"`
}

// Unknown returns the sentinel record for a model that was never trained.
func Unknown(id string) Status {
	return Status{ID: id, Status: StateUnknown, Progress: 0}
}

// IsTerminal reports whether no further updates are expected for the run.
func (s Status) IsTerminal() bool {
	return s.Status == StateReady || s.Status == StateFailed
}

func message(text string) *string {
	return &text
}
