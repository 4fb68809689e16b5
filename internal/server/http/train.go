package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/polski-lektor/lektor-tts/internal/service"
	"github.com/polski-lektor/lektor-tts/internal/training"
)

type (
	TrainRequestDTO struct {
		_ struct{} `json:"-" additionalProperties:"true"`

		ModelID         string   `json:"modelId" minLength:"1" doc:"Identifier of the model to train"`
		Architecture    string   `json:"architecture,omitempty" doc:"Model architecture, vits when omitted"`
		Epochs          *int     `json:"epochs,omitempty" minimum:"1" doc:"Number of epochs, 5 when omitted"`
		LearningRate    *float64 `json:"learning_rate,omitempty" doc:"Learning rate, 0.0001 when omitted"`
		DatasetManifest *string  `json:"datasetManifest,omitempty" doc:"Manifest produced by /dataset/prepare"`
	}

	TrainListDTO struct {
		Models []training.Status `json:"models"`
	}
)

type (
	TrainInput struct {
		Body TrainRequestDTO
	}

	TrainStatusInput struct {
		ModelID string `path:"model_id" doc:"Model identifier"`
	}

	TrainStatusOutput struct {
		Body training.Status
	}

	TrainListOutput struct {
		Body TrainListDTO
	}
)

// TrainHandler handles HTTP requests for training.
type TrainHandler struct {
	service *service.Training
}

// NewTrainHandler creates a new TrainHandler instance.
func NewTrainHandler(api huma.API, service *service.Training) *TrainHandler {
	h := &TrainHandler{service: service}

	huma.Register(api, huma.Operation{
		OperationID:   "start-training",
		Method:        http.MethodPost,
		Path:          "/train",
		Summary:       "Start a simulated training run",
		Tags:          []string{"train"},
		DefaultStatus: http.StatusOK,
	}, h.handleStart)

	huma.Register(api, huma.Operation{
		OperationID: "list-training",
		Method:      http.MethodGet,
		Path:        "/train",
		Summary:     "List the status of every model",
		Tags:        []string{"train"},
	}, h.handleList)

	huma.Register(api, huma.Operation{
		OperationID: "training-status",
		Method:      http.MethodGet,
		Path:        "/train/{model_id}/status",
		Summary:     "Get the training status of a model",
		Tags:        []string{"train"},
	}, h.handleStatus)

	sse.Register(api, huma.Operation{
		OperationID: "training-events",
		Method:      http.MethodGet,
		Path:        "/train/{model_id}/events",
		Summary:     "Stream training status changes (SSE)",
		Tags:        []string{"train"},
	}, map[string]any{
		"status": training.Status{},
	}, h.handleEvents)

	return h
}

// handleStart handles the start-training operation.
func (h *TrainHandler) handleStart(ctx context.Context, input *TrainInput) (*TrainStatusOutput, error) {
	status, err := h.service.Start(service.TrainInput{
		ModelID:         input.Body.ModelID,
		Architecture:    input.Body.Architecture,
		Epochs:          input.Body.Epochs,
		LearningRate:    input.Body.LearningRate,
		DatasetManifest: input.Body.DatasetManifest,
	})
	if err != nil {
		return nil, trainingError(err)
	}

	return &TrainStatusOutput{Body: status}, nil
}

// handleStatus handles the training-status operation.
func (h *TrainHandler) handleStatus(ctx context.Context, input *TrainStatusInput) (*TrainStatusOutput, error) {
	return &TrainStatusOutput{Body: h.service.Status(input.ModelID)}, nil
}

// handleList handles the list-training operation.
func (h *TrainHandler) handleList(ctx context.Context, _ *struct{}) (*TrainListOutput, error) {
	return &TrainListOutput{Body: TrainListDTO{Models: h.service.List()}}, nil
}

// handleEvents handles the training-events operation.
func (h *TrainHandler) handleEvents(ctx context.Context, input *TrainStatusInput, send sse.Sender) {
	for status := range h.service.Watch(ctx, input.ModelID) {
		if err := send.Data(status); err != nil {
			return
		}
	}
}

func trainingError(err error) error {
	switch {
	case errors.Is(err, training.ErrEmptyModelID),
		errors.Is(err, training.ErrInvalidModelID),
		errors.Is(err, training.ErrInvalidEpochs):
		return huma.Error422UnprocessableEntity(err.Error(), err)
	case errors.Is(err, training.ErrRunnerClosed):
		return huma.Error503ServiceUnavailable("service is shutting down", err)
	default:
		return huma.Error500InternalServerError("failed to start training", err)
	}
}
