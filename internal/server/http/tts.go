package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/polski-lektor/lektor-tts/internal/backend"
	"github.com/polski-lektor/lektor-tts/internal/service"
)

const (
	HeaderModelID   = "X-Model-Id"
	HeaderWatermark = "X-Watermark"
)

type (
	SynthesizeRequestDTO struct {
		_ struct{} `json:"-" additionalProperties:"true"`

		Text     string         `json:"text" doc:"Text to synthesize"`
		Metadata map[string]any `json:"metadata,omitempty" doc:"Optional metadata; numeric tone parameters are honoured"`
	}
)

type (
	SynthesizeInput struct {
		ModelID string `path:"model_id" doc:"Model identifier"`
		Body    SynthesizeRequestDTO
	}
)

// TTSHandler handles HTTP requests for TTS.
type TTSHandler struct {
	service *service.TTS
}

// NewTTSHandler creates a new TTSHandler instance. Middlewares run before
// the synthesize operation only.
func NewTTSHandler(api huma.API, service *service.TTS, middlewares ...func(huma.Context, func(huma.Context))) *TTSHandler {
	h := &TTSHandler{service: service}

	huma.Register(api, huma.Operation{
		OperationID: "synthesize",
		Method:      http.MethodPost,
		Path:        "/tts/{model_id}",
		Summary:     "Synthesize speech (placeholder tone)",
		Tags:        []string{"tts"},
		Middlewares: middlewares,
		Responses: map[string]*huma.Response{
			"200": {
				Description: "WAV audio",
				Content: map[string]*huma.MediaType{
					"audio/wav": {},
				},
			},
		},
	}, h.handleSynthesize)

	return h
}

// handleSynthesize handles the synthesize operation.
func (h *TTSHandler) handleSynthesize(ctx context.Context, input *SynthesizeInput) (*huma.StreamResponse, error) {
	speech, err := h.service.Synthesize(ctx, input.ModelID, input.Body.Text, input.Body.Metadata)
	if err != nil {
		if errors.Is(err, backend.ErrInvalidParameter) {
			return nil, huma.Error422UnprocessableEntity(err.Error(), err)
		}
		return nil, huma.Error500InternalServerError("failed to synthesize", err)
	}

	return &huma.StreamResponse{
		Body: func(ctx huma.Context) {
			ctx.SetHeader("Content-Type", speech.ContentType)
			ctx.SetHeader(HeaderModelID, speech.ModelID)
			ctx.SetHeader(HeaderWatermark, speech.Watermark)
			ctx.SetStatus(http.StatusOK)
			_, _ = ctx.BodyWriter().Write(speech.Audio)
		},
	}, nil
}
