package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/polski-lektor/lektor-tts/internal/watermark"
)

type (
	WatermarkRequestDTO struct {
		_ struct{} `json:"-" additionalProperties:"true"`

		Marker  string `json:"marker" doc:"Watermark marker"`
		Payload string `json:"payload" doc:"Payload to tag"`
	}
)

type (
	WatermarkInput struct {
		Body WatermarkRequestDTO
	}

	WatermarkOutput struct {
		Body watermark.Result
	}
)

// RegisterWatermark registers the watermark operation.
func RegisterWatermark(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "apply-watermark",
		Method:      http.MethodPost,
		Path:        "/watermark/apply",
		Summary:     "Tag a payload with a watermark marker",
		Tags:        []string{"watermark"},
	}, func(ctx context.Context, input *WatermarkInput) (*WatermarkOutput, error) {
		return &WatermarkOutput{Body: watermark.Apply(input.Body.Marker, input.Body.Payload)}, nil
	})
}
