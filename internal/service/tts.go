package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/polski-lektor/lektor-tts/internal/backend"
)

// Speech is a synthesized clip ready to be sent to a client.
type Speech struct {
	ModelID     string
	Watermark   string
	ContentType string
	Audio       []byte
	Metadata    *backend.ResponseMetadata
}

// TTS is a service abstraction for text-to-speech.
type TTS struct {
	backends  *backend.Registry
	provider  backend.BackendProvider
	watermark string
}

// NewTTS creates a new TTS service synthesizing with provider and labelling
// every clip with watermark.
func NewTTS(backends *backend.Registry, provider backend.BackendProvider, watermark string) *TTS {
	return &TTS{
		backends:  backends,
		provider:  provider,
		watermark: watermark,
	}
}

// Synthesize synthesizes speech for text. The model is not required to have
// finished training. Numeric metadata entries are passed to the backend as
// parameters.
func (s *TTS) Synthesize(ctx context.Context, modelID, text string, metadata map[string]any) (*Speech, error) {
	b, ok := s.backends.Get(s.provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrNotFound, s.provider)
	}

	resp, err := b.Infer(ctx, &backend.Request{
		ModelID:    modelID,
		Input:      strings.NewReader(text),
		Parameters: metadata,
	})
	if err != nil {
		return nil, err
	}

	audio, err := io.ReadAll(resp.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}

	contentType := "application/octet-stream"
	if resp.Metadata != nil && resp.Metadata.ContentType != "" {
		contentType = resp.Metadata.ContentType
	}

	return &Speech{
		ModelID:     modelID,
		Watermark:   s.watermark,
		ContentType: contentType,
		Audio:       audio,
		Metadata:    resp.Metadata,
	}, nil
}
