package backend

import (
	"context"
	"io"
	"time"
)

// BackendProvider is a string identifier for a backend provider.
type BackendProvider string

const (
	// BackendProviderTone renders a placeholder sine tone instead of speech.
	BackendProviderTone BackendProvider = "tone"
)

// Backend defines the core interface for all synthesis backends.
type Backend interface {
	// Provider returns the backend identifier.
	Provider() BackendProvider

	// Infer executes synthesis and returns the complete result.
	Infer(ctx context.Context, req *Request) (*Response, error)

	// Close cleans up resources.
	Close() error
}

// Request encapsulates all parameters for a synthesis call.
type Request struct {
	// ModelID identifies the voice model the caller asked for.
	ModelID string

	// Input is the text to synthesize.
	Input io.Reader

	// Parameters contains backend-specific parameters.
	Parameters map[string]any
}

// Response contains the result of a synthesis call.
type Response struct {
	// Output is the encoded audio.
	Output io.Reader

	// Metadata contains backend-specific information.
	Metadata *ResponseMetadata
}

// ResponseMetadata contains metadata about the response.
type ResponseMetadata struct {
	Provider        BackendProvider `json:"provider"`
	Model           string          `json:"model"`
	ContentType     string          `json:"content_type"`
	Timestamp       time.Time       `json:"timestamp"`
	OutputBytes     int64           `json:"output_bytes"`
	BackendSpecific map[string]any  `json:"backend_specific"`
}
