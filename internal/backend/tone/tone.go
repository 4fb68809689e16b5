// Package tone implements a synthesis backend that ignores the input text and
// renders a fixed sine tone as a 16-bit mono PCM WAV clip.
package tone

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/polski-lektor/lektor-tts/internal/backend"
	"github.com/polski-lektor/lektor-tts/mapsafe"
)

const (
	// ContentType is the media type of every clip the backend produces.
	ContentType = "audio/wav"

	bitDepth      = 16
	numChannels   = 1
	pcmFormat     = 1
	maxSampleRate = 48000
	maxDuration   = 10.0
	cacheEntries  = 16
	cacheBytes    = 8 << 20
)

// Parameter keys understood in backend.Request.Parameters.
const (
	ParamDurationSeconds = "duration_seconds"
	ParamFrequencyHz     = "frequency_hz"
	ParamSampleRate      = "sample_rate"
	ParamAmplitude       = "amplitude"
)

// Defaults are used for every parameter the request does not set.
type Defaults struct {
	SampleRate      int
	DurationSeconds float64
	FrequencyHz     float64
	Amplitude       float64
}

type params struct {
	sampleRate int
	duration   float64
	frequency  float64
	amplitude  float64
}

// Option configures a Backend.
type Option func(*Backend)

// WithTempDir sets where intermediate WAV files are written.
func WithTempDir(dir string) Option {
	return func(b *Backend) {
		b.tempDir = dir
	}
}

// WithLogger sets the logger used by the backend.
func WithLogger(log *slog.Logger) Option {
	return func(b *Backend) {
		b.log = log
	}
}

// Backend renders placeholder audio.
type Backend struct {
	defaults Defaults
	tempDir  string
	cache    *cache
	log      *slog.Logger
}

// New creates a tone backend.
func New(defaults Defaults, opts ...Option) *Backend {
	b := &Backend{
		defaults: defaults,
		cache:    newCache(cacheEntries, cacheBytes),
		log:      slog.Default(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Provider implements backend.Backend.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderTone
}

// Infer implements backend.Backend. The request input is drained and ignored.
func (b *Backend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := b.resolve(req.Parameters)
	if err != nil {
		return nil, err
	}

	if req.Input != nil {
		_, _ = io.Copy(io.Discard, req.Input)
	}

	clip, cached := b.cache.get(p)
	if !cached {
		clip, err = b.render(p)
		if err != nil {
			return nil, err
		}
		b.cache.put(p, clip)
	}

	b.log.Debug("tone rendered",
		"model_id", req.ModelID,
		"sample_rate", p.sampleRate,
		"frequency_hz", p.frequency,
		"bytes", len(clip),
		"cached", cached,
	)

	return &backend.Response{
		Output: bytes.NewReader(clip),
		Metadata: &backend.ResponseMetadata{
			Provider:    backend.BackendProviderTone,
			Model:       req.ModelID,
			ContentType: ContentType,
			Timestamp:   time.Now(),
			OutputBytes: int64(len(clip)),
			BackendSpecific: map[string]any{
				ParamSampleRate:      p.sampleRate,
				ParamDurationSeconds: p.duration,
				ParamFrequencyHz:     p.frequency,
				ParamAmplitude:       p.amplitude,
			},
		},
	}, nil
}

// Close implements backend.Backend.
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) resolve(m map[string]any) (params, error) {
	if raw, ok := mapsafe.Lookup[float64](m, ParamSampleRate); ok && raw != math.Trunc(raw) {
		return params{}, fmt.Errorf("%w: %s=%g is not a whole number", backend.ErrInvalidParameter, ParamSampleRate, raw)
	}

	p := params{
		sampleRate: mapsafe.Get(m, ParamSampleRate, b.defaults.SampleRate),
		duration:   mapsafe.Get(m, ParamDurationSeconds, b.defaults.DurationSeconds),
		frequency:  mapsafe.Get(m, ParamFrequencyHz, b.defaults.FrequencyHz),
		amplitude:  mapsafe.Get(m, ParamAmplitude, b.defaults.Amplitude),
	}

	switch {
	case p.sampleRate <= 0 || p.sampleRate > maxSampleRate:
		return params{}, fmt.Errorf("%w: %s=%d", backend.ErrInvalidParameter, ParamSampleRate, p.sampleRate)
	case p.duration <= 0 || p.duration > maxDuration:
		return params{}, fmt.Errorf("%w: %s=%g", backend.ErrInvalidParameter, ParamDurationSeconds, p.duration)
	case p.frequency <= 0 || p.frequency >= float64(p.sampleRate)/2:
		return params{}, fmt.Errorf("%w: %s=%g", backend.ErrInvalidParameter, ParamFrequencyHz, p.frequency)
	case p.amplitude < 0 || p.amplitude > 1:
		return params{}, fmt.Errorf("%w: %s=%g", backend.ErrInvalidParameter, ParamAmplitude, p.amplitude)
	}

	return p, nil
}

// Samples returns the PCM samples of a sine tone at full 16-bit scale.
func Samples(sampleRate int, duration, frequency, amplitude float64) []int {
	n := int(float64(sampleRate) * duration)
	data := make([]int, n)

	peak := amplitude * math.MaxInt16
	for i := range data {
		t := float64(i) / float64(sampleRate)
		data[i] = int(math.Round(peak * math.Sin(2*math.Pi*frequency*t)))
	}

	return data
}

// render encodes through a temp file since the WAV encoder seeks back to
// patch chunk sizes.
func (b *Backend) render(p params) ([]byte, error) {
	f, err := os.CreateTemp(b.tempDir, "tone-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}()

	enc := wav.NewEncoder(f, p.sampleRate, bitDepth, numChannels, pcmFormat)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: numChannels, SampleRate: p.sampleRate},
		Data:           Samples(p.sampleRate, p.duration, p.frequency, p.amplitude),
		SourceBitDepth: bitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize wav: %w", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind wav: %w", err)
	}

	return io.ReadAll(f)
}
