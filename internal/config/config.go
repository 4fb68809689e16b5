package config

import (
	"fmt"
	"time"
)

// StorageBackend selects where uploaded datasets are written.
type StorageBackend string

const (
	// StorageBackendFS stores datasets on the local filesystem under the models directory.
	StorageBackendFS StorageBackend = "fs"

	// StorageBackendNATS stores datasets in a NATS JetStream object store bucket.
	StorageBackendNATS StorageBackend = "nats"
)

// Config holds the main configuration for the application.
type Config struct {
	Version   string          `json:"version"              toml:"version"              yaml:"version"`
	Server    ServerConfig    `json:"server,omitempty"     toml:"server,omitempty"     yaml:"server,omitempty"`
	Storage   StorageConfig   `json:"storage,omitempty"    toml:"storage,omitempty"    yaml:"storage,omitempty"`
	Training  TrainingConfig  `json:"training,omitempty"   toml:"training,omitempty"   yaml:"training,omitempty"`
	Synthesis SynthesisConfig `json:"synthesis,omitempty"  toml:"synthesis,omitempty"  yaml:"synthesis,omitempty"`
	RateLimit RateLimitConfig `json:"rate_limit,omitempty" toml:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	Events    EventsConfig    `json:"events,omitempty"     toml:"events,omitempty"     yaml:"events,omitempty"`
	Log       LogConfig       `json:"log,omitempty"        toml:"log,omitempty"        yaml:"log,omitempty"`
}

// ServerConfig holds the listener configuration.
type ServerConfig struct {
	Host     string `env:"LEKTOR_SERVER_HOST"      json:"host,omitempty"      toml:"host,omitempty"      yaml:"host,omitempty"`
	HTTPPort int    `env:"LEKTOR_SERVER_HTTP_PORT" json:"http_port,omitempty" toml:"http_port,omitempty" yaml:"http_port,omitempty"`
	GRPCPort int    `env:"LEKTOR_SERVER_GRPC_PORT" json:"grpc_port,omitempty" toml:"grpc_port,omitempty" yaml:"grpc_port,omitempty"`
}

// StorageConfig holds the dataset and model storage configuration.
type StorageConfig struct {
	ModelsDir    string         `env:"TTS_MODELS_DIR"        json:"models_dir,omitempty"    toml:"models_dir,omitempty"    yaml:"models_dir,omitempty"`
	Backend      StorageBackend `env:"LEKTOR_STORAGE_BACKEND" json:"backend,omitempty"       toml:"backend,omitempty"       yaml:"backend,omitempty"`
	Bucket       string         `env:"LEKTOR_STORAGE_BUCKET"  json:"bucket,omitempty"        toml:"bucket,omitempty"        yaml:"bucket,omitempty"`
	ManifestName string         `json:"manifest_name,omitempty" toml:"manifest_name,omitempty" yaml:"manifest_name,omitempty"`
}

// TrainingConfig holds the simulated training parameters.
type TrainingConfig struct {
	StepInterval        Duration `json:"step_interval,omitempty"         toml:"step_interval,omitempty"         yaml:"step_interval,omitempty"`
	DefaultArchitecture string   `json:"default_architecture,omitempty"  toml:"default_architecture,omitempty"  yaml:"default_architecture,omitempty"`
	DefaultEpochs       int      `json:"default_epochs,omitempty"        toml:"default_epochs,omitempty"        yaml:"default_epochs,omitempty"`
	DefaultLearningRate float64  `json:"default_learning_rate,omitempty" toml:"default_learning_rate,omitempty" yaml:"default_learning_rate,omitempty"`
}

// SynthesisConfig holds the placeholder tone parameters.
type SynthesisConfig struct {
	SampleRate      int     `json:"sample_rate,omitempty"      toml:"sample_rate,omitempty"      yaml:"sample_rate,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty" toml:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`
	FrequencyHz     float64 `json:"frequency_hz,omitempty"     toml:"frequency_hz,omitempty"     yaml:"frequency_hz,omitempty"`
	Amplitude       float64 `json:"amplitude,omitempty"        toml:"amplitude,omitempty"        yaml:"amplitude,omitempty"`
	WatermarkTag    string  `json:"watermark_tag,omitempty"    toml:"watermark_tag,omitempty"    yaml:"watermark_tag,omitempty"`
}

// RateLimitConfig holds the token bucket used for synthesis requests.
// A zero RequestsPerSecond disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" toml:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty"`
	Burst             int     `json:"burst,omitempty"               toml:"burst,omitempty"               yaml:"burst,omitempty"`
}

// EventsConfig holds the NATS connection used for status events and object storage.
type EventsConfig struct {
	NATSURL       string `env:"LEKTOR_NATS_URL" json:"nats_url,omitempty"       toml:"nats_url,omitempty"       yaml:"nats_url,omitempty"`
	SubjectPrefix string `json:"subject_prefix,omitempty" toml:"subject_prefix,omitempty" yaml:"subject_prefix,omitempty"`
}

// LogConfig holds logging options.
type LogConfig struct {
	Level  string `env:"LEKTOR_LOG_LEVEL" json:"level,omitempty"   toml:"level,omitempty"   yaml:"level,omitempty"`
	File   string `json:"file,omitempty"    toml:"file,omitempty"    yaml:"file,omitempty"`
	ToFile bool   `json:"to_file,omitempty" toml:"to_file,omitempty" yaml:"to_file,omitempty"`
}

// Duration is a time.Duration read from strings such as "100ms".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}

	d.Duration = parsed
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// NATSEnabled reports whether a NATS server is configured.
func (c *Config) NATSEnabled() bool {
	return c.Events.NATSURL != ""
}

// Address returns the HTTP listen address.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.HTTPPort)
}

// GRPCAddress returns the gRPC listen address.
func (s ServerConfig) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort)
}
