package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/polski-lektor/lektor-tts/internal/xfs"
)

const (
	defaultHTTPPort      = 8000
	defaultGRPCPort      = 9000
	defaultModelsDir     = "/models"
	defaultBucket        = "DATASETS"
	defaultManifestName  = "manifest-demo.jsonl"
	defaultStepInterval  = 100 * time.Millisecond
	defaultArchitecture  = "vits"
	defaultEpochs        = 5
	defaultLearningRate  = 0.0001
	defaultSampleRate    = 22050
	defaultDuration      = 1.0
	defaultFrequency     = 440.0
	defaultAmplitude     = 0.2
	defaultWatermarkTag  = "syntetyczny"
	defaultSubjectPrefix = "training.status"
	defaultLogFile       = "logs/lektor-tts.log"
)

// DefaultHTTPPort returns the default HTTP port.
func DefaultHTTPPort() int {
	return defaultHTTPPort
}

// DefaultGRPCPort returns the default gRPC port.
func DefaultGRPCPort() int {
	return defaultGRPCPort
}

// DefaultConfigPath returns the default path for the lektor-tts config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "lektor-tts", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "lektor-tts")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "lektor-tts")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "lektor-tts")
		}
		return filepath.Join(home, ".config", "lektor-tts")
	}
}

// DefaultModelsPath returns the default root for models and datasets.
func DefaultModelsPath() string {
	return defaultModelsDir
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{Version: "v1"}
	cfg.ApplyDefaults()

	return cfg
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = defaultHTTPPort
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = defaultGRPCPort
	}

	if c.Storage.ModelsDir == "" {
		c.Storage.ModelsDir = DefaultModelsPath()
	}
	c.Storage.ModelsDir = xfs.ExpandTilde(c.Storage.ModelsDir)
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageBackendFS
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = defaultBucket
	}
	if c.Storage.ManifestName == "" {
		c.Storage.ManifestName = defaultManifestName
	}

	if c.Training.StepInterval.Duration == 0 {
		c.Training.StepInterval.Duration = defaultStepInterval
	}
	if c.Training.DefaultArchitecture == "" {
		c.Training.DefaultArchitecture = defaultArchitecture
	}
	if c.Training.DefaultEpochs == 0 {
		c.Training.DefaultEpochs = defaultEpochs
	}
	if c.Training.DefaultLearningRate == 0 {
		c.Training.DefaultLearningRate = defaultLearningRate
	}

	if c.Synthesis.SampleRate == 0 {
		c.Synthesis.SampleRate = defaultSampleRate
	}
	if c.Synthesis.DurationSeconds == 0 {
		c.Synthesis.DurationSeconds = defaultDuration
	}
	if c.Synthesis.FrequencyHz == 0 {
		c.Synthesis.FrequencyHz = defaultFrequency
	}
	if c.Synthesis.Amplitude == 0 {
		c.Synthesis.Amplitude = defaultAmplitude
	}
	if c.Synthesis.WatermarkTag == "" {
		c.Synthesis.WatermarkTag = defaultWatermarkTag
	}

	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = defaultSubjectPrefix
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File == "" {
		c.Log.File = defaultLogFile
	}
}
