package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polski-lektor/lektor-tts/internal/env"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(env.Production, WithConsole(&buf))

	log.Info("training started", "model_id", "demo")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "training started", record["msg"])
	assert.Equal(t, "demo", record["model_id"])
}

func TestNew_DevelopmentUsesTint(t *testing.T) {
	var buf bytes.Buffer
	log := New(env.Test, WithConsole(&buf), WithLevel(slog.LevelDebug))

	log.Debug("step", "epoch", 2)

	assert.Contains(t, buf.String(), "step")
	assert.Contains(t, buf.String(), "epoch=2")
}

func TestNew_LogToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "lektor.log")
	log := New(env.Test, WithConsole(&buf), WithLogToFile(true), WithLogFile(path))

	log.With("component", "runner").Warn("superseded")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"runner"`)
	assert.Contains(t, buf.String(), "superseded")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
