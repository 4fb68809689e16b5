package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/polski-lektor/lektor-tts/internal/backend"
	"github.com/polski-lektor/lektor-tts/internal/backend/tone"
	"github.com/polski-lektor/lektor-tts/internal/config"
	"github.com/polski-lektor/lektor-tts/internal/dataset"
	"github.com/polski-lektor/lektor-tts/internal/service"
	"github.com/polski-lektor/lektor-tts/internal/storage"
	"github.com/polski-lektor/lektor-tts/internal/training"
)

type fixture struct {
	api       humatest.TestAPI
	services  Services
	runner    *training.Runner
	modelsDir string
}

func newFixture(t *testing.T, limiter *rate.Limiter) *fixture {
	t.Helper()

	cfg := config.Default()
	modelsDir := t.TempDir()

	store := training.NewStore()
	runner := training.NewRunner(store, modelsDir, 20*time.Millisecond)
	t.Cleanup(runner.Wait)

	files, err := storage.NewFSStore(modelsDir)
	require.NoError(t, err)

	backends := backend.NewRegistry()
	require.NoError(t, backends.Register(tone.New(tone.Defaults{
		SampleRate:      cfg.Synthesis.SampleRate,
		DurationSeconds: cfg.Synthesis.DurationSeconds,
		FrequencyHz:     cfg.Synthesis.FrequencyHz,
		Amplitude:       cfg.Synthesis.Amplitude,
	}, tone.WithTempDir(t.TempDir()))))

	services := Services{
		Training: service.NewTraining(runner, store, cfg.Training),
		TTS:      service.NewTTS(backends, backend.BackendProviderTone, cfg.Synthesis.WatermarkTag),
		Datasets: dataset.NewPreparer(files, cfg.Storage.ManifestName, nil),
	}

	_, api := humatest.New(t, NewConfig("test"))
	Register(api, services, limiter, nil)

	return &fixture{api: api, services: services, runner: runner, modelsDir: modelsDir}
}

func decodeStatus(t *testing.T, body []byte) training.Status {
	t.Helper()

	var status training.Status
	require.NoError(t, json.Unmarshal(body, &status))
	return status
}

func TestTrain_DemoScenario(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.api.Post("/train", map[string]any{"modelId": "demo"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	started := decodeStatus(t, resp.Body.Bytes())
	assert.Equal(t, "demo", started.ID)
	assert.Equal(t, training.StateTraining, started.Status)
	assert.Equal(t, 0.1, started.Progress)
	assert.Nil(t, started.Message)

	resp = f.api.Get("/train/demo/status")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, training.StateTraining, decodeStatus(t, resp.Body.Bytes()).Status)

	f.runner.Wait()

	resp = f.api.Get("/train/demo/status")
	done := decodeStatus(t, resp.Body.Bytes())
	assert.Equal(t, "demo", done.ID)
	assert.Equal(t, training.StateReady, done.Status)
	assert.Equal(t, 1.0, done.Progress)
	require.NotNil(t, done.Message)
	assert.Equal(t, "Trening ukończony", *done.Message)

	assert.DirExists(t, filepath.Join(f.modelsDir, "demo"))
}

func TestTrain_StatusUnknown(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.api.Get("/train/nobody/status")
	require.Equal(t, http.StatusOK, resp.Code)

	status := decodeStatus(t, resp.Body.Bytes())
	assert.Equal(t, training.Unknown("nobody"), status)
	assert.Contains(t, resp.Body.String(), `"message":null`)
}

func TestTrain_RejectsInvalidRequests(t *testing.T) {
	f := newFixture(t, nil)

	cases := map[string]map[string]any{
		"zero epochs":     {"modelId": "anna", "epochs": 0},
		"negative epochs": {"modelId": "anna", "epochs": -3},
		"missing id":      {"epochs": 2},
		"empty id":        {"modelId": ""},
		"nested id":       {"modelId": "a/b"},
		"wrong type":      {"modelId": "anna", "epochs": "five"},
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := f.api.Post("/train", body)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.Code, resp.Body.String())
		})
	}

	resp := f.api.Get("/train/anna/status")
	assert.Equal(t, training.StateUnknown, decodeStatus(t, resp.Body.Bytes()).Status)
}

func TestTrain_ResubmitRestartsRun(t *testing.T) {
	f := newFixture(t, nil)

	require.Equal(t, http.StatusOK, f.api.Post("/train", map[string]any{"modelId": "anna", "epochs": 1}).Code)
	f.runner.Wait()

	resp := f.api.Post("/train", map[string]any{"modelId": "anna", "epochs": 2})
	restarted := decodeStatus(t, resp.Body.Bytes())
	assert.Equal(t, training.StateTraining, restarted.Status)
	assert.Equal(t, 0.1, restarted.Progress)

	f.runner.Wait()
	assert.Equal(t, training.StateReady, decodeStatus(t, f.api.Get("/train/anna/status").Body.Bytes()).Status)
}

func TestTrain_List(t *testing.T) {
	f := newFixture(t, nil)

	f.api.Post("/train", map[string]any{"modelId": "zosia", "epochs": 1})
	f.api.Post("/train", map[string]any{"modelId": "adam", "epochs": 1})
	f.runner.Wait()

	resp := f.api.Get("/train")
	require.Equal(t, http.StatusOK, resp.Code)

	var list TrainListDTO
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list.Models, 2)
	assert.Equal(t, "adam", list.Models[0].ID)
	assert.Equal(t, "zosia", list.Models[1].ID)
}

func TestTrain_Events(t *testing.T) {
	f := newFixture(t, nil)

	f.api.Post("/train", map[string]any{"modelId": "anna", "epochs": 2})

	resp := f.api.Get("/train/anna/events")
	require.Equal(t, http.StatusOK, resp.Code)

	body := resp.Body.String()
	assert.Contains(t, body, "event: status")
	assert.Contains(t, body, `"status":"ready"`)
}

func TestTTS_ReturnsWav(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.api.Post("/tts/anna", map[string]any{"text": "Dzień dobry"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	assert.Equal(t, "audio/wav", resp.Header().Get("Content-Type"))
	assert.Equal(t, "anna", resp.Header().Get(HeaderModelID))
	assert.Equal(t, "syntetyczny", resp.Header().Get(HeaderWatermark))

	body := resp.Body.Bytes()
	assert.Equal(t, "RIFF", string(body[0:4]))
	assert.Len(t, body, 44+22050*2)
}

func TestTTS_DoesNotRequireTrainedModel(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.api.Post("/tts/never-trained", map[string]any{"text": "x", "metadata": map[string]any{"speaker": "anna"}})
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestTTS_InvalidToneParameters(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.api.Post("/tts/anna", map[string]any{"text": "x", "metadata": map[string]any{"amplitude": 7}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestTTS_RateLimited(t *testing.T) {
	f := newFixture(t, rate.NewLimiter(rate.Every(time.Hour), 1))

	first := f.api.Post("/tts/anna", map[string]any{"text": "x"})
	assert.Equal(t, http.StatusOK, first.Code)

	second := f.api.Post("/tts/anna", map[string]any{"text": "x"})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// other operations are not limited
	assert.Equal(t, http.StatusOK, f.api.Get("/health").Code)
}

func TestWatermark_Echo(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.api.Post("/watermark/apply", map[string]any{"marker": "lektor", "payload": "abc"})
	require.Equal(t, http.StatusOK, resp.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "lektor", out["marker"])
	assert.Equal(t, "abc", out["payload"])
}

func TestWatermark_MissingField(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.api.Post("/watermark/apply", map[string]any{"marker": "lektor"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func multipartBody(t *testing.T, files map[string]string) (string, *bytes.Buffer) {
	t.Helper()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for name, content := range files {
		part, err := w.CreateFormFile(datasetFilesField, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return "Content-Type: " + w.FormDataContentType(), buf
}

func TestDataset_Prepare(t *testing.T) {
	f := newFixture(t, nil)

	header, body := multipartBody(t, map[string]string{
		"a.wav": "aaa",
		"b.wav": "bbbb",
	})

	resp := f.api.Post("/dataset/prepare", header, body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var manifest dataset.Manifest
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &manifest))
	assert.Equal(t, 2, manifest.Samples)
	assert.Equal(t, filepath.Join(f.modelsDir, "manifest-demo.jsonl"), manifest.ManifestPath)

	content, err := os.ReadFile(manifest.ManifestPath)
	require.NoError(t, err)

	lines := strings.Split(string(content), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, string(content), `{"path":"a.wav","text":"a"}`)
	assert.Contains(t, string(content), `{"path":"b.wav","text":"b"}`)

	stored, err := os.ReadFile(filepath.Join(f.modelsDir, "b.wav"))
	require.NoError(t, err)
	assert.Equal(t, "bbbb", string(stored))
}

func TestDataset_RequiresFiles(t *testing.T) {
	f := newFixture(t, nil)

	header, body := multipartBody(t, nil)

	resp := f.api.Post("/dataset/prepare", header, body)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"ok"`)
}

func TestNewServer_Gzip(t *testing.T) {
	srv := NewServer("127.0.0.1:0", "test", Services{}, nil, nil)

	req, err := http.NewRequest(http.MethodGet, "/health", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func serve(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req, err := http.NewRequest(method, path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	return rec
}

func jsonKeys(t *testing.T, body []byte) []string {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))

	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	return keys
}

func TestNewServer_ResponseKeys(t *testing.T) {
	f := newFixture(t, nil)
	srv := NewServer("127.0.0.1:0", "test", f.services, nil, nil)

	resp := serve(t, srv, http.MethodPost, "/train", `{"modelId":"demo","epochs":1}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.ElementsMatch(t, []string{"id", "status", "progress", "message"}, jsonKeys(t, resp.Body.Bytes()))

	resp = serve(t, srv, http.MethodGet, "/train/demo/status", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.ElementsMatch(t, []string{"id", "status", "progress", "message"}, jsonKeys(t, resp.Body.Bytes()))

	resp = serve(t, srv, http.MethodPost, "/watermark/apply", `{"marker":"m","payload":"p"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, `{"status":"ok","marker":"m","payload":"p"}`, strings.TrimSpace(resp.Body.String()))

	f.runner.Wait()
}

func TestNewServer_IgnoresUnknownRequestFields(t *testing.T) {
	f := newFixture(t, nil)
	srv := NewServer("127.0.0.1:0", "test", f.services, nil, nil)

	resp := serve(t, srv, http.MethodPost, "/train", `{"modelId":"x","epochs":1,"extra":1}`)
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = serve(t, srv, http.MethodPost, "/tts/x", `{"text":"hej","voice":"anna"}`)
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = serve(t, srv, http.MethodPost, "/watermark/apply", `{"marker":"m","payload":"p","extra":true}`)
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	f.runner.Wait()
}
