// Package http exposes the service over a huma v2 API.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/time/rate"

	"github.com/polski-lektor/lektor-tts/internal/dataset"
	"github.com/polski-lektor/lektor-tts/internal/service"
)

const (
	apiTitle          = "Polski Lektor TTS"
	readHeaderTimeout = 10 * time.Second
)

// Services bundles what the HTTP handlers call into.
type Services struct {
	Training *service.Training
	TTS      *service.TTS
	Datasets *dataset.Preparer
}

// Register adds every operation to api. A nil limiter disables rate limiting
// of synthesis requests.
func Register(api huma.API, services Services, limiter *rate.Limiter, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}

	api.UseMiddleware(RequestLogger(log))

	var ttsMiddlewares []func(huma.Context, func(huma.Context))
	if limiter != nil {
		ttsMiddlewares = append(ttsMiddlewares, RateLimit(api, limiter))
	}

	RegisterHealth(api)
	NewDatasetHandler(api, services.Datasets)
	NewTrainHandler(api, services.Training)
	NewTTSHandler(api, services.TTS, ttsMiddlewares...)
	RegisterWatermark(api)
}

// RateLimit rejects requests with 429 once limiter runs out of tokens.
func RateLimit(api huma.API, limiter *rate.Limiter) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if !limiter.Allow() {
			ctx.SetHeader("Retry-After", "1")
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, "too many synthesis requests")
			return
		}
		next(ctx)
	}
}

// RequestLogger logs one line per handled operation.
func RequestLogger(log *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()
		next(ctx)

		log.Debug("Request handled",
			"operation", ctx.Operation().OperationID,
			"method", ctx.Method(),
			"path", ctx.URL().Path,
			"status", ctx.Status(),
			"elapsed", time.Since(start),
		)
	}
}

// Server is the HTTP front of the service.
type Server struct {
	API    huma.API
	server *http.Server
	log    *slog.Logger
}

// NewConfig returns the huma config of the service. Responses carry no
// $schema link so bodies keep exactly their documented keys.
func NewConfig(version string) huma.Config {
	cfg := huma.DefaultConfig(apiTitle, version)
	cfg.CreateHooks = nil

	return cfg
}

// NewServer creates a huma API on a fresh mux, registers every operation and
// wraps the mux with gzip compression.
func NewServer(addr, version string, services Services, limiter *rate.Limiter, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()
	api := humago.New(mux, NewConfig(version))
	Register(api, services, limiter, log)

	return &Server{
		API: api,
		server: &http.Server{
			Addr:              addr,
			Handler:           gzhttp.GzipHandler(mux),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		log: log,
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.log.Info("HTTP server listening", "address", l.Addr().String())

	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(l)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
