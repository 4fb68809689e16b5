package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/polski-lektor/lektor-tts/internal/backend"
	"github.com/polski-lektor/lektor-tts/internal/backend/tone"
	"github.com/polski-lektor/lektor-tts/internal/config"
	"github.com/polski-lektor/lektor-tts/internal/dataset"
	"github.com/polski-lektor/lektor-tts/internal/env"
	"github.com/polski-lektor/lektor-tts/internal/events"
	"github.com/polski-lektor/lektor-tts/internal/logger"
	grpcserver "github.com/polski-lektor/lektor-tts/internal/server/grpc"
	httpserver "github.com/polski-lektor/lektor-tts/internal/server/http"
	"github.com/polski-lektor/lektor-tts/internal/service"
	"github.com/polski-lektor/lektor-tts/internal/storage"
	"github.com/polski-lektor/lektor-tts/internal/training"
	"github.com/polski-lektor/lektor-tts/internal/xfs"
)

const shutdownTimeout = 10 * time.Second

func run(cmd *cobra.Command, f *flags) error {
	cfg, err := config.Load(f.configPath, f.schemaPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("http-port") {
		cfg.Server.HTTPPort = f.httpPort
	}
	if cmd.Flags().Changed("grpc-port") {
		cfg.Server.GRPCPort = f.grpcPort
	}

	environment := env.FromEnv()
	log := logger.New(environment,
		logger.WithLevel(logger.ParseLevel(cfg.Log.Level)),
		logger.WithLogToFile(cfg.Log.ToFile),
		logger.WithLogFile(cfg.Log.File),
	)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := xfs.EnsureDir(cfg.Storage.ModelsDir); err != nil {
		return err
	}

	var nc *nats.Conn
	if cfg.NATSEnabled() {
		nc, err = nats.Connect(cfg.Events.NATSURL, nats.Name("lektor-tts"))
		if err != nil {
			return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.Events.NATSURL, err)
		}
		defer func() {
			if err := nc.Drain(); err != nil {
				log.Warn("Failed to drain NATS connection", "error", err)
			}
		}()
	}

	objects, err := openStorage(ctx, cfg, nc)
	if err != nil {
		return err
	}

	store := training.NewStore()
	if nc != nil {
		publisher := events.NewNatsPublisher(nc, cfg.Events.SubjectPrefix, log)
		store.Subscribe(publisher.Observe)
	}

	runner := training.NewRunner(store, cfg.Storage.ModelsDir, cfg.Training.StepInterval.Duration,
		training.WithLogger(log),
	)

	backends := backend.NewRegistry()
	defer func() {
		if err := backends.Close(); err != nil {
			log.Warn("Failed to close backends", "error", err)
		}
	}()

	if err := backends.Register(tone.New(toneDefaults(cfg.Synthesis), tone.WithLogger(log))); err != nil {
		return err
	}

	limiter := rate.NewLimiter(limitOf(cfg.RateLimit), burstOf(cfg.RateLimit))

	if watcher := watchConfig(f, runner, limiter, log); watcher != nil {
		defer watcher.Close()
	}

	httpSrv := httpserver.NewServer(cfg.Server.Address(), Version, httpserver.Services{
		Training: service.NewTraining(runner, store, cfg.Training),
		TTS:      service.NewTTS(backends, backend.BackendProviderTone, cfg.Synthesis.WatermarkTag),
		Datasets: dataset.NewPreparer(objects, cfg.Storage.ManifestName, log),
	}, limiter, log)
	grpcSrv := grpcserver.NewServer(log)

	log.Info("Starting lektor-tts",
		"version", Version,
		"environment", environment,
		"models_dir", cfg.Storage.ModelsDir,
		"storage", cfg.Storage.Backend,
		"nats", cfg.NATSEnabled(),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(httpSrv.ListenAndServe)

	g.Go(func() error {
		l, err := net.Listen("tcp", cfg.Server.GRPCAddress())
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.Server.GRPCAddress(), err)
		}
		return grpcSrv.Serve(l)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return errors.Join(
			httpSrv.Shutdown(shutdownCtx),
			grpcSrv.Shutdown(shutdownCtx),
			runner.Shutdown(shutdownCtx),
		)
	})

	return g.Wait()
}

func openStorage(ctx context.Context, cfg *config.Config, nc *nats.Conn) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendNATS:
		if nc == nil {
			return nil, errors.New("storage backend nats requires events.nats_url")
		}
		return storage.NewNatsObjectStore(ctx, nc, cfg.Storage.Bucket)
	default:
		return storage.NewFSStore(cfg.Storage.ModelsDir)
	}
}

// watchConfig hot-reloads the step interval and the synthesis rate limit.
// It returns nil when there is no config file to watch.
func watchConfig(f *flags, runner *training.Runner, limiter *rate.Limiter, log *slog.Logger) *config.Watcher {
	if _, err := os.Stat(f.configPath); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	watcher, err := config.NewWatcher(f.configPath, f.schemaPath, func(cfg *config.Config, err error) {
		if err != nil {
			log.Error("Failed to reload config", "error", err)
			return
		}

		runner.SetStepInterval(cfg.Training.StepInterval.Duration)
		limiter.SetLimit(limitOf(cfg.RateLimit))
		limiter.SetBurst(burstOf(cfg.RateLimit))

		log.Info("Config reloaded",
			"step_interval", cfg.Training.StepInterval.Duration,
			"requests_per_second", cfg.RateLimit.RequestsPerSecond,
		)
	})
	if err != nil {
		log.Warn("Config hot reload disabled", "path", f.configPath, "error", err)
		return nil
	}

	return watcher
}

func toneDefaults(s config.SynthesisConfig) tone.Defaults {
	return tone.Defaults{
		SampleRate:      s.SampleRate,
		DurationSeconds: s.DurationSeconds,
		FrequencyHz:     s.FrequencyHz,
		Amplitude:       s.Amplitude,
	}
}

func limitOf(c config.RateLimitConfig) rate.Limit {
	if c.RequestsPerSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(c.RequestsPerSecond)
}

func burstOf(c config.RateLimitConfig) int {
	if c.Burst > 0 {
		return c.Burst
	}
	return max(1, int(c.RequestsPerSecond))
}
