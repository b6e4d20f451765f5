package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fedutinova/speechcoach/internal/analysis"
	"github.com/fedutinova/speechcoach/internal/audio"
	appconfig "github.com/fedutinova/speechcoach/internal/config"
	"github.com/fedutinova/speechcoach/internal/database"
	"github.com/fedutinova/speechcoach/internal/gpt"
	"github.com/fedutinova/speechcoach/internal/job"
	"github.com/fedutinova/speechcoach/internal/memq"
	"github.com/fedutinova/speechcoach/internal/narrative"
	"github.com/fedutinova/speechcoach/internal/pipeline"
	"github.com/fedutinova/speechcoach/internal/profile"
	"github.com/fedutinova/speechcoach/internal/queue"
	"github.com/fedutinova/speechcoach/internal/redis"
	"github.com/fedutinova/speechcoach/internal/repository"
	"github.com/fedutinova/speechcoach/internal/server"
	"github.com/fedutinova/speechcoach/internal/storage"
	"github.com/fedutinova/speechcoach/internal/store"
	httpapi "github.com/fedutinova/speechcoach/internal/transport/http"
	"github.com/fedutinova/speechcoach/internal/workers"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(config func() appconfig.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the analysis workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, config())
		},
	}
}

func serve(ctx context.Context, cfg appconfig.Config) error {
	slog.Info("starting speechcoach", "addr", cfg.HTTPAddr, "workers", cfg.QueueWorkers,
		"queue", cfg.QueueBackend, "store", cfg.StoreBackend)

	storageService, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	slog.Info("storage initialized", "type", storage.GetStorageType(cfg))

	deps := map[string]httpapi.Pinger{}

	var st store.Store
	switch cfg.StoreBackend {
	case "postgres":
		db, err := database.Open(ctx, cfg.DatabaseURL, database.PoolOptions{
			MaxConns: int32(2*cfg.QueueWorkers + 4),
			MinConns: 1,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		repo := repository.NewJobRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		st = repo
		deps["database"] = db
	case "memory", "":
		st = store.NewMemory()
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	defer st.Close()

	var src queue.Source
	switch cfg.QueueBackend {
	case "redis":
		redisService, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisService.Close()

		src, err = queue.NewRedisSource(ctx, redisService.Client(), queue.RedisSourceConfig{
			Stream: cfg.RedisStream,
			Group:  cfg.RedisGroup,
		})
		if err != nil {
			return err
		}
		deps["redis"] = redisService
	case "memory", "":
		src = memq.New()
	default:
		return fmt.Errorf("unknown QUEUE_BACKEND %q", cfg.QueueBackend)
	}

	profiles, err := loadProfiles(cfg)
	if err != nil {
		return err
	}

	handler, err := workers.NewAnalysisHandler(newRunner(cfg, storageService, profiles), cfg.RequiredStages)
	if err != nil {
		return err
	}

	dispatcher := queue.NewDispatcher(st, src, queue.WithEvictHook(func(ctx context.Context, j *job.Job) {
		if !j.OwnsAudio() {
			return
		}
		if err := storageService.DeleteFile(ctx, j.AudioRef); err != nil {
			slog.Warn("failed to delete audio of evicted job", "job_id", j.ID, "key", j.AudioRef, "error", err)
		}
	}))
	dispatcher.StartConsumers(ctx, cfg.QueueWorkers, handler.Handle)
	dispatcher.StartJanitor(ctx, cfg.GCInterval, cfg.JobRetention)

	handlers := &httpapi.Handlers{
		Jobs:     dispatcher,
		Storage:  storageService,
		Profiles: profiles,
		Config:   cfg,
		Deps:     deps,
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.NewRouter(handlers, cfg.RateLimitPerMinute),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case serveErr = <-errCh:
		slog.Error("server error", "err", serveErr)
	}

	shCtx, shCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer shCancel()
	if err := srv.Shutdown(shCtx); err != nil {
		slog.Warn("http shutdown", "err", err)
	}

	// waits for claimed jobs to reach a terminal state
	if err := dispatcher.Close(); err != nil {
		slog.Warn("dispatcher close", "err", err)
	}
	return serveErr
}

func loadProfiles(cfg appconfig.Config) (*profile.Registry, error) {
	profiles, err := profile.Load(cfg.ProfilesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	return profiles, nil
}

func newRunner(cfg appconfig.Config, files audio.FileGetter, profiles *profile.Registry) *pipeline.Runner {
	var capability narrative.Capability
	if cfg.OpenAIAPIKey != "" {
		capability = gpt.NewClient(gpt.Config{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.OpenAITemperature,
			MaxTokens:   cfg.OpenAIMaxTokens,
		})
	} else {
		slog.Warn("OPENAI_API_KEY not set, narratives are disabled")
	}

	return pipeline.NewRunner(
		audio.NewLoader(files, cfg.AudioLoadTimeout),
		analysis.NewProsodyAnalyzer(nil),
		profiles,
		narrative.NewSynthesizer(capability, cfg.NarrativeTimeout),
	)
}
