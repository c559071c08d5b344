package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/askdb/askdb/internal/api"
	"github.com/askdb/askdb/internal/api/uistatic"
	"github.com/askdb/askdb/internal/archive"
	"github.com/askdb/askdb/internal/auth"
	"github.com/askdb/askdb/internal/chat"
	"github.com/askdb/askdb/internal/completion"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query"
	s3store "github.com/askdb/askdb/internal/storage/s3"
	"github.com/askdb/askdb/internal/transcript"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("askdb-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	transcriptStore, err := transcript.Open(context.Background(), transcript.StoreConfig{
		Driver:          cfg.Transcripts.Driver,
		DSN:             cfg.Transcripts.DSN,
		MaxOpenConns:    cfg.Transcripts.MaxOpenConns,
		MaxIdleConns:    cfg.Transcripts.MaxIdleConns,
		ConnMaxIdleTime: cfg.Transcripts.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Transcripts.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open transcript store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = transcriptStore.Close() }()

	completions, err := completion.NewOpenAIClient(completion.OpenAIConfig{
		BaseURL: cfg.Completion.BaseURL,
		APIKey:  cfg.Completion.APIKey,
		Model:   cfg.Completion.Model,
		Timeout: cfg.Completion.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize completion client", slog.Any("error", err))
		os.Exit(1)
	}

	taskTemplate, err := chat.LoadTaskTemplate(cfg.Chat.TaskTemplatePath)
	if err != nil {
		logger.Error("failed to load task template", slog.Any("error", err))
		os.Exit(1)
	}

	controller, err := chat.NewController(context.Background(), chat.Config{
		Provider:       cfg.Completion.Provider,
		Model:          cfg.Completion.Model,
		TaskTemplate:   taskTemplate,
		InterCallDelay: cfg.Chat.InterCallDelay,
		Target: query.Target{
			Driver: cfg.Database.Driver,
			DSN:    cfg.Database.DSN,
		},
	}, chat.Dependencies{
		Completions: completions,
		Store:       transcriptStore,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to open chat session", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:      logger,
		Chat:        controller,
		Transcripts: transcriptStore,
		UI:          uistatic.Handler(),
		Readiness: api.CombineReadinessChecks(
			api.CheckCompletionConfig(cfg),
			api.CheckDatabaseTarget(cfg),
			api.CheckTranscripts(transcriptStore),
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Archive.Enabled {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		archiveService := &archive.Service{
			Sessions:    transcriptStore,
			ObjectStore: objectStore,
			Config: archive.Config{
				Interval:   cfg.Archive.Interval,
				BatchLimit: cfg.Archive.BatchLimit,
			},
			Logger: logger,
		}
		deps.Archive = archiveService
		go func() {
			if err := archiveService.Run(ctx); err != nil {
				logger.Error("archive loop stopped", slog.Any("error", err))
			}
		}()
	}

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("session_id", controller.SessionID()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
