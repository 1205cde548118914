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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/atlas-insights/sibyl/internal/api"
	"github.com/atlas-insights/sibyl/internal/audit"
	"github.com/atlas-insights/sibyl/internal/config"
	"github.com/atlas-insights/sibyl/internal/convo"
	"github.com/atlas-insights/sibyl/internal/executor"
	"github.com/atlas-insights/sibyl/internal/export"
	"github.com/atlas-insights/sibyl/internal/format"
	"github.com/atlas-insights/sibyl/internal/intent"
	"github.com/atlas-insights/sibyl/internal/llm"
	"github.com/atlas-insights/sibyl/internal/memory"
	"github.com/atlas-insights/sibyl/internal/pipeline"
	"github.com/atlas-insights/sibyl/internal/schema"
	"github.com/atlas-insights/sibyl/internal/sqlgen"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("sibyl starting", "port", cfg.Port, "provider", cfg.LLMProvider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := executor.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to open catalog pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("database connected")

	// Conversation history table
	mem := memory.New(db, slog.Default())
	if err := mem.Bootstrap(ctx); err != nil {
		slog.Error("failed to prepare chat history", "error", err)
		os.Exit(1)
	}

	// LLM provider
	client, err := llm.New(cfg)
	if err != nil {
		slog.Error("failed to build llm client", "error", err)
		os.Exit(1)
	}
	slog.Info("llm client ready", "provider", cfg.LLMProvider)

	// Audit events (optional — sibyl answers without NATS, just no trail)
	var auditor *audit.Publisher
	if cfg.NatsURL != "" {
		auditor, err = audit.NewPublisher(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer auditor.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured — running without audit trail")
	}

	runner := executor.New(db, cfg.MaxRows, time.Duration(cfg.QueryTimeout)*time.Second, slog.Default())

	pipe := pipeline.New(
		intent.NewRouter(client, slog.Default()),
		schema.NewRetriever(pool, client, slog.Default()),
		sqlgen.New(client, slog.Default()),
		runner,
		format.New(client, slog.Default()),
		convo.New(client, slog.Default()),
		mem,
		auditor,
		cfg.SchemaTopK,
		slog.Default(),
	)

	// Parquet export (optional — needs an object store)
	var exportHandler *api.ExportHandler
	if cfg.ExportEndpoint != "" && cfg.ExportBucket != "" {
		store, err := export.NewS3Store(export.StoreConfig{
			Endpoint:  cfg.ExportEndpoint,
			Region:    cfg.ExportRegion,
			Bucket:    cfg.ExportBucket,
			AccessKey: cfg.ExportAccessKey,
			SecretKey: cfg.ExportSecretKey,
			UseSSL:    cfg.ExportUseSSL,
		})
		if err != nil {
			slog.Error("failed to build export store", "error", err)
			os.Exit(1)
		}
		exportHandler = &api.ExportHandler{
			Runner:   runner,
			Exporter: export.New(store, cfg.ExportPrefix, slog.Default()),
		}
		slog.Info("export store ready", "bucket", cfg.ExportBucket)
	} else {
		slog.Warn("export store not configured — /api/v1/export disabled")
	}

	if cfg.AuthPassword == "" {
		slog.Error("SIBYL_AUTH_PASSWORD is required")
		os.Exit(1)
	}

	srv := api.NewServer(cfg.Port, cfg.AuthUsername, cfg.AuthPassword, pipe, mem, exportHandler, slog.Default())
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("sibyl ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	cancel()
	slog.Info("sibyl stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
