// sibyl-index builds the semantic schema catalog: it embeds every registry
// entry with the configured provider and upserts the vectors into the table
// the retriever searches at question time. Run it once per deployment and
// again whenever the registry changes.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/atlas-insights/sibyl/internal/config"
	"github.com/atlas-insights/sibyl/internal/llm"
	"github.com/atlas-insights/sibyl/internal/schema"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	handler := slog.NewJSONHandler(os.Stdout, nil)
	slog.SetDefault(slog.New(handler))

	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	client, err := llm.New(cfg)
	if err != nil {
		slog.Error("failed to build llm client", "error", err)
		os.Exit(1)
	}

	indexer := schema.NewIndexer(pool, client, slog.Default())
	if err := indexer.Bootstrap(ctx); err != nil {
		slog.Error("failed to bootstrap catalog", "error", err)
		os.Exit(1)
	}

	entries := schema.Registry()
	if err := indexer.Sync(ctx, entries); err != nil {
		slog.Error("failed to sync catalog", "error", err)
		os.Exit(1)
	}

	slog.Info("catalog indexed", "entries", len(entries))
}
