package schema

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-insights/sibyl/internal/llm"
)

// Indexer builds the semantic catalog: it embeds each registry entry and
// upserts it into the table the retriever searches. Run by cmd/sibyl-index
// whenever the registry changes; safe to re-run.
type Indexer struct {
	pool   *pgxpool.Pool
	llm    llm.Client
	logger *slog.Logger
}

func NewIndexer(pool *pgxpool.Pool, client llm.Client, logger *slog.Logger) *Indexer {
	return &Indexer{pool: pool, llm: client, logger: logger}
}

// Bootstrap ensures the pgvector extension and the catalog table exist.
func (ix *Indexer) Bootstrap(ctx context.Context) error {
	if _, err := ix.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	if _, err := ix.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS semantic_schema_registry (
			name TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			embedding vector NOT NULL
		)`); err != nil {
		return fmt.Errorf("create schema registry table: %w", err)
	}
	return nil
}

// Sync embeds every entry and upserts it, replacing stale content and
// embeddings for entries that already exist.
func (ix *Indexer) Sync(ctx context.Context, entries []Entry) error {
	for _, entry := range entries {
		text := entry.Text()

		vec, err := ix.llm.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("embed entry %q: %w", entry.Name, err)
		}

		if _, err := ix.pool.Exec(ctx, `
			INSERT INTO semantic_schema_registry (name, content, embedding)
			VALUES ($1, $2, $3::vector)
			ON CONFLICT (name)
			DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
			entry.Name, text, pgVector(vec),
		); err != nil {
			return fmt.Errorf("upsert entry %q: %w", entry.Name, err)
		}

		ix.logger.Info("indexed schema entry", "name", entry.Name, "dims", len(vec))
	}
	return nil
}
