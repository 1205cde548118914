package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-insights/sibyl/internal/llm"
)

// Retriever performs nearest-neighbour search over the precomputed schema
// embeddings. Every failure mode collapses to an empty result: the pipeline
// treats missing schema evidence as "no evidence", never as an error.
type Retriever struct {
	pool   *pgxpool.Pool
	llm    llm.Client
	logger *slog.Logger
}

func NewRetriever(pool *pgxpool.Pool, client llm.Client, logger *slog.Logger) *Retriever {
	return &Retriever{pool: pool, llm: client, logger: logger}
}

// Retrieve returns the content text of the topK catalog entries closest to
// the question by vector distance, nearest first.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) []string {
	vec, err := r.llm.Embed(ctx, question)
	if err != nil {
		r.logger.Error("question embedding failed", "error", err)
		return nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT content
		FROM semantic_schema_registry
		ORDER BY embedding <-> $1::vector
		LIMIT $2`,
		pgVector(vec), topK,
	)
	if err != nil {
		r.logger.Error("schema similarity search failed", "error", err)
		return nil
	}
	defer rows.Close()

	var blocks []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			r.logger.Error("schema row scan failed", "error", err)
			return nil
		}
		blocks = append(blocks, content)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("schema similarity search failed", "error", err)
		return nil
	}

	if len(blocks) == 0 {
		r.logger.Warn("no schema entries found in catalog")
	}
	return blocks
}

// pgVector formats a float64 slice as a pgvector-compatible string literal,
// e.g. "[0.1,0.2,0.3]", suitable for a parameterized query against a vector
// column.
func pgVector(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
