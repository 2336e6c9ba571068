package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the chunk table used by the pgvector index backend.
// Rows are scoped by tender_id and deleted when the tender's index is closed.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS licitator_chunks (
			id UUID PRIMARY KEY,
			tender_id UUID NOT NULL,
			chunk_index INT NOT NULL,
			section TEXT,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(tender_id, chunk_index)
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_licitator_chunks_tender ON licitator_chunks(tender_id)",
		"CREATE INDEX IF NOT EXISTS idx_licitator_chunks_embedding ON licitator_chunks USING ivfflat (embedding vector_cosine_ops)",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}
