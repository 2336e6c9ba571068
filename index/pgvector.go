package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/quantia/licitator/database"
	"github.com/quantia/licitator/embeddings"
	"github.com/quantia/licitator/ingestion"
)

// PgvectorBuilder stores chunk vectors in Postgres for the duration of one
// tender's extraction. Every Build gets a fresh tender_id; Close deletes the
// tender's rows.
type PgvectorBuilder struct {
	Pool          *pgxpool.Pool
	Embedder      embeddings.Embedder
	Dimension     int
	MinSimilarity float64
}

func (b PgvectorBuilder) Build(ctx context.Context, chunks []ingestion.Chunk) (Index, error) {
	if b.Pool == nil {
		return nil, fmt.Errorf("postgres pool not configured")
	}
	if b.Embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}

	if err := database.EnsureSchema(ctx, b.Pool, b.Dimension); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := b.Embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: have %d chunks, %d vectors", len(chunks), len(vectors))
	}

	tenderID := uuid.New()
	for i, chunk := range chunks {
		if _, err := b.Pool.Exec(ctx, `
			INSERT INTO licitator_chunks (id, tender_id, chunk_index, section, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New(), tenderID, i, chunk.Section, chunk.Text, pgvector.NewVector(vectors[i])); err != nil {
			// Leave no partial tender behind.
			_, _ = b.Pool.Exec(ctx, "DELETE FROM licitator_chunks WHERE tender_id = $1", tenderID)
			return nil, fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	return &pgvectorIndex{
		pool:          b.Pool,
		embedder:      b.Embedder,
		tenderID:      tenderID,
		minSimilarity: b.MinSimilarity,
	}, nil
}

type pgvectorIndex struct {
	pool          *pgxpool.Pool
	embedder      embeddings.Embedder
	tenderID      uuid.UUID
	minSimilarity float64
	closed        bool
}

func (p *pgvectorIndex) Query(ctx context.Context, text string, k int) ([]ingestion.Chunk, error) {
	if p.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if k <= 0 {
		return nil, nil
	}

	queryVectors, err := p.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	rows, err := p.pool.Query(ctx, `
		SELECT content, section, (embedding <=> $2::vector) AS distance
		FROM licitator_chunks
		WHERE tender_id = $1
		ORDER BY embedding <=> $2::vector, chunk_index
		LIMIT $3
	`, p.tenderID, pgvector.NewVector(queryVectors[0]), k)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]ingestion.Chunk, 0, k)
	for rows.Next() {
		var chunk ingestion.Chunk
		var distance float64
		if err := rows.Scan(&chunk.Text, &chunk.Section, &distance); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		if 1-distance < p.minSimilarity {
			continue
		}
		results = append(results, chunk)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return results, nil
}

func (p *pgvectorIndex) Close(ctx context.Context) error {
	if p.closed {
		return nil
	}
	p.closed = true
	if _, err := p.pool.Exec(ctx, "DELETE FROM licitator_chunks WHERE tender_id = $1", p.tenderID); err != nil {
		return fmt.Errorf("release tender chunks: %w", err)
	}
	return nil
}

var _ Builder = PgvectorBuilder{}
