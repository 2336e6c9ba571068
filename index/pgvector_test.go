package index

import (
	"context"
	"os"
	"testing"

	"github.com/quantia/licitator/config"
	"github.com/quantia/licitator/database"
	"github.com/quantia/licitator/ingestion"
)

// axisEmbedder maps each known text to a distinct basis vector so cosine
// ranking is fully determined by the axis assignment.
type axisEmbedder struct {
	dim  int
	axes map[string]int
}

func (e *axisEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.dim)
		if axis, ok := e.axes[text]; ok && axis < e.dim {
			vec[axis] = 1
		} else {
			vec[e.dim-1] = 1
		}
		out[i] = vec
	}
	return out, nil
}

func TestPgvectorIndexLifecycle(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database connectivity checks")
	}

	cfg := config.Load()
	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		t.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	dim := cfg.Embeddings.Dimension
	if dim < 2 {
		t.Fatalf("invalid embedding dimension: %d", dim)
	}

	embedder := &axisEmbedder{dim: dim, axes: map[string]int{
		"plazo de presentación": 0,
		"aves migratorias":      1,
		"consulta plazo":        0,
	}}

	builder := PgvectorBuilder{Pool: pool, Embedder: embedder, Dimension: dim}
	idx, err := builder.Build(ctx, []ingestion.Chunk{
		{Text: "aves migratorias", Section: "general"},
		{Text: "plazo de presentación", Section: "general"},
	})
	if err != nil {
		t.Fatalf("build index: %v", err)
	}

	tenderID := idx.(*pgvectorIndex).tenderID
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, "DELETE FROM licitator_chunks WHERE tender_id = $1", tenderID)
	})

	var stored int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM licitator_chunks WHERE tender_id = $1", tenderID).Scan(&stored); err != nil {
		t.Fatalf("count tender rows: %v", err)
	}
	if stored != 2 {
		t.Fatalf("expected 2 stored chunks, got %d", stored)
	}

	results, err := idx.Query(ctx, "consulta plazo", 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 1 || results[0].Text != "plazo de presentación" {
		t.Fatalf("unexpected ranking: %v", results)
	}

	if err := idx.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	var remaining int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM licitator_chunks WHERE tender_id = $1", tenderID).Scan(&remaining); err != nil {
		t.Fatalf("count after close: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected tender rows deleted on close, %d remain", remaining)
	}

	if err := idx.Close(ctx); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
	if _, err := idx.Query(ctx, "consulta plazo", 1); err == nil {
		t.Fatal("expected error querying a closed index")
	}
}
