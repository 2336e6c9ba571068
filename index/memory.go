package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/quantia/licitator/embeddings"
	"github.com/quantia/licitator/ingestion"
)

// MemoryBuilder builds brute-force cosine-similarity indexes held entirely in
// memory. This is the default backend: a tender's corpus is small enough that
// exhaustive scoring beats maintaining external state.
type MemoryBuilder struct {
	Embedder embeddings.Embedder
	// MinSimilarity is the floor below which a chunk is treated as unrelated
	// and excluded from retrieval results.
	MinSimilarity float64
}

func (b MemoryBuilder) Build(ctx context.Context, chunks []ingestion.Chunk) (Index, error) {
	if b.Embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
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

	for i := range vectors {
		normalize(vectors[i])
	}

	return &memoryIndex{
		embedder:      b.Embedder,
		minSimilarity: b.MinSimilarity,
		chunks:        chunks,
		vectors:       vectors,
	}, nil
}

type memoryIndex struct {
	embedder      embeddings.Embedder
	minSimilarity float64
	chunks        []ingestion.Chunk
	vectors       [][]float32
}

func (m *memoryIndex) Query(ctx context.Context, text string, k int) ([]ingestion.Chunk, error) {
	if m.vectors == nil {
		return nil, fmt.Errorf("index is closed")
	}
	if k <= 0 || len(m.chunks) == 0 {
		return nil, nil
	}

	queryVectors, err := m.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	query := queryVectors[0]
	normalize(query)

	type scored struct {
		idx   int
		score float64
	}
	candidates := make([]scored, 0, len(m.vectors))
	for i, vec := range m.vectors {
		score := dot(vec, query)
		if score < m.minSimilarity {
			continue
		}
		candidates = append(candidates, scored{idx: i, score: score})
	}

	// Stable sort keeps original chunk order for equal scores.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	results := make([]ingestion.Chunk, 0, k)
	for _, c := range candidates[:k] {
		results = append(results, m.chunks[c.idx])
	}
	return results, nil
}

func (m *memoryIndex) Close(context.Context) error {
	m.chunks = nil
	m.vectors = nil
	return nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func normalize(vec []float32) {
	sum := 0.0
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
}

var _ Builder = MemoryBuilder{}
