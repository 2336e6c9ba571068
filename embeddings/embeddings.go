// Package embeddings abstracts the external embedding service used to build
// the per-tender semantic index. Implementations take whole chunk batches so
// a tender's corpus is embedded in as few round trips as the provider allows.
package embeddings

import (
	"context"
	"fmt"

	"github.com/quantia/licitator/config"
)

// Embedder turns chunk or query texts into vectors. The returned slice is
// parallel to texts; every vector has the configured dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewEmbedder selects the provider named in the configuration.
func NewEmbedder(cfg config.Config) (Embedder, error) {
	switch cfg.Embeddings.Provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(cfg.OllamaHost, cfg.Embeddings.Model, cfg.Embeddings.Dimension), nil
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai embeddings provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Embeddings.Model, cfg.Embeddings.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q (want %q or %q)",
			cfg.Embeddings.Provider, config.ProviderOpenAI, config.ProviderOllama)
	}
}
