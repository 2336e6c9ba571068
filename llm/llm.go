// Package llm abstracts the generative model that answers one grounded
// instruction per catalog field. Answers are expected as plain text; any
// structural cleanup happens downstream in the extraction pipeline.
package llm

import (
	"context"
	"fmt"

	"github.com/quantia/licitator/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Client runs one grounded instruction and returns the model's raw answer.
type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// NewClient selects the provider named in the configuration.
func NewClient(cfg config.Config) (Client, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(cfg.OllamaHost, cfg.LLM.Model), nil
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai llm provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLM.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want %q or %q)",
			cfg.LLM.Provider, config.ProviderOpenAI, config.ProviderOllama)
	}
}
