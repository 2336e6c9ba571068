// Package config loads process-wide settings from the environment, with an
// optional .env file picked up from the working directory.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	BackendMemory   = "memory"
	BackendPgvector = "pgvector"
)

type EmbeddingConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type LLMConfig struct {
	Provider string
	Model    string
}

type Config struct {
	Embeddings EmbeddingConfig
	LLM        LLMConfig

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// IndexBackend selects where per-tender chunk vectors live while a
	// tender is being processed: in memory or in a pgvector table.
	IndexBackend string
	PostgresDSN  string

	// MinSimilarity is the cosine similarity floor below which a retrieved
	// chunk is considered unrelated to the query.
	MinSimilarity float64

	// RequestDelay is the pause applied after every generation call to stay
	// under the provider's rate limits.
	RequestDelay  time.Duration
	RetryAttempts uint
	RetryDelay    time.Duration

	DataDir     string
	ResultsFile string
	CatalogPath string
	ListenAddr  string
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		Embeddings: EmbeddingConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOpenAI),
			Model:     getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 1536),
		},
		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", ProviderOpenAI),
			Model:    getEnv("LLM_MODEL", "gpt-4o-mini"),
		},
		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		IndexBackend:  getEnv("INDEX_BACKEND", BackendMemory),
		PostgresDSN:   getEnv("POSTGRES_DSN", "postgres://localhost:5432/licitator?sslmode=disable"),
		MinSimilarity: getEnvFloat("MIN_SIMILARITY", 0),
		RequestDelay:  getEnvDuration("REQUEST_DELAY", 2*time.Second),
		RetryAttempts: uint(getEnvInt("RETRY_ATTEMPTS", 3)),
		RetryDelay:    getEnvDuration("RETRY_DELAY", 2*time.Second),
		DataDir:       getEnv("DATA_DIR", "data"),
		ResultsFile:   getEnv("RESULTS_FILE", "resultados_licitaciones.xlsx"),
		CatalogPath:   getEnv("CATALOG_PATH", ""),
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
	}
}

// Validate checks that the selected providers have the credentials they need.
func (c Config) Validate() error {
	if c.Embeddings.Provider == ProviderOpenAI || c.LLM.Provider == ProviderOpenAI {
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	}
	switch c.IndexBackend {
	case BackendMemory, BackendPgvector:
	default:
		return fmt.Errorf("unknown index backend: %s", c.IndexBackend)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
