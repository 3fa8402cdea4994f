// Package config handles application configuration management.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Base directory for all matchbox data
	BaseDir string

	// Embedding provider settings
	Embedding EmbeddingConfig

	// Skill matching settings
	Match MatchConfig

	// Ranking settings
	Ranking RankingConfig
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	// OpenAI API key (OPENAI_API_KEY env var)
	OpenAIAPIKey string

	// Azure OpenAI settings (AZURE_OPENAI_API_KEY / AZURE_OPENAI_ENDPOINT).
	// When both are set the Azure provider is preferred.
	AzureAPIKey   string
	AzureEndpoint string
	// AzureDeployment names the embedding deployment; defaults to Model.
	AzureDeployment string

	// Model for embeddings (default: text-embedding-3-small)
	Model string

	// MaxBatchSize is the number of texts per provider call.
	MaxBatchSize int
	// InterBatchDelay is the pause between provider calls.
	InterBatchDelay time.Duration
	// RequestsPerMinute throttles provider calls process-wide. 0 disables.
	RequestsPerMinute int

	// MaxRetries bounds attempts per provider call.
	MaxRetries int
}

// MatchConfig holds skill matching configuration.
type MatchConfig struct {
	// SimilarityThreshold is the minimum cosine similarity for two skills
	// to count as a match (default: 0.7).
	SimilarityThreshold float64
}

// RankingConfig holds ranking configuration.
type RankingConfig struct {
	// SemanticWeight and SkillWeight combine the two sub-scores.
	SemanticWeight float64
	SkillWeight    float64

	// MaxJobsToIndex caps jobs embedded per run. 0 means no cap.
	MaxJobsToIndex int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if dir := os.Getenv("MATCHBOX_DATA_DIR"); dir != "" {
		cfg.BaseDir = dir
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Embedding.OpenAIAPIKey = key
	}
	if key := os.Getenv("AZURE_OPENAI_API_KEY"); key != "" {
		cfg.Embedding.AzureAPIKey = key
	}
	if endpoint := os.Getenv("AZURE_OPENAI_ENDPOINT"); endpoint != "" {
		cfg.Embedding.AzureEndpoint = endpoint
	}
	if deployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT"); deployment != "" {
		cfg.Embedding.AzureDeployment = deployment
	}
	if model := os.Getenv("MATCHBOX_EMBEDDING_MODEL"); model != "" {
		cfg.Embedding.Model = model
	}

	cfg.Embedding.MaxBatchSize = envInt("MATCHBOX_BATCH_SIZE", cfg.Embedding.MaxBatchSize)
	cfg.Embedding.RequestsPerMinute = envInt("MATCHBOX_REQUESTS_PER_MINUTE", cfg.Embedding.RequestsPerMinute)
	cfg.Embedding.MaxRetries = envInt("MATCHBOX_MAX_RETRIES", cfg.Embedding.MaxRetries)
	if d := envDuration("MATCHBOX_INTER_BATCH_DELAY", cfg.Embedding.InterBatchDelay); d >= 0 {
		cfg.Embedding.InterBatchDelay = d
	}

	cfg.Match.SimilarityThreshold = envFloat("MATCHBOX_SKILL_THRESHOLD", cfg.Match.SimilarityThreshold)
	cfg.Ranking.SemanticWeight = envFloat("MATCHBOX_SEMANTIC_WEIGHT", cfg.Ranking.SemanticWeight)
	cfg.Ranking.SkillWeight = envFloat("MATCHBOX_SKILL_WEIGHT", cfg.Ranking.SkillWeight)
	cfg.Ranking.MaxJobsToIndex = envInt("MATCHBOX_MAX_JOBS", cfg.Ranking.MaxJobsToIndex)

	if err := ensureDirectories(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UseAzure reports whether the Azure provider should be used.
func (c *Config) UseAzure() bool {
	return c.Embedding.AzureAPIKey != "" && c.Embedding.AzureEndpoint != ""
}

// HasProvider reports whether any embedding provider is configured.
func (c *Config) HasProvider() bool {
	return c.Embedding.OpenAIAPIKey != "" || c.UseAzure()
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(name string, fallback float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}

// ensureDirectories creates required directories if they don't exist.
func ensureDirectories(cfg *Config) error {
	return os.MkdirAll(cfg.BaseDir, 0755)
}
