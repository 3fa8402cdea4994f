package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseDir: DefaultBaseDir(),

		Embedding: EmbeddingConfig{
			Model:             "text-embedding-3-small",
			MaxBatchSize:      20,
			InterBatchDelay:   500 * time.Millisecond,
			RequestsPerMinute: 60,
			MaxRetries:        3,
		},

		Match: MatchConfig{
			SimilarityThreshold: 0.7,
		},

		Ranking: RankingConfig{
			SemanticWeight: 0.6,
			SkillWeight:    0.4,
			MaxJobsToIndex: 50,
		},
	}
}

// EmbeddingModels defines available embedding models and their dimensions.
var EmbeddingModels = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}
