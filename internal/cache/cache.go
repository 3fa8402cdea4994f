// Package cache provides a content-addressed store for embedding vectors.
// Text is normalized and digested into a key; a key maps to exactly one
// vector for the lifetime of the cache. The cache is a performance
// optimization only: every failure path degrades to a miss so ranking
// never depends on it.
package cache

import (
	"context"
	"strings"

	"github.com/asteroid-belt/matchbox/internal/hash"
)

// MaxContentTokens bounds how much text participates in the cache key and
// the embedding request. Uses ~4 chars per token as rough estimate.
const MaxContentTokens = 8000

// Store is a digest-keyed vector store.
//
// Implementations must be safe for concurrent use. Put is idempotent:
// writing a key that already exists is a no-op, never an overwrite
// (accept-first-wins, since a deterministic model yields one vector per
// content key).
type Store interface {
	// Get returns the cached vector for text, or ok=false on a miss.
	Get(ctx context.Context, text string) (vector []float32, ok bool, err error)

	// GetMany returns the found entries keyed by the original input text.
	// Missing texts are simply absent from the map.
	GetMany(ctx context.Context, texts []string) (map[string][]float32, error)

	// Put stores the vector under text's content key if absent.
	Put(ctx context.Context, text string, vector []float32) error
}

// Normalize collapses whitespace runs, trims, and truncates to the token
// budget. Case is preserved: embeddings are case-sensitive semantically.
func Normalize(text string) string {
	return Truncate(strings.Join(strings.Fields(text), " "), MaxContentTokens)
}

// Truncate limits content to an approximate token budget (~4 chars/token).
func Truncate(content string, maxTokens int) string {
	maxChars := maxTokens * 4
	if len(content) <= maxChars {
		return content
	}
	return content[:maxChars]
}

// Key returns the content digest used as the cache key for text.
func Key(text string) string {
	return hash.SHA256(Normalize(text))
}
