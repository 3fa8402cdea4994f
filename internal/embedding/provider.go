// Package embedding turns text into vectors via a rate-limited API,
// consulting a content-addressed cache first and retrying pushback per a
// configurable policy.
package embedding

import "context"

// Provider is a raw embedding API client. It knows nothing about caching,
// batching limits, or retries; Client layers those on top.
type Provider interface {
	// CreateEmbeddings returns one vector per input, aligned by index.
	// Non-2xx responses come back as *retry.HTTPError so the retry
	// policy can read status, headers, and body hints.
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	// Model identifies the embedding model in use.
	Model() string
}
