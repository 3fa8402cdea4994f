package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/philippgille/chromem-go"
)

// ChromemStore is a persistent Store backed by chromem-go. Entries survive
// process restarts, so embeddings for previously seen content are never
// recomputed across runs.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// noEmbed rejects embedding requests. Documents are always inserted with
// precomputed vectors, so chromem's embedding func must never run.
func noEmbed(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("cache does not generate embeddings")
}

// NewChromemStore opens (or creates) a persistent store under dataDir.
func NewChromemStore(dataDir string) (*ChromemStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := chromem.NewPersistentDB(dataDir, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}

	collection, err := db.GetOrCreateCollection("embeddings", nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{db: db, collection: collection}, nil
}

// Get returns the cached vector for text. Lookup errors (including
// not-found) are reported as misses: the caller cannot act on the
// difference and the cache must never fail a ranking request.
func (s *ChromemStore) Get(ctx context.Context, text string) ([]float32, bool, error) {
	doc, err := s.collection.GetByID(ctx, Key(text))
	if err != nil {
		return nil, false, nil
	}
	return doc.Embedding, true, nil
}

// GetMany returns the found entries keyed by the original input text.
func (s *ChromemStore) GetMany(ctx context.Context, texts []string) (map[string][]float32, error) {
	found := make(map[string][]float32, len(texts))
	for _, text := range texts {
		if vector, ok, _ := s.Get(ctx, text); ok {
			found[text] = vector
		}
	}
	return found, nil
}

// Put stores the vector under text's content key if absent.
func (s *ChromemStore) Put(ctx context.Context, text string, vector []float32) error {
	if vector == nil {
		return nil
	}
	key := Key(text)

	if _, err := s.collection.GetByID(ctx, key); err == nil {
		// First write wins; the key's content identity never changes.
		return nil
	}

	doc := chromem.Document{
		ID:        key,
		Content:   Normalize(text),
		Embedding: vector,
		Metadata: map[string]string{
			"created_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Count returns the number of cached entries.
func (s *ChromemStore) Count() int {
	return s.collection.Count()
}
