package cache

import (
	"context"
	"sync"
	"time"
)

// entry is one cached vector with its creation time.
type entry struct {
	vector    []float32
	createdAt time.Time
}

// MemoryStore is an in-process Store. Vectors are shared by reference and
// never mutated after creation, so reads need no copying.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry)}
}

// Get returns the cached vector for text, or ok=false on a miss.
func (s *MemoryStore) Get(_ context.Context, text string) ([]float32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[Key(text)]
	if !ok {
		return nil, false, nil
	}
	return e.vector, true, nil
}

// GetMany returns the found entries keyed by the original input text.
func (s *MemoryStore) GetMany(_ context.Context, texts []string) (map[string][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string][]float32, len(texts))
	for _, text := range texts {
		if e, ok := s.entries[Key(text)]; ok {
			found[text] = e.vector
		}
	}
	return found, nil
}

// Put stores the vector under text's content key if absent. An existing
// entry is kept as-is.
func (s *MemoryStore) Put(_ context.Context, text string, vector []float32) error {
	if vector == nil {
		return nil
	}
	key := Key(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; exists {
		return nil
	}
	s.entries[key] = entry{vector: vector, createdAt: time.Now()}
	return nil
}

// Len returns the number of cached entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
