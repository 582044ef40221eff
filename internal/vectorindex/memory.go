package vectorindex

import (
	"context"
	"sort"
	"sync"
)

type entry struct {
	embedding []float32
	metadata  map[string]string
}

// MemoryIndex is a brute-force linear-scan index guarded by a RWMutex
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewMemoryIndex creates an empty in-memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		entries: make(map[string]entry),
	}
}

// Add stores or replaces the embedding for id
func (m *MemoryIndex) Add(_ context.Context, id string, embedding []float32, metadata map[string]string) error {
	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = entry{embedding: vec, metadata: meta}
	return nil
}

// Remove deletes id; removing an unknown id is a no-op
func (m *MemoryIndex) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// Clear drops every entry
func (m *MemoryIndex) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]entry)
	return nil
}

// Search scans every entry and returns the k most similar
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		k = DefaultK
	}

	m.mu.RLock()
	hits := make([]Hit, 0, len(m.entries))
	for id, e := range m.entries {
		hits = append(hits, Hit{
			ID:         id,
			Similarity: CosineSimilarity(query, e.embedding),
			Metadata:   e.metadata,
		})
	}
	m.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity == hits[j].Similarity {
			return hits[i].ID < hits[j].ID
		}
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of indexed embeddings
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op for the in-memory index
func (m *MemoryIndex) Close() error {
	return nil
}
