// Package vectorindex provides nearest-neighbour search over item image embeddings.
package vectorindex

import (
	"context"

	"github.com/reclaim-app/reclaim/internal/vecmath"
)

// DefaultK is the result count used when a search asks for k <= 0
const DefaultK = 10

// Hit is one search result
type Hit struct {
	ID         string            `json:"id"`
	Similarity float64           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Index stores embeddings by id and answers cosine nearest-neighbour queries.
// Results are sorted by descending similarity and truncated to k.
type Index interface {
	Add(ctx context.Context, id string, embedding []float32, metadata map[string]string) error
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	Close() error
}

// CosineSimilarity is the similarity used by every index implementation
func CosineSimilarity(a, b []float32) float64 {
	return vecmath.Cosine(a, b)
}
