package matching

import (
	"context"

	"github.com/reclaim-app/reclaim/internal/apperr"
	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/store"
	"github.com/reclaim-app/reclaim/internal/vectorindex"
)

// RebuildIndex clears the vector index and reloads every item with an image embedding.
// Returns how many items were indexed.
func (s *Service) RebuildIndex(ctx context.Context) (int, error) {
	items, err := s.items.ListItems(ctx, store.ItemFilter{WithImageEmbedding: true})
	if err != nil {
		return 0, err
	}
	if err := s.index.Clear(ctx); err != nil {
		return 0, err
	}
	for _, it := range items {
		if err := s.index.Add(ctx, it.ID, it.AI.ImageEmbedding, indexMetadata(it)); err != nil {
			return 0, err
		}
	}
	s.log.Info("vector index rebuilt", "items", len(items))
	return len(items), nil
}

// SimilarItems returns the k items whose image embeddings are closest to itemID's.
// k <= 0 uses the configured default.
func (s *Service) SimilarItems(ctx context.Context, itemID string, k int) ([]vectorindex.Hit, error) {
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !item.HasImageEmbedding() {
		return nil, apperr.Invalid("matching.similar", "item %q has no image embedding", itemID)
	}
	if k <= 0 {
		k = s.cfg.SimilarResults
	}
	if k <= 0 {
		k = vectorindex.DefaultK
	}

	hits, err := s.index.Search(ctx, item.AI.ImageEmbedding, k+1)
	if err != nil {
		return nil, err
	}
	out := make([]vectorindex.Hit, 0, k)
	for _, h := range hits {
		if h.ID == itemID {
			continue
		}
		out = append(out, h)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

func indexMetadata(it *model.Item) map[string]string {
	return map[string]string{
		"type":          string(it.Type),
		"category":      it.Category,
		"tracking_code": it.TrackingCode,
		"status":        string(it.Status),
	}
}
