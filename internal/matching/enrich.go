package matching

import (
	"context"
	"time"

	"github.com/reclaim-app/reclaim/internal/detect"
	"github.com/reclaim-app/reclaim/internal/inference"
	"github.com/reclaim-app/reclaim/internal/logging"
	"github.com/reclaim-app/reclaim/internal/store"
	"github.com/reclaim-app/reclaim/internal/vectorindex"
)

// EnrichResult reports what Enrich populated
type EnrichResult struct {
	ItemID           string                  `json:"item_id"`
	Objects          []detect.DetectedObject `json:"objects"`
	PrimaryClass     string                  `json:"primary_class,omitempty"`
	ImageEmbedding   bool                    `json:"image_embedding"`
	TextEmbedding    bool                    `json:"text_embedding"`
	Degraded         []string                `json:"degraded,omitempty"`
	ProcessingTimeMs int64                   `json:"processing_time_ms"`
}

// Enricher fills an item's AI metadata from remote inference.
// Every collaborator is optional; a failing one leaves its fields untouched.
type Enricher struct {
	items    store.ItemStore
	fetcher  detect.ImageFetcher
	detector *detect.Aggregator
	images   inference.ImageEmbedder
	texts    inference.TextEmbedder
	index    vectorindex.Index
	log      *logging.Logger
}

// NewEnricher creates an enricher. Any of fetcher, detector, images, texts may be nil.
func NewEnricher(items store.ItemStore, fetcher detect.ImageFetcher, detector *detect.Aggregator,
	images inference.ImageEmbedder, texts inference.TextEmbedder, index vectorindex.Index, log *logging.Logger) *Enricher {
	return &Enricher{
		items:    items,
		fetcher:  fetcher,
		detector: detector,
		images:   images,
		texts:    texts,
		index:    index,
		log:      log.With("component", "enrich"),
	}
}

// Enrich runs detection and embeddings for itemID. imageURL may be empty for text-only reports.
func (e *Enricher) Enrich(ctx context.Context, itemID, imageURL string) (*EnrichResult, error) {
	start := time.Now()
	item, err := e.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	res := &EnrichResult{ItemID: itemID}
	ai := item.AI

	var image []byte
	if imageURL != "" && e.fetcher != nil {
		image, err = e.fetcher.Fetch(ctx, imageURL)
		if err != nil {
			e.log.Warn("image fetch failed", "item_id", itemID, "url", imageURL, "error", err)
			res.Degraded = append(res.Degraded, "fetch")
			image = nil
		}
	}

	if len(image) > 0 && e.detector != nil {
		objects, degraded := e.detector.DetectBytes(ctx, image)
		res.Objects = objects
		res.PrimaryClass = detect.PrimaryClass(objects)
		res.Degraded = append(res.Degraded, degraded...)
		ai.DetectedObjects = detect.Labels(objects)
		ai.PrimaryClass = res.PrimaryClass
	}

	if len(image) > 0 && e.images != nil {
		vec, err := e.images.EmbedImage(ctx, image)
		if err != nil || len(vec) == 0 {
			e.log.Warn("image embedding unavailable", "item_id", itemID, "error", err)
			res.Degraded = append(res.Degraded, "image_embedder")
		} else {
			ai.ImageEmbedding = vec
			res.ImageEmbedding = true
		}
	}

	if e.texts != nil {
		vec, err := e.texts.EmbedText(ctx, item.SearchText())
		if err != nil || len(vec) == 0 {
			e.log.Warn("text embedding unavailable", "item_id", itemID, "error", err)
			res.Degraded = append(res.Degraded, "text_embedder")
		} else {
			ai.TextEmbedding = vec
			res.TextEmbedding = true
		}
	}

	if err := e.items.UpdateItemInference(ctx, itemID, ai); err != nil {
		return nil, err
	}

	if res.ImageEmbedding && e.index != nil {
		item.AI = ai
		if err := e.index.Add(ctx, itemID, ai.ImageEmbedding, indexMetadata(item)); err != nil {
			e.log.Warn("index update failed", "item_id", itemID, "error", err)
			res.Degraded = append(res.Degraded, "index")
		}
	}

	res.ProcessingTimeMs = time.Since(start).Milliseconds()
	return res, nil
}
