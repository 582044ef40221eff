// Package similarity scores how likely a found item is the lost item a report describes.
package similarity

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/reclaim-app/reclaim/internal/inference"
	"github.com/reclaim-app/reclaim/internal/logging"
	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/textvec"
)

// Engine combines embedding, text, class, location and time signals into one pair score.
//
// The total is sum(w_i * c_i) / sum(w_i) over model.MatchWeights. The default weights
// (embedding 0.5, text 0.3, class 0.2, location 0, time 0) keep location and time in
// the explanation only; configuring a non-zero weight moves them into the total.
type Engine struct {
	cfg      model.MatchingConfig
	text     *textvec.Vectorizer
	embedder inference.TextEmbedder // optional
	log      *logging.Logger
}

// NewEngine creates an engine. embedder may be nil to score text lexically only.
func NewEngine(cfg model.MatchingConfig, embedder inference.TextEmbedder, log *logging.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		text:     textvec.New(),
		embedder: embedder,
		log:      log.With("component", "similarity"),
	}
}

// Score computes every component, the weighted total and the explanation for a lost/found pair
func (e *Engine) Score(ctx context.Context, lost, found *model.Item) model.PairScore {
	c := e.Components(ctx, lost, found)
	return model.PairScore{
		Total:       e.Total(c),
		Components:  c,
		Explanation: e.Explain(lost, found, c),
	}
}

// Components computes the five component scores
func (e *Engine) Components(ctx context.Context, lost, found *model.Item) model.ComponentScores {
	return model.ComponentScores{
		Embedding: e.EmbeddingScore(lost, found),
		Text:      e.TextScore(ctx, lost, found),
		Class:     e.ClassScore(lost, found),
		Location:  e.LocationScore(lost, found),
		Time:      e.TimeScore(lost, found),
	}
}

// Total applies the configured weights to the components
func (e *Engine) Total(c model.ComponentScores) int {
	w := e.cfg.Weights
	sum := w.Sum()
	if sum <= 0 {
		return 0
	}
	weighted := w.Embedding*float64(c.Embedding) +
		w.Text*float64(c.Text) +
		w.Class*float64(c.Class) +
		w.Location*float64(c.Location) +
		w.Time*float64(c.Time)
	return int(math.Round(weighted / sum))
}

// Explain lists the human-readable reasons behind a score
func (e *Engine) Explain(lost, found *model.Item, c model.ComponentScores) []string {
	var reasons []string

	if c.Text > 70 {
		reasons = append(reasons, fmt.Sprintf("Descriptions are %d%% similar", c.Text))
	}
	if cat := normalize(lost.Category); cat != "" && cat == normalize(found.Category) {
		reasons = append(reasons, fmt.Sprintf("Both are in category %s", strings.TrimSpace(found.Category)))
	}
	if c.Location > 80 {
		reasons = append(reasons, "Found in the same area")
	}
	if c.Time > 70 {
		reasons = append(reasons, "Found around the same time it was lost")
	}
	if col := normalize(lost.Color); col != "" && col == normalize(found.Color) {
		reasons = append(reasons, fmt.Sprintf("Both described as %s", col))
	}
	if overlap := objectOverlap(lost, found) * 100; overlap > 50 {
		reasons = append(reasons, fmt.Sprintf("Detected similar objects in both photos (%.0f%% overlap)", overlap))
	}
	if c.Embedding > 70 {
		reasons = append(reasons, fmt.Sprintf("Images are visually similar (%d%%)", c.Embedding))
	}

	if len(reasons) == 0 {
		return []string{"No specific matching factors identified."}
	}
	return reasons
}

func eventTime(item *model.Item) time.Time {
	if !item.EventTime.IsZero() {
		return item.EventTime
	}
	return item.ReportedAt
}
