package similarity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reclaim-app/reclaim/internal/logging"
	"github.com/reclaim-app/reclaim/internal/model"
)

func newTestEngine(embedder *fakeEmbedder) *Engine {
	cfg := model.DefaultConfig().Matching
	if embedder == nil {
		return NewEngine(cfg, nil, logging.NewNop())
	}
	return NewEngine(cfg, embedder, logging.NewNop())
}

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestTimeScoreFoundBeforeLostIsZero(t *testing.T) {
	e := newTestEngine(nil)
	lost := &model.Item{Type: model.SubmissionLost, Category: "wallet", Description: "black leather wallet", EventTime: day("2024-01-10")}
	found := &model.Item{Type: model.SubmissionFound, Category: "wallet", Description: "black leather wallet", EventTime: day("2024-01-05")}

	score := e.Score(context.Background(), lost, found)
	assert.Equal(t, 0, score.Components.Time)
	assert.Equal(t, 100, score.Components.Text)
}

func TestTimeScoreSteps(t *testing.T) {
	e := newTestEngine(nil)
	lostAt := day("2024-03-01")
	tests := []struct {
		gap  time.Duration
		want int
	}{
		{0, 100},
		{10 * time.Hour, 100},
		{48 * time.Hour, 70},
		{100 * time.Hour, 40},
		{300 * time.Hour, 20},
		{1000 * time.Hour, 5},
	}
	for _, tt := range tests {
		lost := &model.Item{EventTime: lostAt}
		found := &model.Item{EventTime: lostAt.Add(tt.gap)}
		assert.Equal(t, tt.want, e.TimeScore(lost, found), "gap %v", tt.gap)
	}

	assert.Equal(t, 0, e.TimeScore(&model.Item{}, &model.Item{EventTime: lostAt}), "missing time")
	withReported := &model.Item{ReportedAt: lostAt}
	assert.Equal(t, 100, e.TimeScore(withReported, &model.Item{EventTime: lostAt.Add(time.Hour)}), "falls back to report time")
}

func TestLocationScore(t *testing.T) {
	e := newTestEngine(nil)
	at := func(lat, lng float64) *model.Item {
		return &model.Item{Location: model.Location{Lat: lat, Lng: lng, HasCoordinates: true}}
	}

	assert.Equal(t, 100, e.LocationScore(at(40.0, -75.0), at(40.0, -75.0)))
	assert.Equal(t, 80, e.LocationScore(at(40.0, -75.0), at(40.003, -75.0)))
	assert.Equal(t, 50, e.LocationScore(at(40.0, -75.0), at(40.006, -75.0)))
	assert.Equal(t, 20, e.LocationScore(at(40.0, -75.0), at(40.03, -75.0)))
	assert.Equal(t, 0, e.LocationScore(at(40.0, -75.0), at(41.0, -75.0)))

	zoneA := &model.Item{Location: model.Location{ZoneID: "library"}}
	zoneB := &model.Item{Location: model.Location{ZoneID: "library"}}
	assert.Equal(t, 80, e.LocationScore(zoneA, zoneB))
	assert.Equal(t, 0, e.LocationScore(zoneA, &model.Item{}))
}

func TestHaversine(t *testing.T) {
	assert.InDelta(t, 0, HaversineKm(10, 10, 10, 10), 1e-9)
	// one degree of latitude is ~111 km
	assert.InDelta(t, 111.2, HaversineKm(0, 0, 1, 0), 0.5)
}

func TestEmbeddingScore(t *testing.T) {
	e := newTestEngine(nil)
	a := &model.Item{AI: model.ItemAI{ImageEmbedding: []float32{1, 0, 1}}}
	b := &model.Item{AI: model.ItemAI{ImageEmbedding: []float32{1, 0, 1}}}
	c := &model.Item{AI: model.ItemAI{ImageEmbedding: []float32{0, 1, 0}}}

	assert.Equal(t, 100, e.EmbeddingScore(a, b))
	assert.Equal(t, 0, e.EmbeddingScore(a, c))
	assert.Equal(t, 0, e.EmbeddingScore(a, &model.Item{}), "missing embedding")
}

func TestClassScore(t *testing.T) {
	e := newTestEngine(nil)
	a := &model.Item{AI: model.ItemAI{PrimaryClass: "phone", DetectedObjects: []string{"phone", "case"}}}
	b := &model.Item{AI: model.ItemAI{PrimaryClass: "Phone", DetectedObjects: []string{"phone"}}}

	assert.Equal(t, 75, e.ClassScore(a, b))
	assert.Equal(t, 0, e.ClassScore(&model.Item{}, &model.Item{}))
}

func TestTextScoreBonuses(t *testing.T) {
	e := newTestEngine(nil)

	full := &model.Item{Description: "black leather wallet", Category: "Wallet", Color: "black", Material: "leather"}
	assert.Equal(t, 100, e.TextScore(context.Background(), full, full), "capped at 100")

	a := &model.Item{Description: "umbrella", Color: "navy"}
	b := &model.Item{Description: "calculator", Color: "blue"}
	assert.Equal(t, 5, e.TextScore(context.Background(), a, b), "related colour family")

	c := &model.Item{Description: "umbrella", Category: "electronics"}
	d := &model.Item{Description: "calculator", Category: "electronics accessories"}
	assert.Equal(t, 10, e.TextScore(context.Background(), c, d), "related category")
}

func TestTextScoreHybrid(t *testing.T) {
	a := &model.Item{ID: "a", Description: "silver macbook"}
	b := &model.Item{ID: "b", Description: "silver macbook"}

	// stored text embeddings win over the remote embedder
	a.AI.TextEmbedding = []float32{1, 0}
	b.AI.TextEmbedding = []float32{0, 1}
	emb := &fakeEmbedder{}
	e := newTestEngine(emb)
	assert.Equal(t, 60, e.TextScore(context.Background(), a, b))
	assert.Equal(t, 0, emb.calls)

	// remote embedder fills in missing embeddings
	a.AI.TextEmbedding, b.AI.TextEmbedding = nil, nil
	emb = &fakeEmbedder{vectors: map[string][]float32{"silver macbook": {0.3, 0.4}}}
	e = newTestEngine(emb)
	assert.Equal(t, 100, e.TextScore(context.Background(), a, b))

	// unavailable embedder falls back to lexical only
	e = newTestEngine(&fakeEmbedder{err: errors.New("timeout")})
	assert.Equal(t, 100, e.TextScore(context.Background(), a, b))
}

func TestTotalUsesConfiguredWeights(t *testing.T) {
	c := model.ComponentScores{Embedding: 80, Text: 60, Class: 50, Location: 100, Time: 100}

	e := newTestEngine(nil)
	assert.Equal(t, 68, e.Total(c), "location and time are excluded by default")

	cfg := model.DefaultConfig().Matching
	cfg.Weights = model.MatchWeights{Embedding: 0.4, Text: 0.2, Class: 0.1, Location: 0.15, Time: 0.15}
	weighted := NewEngine(cfg, nil, logging.NewNop())
	assert.Equal(t, 79, weighted.Total(c))

	cfg.Weights = model.MatchWeights{}
	assert.Equal(t, 0, NewEngine(cfg, nil, logging.NewNop()).Total(c))
}

func TestExplain(t *testing.T) {
	e := newTestEngine(nil)
	lost := &model.Item{Category: "Phone", Color: "Black", AI: model.ItemAI{DetectedObjects: []string{"phone"}}}
	found := &model.Item{Category: "phone", Color: "black", AI: model.ItemAI{DetectedObjects: []string{"phone"}}}

	reasons := e.Explain(lost, found, model.ComponentScores{Embedding: 90, Text: 85, Location: 100, Time: 100})
	require.Len(t, reasons, 7)
	assert.Equal(t, "Descriptions are 85% similar", reasons[0])
	assert.Equal(t, "Both are in category phone", reasons[1])
	assert.Equal(t, "Both described as black", reasons[4])
	assert.Equal(t, "Detected similar objects in both photos (100% overlap)", reasons[5])
	assert.Equal(t, "Images are visually similar (90%)", reasons[6])

	none := e.Explain(&model.Item{}, &model.Item{}, model.ComponentScores{})
	assert.Equal(t, []string{"No specific matching factors identified."}, none)
}
