package similarity

import (
	"context"
	"math"
	"strings"

	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/vecmath"
)

const earthRadiusKm = 6371.0

// colorFamilies groups named shades under a base colour
var colorFamilies = map[string][]string{
	"blue":   {"navy", "azure", "cobalt", "teal", "turquoise", "sky", "royal", "cyan", "indigo"},
	"red":    {"crimson", "maroon", "burgundy", "scarlet", "ruby", "wine", "cherry"},
	"green":  {"olive", "lime", "emerald", "mint", "forest", "sage", "khaki"},
	"black":  {"charcoal", "jet", "onyx", "ebony"},
	"white":  {"ivory", "cream", "pearl", "off-white", "beige"},
	"grey":   {"gray", "silver", "slate", "ash", "graphite", "space gray"},
	"brown":  {"tan", "chocolate", "coffee", "camel", "bronze", "caramel"},
	"yellow": {"gold", "golden", "mustard", "lemon", "amber"},
	"pink":   {"rose", "magenta", "fuchsia", "salmon", "blush"},
	"purple": {"violet", "lavender", "lilac", "plum", "mauve"},
	"orange": {"peach", "coral", "apricot", "rust"},
}

var colorFamilyOf = func() map[string]string {
	idx := make(map[string]string)
	for base, shades := range colorFamilies {
		idx[base] = base
		for _, s := range shades {
			idx[s] = base
		}
	}
	return idx
}()

// EmbeddingScore is cosine similarity of the image embeddings as 0-100; 0 if either is missing
func (e *Engine) EmbeddingScore(a, b *model.Item) int {
	if !a.HasImageEmbedding() || !b.HasImageEmbedding() {
		return 0
	}
	return vecmath.Percent(vecmath.Cosine(a.AI.ImageEmbedding, b.AI.ImageEmbedding))
}

// TextScore blends lexical and (when available) semantic similarity, then adds attribute bonuses
func (e *Engine) TextScore(ctx context.Context, a, b *model.Item) int {
	lexical := float64(e.text.Similarity(a.Description, b.Description))

	score := lexical
	if semantic, ok := e.semanticSimilarity(ctx, a, b); ok {
		score = lexical*e.cfg.Text.LexicalWeight + float64(vecmath.Percent(semantic))*e.cfg.Text.SemanticWeight
	}

	total := int(math.Round(score)) + e.attributeBonus(a, b)
	if total > 100 {
		return 100
	}
	return total
}

// semanticSimilarity returns the cosine of the two text embeddings.
// ok is false when either embedding is unavailable.
func (e *Engine) semanticSimilarity(ctx context.Context, a, b *model.Item) (float64, bool) {
	va, ok := e.textEmbedding(ctx, a)
	if !ok {
		return 0, false
	}
	vb, ok := e.textEmbedding(ctx, b)
	if !ok {
		return 0, false
	}
	if len(va) != len(vb) {
		return 0, false
	}
	return vecmath.Cosine(va, vb), true
}

func (e *Engine) textEmbedding(ctx context.Context, item *model.Item) ([]float32, bool) {
	if len(item.AI.TextEmbedding) > 0 {
		return item.AI.TextEmbedding, true
	}
	// same input Enrich embeds, so stored and on-the-fly vectors are comparable
	text := item.SearchText()
	if e.embedder == nil || strings.TrimSpace(text) == "" {
		return nil, false
	}
	vec, err := e.embedder.EmbedText(ctx, text)
	if err != nil {
		e.log.Debug("text embedding unavailable, using lexical score only", "item_id", item.ID, "error", err)
		return nil, false
	}
	return vec, len(vec) > 0
}

func (e *Engine) attributeBonus(a, b *model.Item) int {
	t := e.cfg.Text
	bonus := 0

	catA, catB := normalize(a.Category), normalize(b.Category)
	switch {
	case catA != "" && catA == catB:
		bonus += t.CategoryExactBonus
	case catA != "" && catB != "" && (strings.Contains(catA, catB) || strings.Contains(catB, catA)):
		bonus += t.CategoryRelatedBonus
	}

	colA, colB := normalize(a.Color), normalize(b.Color)
	switch {
	case colA != "" && colA == colB:
		bonus += t.ColorExactBonus
	case relatedColors(colA, colB):
		bonus += t.ColorRelatedBonus
	}

	matA, matB := normalize(a.Material), normalize(b.Material)
	if matA != "" && matA == matB {
		bonus += t.MaterialExactBonus
	}
	return bonus
}

func relatedColors(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	fa, okA := colorFamilyOf[a]
	fb, okB := colorFamilyOf[b]
	return okA && okB && fa == fb
}

// ClassScore awards 50 for matching primary classes plus up to 50 for detected-object overlap
func (e *Engine) ClassScore(a, b *model.Item) int {
	score := 0.0
	pa, pb := normalize(a.AI.PrimaryClass), normalize(b.AI.PrimaryClass)
	if pa != "" && pa == pb {
		score += 50
	}
	score += 50 * objectOverlap(a, b)
	return int(math.Round(score))
}

func objectOverlap(a, b *model.Item) float64 {
	return vecmath.Jaccard(lowerAll(a.AI.DetectedObjects), lowerAll(b.AI.DetectedObjects))
}

// LocationScore maps distance between the two reports to a step score.
// Without coordinates on both sides, a shared zone counts as the same area.
func (e *Engine) LocationScore(a, b *model.Item) int {
	if !a.Location.HasCoordinates || !b.Location.HasCoordinates {
		if a.Location.ZoneID != "" && a.Location.ZoneID == b.Location.ZoneID {
			return 80
		}
		return 0
	}

	km := HaversineKm(a.Location.Lat, a.Location.Lng, b.Location.Lat, b.Location.Lng)
	switch {
	case km < 0.1:
		return 100
	case km < 0.5:
		return 80
	case km < 1.0:
		return 50
	case km < 5.0:
		return 20
	default:
		return 0
	}
}

// TimeScore maps the gap between the lost and found events to a step score.
// A found event strictly before the lost event is impossible and scores 0.
func (e *Engine) TimeScore(lost, found *model.Item) int {
	lostAt, foundAt := eventTime(lost), eventTime(found)
	if lostAt.IsZero() || foundAt.IsZero() {
		return 0
	}
	if foundAt.Before(lostAt) {
		return 0
	}

	hours := foundAt.Sub(lostAt).Hours()
	switch {
	case hours < 24:
		return 100
	case hours < 72:
		return 70
	case hours < 168:
		return 40
	case hours < 720:
		return 20
	default:
		return 5
	}
}

// HaversineKm returns the great-circle distance between two coordinates
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = normalize(s)
	}
	return out
}
