package model

import "time"

// SubmissionType distinguishes lost reports from found reports
type SubmissionType string

const (
	SubmissionLost  SubmissionType = "lost"
	SubmissionFound SubmissionType = "found"
)

// ItemStatus is the lifecycle state of an item report
type ItemStatus string

const (
	ItemSubmitted ItemStatus = "submitted"
	ItemMatched   ItemStatus = "matched"
	ItemResolved  ItemStatus = "resolved"
)

// Item is a lost or found report
type Item struct {
	ID           string         `json:"id"`
	TrackingCode string         `json:"tracking_code"`
	Type         SubmissionType `json:"type"`
	Category     string         `json:"category"`
	Description  string         `json:"description"`
	Color        string         `json:"color,omitempty"`
	Material     string         `json:"material,omitempty"`
	Size         string         `json:"size,omitempty"`
	Location     Location       `json:"location"`
	EventTime    time.Time      `json:"event_time"`  // When the item was lost or found
	ReportedAt   time.Time      `json:"reported_at"` // When the report was submitted
	Status       ItemStatus     `json:"status"`
	AI           ItemAI         `json:"ai"`
}

// Location is where an item was lost or found
type Location struct {
	ZoneID         string  `json:"zone_id,omitempty"`
	Lat            float64 `json:"lat,omitempty"`
	Lng            float64 `json:"lng,omitempty"`
	HasCoordinates bool    `json:"has_coordinates"`
}

// ItemAI holds metadata populated asynchronously after submission.
// A nil or empty embedding means the embedding is unavailable.
type ItemAI struct {
	ImageEmbedding    []float32 `json:"image_embedding,omitempty"`
	TextEmbedding     []float32 `json:"text_embedding,omitempty"`
	DetectedObjects   []string  `json:"detected_objects,omitempty"`
	PrimaryClass      string    `json:"primary_class,omitempty"`
	BestMatchID       string    `json:"best_match_id,omitempty"`
	MatchScore        int       `json:"match_score"`
	SimilarityChecked bool      `json:"similarity_checked"`
}

// SetInference copies the fields produced by enrichment from src.
// Matching fields are left as they are.
func (ai *ItemAI) SetInference(src ItemAI) {
	ai.ImageEmbedding = src.ImageEmbedding
	ai.TextEmbedding = src.TextEmbedding
	ai.DetectedObjects = src.DetectedObjects
	ai.PrimaryClass = src.PrimaryClass
}

// HasImageEmbedding reports whether an image embedding is present
func (i *Item) HasImageEmbedding() bool {
	return len(i.AI.ImageEmbedding) > 0
}

// SearchText is the text used for lexical comparison against claims and other items
func (i *Item) SearchText() string {
	return joinNonEmpty(i.Description, i.Category, i.Color, i.Material)
}

func joinNonEmpty(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p
	}
	return out
}
