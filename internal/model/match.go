package model

import "time"

// ComponentScores are the per-signal scores of a pair, each 0-100
type ComponentScores struct {
	Embedding int `json:"embedding"`
	Text      int `json:"text"`
	Class     int `json:"class"`
	Location  int `json:"location"`
	Time      int `json:"time"`
}

// PairScore is the full similarity result for one lost/found pair
type PairScore struct {
	Total       int             `json:"total"`
	Components  ComponentScores `json:"components"`
	Explanation []string        `json:"explanation"`
}

// PairMatch is a pair recorded during a matching run
type PairMatch struct {
	LostItemID    string          `json:"lost_item_id"`
	LostTracking  string          `json:"lost_tracking"`
	FoundItemID   string          `json:"found_item_id"`
	FoundTracking string          `json:"found_tracking"`
	Score         int             `json:"score"`
	Components    ComponentScores `json:"components"`
	Category      string          `json:"category"`
}

// MatchStatus tracks admin feedback on a suggested match
type MatchStatus string

const (
	MatchSuggested MatchStatus = "suggested"
	MatchAccepted  MatchStatus = "accepted"
	MatchRejected  MatchStatus = "rejected"
)

// MatchRecord is a persisted match suggestion and its review outcome
type MatchRecord struct {
	ID         string      `json:"id"`
	PairMatch
	Status     MatchStatus `json:"status"`
	Overridden bool        `json:"overridden"` // admin picked a different found item
	CreatedAt  time.Time   `json:"created_at"`
	ReviewedAt *time.Time  `json:"reviewed_at,omitempty"`
}

// MatchingSummary is returned by a bulk matching run
type MatchingSummary struct {
	TotalLost    int         `json:"total_lost"`
	TotalFound   int         `json:"total_found"`
	Processed    int         `json:"processed"`
	MatchedPairs int         `json:"matched_pairs"`
	Errors       int         `json:"errors"`
	AvgScore     float64     `json:"avg_score"`
	TopMatches   []PairMatch `json:"top_matches"`
}

// TextEmbedding is a TF-IDF vector cached for an item description
type TextEmbedding struct {
	ItemID     string    `json:"item_id"`
	Text       string    `json:"text"`
	Vector     []float64 `json:"vector"`
	Vocabulary []string  `json:"vocabulary"` // sorted, same length as Vector
}
