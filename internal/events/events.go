// Package events publishes domain notifications for downstream consumers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reclaim-app/reclaim/internal/model"
)

// Routing keys
const (
	MatchSuggested = "match.suggested"
	ClaimResolved  = "claim.resolved"
	ClaimFlagged   = "claim.flagged"
)

// Envelope wraps every published payload
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// NewEnvelope stamps a payload with an id and time
func NewEnvelope(routingKey string, data any) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Type:       routingKey,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// MatchSuggestedEvent is published when the matcher records a pair
type MatchSuggestedEvent struct {
	MatchID     string `json:"match_id"`
	LostItemID  string `json:"lost_item_id"`
	FoundItemID string `json:"found_item_id"`
	Score       int    `json:"score"`
}

// ClaimResolvedEvent is published when a claim is auto-awarded
type ClaimResolvedEvent struct {
	ItemID        string `json:"item_id"`
	WinnerClaimID string `json:"winner_claim_id"`
	ClaimantID    string `json:"claimant_id"`
	Confidence    int    `json:"confidence"`
}

// ClaimFlaggedEvent is published when a losing claim is marked suspicious
type ClaimFlaggedEvent struct {
	ClaimID        string            `json:"claim_id"`
	ItemID         string            `json:"item_id"`
	ClaimantID     string            `json:"claimant_id"`
	SuspicionScore int               `json:"suspicion_score"`
	Flags          []model.FraudFlag `json:"flags"`
}

// Publisher sends events. Callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                               { return nil }

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *Recorder) Publish(_ context.Context, routingKey string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, NewEnvelope(routingKey, payload))
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of what was published
func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events with routingKey were published
func (r *Recorder) Count(routingKey string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == routingKey {
			n++
		}
	}
	return n
}
