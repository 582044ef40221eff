// Package store persists items, claims and match suggestions.
package store

import (
	"context"
	"time"

	"github.com/reclaim-app/reclaim/internal/apperr"
	"github.com/reclaim-app/reclaim/internal/logging"
	"github.com/reclaim-app/reclaim/internal/model"
)

// ItemFilter selects items. Zero-valued fields do not filter.
type ItemFilter struct {
	Type               model.SubmissionType
	Statuses           []model.ItemStatus
	Category           string
	ZoneID             string
	Since              time.Time // ReportedAt >= Since
	Until              time.Time // ReportedAt < Until
	WithImageEmbedding bool
}

// ClaimFilter selects claims. Zero-valued fields do not filter.
type ClaimFilter struct {
	ItemID     string
	ClaimantID string
	Statuses   []model.ClaimStatus
	Since      time.Time // CreatedAt >= Since
	Until      time.Time // CreatedAt < Until
}

// MatchFilter selects match records. Zero-valued fields do not filter.
type MatchFilter struct {
	Category string
	Statuses []model.MatchStatus
	Since    time.Time
	Until    time.Time
}

// ItemStore persists lost and found reports
type ItemStore interface {
	GetItem(ctx context.Context, id string) (*model.Item, error)
	ListItems(ctx context.Context, f ItemFilter) ([]*model.Item, error)
	SaveItem(ctx context.Context, item *model.Item) error
	UpdateBestMatch(ctx context.Context, id, bestMatchID string, score int) error
	// UpdateItemInference writes detections and embeddings; best-match fields are untouched
	UpdateItemInference(ctx context.Context, id string, ai model.ItemAI) error
	UpdateItemStatus(ctx context.Context, id string, status model.ItemStatus) error
}

// ClaimStore persists ownership claims
type ClaimStore interface {
	GetClaim(ctx context.Context, id string) (*model.Claim, error)
	ListClaims(ctx context.Context, f ClaimFilter) ([]*model.Claim, error)
	SaveClaim(ctx context.Context, claim *model.Claim) error
	// ApproveClaim saves claim as approved unless another claim on the same item already is.
	ApproveClaim(ctx context.Context, claim *model.Claim) error
}

// MatchStore persists match suggestions and their review outcome
type MatchStore interface {
	GetMatch(ctx context.Context, id string) (*model.MatchRecord, error)
	ListMatches(ctx context.Context, f MatchFilter) ([]*model.MatchRecord, error)
	SaveMatch(ctx context.Context, rec *model.MatchRecord) error
}

// Store is the full persistence surface
type Store interface {
	ItemStore
	ClaimStore
	MatchStore
	Close() error
}

func (f ItemFilter) matches(it *model.Item) bool {
	if f.Type != "" && it.Type != f.Type {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, it.Status) {
		return false
	}
	if f.Category != "" && it.Category != f.Category {
		return false
	}
	if f.ZoneID != "" && it.Location.ZoneID != f.ZoneID {
		return false
	}
	if f.WithImageEmbedding && !it.HasImageEmbedding() {
		return false
	}
	return inWindow(it.ReportedAt, f.Since, f.Until)
}

func (f ClaimFilter) matches(c *model.Claim) bool {
	if f.ItemID != "" && c.ItemID != f.ItemID {
		return false
	}
	if f.ClaimantID != "" && c.ClaimantID != f.ClaimantID {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, c.Status) {
		return false
	}
	return inWindow(c.CreatedAt, f.Since, f.Until)
}

func (f MatchFilter) matches(m *model.MatchRecord) bool {
	if f.Category != "" && m.Category != f.Category {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, m.Status) {
		return false
	}
	return inWindow(m.CreatedAt, f.Since, f.Until)
}

func inWindow(t, since, until time.Time) bool {
	if !since.IsZero() && t.Before(since) {
		return false
	}
	if !until.IsZero() && !t.Before(until) {
		return false
	}
	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Open builds the store selected by cfg.Driver ("memory" or "postgres")
func Open(cfg model.StoreConfig, log *logging.Logger) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		gs, err := OpenPostgres(cfg.DSN, log)
		if err != nil {
			return nil, err
		}
		return gs, nil
	default:
		return nil, apperr.Invalid("store.open", "unknown store driver %q", cfg.Driver)
	}
}
