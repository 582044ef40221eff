package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reclaim-app/reclaim/internal/apperr"
	"github.com/reclaim-app/reclaim/internal/model"
)

// MemoryStore keeps everything in process memory. Safe for concurrent use.
// Records are copied on the way in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	items   map[string]*model.Item
	claims  map[string]*model.Claim
	matches map[string]*model.MatchRecord
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:   make(map[string]*model.Item),
		claims:  make(map[string]*model.Claim),
		matches: make(map[string]*model.MatchRecord),
		now:     time.Now,
	}
}

func (s *MemoryStore) GetItem(_ context.Context, id string) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return nil, apperr.NotFound("store.item", "item %q not found", id)
	}
	return cloneItem(it), nil
}

func (s *MemoryStore) ListItems(ctx context.Context, f ItemFilter) ([]*model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]*model.Item, 0, len(s.items))
	for _, it := range s.items {
		if f.matches(it) {
			out = append(out, cloneItem(it))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReportedAt.Equal(out[j].ReportedAt) {
			return out[i].ReportedAt.Before(out[j].ReportedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) SaveItem(_ context.Context, item *model.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.ReportedAt.IsZero() {
		item.ReportedAt = s.now()
	}
	if item.Status == "" {
		item.Status = model.ItemSubmitted
	}
	s.mu.Lock()
	s.items[item.ID] = cloneItem(item)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) UpdateBestMatch(_ context.Context, id, bestMatchID string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return apperr.NotFound("store.item", "item %q not found", id)
	}
	it.AI.BestMatchID = bestMatchID
	it.AI.MatchScore = score
	it.AI.SimilarityChecked = true
	return nil
}

func (s *MemoryStore) UpdateItemInference(_ context.Context, id string, ai model.ItemAI) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return apperr.NotFound("store.item", "item %q not found", id)
	}
	it.AI.SetInference(cloneItem(&model.Item{AI: ai}).AI)
	return nil
}

func (s *MemoryStore) UpdateItemStatus(_ context.Context, id string, status model.ItemStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return apperr.NotFound("store.item", "item %q not found", id)
	}
	it.Status = status
	return nil
}

func (s *MemoryStore) GetClaim(_ context.Context, id string) (*model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[id]
	if !ok {
		return nil, apperr.NotFound("store.claim", "claim %q not found", id)
	}
	return cloneClaim(c), nil
}

func (s *MemoryStore) ListClaims(ctx context.Context, f ClaimFilter) ([]*model.Claim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]*model.Claim, 0)
	for _, c := range s.claims {
		if f.matches(c) {
			out = append(out, cloneClaim(c))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) SaveClaim(_ context.Context, claim *model.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveClaimLocked(claim)
	return nil
}

func (s *MemoryStore) saveClaimLocked(claim *model.Claim) {
	now := s.now()
	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = now
	}
	if claim.Status == "" {
		claim.Status = model.ClaimPending
	}
	claim.UpdatedAt = now
	s.claims[claim.ID] = cloneClaim(claim)
}

func (s *MemoryStore) ApproveClaim(_ context.Context, claim *model.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.claims {
		if c.ItemID == claim.ItemID && c.ID != claim.ID && c.Status == model.ClaimApproved {
			return apperr.Invalid("store.approve", "item %q already has approved claim %q", claim.ItemID, c.ID)
		}
	}
	claim.Status = model.ClaimApproved
	s.saveClaimLocked(claim)
	return nil
}

func (s *MemoryStore) GetMatch(_ context.Context, id string) (*model.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, apperr.NotFound("store.match", "match %q not found", id)
	}
	return cloneMatch(m), nil
}

func (s *MemoryStore) ListMatches(ctx context.Context, f MatchFilter) ([]*model.MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]*model.MatchRecord, 0, len(s.matches))
	for _, m := range s.matches {
		if f.matches(m) {
			out = append(out, cloneMatch(m))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) SaveMatch(_ context.Context, rec *model.MatchRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	if rec.Status == "" {
		rec.Status = model.MatchSuggested
	}
	s.mu.Lock()
	s.matches[rec.ID] = cloneMatch(rec)
	s.mu.Unlock()
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
