// Package matching pairs lost reports with found reports and keeps the
// similar-item index in step with the store.
package matching

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reclaim-app/reclaim/internal/apperr"
	"github.com/reclaim-app/reclaim/internal/events"
	"github.com/reclaim-app/reclaim/internal/logging"
	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/store"
	"github.com/reclaim-app/reclaim/internal/vectorindex"
	"github.com/reclaim-app/reclaim/internal/worker"
)

// matchNamespace derives stable match record ids from (lost, found) pairs
var matchNamespace = uuid.MustParse("6f1c2a8e-5d1b-4c47-9a59-3c0b8e7f2d11")

// Scorer scores one lost/found pair
type Scorer interface {
	Score(ctx context.Context, lost, found *model.Item) model.PairScore
}

// Suggestion is the best found item for one lost report
type Suggestion struct {
	model.PairMatch
	Explanation []string `json:"explanation"`
}

// Service runs single-item and bulk matching
type Service struct {
	cfg     model.MatchingConfig
	items   store.ItemStore
	matches store.MatchStore
	scorer  Scorer
	index   vectorindex.Index
	pub     events.Publisher
	log     *logging.Logger
	now     func() time.Time
}

// NewService wires a matching service. pub may be nil.
func NewService(cfg model.MatchingConfig, st store.Store, scorer Scorer, index vectorindex.Index, pub events.Publisher, log *logging.Logger) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if cfg.TopMatches <= 0 {
		cfg.TopMatches = 10
	}
	return &Service{
		cfg:     cfg,
		items:   st,
		matches: st,
		scorer:  scorer,
		index:   index,
		pub:     pub,
		log:     log.With("component", "matching"),
		now:     time.Now,
	}
}

// MatchAll finds the best found counterpart for every open lost report.
// Candidates are open found reports with an image embedding in the same category.
// Pairs scoring at least MinMatchScore are persisted onto the lost report; re-running
// overwrites the previous best-match fields. A failing lost report is counted and skipped.
func (s *Service) MatchAll(ctx context.Context) (*model.MatchingSummary, error) {
	start := s.now()

	lost, err := s.items.ListItems(ctx, store.ItemFilter{
		Type:     model.SubmissionLost,
		Statuses: []model.ItemStatus{model.ItemSubmitted},
	})
	if err != nil {
		return nil, err
	}
	found, err := s.items.ListItems(ctx, store.ItemFilter{
		Type:               model.SubmissionFound,
		Statuses:           []model.ItemStatus{model.ItemSubmitted},
		WithImageEmbedding: true,
	})
	if err != nil {
		return nil, err
	}

	buckets := bucketByCategory(found)
	byID := make(map[string]*model.Item, len(lost))
	ids := make([]string, 0, len(lost))
	for _, it := range lost {
		byID[it.ID] = it
		ids = append(ids, it.ID)
	}

	var mu sync.Mutex
	pairs := make([]model.PairMatch, 0)

	results, counts := worker.NewBatchProcessor(s.cfg.Workers).Process(ctx, ids, func(ctx context.Context, id string) error {
		item := byID[id]
		best, err := s.best(ctx, item, buckets[categoryKey(item.Category)])
		if err != nil || best == nil {
			return err
		}
		if err := s.persist(ctx, best.PairMatch); err != nil {
			return err
		}
		mu.Lock()
		pairs = append(pairs, best.PairMatch)
		mu.Unlock()
		return nil
	})
	for _, r := range results {
		if r.Err != nil {
			s.log.Warn("matching failed for lost item", "item_id", r.ID, "error", r.Err)
		}
	}

	sortPairs(pairs)
	summary := &model.MatchingSummary{
		TotalLost:    len(lost),
		TotalFound:   len(found),
		Processed:    counts.Processed,
		MatchedPairs: len(pairs),
		Errors:       counts.Errors,
		AvgScore:     averageScore(pairs),
		TopMatches:   pairs[:min(len(pairs), s.cfg.TopMatches)],
	}

	s.log.Info("bulk matching complete",
		"lost", summary.TotalLost,
		"found", summary.TotalFound,
		"matched", summary.MatchedPairs,
		"errors", summary.Errors,
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)
	return summary, nil
}

// FindBestMatch returns the best suggestion for one lost report without persisting it.
// Returns nil when no candidate reaches MinMatchScore.
func (s *Service) FindBestMatch(ctx context.Context, lostID string) (*Suggestion, error) {
	item, err := s.items.GetItem(ctx, lostID)
	if err != nil {
		return nil, err
	}
	if item.Type != model.SubmissionLost {
		return nil, apperr.Invalid("matching.best", "item %q is a %s report, not a lost report", lostID, item.Type)
	}

	found, err := s.items.ListItems(ctx, store.ItemFilter{
		Type:               model.SubmissionFound,
		Statuses:           []model.ItemStatus{model.ItemSubmitted},
		WithImageEmbedding: true,
	})
	if err != nil {
		return nil, err
	}

	return s.best(ctx, item, bucketByCategory(found)[categoryKey(item.Category)])
}

// MatchItem is FindBestMatch followed by persisting the result
func (s *Service) MatchItem(ctx context.Context, lostID string) (*Suggestion, error) {
	best, err := s.FindBestMatch(ctx, lostID)
	if err != nil || best == nil {
		return best, err
	}
	if err := s.persist(ctx, best.PairMatch); err != nil {
		return nil, err
	}
	return best, nil
}

// Preview scores an arbitrary lost/found pair with its explanation
func (s *Service) Preview(ctx context.Context, lostID, foundID string) (*model.PairScore, error) {
	lost, err := s.items.GetItem(ctx, lostID)
	if err != nil {
		return nil, err
	}
	found, err := s.items.GetItem(ctx, foundID)
	if err != nil {
		return nil, err
	}
	if lost.Type != model.SubmissionLost || found.Type != model.SubmissionFound {
		return nil, apperr.Invalid("matching.preview", "expected a lost and a found report, got %s and %s", lost.Type, found.Type)
	}
	score := s.scorer.Score(ctx, lost, found)
	return &score, nil
}

// ReviewMatch records an admin decision on a suggestion.
// overrideFoundID names a different found item the admin chose instead.
func (s *Service) ReviewMatch(ctx context.Context, matchID string, accepted bool, overrideFoundID string) (*model.MatchRecord, error) {
	rec, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	rec.Status = model.MatchRejected
	if accepted {
		rec.Status = model.MatchAccepted
	}
	rec.Overridden = overrideFoundID != "" && overrideFoundID != rec.FoundItemID
	rec.ReviewedAt = &now
	if err := s.matches.SaveMatch(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) best(ctx context.Context, lost *model.Item, candidates []*model.Item) (*Suggestion, error) {
	var best *Suggestion
	for _, found := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score := s.scorer.Score(ctx, lost, found)
		if best != nil && score.Total <= best.Score {
			continue
		}
		best = &Suggestion{
			PairMatch: model.PairMatch{
				LostItemID:    lost.ID,
				LostTracking:  lost.TrackingCode,
				FoundItemID:   found.ID,
				FoundTracking: found.TrackingCode,
				Score:         score.Total,
				Components:    score.Components,
				Category:      lost.Category,
			},
			Explanation: score.Explanation,
		}
	}
	// a cancelled scorer may have returned zeros for the last candidate
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if best == nil || best.Score < s.cfg.MinMatchScore {
		return nil, nil
	}
	return best, nil
}

// persist writes the best-match fields and the match record. A reviewed record
// keeps its review outcome; only new records are announced.
func (s *Service) persist(ctx context.Context, pair model.PairMatch) error {
	if err := s.items.UpdateBestMatch(ctx, pair.LostItemID, pair.FoundItemID, pair.Score); err != nil {
		return err
	}

	id := uuid.NewSHA1(matchNamespace, []byte(pair.LostItemID+"\x00"+pair.FoundItemID)).String()
	rec := &model.MatchRecord{ID: id, PairMatch: pair, Status: model.MatchSuggested, CreatedAt: s.now()}

	existing, err := s.matches.GetMatch(ctx, id)
	switch {
	case err == nil:
		rec.Status = existing.Status
		rec.Overridden = existing.Overridden
		rec.CreatedAt = existing.CreatedAt
		rec.ReviewedAt = existing.ReviewedAt
	case !apperr.IsNotFound(err):
		return err
	}

	if err := s.matches.SaveMatch(ctx, rec); err != nil {
		return err
	}
	if existing == nil {
		s.publish(ctx, events.MatchSuggested, events.MatchSuggestedEvent{
			MatchID:     id,
			LostItemID:  pair.LostItemID,
			FoundItemID: pair.FoundItemID,
			Score:       pair.Score,
		})
	}
	return nil
}

func (s *Service) publish(ctx context.Context, key string, payload any) {
	if err := s.pub.Publish(ctx, key, payload); err != nil {
		s.log.Warn("event publish failed", "routing_key", key, "error", err)
	}
}

func bucketByCategory(items []*model.Item) map[string][]*model.Item {
	buckets := make(map[string][]*model.Item)
	for _, it := range items {
		key := categoryKey(it.Category)
		buckets[key] = append(buckets[key], it)
	}
	return buckets
}

func categoryKey(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

func sortPairs(pairs []model.PairMatch) {
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].Score != pairs[j].Score {
			return pairs[i].Score > pairs[j].Score
		}
		return pairs[i].LostItemID < pairs[j].LostItemID
	})
}

func averageScore(pairs []model.PairMatch) float64 {
	if len(pairs) == 0 {
		return 0
	}
	sum := 0
	for _, p := range pairs {
		sum += p.Score
	}
	return math.Round(float64(sum)/float64(len(pairs))*100) / 100
}
