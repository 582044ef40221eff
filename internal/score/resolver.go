package score

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reclaim-app/reclaim/internal/events"
	"github.com/reclaim-app/reclaim/internal/logging"
	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/store"
	"github.com/reclaim-app/reclaim/internal/worker"
)

var openStatuses = []model.ClaimStatus{model.ClaimPending, model.ClaimConflict}

// ClaimScorer evaluates one claim; *Evaluator is the production implementation
type ClaimScorer interface {
	Evaluate(ctx context.Context, claim *model.Claim, item *model.Item) (*model.ClaimEvaluation, error)
}

// BatchSummary is returned by ProcessAll
type BatchSummary struct {
	Processed   int `json:"processed"`
	Resolved    int `json:"resolved"`
	NeedsReview int `json:"needs_review"`
	Errors      int `json:"errors"`
}

// Resolver decides between the open claims on one item
type Resolver struct {
	cfg    model.ClaimConfig
	items  store.ItemStore
	claims store.ClaimStore
	eval   ClaimScorer
	pub    events.Publisher
	log    *logging.Logger
	now    func() time.Time
}

// NewResolver creates a resolver. pub may be nil.
func NewResolver(cfg model.ClaimConfig, items store.ItemStore, claims store.ClaimStore, eval ClaimScorer, pub events.Publisher, log *logging.Logger) *Resolver {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Resolver{
		cfg:    cfg,
		items:  items,
		claims: claims,
		eval:   eval,
		pub:    pub,
		log:    log.With("component", "resolver"),
		now:    time.Now,
	}
}

// candidate pairs a claim with its evaluation
type candidate struct {
	claim *model.Claim
	eval  *model.ClaimEvaluation
}

// Preview ranks the open claims on itemID and decides auto-award vs manual review.
// Nothing is written.
func (r *Resolver) Preview(ctx context.Context, itemID string) (*model.Resolution, error) {
	res, _, err := r.resolve(ctx, itemID)
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, itemID string) (*model.Resolution, []candidate, error) {
	item, err := r.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	open, err := r.claims.ListClaims(ctx, store.ClaimFilter{ItemID: itemID, Statuses: openStatuses})
	if err != nil {
		return nil, nil, err
	}

	res := &model.Resolution{ItemID: itemID, Evaluations: []*model.ClaimEvaluation{}}
	if len(open) == 0 {
		res.State = model.ResolutionNoClaims
		res.Reason = "No pending claims"
		return res, nil, nil
	}

	// Evaluate everything before deciding so a failure leaves no partial state
	cands := make([]candidate, 0, len(open))
	for _, c := range open {
		ev, err := r.eval.Evaluate(ctx, c, item)
		if err != nil {
			return nil, nil, fmt.Errorf("evaluate claim %s: %w", c.ID, err)
		}
		cands = append(cands, candidate{claim: c, eval: ev})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].eval.FinalScore > cands[j].eval.FinalScore
	})
	for _, c := range cands {
		res.Evaluations = append(res.Evaluations, c.eval)
	}

	winner := cands[0].eval
	runnerUp := 0
	if len(cands) > 1 {
		runnerUp = cands[1].eval.FinalScore
	}
	gap := winner.FinalScore - runnerUp

	res.WinnerClaimID = winner.ClaimID
	res.WinnerConfidence = winner.FinalScore

	var reasons []string
	if winner.FinalScore < r.cfg.AutoAwardThreshold {
		reasons = append(reasons, fmt.Sprintf("winner score %d is below the auto-award threshold %d", winner.FinalScore, r.cfg.AutoAwardThreshold))
	}
	if len(cands) > 1 && gap < r.cfg.MinimumConfidenceGap {
		reasons = append(reasons, fmt.Sprintf("lead of %d points over the runner-up is below %d", gap, r.cfg.MinimumConfidenceGap))
	}
	if winner.HasCritical() {
		reasons = append(reasons, "winner carries a critical fraud flag")
	}

	if len(reasons) > 0 {
		res.RequiresManualReview = true
		res.State = model.ResolutionNeedsReview
		res.Reason = "Manual review required: " + strings.Join(reasons, "; ")
	} else {
		res.State = model.ResolutionAutoResolved
		res.Reason = fmt.Sprintf("Auto-resolved: winner scored %d with a %d-point lead", winner.FinalScore, gap)
	}
	return res, cands, nil
}

// Process resolves itemID and applies the outcome. An auto-resolved item gets its
// winner approved, every other open claim rejected or marked suspicious, and its
// status set to resolved. When review is required no claim is changed, unless
// MarkConflicts is set, in which case competing pending claims move to conflict.
func (r *Resolver) Process(ctx context.Context, itemID string) (*model.Resolution, error) {
	res, cands, err := r.resolve(ctx, itemID)
	if err != nil || res.State == model.ResolutionNoClaims {
		return res, err
	}

	if res.RequiresManualReview {
		if r.cfg.MarkConflicts && len(cands) > 1 {
			for _, c := range cands {
				if c.claim.Status != model.ClaimPending {
					continue
				}
				c.claim.Status = model.ClaimConflict
				if err := r.claims.SaveClaim(ctx, c.claim); err != nil {
					return nil, err
				}
			}
		}
		r.log.Info("claims need manual review", "item_id", itemID, "claims", len(cands), "reason", res.Reason)
		return res, nil
	}

	now := r.now()
	win := cands[0]
	win.claim.AIConfidence = win.eval.FinalScore
	win.claim.FraudRisk = nil
	if err := r.claims.ApproveClaim(ctx, win.claim); err != nil {
		return nil, err
	}

	for _, c := range cands[1:] {
		r.applyLoss(c, win.eval.FinalScore, now)
		if err := r.claims.SaveClaim(ctx, c.claim); err != nil {
			return nil, err
		}
		if c.claim.Status == model.ClaimSuspicious {
			r.publish(ctx, events.ClaimFlagged, events.ClaimFlaggedEvent{
				ClaimID:        c.claim.ID,
				ItemID:         itemID,
				ClaimantID:     c.claim.ClaimantID,
				SuspicionScore: c.claim.FraudRisk.SuspicionScore,
				Flags:          c.claim.FraudRisk.Flags,
			})
		}
	}

	if err := r.items.UpdateItemStatus(ctx, itemID, model.ItemResolved); err != nil {
		return nil, err
	}

	r.publish(ctx, events.ClaimResolved, events.ClaimResolvedEvent{
		ItemID:        itemID,
		WinnerClaimID: win.claim.ID,
		ClaimantID:    win.claim.ClaimantID,
		Confidence:    win.eval.FinalScore,
	})
	r.log.Info("claims auto-resolved", "item_id", itemID, "winner", win.claim.ID, "score", win.eval.FinalScore)
	return res, nil
}

// applyLoss sets suspicion = min(100, gap + FlagPenalty*flags) and the resulting status
func (r *Resolver) applyLoss(c candidate, winnerScore int, now time.Time) {
	flags := append([]model.FraudFlag(nil), c.eval.Flags...)
	suspicion := min(100, (winnerScore-c.eval.FinalScore)+r.cfg.FlagPenalty*len(flags))

	switch {
	case suspicion >= r.cfg.CriticalThreshold:
		flags = append(flags, model.FraudFlag{
			Type:        model.FlagLowConfidence,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("Suspicion score %d against a winning claim of %d", suspicion, winnerScore),
		})
		c.claim.Status = model.ClaimSuspicious
	case suspicion >= r.cfg.SuspiciousThreshold:
		flags = append(flags, model.FraudFlag{
			Type:        model.FlagLowConfidence,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Suspicion score %d against a winning claim of %d", suspicion, winnerScore),
		})
		c.claim.Status = model.ClaimSuspicious
	default:
		c.claim.Status = model.ClaimRejected
	}

	c.claim.AIConfidence = c.eval.FinalScore
	c.claim.FraudRisk = &model.FraudRisk{
		SuspicionScore: suspicion,
		Flags:          flags,
		AssessedAt:     now,
	}
}

// ProcessAll runs Process for every item with open claims. A failing item is
// counted and logged; the rest still run.
func (r *Resolver) ProcessAll(ctx context.Context) (*BatchSummary, error) {
	open, err := r.claims.ListClaims(ctx, store.ClaimFilter{Statuses: openStatuses})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var itemIDs []string
	for _, c := range open {
		if !seen[c.ItemID] {
			seen[c.ItemID] = true
			itemIDs = append(itemIDs, c.ItemID)
		}
	}

	var mu sync.Mutex
	summary := &BatchSummary{}
	results, counts := worker.NewBatchProcessor(r.cfg.Workers).Process(ctx, itemIDs, func(ctx context.Context, id string) error {
		res, err := r.Process(ctx, id)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		switch res.State {
		case model.ResolutionAutoResolved:
			summary.Resolved++
		case model.ResolutionNeedsReview:
			summary.NeedsReview++
		}
		return nil
	})
	for _, res := range results {
		if res.Err != nil {
			r.log.Warn("claim resolution failed", "item_id", res.ID, "error", res.Err)
		}
	}

	summary.Processed = counts.Processed
	summary.Errors = counts.Errors
	r.log.Info("claim batch processed",
		"processed", summary.Processed,
		"resolved", summary.Resolved,
		"needs_review", summary.NeedsReview,
		"errors", summary.Errors,
	)
	return summary, nil
}

func (r *Resolver) publish(ctx context.Context, key string, payload any) {
	if err := r.pub.Publish(ctx, key, payload); err != nil {
		r.log.Warn("event publish failed", "routing_key", key, "error", err)
	}
}
