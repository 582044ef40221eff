// Package score rates ownership claims and decides between competing claims on one item.
package score

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/reclaim-app/reclaim/internal/apperr"
	"github.com/reclaim-app/reclaim/internal/logging"
	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/store"
	"github.com/reclaim-app/reclaim/internal/textvec"
)

// Evaluator scores one claim against the item it targets
type Evaluator struct {
	cfg    model.ClaimConfig
	items  store.ItemStore
	claims store.ClaimStore
	text   *textvec.Vectorizer
	log    *logging.Logger
	now    func() time.Time
}

// NewEvaluator creates an evaluator reading claimant history from claims
func NewEvaluator(cfg model.ClaimConfig, items store.ItemStore, claims store.ClaimStore, log *logging.Logger) *Evaluator {
	return &Evaluator{
		cfg:    cfg,
		items:  items,
		claims: claims,
		text:   textvec.New(),
		log:    log.With("component", "claims"),
		now:    time.Now,
	}
}

// Evaluate computes confidence, proof quality, history and the weighted final score
func (e *Evaluator) Evaluate(ctx context.Context, claim *model.Claim, item *model.Item) (*model.ClaimEvaluation, error) {
	var flags []model.FraudFlag

	// 1. Proof-to-item confidence (0-100)
	confidence := e.confidence(claim, item)

	// 2. Proof quality (0-100)
	quality, qualityFlags := e.proofQuality(claim.Proofs)
	flags = append(flags, qualityFlags...)

	// 3. Claimant history (0-100, higher is better)
	history, historyFlags, err := e.history(ctx, claim)
	if err != nil {
		return nil, err
	}
	flags = append(flags, historyFlags...)

	// 4. Claims on similar items (flags only)
	similarFlags, err := e.similarItemClaims(ctx, claim, item)
	if err != nil {
		return nil, err
	}
	flags = append(flags, similarFlags...)

	final := int(math.Round(
		float64(confidence)*e.cfg.ConfidenceWeight +
			float64(quality)*e.cfg.ProofQualityWeight +
			float64(history)*e.cfg.HistoryWeight,
	))

	return &model.ClaimEvaluation{
		ClaimID:      claim.ID,
		ClaimantID:   claim.ClaimantID,
		Confidence:   confidence,
		ProofQuality: quality,
		History:      history,
		FinalScore:   clamp(final),
		Flags:        flags,
	}, nil
}

// Assess evaluates a stored claim and records the result on it. The claim status is not changed.
// Suspicion is min(100, (100 - final) + FlagPenalty*flags).
func (e *Evaluator) Assess(ctx context.Context, claimID string) (*model.ClaimEvaluation, error) {
	if strings.TrimSpace(claimID) == "" {
		return nil, apperr.Invalid("claims.assess", "claim id is empty")
	}
	claim, err := e.claims.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	item, err := e.items.GetItem(ctx, claim.ItemID)
	if err != nil {
		return nil, err
	}
	if item.Type != model.SubmissionFound {
		return nil, apperr.Invalid("claims.assess", "claim %q targets a %s report; only found items can be claimed", claimID, item.Type)
	}

	eval, err := e.Evaluate(ctx, claim, item)
	if err != nil {
		return nil, err
	}

	claim.AIConfidence = eval.FinalScore
	claim.FraudRisk = &model.FraudRisk{
		SuspicionScore: min(100, (100-eval.FinalScore)+e.cfg.FlagPenalty*len(eval.Flags)),
		Flags:          eval.Flags,
		AssessedAt:     e.now(),
	}
	if err := e.claims.SaveClaim(ctx, claim); err != nil {
		return nil, err
	}

	e.log.Info("claim assessed",
		"claim_id", claim.ID,
		"final_score", eval.FinalScore,
		"flags", len(eval.Flags),
	)
	return eval, nil
}

// confidence is the lexical similarity of all proofs against the item text
func (e *Evaluator) confidence(claim *model.Claim, item *model.Item) int {
	if len(claim.Proofs) == 0 {
		return 0
	}
	return e.text.Similarity(strings.Join(claim.Proofs, " "), item.SearchText())
}

// proofQuality averages per-proof scores (each 0-100)
func (e *Evaluator) proofQuality(proofs []string) (int, []model.FraudFlag) {
	if len(proofs) == 0 {
		return 0, []model.FraudFlag{{
			Type:        model.FlagNoProof,
			Severity:    model.SeverityCritical,
			Description: "No ownership proof provided",
		}}
	}

	var flags []model.FraudFlag
	total, vague := 0, 0
	for _, p := range proofs {
		score, isVague := e.proofScore(p)
		if isVague {
			vague++
		}
		total += score
	}

	if vague > 0 {
		flags = append(flags, model.FraudFlag{
			Type:        model.FlagVagueProof,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d of %d proofs are shorter than %d characters", vague, len(proofs), e.cfg.MinProofLength),
		})
	}

	avg := int(math.Round(float64(total) / float64(len(proofs))))
	if avg < e.cfg.LowQualityThreshold {
		flags = append(flags, model.FraudFlag{
			Type:        model.FlagLowProofQuality,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Average proof quality %d is below %d", avg, e.cfg.LowQualityThreshold),
		})
	}
	return avg, flags
}

func (e *Evaluator) proofScore(proof string) (int, bool) {
	proof = strings.TrimSpace(proof)
	length := len([]rune(proof))

	var score int
	vague := false
	switch {
	case length < e.cfg.MinProofLength:
		score = e.cfg.VagueProofScore
		vague = true
	case length >= e.cfg.GoodProofLength:
		score = e.cfg.GoodProofScore
	default:
		score = e.cfg.MediumProofScore
	}

	matches := min(keywordMatches(proof, e.cfg.StrongProofKeywords), e.cfg.MaxKeywordMatches)
	score += matches * e.cfg.KeywordPoints

	if isMediaURL(proof, e.cfg.MediaHosts) {
		score += e.cfg.MediaURLBonus
	}
	return min(score, 100), vague
}

// history starts at 100 and subtracts for rejected and suspicious prior claims
func (e *Evaluator) history(ctx context.Context, claim *model.Claim) (int, []model.FraudFlag, error) {
	if claim.ClaimantID == "" {
		return 100, nil, nil
	}
	past, err := e.claims.ListClaims(ctx, store.ClaimFilter{ClaimantID: claim.ClaimantID})
	if err != nil {
		return 0, nil, err
	}

	total, rejected, suspicious := 0, 0, 0
	for _, c := range past {
		if c.ID == claim.ID {
			continue
		}
		total++
		switch c.Status {
		case model.ClaimRejected:
			rejected++
		case model.ClaimSuspicious:
			suspicious++
		}
	}
	if total == 0 {
		return 100, nil, nil
	}

	var flags []model.FraudFlag
	ratio := float64(rejected) / float64(total)
	score := 100 - int(math.Round(ratio*float64(e.cfg.MaxRejectionPenalty)))

	if rejected >= e.cfg.RepeatOffenderCount {
		score -= e.cfg.RepeatOffenderPenalty
		flags = append(flags, model.FraudFlag{
			Type:        model.FlagRepeatOffender,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("Claimant has %d rejected claims", rejected),
		})
	} else if rejected >= e.cfg.MultipleRejections {
		flags = append(flags, model.FraudFlag{
			Type:        model.FlagMultipleRejections,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Claimant has %d rejected claims", rejected),
		})
	}

	if suspicious > 0 {
		score -= e.cfg.SuspiciousPenalty * suspicious
		flags = append(flags, model.FraudFlag{
			Type:        model.FlagPriorSuspicious,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Claimant has %d claims previously marked suspicious", suspicious),
		})
	}

	return max(score, 0), flags, nil
}

// similarItemClaims flags claimants who recently claimed other items of the same category
func (e *Evaluator) similarItemClaims(ctx context.Context, claim *model.Claim, item *model.Item) ([]model.FraudFlag, error) {
	if claim.ClaimantID == "" || item.Category == "" {
		return nil, nil
	}
	recent, err := e.claims.ListClaims(ctx, store.ClaimFilter{
		ClaimantID: claim.ClaimantID,
		Since:      e.now().Add(-e.cfg.SimilarClaimsWindow),
	})
	if err != nil {
		return nil, err
	}

	count := 0
	for _, c := range recent {
		if c.ID == claim.ID || c.ItemID == item.ID {
			continue
		}
		other, err := e.items.GetItem(ctx, c.ItemID)
		if apperr.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(other.Category, item.Category) {
			count++
		}
	}

	switch {
	case count >= e.cfg.RepeatedCategoryCount:
		return []model.FraudFlag{{
			Type:        model.FlagRepeatedCategoryClaims,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("Claimant claimed %d other %s items recently", count, item.Category),
		}}, nil
	case count >= 1:
		return []model.FraudFlag{{
			Type:        model.FlagSimilarItemClaims,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Claimant claimed %d other %s item(s) recently", count, item.Category),
		}}, nil
	}
	return nil, nil
}

// keywordMatches counts distinct keywords appearing as whole words in text
func keywordMatches(text string, keywords []string) int {
	padded := " " + normalizeWords(text) + " "
	n := 0
	for _, kw := range keywords {
		if strings.Contains(padded, " "+normalizeWords(kw)+" ") {
			n++
		}
	}
	return n
}

func normalizeWords(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isMediaURL(proof string, hosts []string) bool {
	u, err := url.Parse(proof)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range hosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func clamp(v int) int {
	return min(max(v, 0), 100)
}
