package model

import "time"

// ClaimStatus is the lifecycle state of an ownership claim
type ClaimStatus string

const (
	ClaimPending    ClaimStatus = "pending"
	ClaimConflict   ClaimStatus = "conflict"
	ClaimApproved   ClaimStatus = "approved"
	ClaimRejected   ClaimStatus = "rejected"
	ClaimSuspicious ClaimStatus = "suspicious"
	ClaimResolved   ClaimStatus = "resolved"
)

// IsOpen reports whether the claim still competes for its item
func (s ClaimStatus) IsOpen() bool {
	return s == ClaimPending || s == ClaimConflict
}

// Claim is an ownership assertion against a found item
type Claim struct {
	ID           string      `json:"id"`
	ClaimantID   string      `json:"claimant_id"`
	ItemID       string      `json:"item_id"`
	Proofs       []string    `json:"proofs"`
	Status       ClaimStatus `json:"status"`
	AIConfidence int         `json:"ai_confidence"` // 0-100
	FraudRisk    *FraudRisk  `json:"fraud_risk,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// FraudRisk is the assessment copied onto a claim after evaluation
type FraudRisk struct {
	SuspicionScore int         `json:"suspicion_score"` // 0-100
	Flags          []FraudFlag `json:"flags"`
	AssessedAt     time.Time   `json:"assessed_at"`
}

// FlagType tags the reason a claim looks suspicious
type FlagType string

const (
	FlagNoProof                FlagType = "NO_PROOF"
	FlagVagueProof             FlagType = "VAGUE_PROOF"
	FlagLowProofQuality        FlagType = "LOW_PROOF_QUALITY"
	FlagRepeatOffender         FlagType = "REPEAT_OFFENDER"
	FlagMultipleRejections     FlagType = "MULTIPLE_REJECTIONS"
	FlagPriorSuspicious        FlagType = "PRIOR_SUSPICIOUS"
	FlagRepeatedCategoryClaims FlagType = "REPEATED_CATEGORY_CLAIMS"
	FlagSimilarItemClaims      FlagType = "SIMILAR_ITEM_CLAIMS"
	FlagLowConfidence          FlagType = "LOW_CONFIDENCE"
)

// Severity levels for fraud flags
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// FraudFlag is an immutable annotation attached to a claim evaluation
type FraudFlag struct {
	Type        FlagType `json:"type"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// ClaimEvaluation is the per-call scoring result for one claim
type ClaimEvaluation struct {
	ClaimID      string      `json:"claim_id"`
	ClaimantID   string      `json:"claimant_id"`
	Confidence   int         `json:"confidence"`    // proof-to-item text similarity
	ProofQuality int         `json:"proof_quality"` // proof heuristics
	History      int         `json:"history"`       // claimant track record, higher is better
	FinalScore   int         `json:"final_score"`
	Flags        []FraudFlag `json:"flags"`
}

// HasCritical reports whether any flag is critical
func (e *ClaimEvaluation) HasCritical() bool {
	for _, f := range e.Flags {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// ResolutionState is the outcome of competing-claims resolution
type ResolutionState string

const (
	ResolutionNoClaims     ResolutionState = "no_claims"
	ResolutionNeedsReview  ResolutionState = "needs_review"
	ResolutionAutoResolved ResolutionState = "auto_resolved"
)

// Resolution is the decision over all open claims on one item
type Resolution struct {
	ItemID               string             `json:"item_id"`
	WinnerClaimID        string             `json:"winner_claim_id,omitempty"`
	WinnerConfidence     int                `json:"winner_confidence"`
	Evaluations          []*ClaimEvaluation `json:"evaluations"`
	RequiresManualReview bool               `json:"requires_manual_review"`
	Reason               string             `json:"reason"`
	State                ResolutionState    `json:"state"`
}
