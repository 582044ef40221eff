package analytics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reclaim-app/reclaim/internal/apperr"
	"github.com/reclaim-app/reclaim/internal/logging"
	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/store"
)

func at(day, hour int) time.Time {
	return time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC)
}

var window = Window{From: at(8, 0), To: at(11, 0)}

func flag(typ model.FlagType, sev model.Severity) model.FraudFlag {
	return model.FraudFlag{Type: typ, Severity: sev, Description: string(typ)}
}

func risk(flags ...model.FraudFlag) *model.FraudRisk {
	return &model.FraudRisk{SuspicionScore: 50, Flags: flags}
}

func seed(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()

	matches := []*model.MatchRecord{
		{ID: "m1", PairMatch: model.PairMatch{Category: "wallet", Score: 85}, Status: model.MatchAccepted, CreatedAt: at(8, 9)},
		{ID: "m2", PairMatch: model.PairMatch{Category: "wallet", Score: 35}, Status: model.MatchRejected, CreatedAt: at(8, 10)},
		{ID: "m3", PairMatch: model.PairMatch{Category: "Phone", Score: 62}, Status: model.MatchAccepted, Overridden: true, CreatedAt: at(9, 9)},
		{ID: "m4", PairMatch: model.PairMatch{Category: "phone", Score: 40}, Status: model.MatchSuggested, CreatedAt: at(10, 9)},
		{ID: "m5", PairMatch: model.PairMatch{Category: "wallet", Score: 90}, Status: model.MatchAccepted, CreatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, m := range matches {
		require.NoError(t, st.SaveMatch(ctx, m))
	}

	vague := flag(model.FlagVagueProof, model.SeverityWarning)
	noProof := flag(model.FlagNoProof, model.SeverityCritical)
	claims := []*model.Claim{
		{ID: "c1", ClaimantID: "u1", ItemID: "i1", Status: model.ClaimApproved, AIConfidence: 90, CreatedAt: at(8, 12)},
		{ID: "c2", ClaimantID: "u2", ItemID: "i1", Status: model.ClaimRejected, AIConfidence: 40, FraudRisk: risk(vague), CreatedAt: at(9, 12)},
		{ID: "c3", ClaimantID: "u2", ItemID: "i2", Status: model.ClaimRejected, AIConfidence: 30, FraudRisk: risk(noProof, vague), CreatedAt: at(9, 13)},
		{ID: "c4", ClaimantID: "u2", ItemID: "i3", Status: model.ClaimRejected, AIConfidence: 20, FraudRisk: risk(noProof), CreatedAt: at(10, 12)},
		{ID: "c5", ClaimantID: "u3", ItemID: "i3", Status: model.ClaimSuspicious, AIConfidence: 45, FraudRisk: risk(flag(model.FlagLowConfidence, model.SeverityWarning)), CreatedAt: at(10, 13)},
		{ID: "c6", ClaimantID: "u4", ItemID: "i4", Status: model.ClaimPending, CreatedAt: at(10, 14)},
		{ID: "c7", ClaimantID: "u2", ItemID: "i5", Status: model.ClaimRejected, AIConfidence: 10, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range claims {
		require.NoError(t, st.SaveClaim(ctx, c))
	}
	return NewService(model.DefaultConfig(), st, logging.NewNop())
}

func TestOverview(t *testing.T) {
	o, err := seed(t).Overview(context.Background(), window)
	require.NoError(t, err)

	assert.Equal(t, 4, o.Matches)
	assert.Equal(t, 3, o.Reviewed)
	assert.Equal(t, 2, o.Accepted)
	assert.Equal(t, 1, o.Rejected)
	assert.Equal(t, 1, o.Overridden)
	assert.Equal(t, 66.7, o.AcceptanceRate)
	assert.Equal(t, 33.3, o.RejectionRate)
	assert.Equal(t, 33.3, o.OverrideRate)
	assert.Equal(t, 55.5, o.AvgMatchScore)

	assert.Equal(t, 6, o.Claims)
	assert.Equal(t, 1, o.ClaimsApproved)
	assert.Equal(t, 3, o.ClaimsRejected)
	assert.Equal(t, 1, o.ClaimsSuspicious)
	assert.Equal(t, 1, o.ClaimsOpen)
	assert.Equal(t, 45.0, o.AvgClaimConfidence)
}

func TestDailySeries(t *testing.T) {
	points, err := seed(t).DailySeries(context.Background(), window)
	require.NoError(t, err)

	assert.Equal(t, []DayPoint{
		{Date: "2024-03-08", Matches: 2, Accepted: 1, Rejected: 1, Claims: 1, ClaimsApproved: 1},
		{Date: "2024-03-09", Matches: 1, Accepted: 1, Claims: 2, ClaimsFlagged: 2},
		{Date: "2024-03-10", Matches: 1, Claims: 3, ClaimsFlagged: 2},
	}, points)

	empty := NewService(model.DefaultConfig(), store.NewMemoryStore(), logging.NewNop())
	points, err = empty.DailySeries(context.Background(), Window{})
	require.NoError(t, err)
	assert.NotNil(t, points)
	assert.Empty(t, points)
}

func TestConfidenceHistogram(t *testing.T) {
	h, err := seed(t).ConfidenceHistogram(context.Background(), window)
	require.NoError(t, err)
	require.Len(t, h.Matches, 10)
	require.Len(t, h.Claims, 10)

	assert.Equal(t, Bucket{Min: 80, Max: 89, Count: 1, Accepted: 1}, h.Matches[8])
	assert.Equal(t, Bucket{Min: 30, Max: 39, Count: 1, Rejected: 1}, h.Matches[3])
	assert.Equal(t, Bucket{Min: 90, Max: 100, Count: 1, Accepted: 1}, h.Claims[9])
	assert.Equal(t, Bucket{Min: 40, Max: 49, Count: 2, Rejected: 2}, h.Claims[4])

	total := 0
	for _, b := range h.Claims {
		total += b.Count
	}
	assert.Equal(t, 5, total, "unassessed claims are not bucketed")
}

func TestFraudFlagHistogram(t *testing.T) {
	flags, err := seed(t).FraudFlagHistogram(context.Background(), window)
	require.NoError(t, err)

	assert.Equal(t, []FlagCount{
		{Type: model.FlagNoProof, Total: 2, Critical: 2},
		{Type: model.FlagVagueProof, Total: 2, Warning: 2},
		{Type: model.FlagLowConfidence, Total: 1, Warning: 1},
	}, flags)
}

func TestRepeatOffenders(t *testing.T) {
	svc := seed(t)

	offenders, err := svc.RepeatOffenders(context.Background(), window)
	require.NoError(t, err)
	assert.Equal(t, []Offender{{ClaimantID: "u2", Rejected: 3, Total: 3}}, offenders)

	offenders, err = svc.RepeatOffenders(context.Background(), Window{})
	require.NoError(t, err)
	assert.Equal(t, []Offender{{ClaimantID: "u2", Rejected: 4, Total: 4}}, offenders)

	offenders, err = svc.RepeatOffenders(context.Background(), Window{From: at(10, 0), To: at(11, 0)})
	require.NoError(t, err)
	assert.Empty(t, offenders)
}

func TestCategoryStats(t *testing.T) {
	stats, err := seed(t).CategoryStats(context.Background(), window)
	require.NoError(t, err)

	assert.Equal(t, []CategoryStat{
		{Category: "phone", Matches: 2, AvgScore: 51, Accepted: 1, AcceptanceRate: 100},
		{Category: "wallet", Matches: 2, AvgScore: 60, Accepted: 1, Rejected: 1, AcceptanceRate: 50},
	}, stats)
}

func TestThresholdEffectiveness(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	for i := 0; i < 6; i++ {
		status := model.MatchRejected
		if i == 0 {
			status = model.MatchAccepted
		}
		require.NoError(t, st.SaveMatch(ctx, &model.MatchRecord{
			ID:        fmt.Sprintf("near-%d", i),
			PairMatch: model.PairMatch{Category: "bag", Score: 30 + i},
			Status:    status,
			CreatedAt: at(9, i),
		}))
	}
	require.NoError(t, st.SaveMatch(ctx, &model.MatchRecord{
		ID: "high", PairMatch: model.PairMatch{Category: "bag", Score: 75}, Status: model.MatchAccepted, CreatedAt: at(9, 8),
	}))
	for i := 0; i < 5; i++ {
		status := model.ClaimRejected
		if i < 2 {
			status = model.ClaimApproved
		}
		require.NoError(t, st.SaveClaim(ctx, &model.Claim{
			ID:           fmt.Sprintf("claim-%d", i),
			ClaimantID:   fmt.Sprintf("u%d", i),
			ItemID:       fmt.Sprintf("i%d", i),
			Status:       status,
			AIConfidence: 90,
			CreatedAt:    at(9, i),
		}))
	}
	svc := NewService(model.DefaultConfig(), st, logging.NewNop())

	rep, err := svc.ThresholdEffectiveness(ctx, window)
	require.NoError(t, err)

	assert.Equal(t, 30, rep.MinMatchScore)
	assert.Equal(t, 85, rep.AutoAwardThreshold)
	assert.Equal(t, Band{Label: "near_threshold", Min: 30, Max: 39, Count: 6, Reviewed: 6, Accepted: 1, AcceptanceRate: 16.7}, rep.MatchBands[1])
	assert.Equal(t, Band{Label: "above_threshold", Min: 40, Max: 100, Count: 1, Reviewed: 1, Accepted: 1, AcceptanceRate: 100}, rep.MatchBands[2])
	assert.Equal(t, 0, rep.MatchBands[0].Count)
	assert.Equal(t, Band{Label: "auto_award", Min: 85, Max: 100, Count: 5, Reviewed: 5, Accepted: 2, AcceptanceRate: 40}, rep.ClaimBands[2])

	require.Len(t, rep.Recommendations, 2)
	assert.Contains(t, rep.Recommendations[0], "raise min_match_score to 40")
	assert.Contains(t, rep.Recommendations[1], "raise auto_award_threshold to 90")

	quiet, err := seed(t).ThresholdEffectiveness(ctx, window)
	require.NoError(t, err)
	assert.Empty(t, quiet.Recommendations, "too few reviewed samples to recommend anything")
}

func TestReport(t *testing.T) {
	svc := seed(t)
	ctx := context.Background()

	for _, name := range Reports {
		out, err := svc.Report(ctx, name, window)
		require.NoError(t, err, name)
		assert.NotNil(t, out, name)
	}

	out, err := svc.Report(ctx, ReportOverview, window)
	require.NoError(t, err)
	assert.IsType(t, &Overview{}, out)

	_, err = svc.Report(ctx, "nope", window)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	_, err = svc.Overview(ctx, Window{From: at(11, 0), To: at(8, 0)})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestLastDays(t *testing.T) {
	now := at(10, 12)
	assert.Equal(t, Window{From: at(3, 12), To: now}, LastDays(now, 7))
	assert.Equal(t, now.AddDate(0, 0, -30), LastDays(now, 0).From)
}
