// Package analytics rolls up persisted match and claim outcomes for the admin view.
// Every report is a read-only aggregation over fields already written by the
// matching and claim services.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/reclaim-app/reclaim/internal/apperr"
	"github.com/reclaim-app/reclaim/internal/logging"
	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/store"
)

// Report names accepted by Report
const (
	ReportOverview        = "overview"
	ReportDaily           = "daily"
	ReportConfidence      = "confidence"
	ReportFraudFlags      = "fraud-flags"
	ReportRepeatOffenders = "repeat-offenders"
	ReportCategories      = "categories"
	ReportThresholds      = "thresholds"
)

// Reports lists every report name in display order
var Reports = []string{
	ReportOverview, ReportDaily, ReportConfidence, ReportFraudFlags,
	ReportRepeatOffenders, ReportCategories, ReportThresholds,
}

// minSamples is the number of reviewed records a band needs before it drives a recommendation
const minSamples = 5

// Window is a half-open time range [From, To)
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// LastDays returns the window covering the days before now
func LastDays(now time.Time, days int) Window {
	if days <= 0 {
		days = 30
	}
	return Window{From: now.AddDate(0, 0, -days), To: now}
}

// Service computes analytics reports
type Service struct {
	matching model.MatchingConfig
	claimCfg model.ClaimConfig
	matches  store.MatchStore
	claims   store.ClaimStore
	log      *logging.Logger
}

// NewService creates an analytics service over st
func NewService(cfg model.Config, st store.Store, log *logging.Logger) *Service {
	return &Service{
		matching: cfg.Matching,
		claimCfg: cfg.Claims,
		matches:  st,
		claims:   st,
		log:      log.With("component", "analytics"),
	}
}

// Report runs the named report
func (s *Service) Report(ctx context.Context, name string, w Window) (any, error) {
	s.log.Debug("running report", "report", name, "from", w.From, "to", w.To)
	switch name {
	case ReportOverview:
		return s.Overview(ctx, w)
	case ReportDaily:
		return s.DailySeries(ctx, w)
	case ReportConfidence:
		return s.ConfidenceHistogram(ctx, w)
	case ReportFraudFlags:
		return s.FraudFlagHistogram(ctx, w)
	case ReportRepeatOffenders:
		return s.RepeatOffenders(ctx, w)
	case ReportCategories:
		return s.CategoryStats(ctx, w)
	case ReportThresholds:
		return s.ThresholdEffectiveness(ctx, w)
	default:
		return nil, apperr.Invalid("analytics.report", "unknown report %q (want one of %s)", name, strings.Join(Reports, ", "))
	}
}

func (s *Service) load(ctx context.Context, w Window) ([]*model.MatchRecord, []*model.Claim, error) {
	if !w.From.IsZero() && !w.To.IsZero() && !w.From.Before(w.To) {
		return nil, nil, apperr.Invalid("analytics.window", "window start %s is not before end %s", w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
	}
	matches, err := s.matches.ListMatches(ctx, store.MatchFilter{Since: w.From, Until: w.To})
	if err != nil {
		return nil, nil, err
	}
	claims, err := s.claims.ListClaims(ctx, store.ClaimFilter{Since: w.From, Until: w.To})
	if err != nil {
		return nil, nil, err
	}
	return matches, claims, nil
}

// Overview summarises match review outcomes and claim outcomes in the window
type Overview struct {
	Window             Window  `json:"window"`
	Matches            int     `json:"matches"`
	Reviewed           int     `json:"reviewed"`
	Accepted           int     `json:"accepted"`
	Rejected           int     `json:"rejected"`
	Overridden         int     `json:"overridden"`
	AcceptanceRate     float64 `json:"acceptance_rate"` // percent of reviewed
	RejectionRate      float64 `json:"rejection_rate"`
	OverrideRate       float64 `json:"override_rate"`
	AvgMatchScore      float64 `json:"avg_match_score"`
	Claims             int     `json:"claims"`
	ClaimsApproved     int     `json:"claims_approved"`
	ClaimsRejected     int     `json:"claims_rejected"`
	ClaimsSuspicious   int     `json:"claims_suspicious"`
	ClaimsOpen         int     `json:"claims_open"`
	AvgClaimConfidence float64 `json:"avg_claim_confidence"` // over assessed claims
}

// Overview computes acceptance, rejection and override rates
func (s *Service) Overview(ctx context.Context, w Window) (*Overview, error) {
	matches, claims, err := s.load(ctx, w)
	if err != nil {
		return nil, err
	}

	o := &Overview{Window: w, Matches: len(matches), Claims: len(claims)}
	scoreSum := 0
	for _, m := range matches {
		scoreSum += m.Score
		switch m.Status {
		case model.MatchAccepted:
			o.Accepted++
		case model.MatchRejected:
			o.Rejected++
		}
		if m.Overridden {
			o.Overridden++
		}
	}
	o.Reviewed = o.Accepted + o.Rejected
	o.AcceptanceRate = percent(o.Accepted, o.Reviewed)
	o.RejectionRate = percent(o.Rejected, o.Reviewed)
	o.OverrideRate = percent(o.Overridden, o.Reviewed)
	o.AvgMatchScore = average(scoreSum, len(matches))

	confSum, assessed := 0, 0
	for _, c := range claims {
		switch {
		case c.Status == model.ClaimApproved:
			o.ClaimsApproved++
		case c.Status == model.ClaimRejected:
			o.ClaimsRejected++
		case c.Status == model.ClaimSuspicious:
			o.ClaimsSuspicious++
		case c.Status.IsOpen():
			o.ClaimsOpen++
		}
		if c.FraudRisk != nil || c.AIConfidence > 0 {
			confSum += c.AIConfidence
			assessed++
		}
	}
	o.AvgClaimConfidence = average(confSum, assessed)
	return o, nil
}

// DayPoint is one day of the daily series
type DayPoint struct {
	Date           string `json:"date"` // YYYY-MM-DD, UTC
	Matches        int    `json:"matches"`
	Accepted       int    `json:"accepted"`
	Rejected       int    `json:"rejected"`
	Claims         int    `json:"claims"`
	ClaimsApproved int    `json:"claims_approved"`
	ClaimsFlagged  int    `json:"claims_flagged"`
}

// DailySeries returns one point per UTC day in the window, including empty days
func (s *Service) DailySeries(ctx context.Context, w Window) ([]DayPoint, error) {
	matches, claims, err := s.load(ctx, w)
	if err != nil {
		return nil, err
	}

	from, to := w.From, w.To
	if from.IsZero() || to.IsZero() {
		from, to = span(matches, claims)
	}
	points := []DayPoint{}
	index := make(map[string]int)
	if !from.IsZero() {
		for d := day(from); d.Before(to); d = d.AddDate(0, 0, 1) {
			key := d.Format(time.DateOnly)
			index[key] = len(points)
			points = append(points, DayPoint{Date: key})
		}
	}

	at := func(t time.Time) *DayPoint {
		i, ok := index[day(t).Format(time.DateOnly)]
		if !ok {
			return nil
		}
		return &points[i]
	}
	for _, m := range matches {
		p := at(m.CreatedAt)
		if p == nil {
			continue
		}
		p.Matches++
		switch m.Status {
		case model.MatchAccepted:
			p.Accepted++
		case model.MatchRejected:
			p.Rejected++
		}
	}
	for _, c := range claims {
		p := at(c.CreatedAt)
		if p == nil {
			continue
		}
		p.Claims++
		if c.Status == model.ClaimApproved {
			p.ClaimsApproved++
		}
		if c.FraudRisk != nil && len(c.FraudRisk.Flags) > 0 {
			p.ClaimsFlagged++
		}
	}
	return points, nil
}

// Bucket is one ten-point score band
type Bucket struct {
	Min      int `json:"min"`
	Max      int `json:"max"` // inclusive
	Count    int `json:"count"`
	Accepted int `json:"accepted"` // accepted matches or approved claims
	Rejected int `json:"rejected"` // rejected matches or rejected/suspicious claims
}

// Histogram holds score distributions for matches and assessed claims
type Histogram struct {
	Matches []Bucket `json:"matches"`
	Claims  []Bucket `json:"claims"`
}

// ConfidenceHistogram buckets match scores and claim confidence into ten-point bands
func (s *Service) ConfidenceHistogram(ctx context.Context, w Window) (*Histogram, error) {
	matches, claims, err := s.load(ctx, w)
	if err != nil {
		return nil, err
	}

	h := &Histogram{Matches: newBuckets(), Claims: newBuckets()}
	for _, m := range matches {
		b := &h.Matches[bucketOf(m.Score)]
		b.Count++
		switch m.Status {
		case model.MatchAccepted:
			b.Accepted++
		case model.MatchRejected:
			b.Rejected++
		}
	}
	for _, c := range claims {
		if c.FraudRisk == nil && c.AIConfidence == 0 {
			continue
		}
		b := &h.Claims[bucketOf(c.AIConfidence)]
		b.Count++
		switch c.Status {
		case model.ClaimApproved:
			b.Accepted++
		case model.ClaimRejected, model.ClaimSuspicious:
			b.Rejected++
		}
	}
	return h, nil
}

func newBuckets() []Bucket {
	out := make([]Bucket, 10)
	for i := range out {
		out[i] = Bucket{Min: i * 10, Max: i*10 + 9}
	}
	out[9].Max = 100
	return out
}

func bucketOf(score int) int {
	return min(9, max(0, score/10))
}

// FlagCount counts one fraud flag type across claims
type FlagCount struct {
	Type     model.FlagType `json:"type"`
	Total    int            `json:"total"`
	Critical int            `json:"critical"`
	Warning  int            `json:"warning"`
}

// FraudFlagHistogram counts flags recorded on claims, most frequent first
func (s *Service) FraudFlagHistogram(ctx context.Context, w Window) ([]FlagCount, error) {
	_, claims, err := s.load(ctx, w)
	if err != nil {
		return nil, err
	}

	byType := make(map[model.FlagType]*FlagCount)
	for _, c := range claims {
		if c.FraudRisk == nil {
			continue
		}
		for _, f := range c.FraudRisk.Flags {
			fc, ok := byType[f.Type]
			if !ok {
				fc = &FlagCount{Type: f.Type}
				byType[f.Type] = fc
			}
			fc.Total++
			if f.Severity == model.SeverityCritical {
				fc.Critical++
			} else {
				fc.Warning++
			}
		}
	}

	out := make([]FlagCount, 0, len(byType))
	for _, fc := range byType {
		out = append(out, *fc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

// Offender is a claimant with too many rejected claims
type Offender struct {
	ClaimantID string `json:"claimant_id"`
	Rejected   int    `json:"rejected"`
	Suspicious int    `json:"suspicious"`
	Total      int    `json:"total"`
}

// RepeatOffenders lists claimants with at least RepeatOffenderReport rejected claims
func (s *Service) RepeatOffenders(ctx context.Context, w Window) ([]Offender, error) {
	_, claims, err := s.load(ctx, w)
	if err != nil {
		return nil, err
	}
	threshold := s.claimCfg.RepeatOffenderReport
	if threshold <= 0 {
		threshold = 3
	}

	byClaimant := make(map[string]*Offender)
	for _, c := range claims {
		o, ok := byClaimant[c.ClaimantID]
		if !ok {
			o = &Offender{ClaimantID: c.ClaimantID}
			byClaimant[c.ClaimantID] = o
		}
		o.Total++
		switch c.Status {
		case model.ClaimRejected:
			o.Rejected++
		case model.ClaimSuspicious:
			o.Suspicious++
		}
	}

	out := []Offender{}
	for _, o := range byClaimant {
		if o.Rejected >= threshold {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rejected != out[j].Rejected {
			return out[i].Rejected > out[j].Rejected
		}
		return out[i].ClaimantID < out[j].ClaimantID
	})
	return out, nil
}

// CategoryStat summarises matches for one category
type CategoryStat struct {
	Category       string  `json:"category"`
	Matches        int     `json:"matches"`
	AvgScore       float64 `json:"avg_score"`
	Accepted       int     `json:"accepted"`
	Rejected       int     `json:"rejected"`
	AcceptanceRate float64 `json:"acceptance_rate"`
}

// CategoryStats groups matches by lowercased category, busiest first
func (s *Service) CategoryStats(ctx context.Context, w Window) ([]CategoryStat, error) {
	matches, _, err := s.load(ctx, w)
	if err != nil {
		return nil, err
	}

	type acc struct {
		stat CategoryStat
		sum  int
	}
	byCat := make(map[string]*acc)
	for _, m := range matches {
		key := strings.ToLower(strings.TrimSpace(m.Category))
		a, ok := byCat[key]
		if !ok {
			a = &acc{stat: CategoryStat{Category: key}}
			byCat[key] = a
		}
		a.stat.Matches++
		a.sum += m.Score
		switch m.Status {
		case model.MatchAccepted:
			a.stat.Accepted++
		case model.MatchRejected:
			a.stat.Rejected++
		}
	}

	out := make([]CategoryStat, 0, len(byCat))
	for _, a := range byCat {
		a.stat.AvgScore = average(a.sum, a.stat.Matches)
		a.stat.AcceptanceRate = percent(a.stat.Accepted, a.stat.Accepted+a.stat.Rejected)
		out = append(out, a.stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Matches != out[j].Matches {
			return out[i].Matches > out[j].Matches
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// Band is a score range relative to a configured threshold
type Band struct {
	Label          string  `json:"label"`
	Min            int     `json:"min"`
	Max            int     `json:"max"` // inclusive
	Count          int     `json:"count"`
	Reviewed       int     `json:"reviewed"`
	Accepted       int     `json:"accepted"`
	AcceptanceRate float64 `json:"acceptance_rate"`
}

// ThresholdReport compares observed outcomes with the current thresholds
type ThresholdReport struct {
	MinMatchScore      int      `json:"min_match_score"`
	AutoAwardThreshold int      `json:"auto_award_threshold"`
	MatchBands         []Band   `json:"match_bands"`
	ClaimBands         []Band   `json:"claim_bands"`
	Recommendations    []string `json:"recommendations"`
}

// ThresholdEffectiveness buckets matches around min_match_score and claims around
// auto_award_threshold, then recommends moving a threshold when the observed
// acceptance rate in the band next to it disagrees with where it sits.
func (s *Service) ThresholdEffectiveness(ctx context.Context, w Window) (*ThresholdReport, error) {
	matches, claims, err := s.load(ctx, w)
	if err != nil {
		return nil, err
	}

	minScore := s.matching.MinMatchScore
	award := s.claimCfg.AutoAwardThreshold
	rep := &ThresholdReport{
		MinMatchScore:      minScore,
		AutoAwardThreshold: award,
		MatchBands: []Band{
			{Label: "below_threshold", Min: 0, Max: minScore - 1},
			{Label: "near_threshold", Min: minScore, Max: min(100, minScore+9)},
			{Label: "above_threshold", Min: min(100, minScore+10), Max: 100},
		},
		ClaimBands: []Band{
			{Label: "below_award", Min: 0, Max: max(0, award-11)},
			{Label: "near_award", Min: max(0, award-10), Max: award - 1},
			{Label: "auto_award", Min: award, Max: 100},
		},
		Recommendations: []string{},
	}

	for _, m := range matches {
		b := bandFor(rep.MatchBands, m.Score)
		if b == nil {
			continue
		}
		b.Count++
		switch m.Status {
		case model.MatchAccepted:
			b.Reviewed++
			b.Accepted++
		case model.MatchRejected:
			b.Reviewed++
		}
	}
	for _, c := range claims {
		if c.FraudRisk == nil && c.AIConfidence == 0 {
			continue
		}
		b := bandFor(rep.ClaimBands, c.AIConfidence)
		if b == nil {
			continue
		}
		b.Count++
		switch c.Status {
		case model.ClaimApproved:
			b.Reviewed++
			b.Accepted++
		case model.ClaimRejected, model.ClaimSuspicious:
			b.Reviewed++
		}
	}
	for _, bands := range [][]Band{rep.MatchBands, rep.ClaimBands} {
		for i := range bands {
			bands[i].AcceptanceRate = percent(bands[i].Accepted, bands[i].Reviewed)
		}
	}

	near := rep.MatchBands[1]
	if near.Reviewed >= minSamples && near.AcceptanceRate < 30 {
		rep.Recommendations = append(rep.Recommendations, fmt.Sprintf(
			"raise min_match_score to %d: only %.1f%% of %d reviewed matches scoring %d-%d were accepted",
			min(100, minScore+10), near.AcceptanceRate, near.Reviewed, near.Min, near.Max))
	}
	below := rep.MatchBands[0]
	if below.Reviewed >= minSamples && below.AcceptanceRate > 70 {
		rep.Recommendations = append(rep.Recommendations, fmt.Sprintf(
			"lower min_match_score: %.1f%% of %d reviewed matches below %d were accepted",
			below.AcceptanceRate, below.Reviewed, minScore))
	}
	nearAward := rep.ClaimBands[1]
	if nearAward.Reviewed >= minSamples && nearAward.AcceptanceRate > 80 {
		rep.Recommendations = append(rep.Recommendations, fmt.Sprintf(
			"lower auto_award_threshold to %d: %.1f%% of %d claims scoring %d-%d were approved",
			max(0, award-10), nearAward.AcceptanceRate, nearAward.Reviewed, nearAward.Min, nearAward.Max))
	}
	auto := rep.ClaimBands[2]
	if auto.Reviewed >= minSamples && auto.AcceptanceRate < 70 {
		rep.Recommendations = append(rep.Recommendations, fmt.Sprintf(
			"raise auto_award_threshold to %d: only %.1f%% of %d claims scoring %d or more were approved",
			min(100, award+5), auto.AcceptanceRate, auto.Reviewed, award))
	}
	return rep, nil
}

func bandFor(bands []Band, score int) *Band {
	for i := range bands {
		if bands[i].Min <= bands[i].Max && score >= bands[i].Min && score <= bands[i].Max {
			return &bands[i]
		}
	}
	return nil
}

// percent returns n/d as a percentage rounded to one decimal, or 0 when d is 0
func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(d)*1000) / 10
}

func average(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	return math.Round(float64(sum)/float64(n)*100) / 100
}

func day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// span returns the day range covering every record, for open-ended windows
func span(matches []*model.MatchRecord, claims []*model.Claim) (time.Time, time.Time) {
	var first, last time.Time
	see := func(t time.Time) {
		if first.IsZero() || t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	for _, m := range matches {
		see(m.CreatedAt)
	}
	for _, c := range claims {
		see(c.CreatedAt)
	}
	if first.IsZero() {
		return time.Time{}, time.Time{}
	}
	return day(first), day(last).AddDate(0, 0, 1)
}
