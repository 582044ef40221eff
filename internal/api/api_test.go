package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reclaim-app/reclaim/internal/analytics"
	"github.com/reclaim-app/reclaim/internal/logging"
	"github.com/reclaim-app/reclaim/internal/matching"
	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/score"
	"github.com/reclaim-app/reclaim/internal/store"
	"github.com/reclaim-app/reclaim/internal/vectorindex"
	"github.com/reclaim-app/reclaim/internal/worker"
)

type pairScorer map[string]int

func (p pairScorer) Score(_ context.Context, lost, found *model.Item) model.PairScore {
	total := p[lost.ID+"/"+found.ID]
	return model.PairScore{Total: total, Components: model.ComponentScores{Embedding: total}}
}

func newTestServer(t *testing.T) (*Server, *store.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	cfg := model.DefaultConfig()
	log := logging.NewNop()
	st := store.NewMemoryStore()

	items := []*model.Item{
		{ID: "L1", Type: model.SubmissionLost, Category: "wallet", Description: "black leather wallet"},
		{ID: "F1", Type: model.SubmissionFound, Category: "wallet", Description: "black wallet with student card",
			AI: model.ItemAI{ImageEmbedding: []float32{1, 0, 0}}},
		{ID: "F2", Type: model.SubmissionFound, Category: "wallet", Description: "brown wallet",
			AI: model.ItemAI{ImageEmbedding: []float32{0.9, 0.1, 0}}},
	}
	for _, it := range items {
		require.NoError(t, st.SaveItem(ctx, it))
	}
	require.NoError(t, st.SaveClaim(ctx, &model.Claim{ID: "c1", ClaimantID: "u1", ItemID: "F1"}))

	matcher := matching.NewService(cfg.Matching, st, pairScorer{"L1/F1": 80, "L1/F2": 50}, vectorindex.NewMemoryIndex(), nil, log)
	eval := score.NewEvaluator(cfg.Claims, st, st, log)

	srv := NewServer(cfg.Server, Deps{
		Matcher:   matcher,
		Assessor:  eval,
		Resolver:  score.NewResolver(cfg.Claims, st, st, eval, nil, log),
		Analytics: analytics.NewService(cfg, st, log),
		Limiter:   worker.NewLimiter(0.001, 1, time.Minute),
		Log:       log,
	})
	return srv, st
}

func do(t *testing.T, srv *Server, method, path, body string, header ...string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	code, body := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestMatchItemAndReview(t *testing.T) {
	srv, st := newTestServer(t)

	code, body := do(t, srv, http.MethodPost, "/v1/items/L1/match", "")
	require.Equal(t, http.StatusOK, code)
	match := body["match"].(map[string]any)
	assert.Equal(t, "F1", match["found_item_id"])
	assert.Equal(t, 80.0, match["score"])

	recs, err := st.ListMatches(context.Background(), store.MatchFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	code, body = do(t, srv, http.MethodPost, "/v1/matches/"+recs[0].ID+"/review", `{"accepted": true}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(model.MatchAccepted), body["status"])
	assert.Equal(t, false, body["overridden"])

	code, body = do(t, srv, http.MethodPost, "/v1/matches/"+recs[0].ID+"/review", `{"accepted": `)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "malformed JSON")

	code, _ = do(t, srv, http.MethodPost, "/v1/matches/nope/review", `{"accepted": false}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestBestMatchErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	code, body := do(t, srv, http.MethodGet, "/v1/items/F1/best-match", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "not a lost report")

	code, body = do(t, srv, http.MethodGet, "/v1/items/missing/best-match", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.NotEmpty(t, body["error"])
}

func TestPreviewPair(t *testing.T) {
	srv, _ := newTestServer(t)
	code, body := do(t, srv, http.MethodGet, "/v1/items/L1/preview/F2", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 50.0, body["total"])
}

func TestBatchTriggersAreThrottled(t *testing.T) {
	srv, _ := newTestServer(t)

	code, body := do(t, srv, http.MethodPost, "/v1/matching/run", "", actorHeader, "admin-a")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, body["total_lost"])
	assert.Equal(t, 1.0, body["matched_pairs"])

	code, body = do(t, srv, http.MethodPost, "/v1/matching/run", "", actorHeader, "admin-a")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Contains(t, body["error"], "try again later")

	code, _ = do(t, srv, http.MethodPost, "/v1/matching/run", "", actorHeader, "admin-b")
	assert.Equal(t, http.StatusOK, code, "buckets are per caller")
}

func TestIndexRebuildAndSimilar(t *testing.T) {
	srv, _ := newTestServer(t)

	code, body := do(t, srv, http.MethodPost, "/v1/index/rebuild", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2.0, body["indexed"])

	code, body = do(t, srv, http.MethodGet, "/v1/items/F1/similar?k=1", "")
	require.Equal(t, http.StatusOK, code)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "F2", results[0].(map[string]any)["id"])

	code, _ = do(t, srv, http.MethodGet, "/v1/items/F1/similar?k=zero", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestClaimsRoutes(t *testing.T) {
	srv, st := newTestServer(t)

	code, body := do(t, srv, http.MethodPost, "/v1/claims/c1/assess", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 25.0, body["final_score"])

	claim, err := st.GetClaim(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, claim.FraudRisk)
	assert.Equal(t, model.ClaimPending, claim.Status)

	code, body = do(t, srv, http.MethodGet, "/v1/items/F1/claims/preview", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(model.ResolutionNeedsReview), body["state"])
	assert.Equal(t, true, body["requires_manual_review"])

	code, body = do(t, srv, http.MethodPost, "/v1/claims/process", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, body["processed"])
	assert.Equal(t, 1.0, body["needs_review"])

	code, _ = do(t, srv, http.MethodPost, "/v1/items/missing/claims/resolve", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAnalyticsRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	code, body := do(t, srv, http.MethodGet, "/v1/analytics/overview?days=7", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "acceptance_rate")

	code, _ = do(t, srv, http.MethodGet, "/v1/analytics/overview?from=2024-01-01T00:00:00Z&to=2024-02-01T00:00:00Z", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, srv, http.MethodGet, "/v1/analytics/overview?days=abc", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, srv, http.MethodGet, "/v1/analytics/nope", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "unknown report")
}

func TestUnconfiguredAndUnknownRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	code, _ := do(t, srv, http.MethodPost, "/v1/items/F1/enrich", `{"image_url": "https://example.com/a.jpg"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, body := do(t, srv, http.MethodGet, "/v1/nothing-here", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body["error"], "no route")
}

func TestActorOf(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	assert.Equal(t, "10.0.0.7", actorOf(req))
	req.Header.Set(actorHeader, "admin")
	assert.Equal(t, "admin", actorOf(req))
}
