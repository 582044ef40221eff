package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/reclaim-app/reclaim/internal/analytics"
	"github.com/reclaim-app/reclaim/internal/apperr"
	"github.com/reclaim-app/reclaim/internal/matching"
)

type errorBody struct {
	Error string `json:"error"`
}

type matchResponse struct {
	ItemID string               `json:"item_id"`
	Match  *matching.Suggestion `json:"match"` // null when nothing clears the threshold
}

type reviewRequest struct {
	Accepted        bool   `json:"accepted"`
	OverrideFoundID string `json:"override_found_id,omitempty"`
}

type enrichRequest struct {
	ImageURL string `json:"image_url"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// decode reads an optional JSON body into v; an empty body leaves v untouched
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.Invalid("api.decode", "malformed JSON body: %v", err)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) matchItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sug, err := s.deps.Matcher.MatchItem(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{ItemID: id, Match: sug})
}

func (s *Server) bestMatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sug, err := s.deps.Matcher.FindBestMatch(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{ItemID: id, Match: sug})
}

func (s *Server) previewPair(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ps, err := s.deps.Matcher.Preview(r.Context(), vars["id"], vars["found"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (s *Server) similarItems(w http.ResponseWriter, r *http.Request) {
	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, apperr.Invalid("api.similar", "k must be a positive integer, got %q", raw))
			return
		}
		k = n
	}
	hits, err := s.deps.Matcher.SimilarItems(r.Context(), mux.Vars(r)["id"], k)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

func (s *Server) enrichItem(w http.ResponseWriter, r *http.Request) {
	if s.deps.Enricher == nil {
		s.writeError(w, apperr.Unavailable("api.enrich", errors.New("enrichment is not configured")))
		return
	}
	var req enrichRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.deps.Enricher.Enrich(r.Context(), mux.Vars(r)["id"], req.ImageURL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) reviewMatch(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.deps.Matcher.ReviewMatch(r.Context(), mux.Vars(r)["id"], req.Accepted, req.OverrideFoundID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) runMatching(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Matcher.MatchAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) rebuildIndex(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Matcher.RebuildIndex(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"indexed": n})
}

func (s *Server) assessClaim(w http.ResponseWriter, r *http.Request) {
	ev, err := s.deps.Assessor.Assess(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) previewClaims(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Resolver.Preview(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) resolveClaims(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Resolver.Process(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) processClaims(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Resolver.ProcessAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	win, err := s.window(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out, err := s.deps.Analytics.Report(r.Context(), mux.Vars(r)["report"], win)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// window reads ?from=&to= (RFC 3339) or ?days=N, defaulting to the last 30 days
func (s *Server) window(r *http.Request) (analytics.Window, error) {
	q := r.URL.Query()
	if from, to := q.Get("from"), q.Get("to"); from != "" || to != "" {
		var win analytics.Window
		var err error
		if from != "" {
			if win.From, err = time.Parse(time.RFC3339, from); err != nil {
				return win, apperr.Invalid("api.window", "from must be RFC 3339: %v", err)
			}
		}
		if to != "" {
			if win.To, err = time.Parse(time.RFC3339, to); err != nil {
				return win, apperr.Invalid("api.window", "to must be RFC 3339: %v", err)
			}
		} else {
			win.To = s.now()
		}
		return win, nil
	}

	days := 30
	if raw := q.Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return analytics.Window{}, apperr.Invalid("api.window", "days must be a positive integer, got %q", raw)
		}
		days = n
	}
	return analytics.LastDays(s.now(), days), nil
}
