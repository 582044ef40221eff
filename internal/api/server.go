// Package api exposes the matching, claim and analytics services over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/reclaim-app/reclaim/internal/analytics"
	"github.com/reclaim-app/reclaim/internal/logging"
	"github.com/reclaim-app/reclaim/internal/matching"
	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/score"
	"github.com/reclaim-app/reclaim/internal/vectorindex"
	"github.com/reclaim-app/reclaim/internal/worker"
)

// Matcher is the matching surface used by the handlers
type Matcher interface {
	MatchAll(ctx context.Context) (*model.MatchingSummary, error)
	MatchItem(ctx context.Context, lostID string) (*matching.Suggestion, error)
	FindBestMatch(ctx context.Context, lostID string) (*matching.Suggestion, error)
	Preview(ctx context.Context, lostID, foundID string) (*model.PairScore, error)
	ReviewMatch(ctx context.Context, matchID string, accepted bool, overrideFoundID string) (*model.MatchRecord, error)
	RebuildIndex(ctx context.Context) (int, error)
	SimilarItems(ctx context.Context, itemID string, k int) ([]vectorindex.Hit, error)
}

// Enricher populates item AI metadata
type Enricher interface {
	Enrich(ctx context.Context, itemID, imageURL string) (*matching.EnrichResult, error)
}

// Assessor scores a single claim
type Assessor interface {
	Assess(ctx context.Context, claimID string) (*model.ClaimEvaluation, error)
}

// Resolver decides between competing claims
type Resolver interface {
	Preview(ctx context.Context, itemID string) (*model.Resolution, error)
	Process(ctx context.Context, itemID string) (*model.Resolution, error)
	ProcessAll(ctx context.Context) (*score.BatchSummary, error)
}

// Reporter runs analytics reports
type Reporter interface {
	Report(ctx context.Context, name string, w analytics.Window) (any, error)
}

// Deps are the services behind the routes. Limiter may be nil to disable throttling.
type Deps struct {
	Matcher   Matcher
	Enricher  Enricher
	Assessor  Assessor
	Resolver  Resolver
	Analytics Reporter
	Limiter   *worker.Limiter
	Log       *logging.Logger
}

// Server is the HTTP front end
type Server struct {
	deps       Deps
	cfg        model.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	log        *logging.Logger
	now        func() time.Time
}

// NewServer builds the router and underlying http.Server
func NewServer(cfg model.ServerConfig, deps Deps) *Server {
	s := &Server{
		deps: deps,
		cfg:  cfg,
		log:  deps.Log.With("component", "api"),
		now:  time.Now,
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()

	// Matching
	v1.HandleFunc("/items/{id}/match", s.matchItem).Methods(http.MethodPost)
	v1.HandleFunc("/items/{id}/best-match", s.bestMatch).Methods(http.MethodGet)
	v1.HandleFunc("/items/{id}/preview/{found}", s.previewPair).Methods(http.MethodGet)
	v1.HandleFunc("/items/{id}/similar", s.similarItems).Methods(http.MethodGet)
	v1.HandleFunc("/items/{id}/enrich", s.enrichItem).Methods(http.MethodPost)
	v1.HandleFunc("/matches/{id}/review", s.reviewMatch).Methods(http.MethodPost)
	v1.HandleFunc("/matching/run", s.throttled("matching.run", s.runMatching)).Methods(http.MethodPost)
	v1.HandleFunc("/index/rebuild", s.throttled("index.rebuild", s.rebuildIndex)).Methods(http.MethodPost)

	// Claims
	v1.HandleFunc("/claims/{id}/assess", s.assessClaim).Methods(http.MethodPost)
	v1.HandleFunc("/items/{id}/claims/preview", s.previewClaims).Methods(http.MethodGet)
	v1.HandleFunc("/items/{id}/claims/resolve", s.resolveClaims).Methods(http.MethodPost)
	v1.HandleFunc("/claims/process", s.throttled("claims.process", s.processClaims)).Methods(http.MethodPost)

	// Analytics
	v1.HandleFunc("/analytics/{report}", s.report).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no route for " + r.Method + " " + r.URL.Path})
	})
	s.router.Use(recoverer(s.log), requestLogging(s.log))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
