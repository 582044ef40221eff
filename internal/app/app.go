// Package app wires the configured backends and services into one runnable unit.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/reclaim-app/reclaim/internal/analytics"
	"github.com/reclaim-app/reclaim/internal/api"
	"github.com/reclaim-app/reclaim/internal/cache"
	"github.com/reclaim-app/reclaim/internal/detect"
	"github.com/reclaim-app/reclaim/internal/events"
	"github.com/reclaim-app/reclaim/internal/inference"
	"github.com/reclaim-app/reclaim/internal/logging"
	"github.com/reclaim-app/reclaim/internal/matching"
	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/score"
	"github.com/reclaim-app/reclaim/internal/similarity"
	"github.com/reclaim-app/reclaim/internal/store"
	"github.com/reclaim-app/reclaim/internal/vectorindex"
	"github.com/reclaim-app/reclaim/internal/worker"
)

// App holds every long-lived component. Close releases them in reverse order.
type App struct {
	Config model.Config
	Log    *logging.Logger

	Store  store.Store
	Cache  cache.Cache // nil when caching is disabled
	Index  vectorindex.Index
	Events events.Publisher

	Engine    *similarity.Engine
	Detector  *detect.Aggregator // nil when no detectors are configured
	Matching  *matching.Service
	Enricher  *matching.Enricher
	Evaluator *score.Evaluator
	Resolver  *score.Resolver
	Analytics *analytics.Service
	Limiter   *worker.Limiter

	closers []func() error
}

// New validates cfg and builds the application
func New(ctx context.Context, cfg model.Config, log *logging.Logger) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	// 1. Persistence
	if a.Store, err = store.Open(cfg.Store, log); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)

	// 2. Inference cache
	if a.Cache, err = cache.New(cfg.Cache); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	if a.Cache != nil {
		a.closers = append(a.closers, func() error {
			if sr, ok := a.Cache.(cache.StatsReporter); ok {
				st := sr.Stats()
				log.Debug("inference cache", "hits", st.Hits, "misses", st.Misses, "items", st.Items)
			}
			return a.Cache.Close()
		})
	}

	// 3. Vector index
	if a.Index, err = openIndex(ctx, cfg, log); err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	a.closers = append(a.closers, a.Index.Close)

	// 4. Events
	if a.Events, err = events.New(cfg.Events, log); err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	a.closers = append(a.closers, a.Events.Close)

	// 5. Inference collaborators
	opts := inference.HTTPOptions{
		Timeout:    cfg.Inference.Timeout,
		UserAgent:  cfg.Inference.UserAgent,
		HTTPProxy:  cfg.Inference.HTTPProxy,
		HTTPSProxy: cfg.Inference.HTTPSProxy,
	}
	fetcher := inference.NewFetcher(opts, cfg.Inference.MaxImageBytes)

	detectors, err := inference.NewDetectors(cfg.Inference.Detectors, opts)
	if err != nil {
		return nil, err
	}
	if len(detectors) > 0 {
		a.Detector = detect.NewAggregator(fetcher, detectors, detect.Options{
			Timeout:       cfg.Inference.Timeout,
			IoUThreshold:  cfg.Matching.IoUThreshold,
			MinConfidence: cfg.Inference.MinDetectScore,
		}, log)
	}

	var images inference.ImageEmbedder
	if cfg.Inference.ImageEmbedURL != "" {
		images = inference.NewHTTPImageEmbedder(cfg.Inference.ImageEmbedURL, opts)
		if a.Cache != nil {
			images = inference.NewCachedImageEmbedder(images, a.Cache)
		}
	}
	texts, err := inference.NewTextEmbedder(cfg.Inference.TextEmbedding, cfg.Inference.Timeout, a.Cache)
	if err != nil {
		return nil, fmt.Errorf("text embedder: %w", err)
	}

	// 6. Services
	a.Engine = similarity.NewEngine(cfg.Matching, texts, log)
	a.Matching = matching.NewService(cfg.Matching, a.Store, a.Engine, a.Index, a.Events, log)
	a.Enricher = matching.NewEnricher(a.Store, fetcher, a.Detector, images, texts, a.Index, log)
	a.Evaluator = score.NewEvaluator(cfg.Claims, a.Store, a.Store, log)
	a.Resolver = score.NewResolver(cfg.Claims, a.Store, a.Store, a.Evaluator, a.Events, log)
	a.Analytics = analytics.NewService(cfg, a.Store, log)

	a.Limiter = worker.NewLimiter(cfg.Server.TriggerRate, cfg.Server.TriggerBurst, cfg.Server.LimiterIdleExpiry)
	a.Limiter.Start()
	a.closers = append(a.closers, func() error { a.Limiter.Close(); return nil })

	log.Info("reclaim initialised",
		"store", cfg.Store.Driver,
		"index", cfg.Index.Backend,
		"events", cfg.Events.Driver,
		"detectors", len(detectors),
		"image_embeddings", images != nil,
		"text_embeddings", texts != nil,
	)
	return a, nil
}

func openIndex(ctx context.Context, cfg model.Config, log *logging.Logger) (vectorindex.Index, error) {
	switch cfg.Index.Backend {
	case "", "memory":
		return vectorindex.NewMemoryIndex(), nil
	case "qdrant":
		idx, err := vectorindex.NewQdrantIndex(ctx, vectorindex.QdrantConfig{
			Addr:       cfg.Index.QdrantAddr,
			Collection: cfg.Index.Collection,
			Dimension:  cfg.Index.Dimension,
			Timeout:    cfg.Inference.Timeout,
		}, log)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index backend %q (supported: memory, qdrant)", cfg.Index.Backend)
	}
}

// Server builds the HTTP server over the application services
func (a *App) Server() *api.Server {
	deps := api.Deps{
		Matcher:   a.Matching,
		Enricher:  a.Enricher,
		Assessor:  a.Evaluator,
		Resolver:  a.Resolver,
		Analytics: a.Analytics,
		Limiter:   a.Limiter,
		Log:       a.Log,
	}
	return api.NewServer(a.Config.Server, deps)
}

// Close releases every component, newest first
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
