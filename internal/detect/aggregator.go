// Package detect fuses bounding-box detections from several object detectors.
package detect

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reclaim-app/reclaim/internal/logging"
)

// Detection is a raw detector output before normalization
type Detection struct {
	Label      string
	Confidence float64
	Box        BoundingBox
}

// Detector is one remote object-detection model
type Detector interface {
	Name() string
	Detect(ctx context.Context, image []byte) ([]Detection, error)
}

// ImageFetcher downloads image bytes
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Result is the fused detection output for one image
type Result struct {
	Objects          []DetectedObject `json:"objects"`
	ProcessingTimeMs int64            `json:"processing_time_ms"`
	PrimaryClass     string           `json:"primary_class,omitempty"`
	Degraded         []string         `json:"degraded,omitempty"` // collaborators that failed or timed out
}

// Options tune the aggregator
type Options struct {
	Timeout       time.Duration // per detector call
	IoUThreshold  float64
	MinConfidence float64
}

// Aggregator fans one image out to every detector and merges the results
type Aggregator struct {
	detectors []Detector
	fetcher   ImageFetcher
	opts      Options
	log       *logging.Logger
}

// NewAggregator creates an aggregator over the given detectors
func NewAggregator(fetcher ImageFetcher, detectors []Detector, opts Options, log *logging.Logger) *Aggregator {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.IoUThreshold <= 0 {
		opts.IoUThreshold = DefaultIoUThreshold
	}
	return &Aggregator{
		detectors: detectors,
		fetcher:   fetcher,
		opts:      opts,
		log:       log.With("component", "detect"),
	}
}

// Detect fetches the image once and runs every detector concurrently.
// A failing detector contributes nothing; the error is logged and the name
// is reported in Result.Degraded.
func (a *Aggregator) Detect(ctx context.Context, imageURL string) (*Result, error) {
	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	image, err := a.fetcher.Fetch(fetchCtx, imageURL)
	cancel()
	if err != nil {
		a.log.Warn("image fetch failed, skipping detection", "url", imageURL, "error", err)
		return &Result{
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			Degraded:         []string{"fetch"},
		}, nil
	}

	objects, degraded := a.DetectBytes(ctx, image)
	return &Result{
		Objects:          objects,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		PrimaryClass:     PrimaryClass(objects),
		Degraded:         degraded,
	}, nil
}

// DetectBytes runs every detector on already-fetched image bytes and deduplicates the union
func (a *Aggregator) DetectBytes(ctx context.Context, image []byte) ([]DetectedObject, []string) {
	perDetector := make([][]DetectedObject, len(a.detectors))
	failed := make([]bool, len(a.detectors))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range a.detectors {
		i, d := i, d
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, a.opts.Timeout)
			defer cancel()

			raw, err := d.Detect(callCtx, image)
			if err != nil {
				a.log.Warn("detector unavailable", "detector", d.Name(), "error", err)
				failed[i] = true
				return nil
			}
			perDetector[i] = a.normalize(d.Name(), raw)
			return nil
		})
	}
	_ = g.Wait()

	var all []DetectedObject
	var degraded []string
	for i, objs := range perDetector {
		if failed[i] {
			degraded = append(degraded, a.detectors[i].Name())
			continue
		}
		all = append(all, objs...)
	}
	return Deduplicate(all, a.opts.IoUThreshold), degraded
}

func (a *Aggregator) normalize(source string, raw []Detection) []DetectedObject {
	out := make([]DetectedObject, 0, len(raw))
	for _, d := range raw {
		if d.Confidence < a.opts.MinConfidence {
			continue
		}
		out = append(out, DetectedObject{
			Label:       NormalizeLabel(d.Label),
			Confidence:  d.Confidence,
			BBox:        Normalize(d.Box),
			SourceModel: source,
		})
	}
	return out
}
