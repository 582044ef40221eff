package inference

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/reclaim-app/reclaim/internal/apperr"
	"github.com/reclaim-app/reclaim/internal/detect"
	"github.com/reclaim-app/reclaim/internal/model"
)

// EdgeDetector calls a hosted detection pipeline that answers with
// [{label, score, box{xmin, ymin, xmax, ymax}}]
type EdgeDetector struct {
	name       string
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

type edgePrediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Box   struct {
		XMin float64 `json:"xmin"`
		YMin float64 `json:"ymin"`
		XMax float64 `json:"xmax"`
		YMax float64 `json:"ymax"`
	} `json:"box"`
}

// NewEdgeDetector creates a detector posting raw image bytes to endpoint
func NewEdgeDetector(name, endpoint, apiKey string, opts HTTPOptions) *EdgeDetector {
	return &EdgeDetector{
		name:       name,
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: newHTTPClient(opts),
	}
}

// Name returns the detector name
func (d *EdgeDetector) Name() string {
	return d.name
}

// Detect posts the image and converts min/max boxes
func (d *EdgeDetector) Detect(ctx context.Context, image []byte) ([]detect.Detection, error) {
	headers := map[string]string{}
	if d.apiKey != "" {
		headers["Authorization"] = "Bearer " + d.apiKey
	}

	var preds []edgePrediction
	if err := doJSON(ctx, d.httpClient, http.MethodPost, d.endpoint, "application/octet-stream", image, headers, &preds); err != nil {
		return nil, apperr.Unavailable("detector."+d.name, err)
	}

	out := make([]detect.Detection, 0, len(preds))
	for _, p := range preds {
		out = append(out, detect.Detection{
			Label:      p.Label,
			Confidence: p.Score,
			Box:        detect.Edges{XMin: p.Box.XMin, YMin: p.Box.YMin, XMax: p.Box.XMax, YMax: p.Box.YMax},
		})
	}
	return out, nil
}

// CenterDetector calls a hosted model that answers with
// {predictions: [{class, confidence, x, y, width, height}]} where x/y is the box centre
type CenterDetector struct {
	name       string
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

type centerResponse struct {
	Predictions []struct {
		Class      string  `json:"class"`
		Confidence float64 `json:"confidence"`
		X          float64 `json:"x"`
		Y          float64 `json:"y"`
		Width      float64 `json:"width"`
		Height     float64 `json:"height"`
	} `json:"predictions"`
}

// NewCenterDetector creates a detector posting a base64 image body to endpoint
func NewCenterDetector(name, endpoint, apiKey string, opts HTTPOptions) *CenterDetector {
	return &CenterDetector{
		name:       name,
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: newHTTPClient(opts),
	}
}

// Name returns the detector name
func (d *CenterDetector) Name() string {
	return d.name
}

// Detect posts the base64 image and converts centre-anchored boxes
func (d *CenterDetector) Detect(ctx context.Context, image []byte) ([]detect.Detection, error) {
	endpoint := d.endpoint
	if d.apiKey != "" {
		u, err := url.Parse(d.endpoint)
		if err != nil {
			return nil, apperr.Unavailable("detector."+d.name, err)
		}
		q := u.Query()
		q.Set("api_key", d.apiKey)
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	body := []byte(base64.StdEncoding.EncodeToString(image))
	var resp centerResponse
	if err := doJSON(ctx, d.httpClient, http.MethodPost, endpoint, "application/x-www-form-urlencoded", body, nil, &resp); err != nil {
		return nil, apperr.Unavailable("detector."+d.name, err)
	}

	out := make([]detect.Detection, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		out = append(out, detect.Detection{
			Label:      p.Class,
			Confidence: p.Confidence,
			Box:        detect.Center{CX: p.X, CY: p.Y, W: p.Width, H: p.Height},
		})
	}
	return out, nil
}

// NewDetectors builds the configured detectors
func NewDetectors(cfgs []model.DetectorConfig, opts HTTPOptions) ([]detect.Detector, error) {
	detectors := make([]detect.Detector, 0, len(cfgs))
	for _, c := range cfgs {
		if c.URL == "" {
			return nil, fmt.Errorf("detector %q has no url", c.Name)
		}
		switch strings.ToLower(c.Format) {
		case "edge", "edges", "":
			detectors = append(detectors, NewEdgeDetector(c.Name, c.URL, c.APIKey, opts))
		case "center":
			detectors = append(detectors, NewCenterDetector(c.Name, c.URL, c.APIKey, opts))
		default:
			return nil, fmt.Errorf("detector %q: unknown format %q (supported: edge, center)", c.Name, c.Format)
		}
	}
	return detectors, nil
}
