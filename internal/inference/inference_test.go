package inference

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reclaim-app/reclaim/internal/apperr"
	"github.com/reclaim-app/reclaim/internal/cache"
	"github.com/reclaim-app/reclaim/internal/detect"
	"github.com/reclaim-app/reclaim/internal/model"
)

var testOpts = HTTPOptions{Timeout: 5 * time.Second, UserAgent: "reclaim-test"}

func TestEdgeDetector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer hf-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "raw-image" {
			t.Errorf("body = %q, want raw image bytes", body)
		}
		_, _ = w.Write([]byte(`[{"label":"cell phone","score":0.91,"box":{"xmin":10,"ymin":20,"xmax":30,"ymax":60}}]`))
	}))
	defer server.Close()

	d := NewEdgeDetector("detr", server.URL, "hf-key", testOpts)
	got, err := d.Detect(context.Background(), []byte("raw-image"))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d detections, want 1", len(got))
	}
	if got[0].Label != "cell phone" || got[0].Confidence != 0.91 {
		t.Errorf("detection = %+v", got[0])
	}
	if box := detect.Normalize(got[0].Box); box != (detect.Box{X: 10, Y: 20, W: 20, H: 40}) {
		t.Errorf("normalized box = %+v", box)
	}
}

func TestCenterDetector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "rf-key" {
			t.Errorf("api_key = %q", r.URL.Query().Get("api_key"))
		}
		body, _ := io.ReadAll(r.Body)
		decoded, err := base64.StdEncoding.DecodeString(string(body))
		if err != nil || string(decoded) != "raw-image" {
			t.Errorf("body is not the base64 image: %q", body)
		}
		_, _ = w.Write([]byte(`{"predictions":[{"class":"backpack","confidence":0.8,"x":50,"y":40,"width":20,"height":10}]}`))
	}))
	defer server.Close()

	d := NewCenterDetector("roboflow", server.URL+"/lost-items/3", "rf-key", testOpts)
	got, err := d.Detect(context.Background(), []byte("raw-image"))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(got) != 1 || got[0].Label != "backpack" {
		t.Fatalf("detections = %+v", got)
	}
	if box := detect.Normalize(got[0].Box); box != (detect.Box{X: 40, Y: 35, W: 20, H: 10}) {
		t.Errorf("normalized box = %+v", box)
	}
}

func TestDetectorHTTPErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"model is loading"}`))
	}))
	defer server.Close()

	d := NewEdgeDetector("detr", server.URL, "", testOpts)
	_, err := d.Detect(context.Background(), []byte("x"))
	if !errors.Is(err, apperr.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "model is loading") {
		t.Errorf("error should carry API message: %v", err)
	}
}

func TestNewDetectors(t *testing.T) {
	ds, err := NewDetectors([]model.DetectorConfig{
		{Name: "a", Format: "edge", URL: "http://a"},
		{Name: "b", Format: "center", URL: "http://b"},
	}, testOpts)
	if err != nil {
		t.Fatalf("NewDetectors() error = %v", err)
	}
	if len(ds) != 2 || ds[0].Name() != "a" || ds[1].Name() != "b" {
		t.Errorf("unexpected detectors: %v", ds)
	}

	if _, err := NewDetectors([]model.DetectorConfig{{Name: "x", Format: "polygon", URL: "http://x"}}, testOpts); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := NewDetectors([]model.DetectorConfig{{Name: "x"}}, testOpts); err == nil {
		t.Error("expected error for missing url")
	}
}

func TestHTTPImageEmbedder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	}))
	defer server.Close()

	e := NewHTTPImageEmbedder(server.URL, testOpts)
	vec, err := e.EmbedImage(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("EmbedImage() error = %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("len = %d, want 3", len(vec))
	}
}

func TestHTTPImageEmbedderEmptyIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[]}`))
	}))
	defer server.Close()

	_, err := NewHTTPImageEmbedder(server.URL, testOpts).EmbedImage(context.Background(), []byte("img"))
	if !errors.Is(err, apperr.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestOpenAIEmbedder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("Expected path /embeddings, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","embedding":[0.5,0.25],"index":0}],"model":"text-embedding-3-small","usage":{"prompt_tokens":3,"total_tokens":3}}`))
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(model.TextEmbeddingConfig{APIKey: "test-key", BaseURL: server.URL}, 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder() error = %v", err)
	}
	vec, err := e.EmbedText(context.Background(), "black leather wallet")
	if err != nil {
		t.Fatalf("EmbedText() error = %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Errorf("vec = %v", vec)
	}
}

func TestOpenAIEmbedderRequiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder(model.TextEmbeddingConfig{}, 0); err == nil {
		t.Error("expected error without API key")
	}
}

func TestNewTextEmbedderDisabled(t *testing.T) {
	e, err := NewTextEmbedder(model.TextEmbeddingConfig{}, time.Second, nil)
	if err != nil || e != nil {
		t.Errorf("expected nil embedder, got %v, %v", e, err)
	}
	if _, err := NewTextEmbedder(model.TextEmbeddingConfig{Provider: "cohere"}, time.Second, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}

type countingTextEmbedder struct {
	calls atomic.Int32
}

func (c *countingTextEmbedder) Name() string { return "counting" }

func (c *countingTextEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	c.calls.Add(1)
	return []float32{1, 2}, nil
}

type countingImageEmbedder struct {
	calls atomic.Int32
}

func (c *countingImageEmbedder) EmbedImage(context.Context, []byte) ([]float32, error) {
	c.calls.Add(1)
	return []float32{3, 4}, nil
}

func TestCachedEmbedders(t *testing.T) {
	mem := cache.NewMemoryCache(time.Minute, time.Minute, 0)
	ctx := context.Background()

	text := &countingTextEmbedder{}
	ct := NewCachedTextEmbedder(text, mem, "m")
	for i := 0; i < 3; i++ {
		vec, err := ct.EmbedText(ctx, "wallet")
		if err != nil || len(vec) != 2 {
			t.Fatalf("EmbedText() = %v, %v", vec, err)
		}
	}
	if text.calls.Load() != 1 {
		t.Errorf("text embedder called %d times, want 1", text.calls.Load())
	}

	img := &countingImageEmbedder{}
	ci := NewCachedImageEmbedder(img, mem)
	_, _ = ci.EmbedImage(ctx, []byte("a"))
	_, _ = ci.EmbedImage(ctx, []byte("a"))
	_, _ = ci.EmbedImage(ctx, []byte("b"))
	if img.calls.Load() != 2 {
		t.Errorf("image embedder called %d times, want 2", img.calls.Load())
	}
}

func TestFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpegdata"))
		case "/big.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := NewFetcher(testOpts, 32)
	ctx := context.Background()

	data, err := f.Fetch(ctx, server.URL+"/ok.jpg")
	if err != nil || string(data) != "jpegdata" {
		t.Errorf("Fetch(ok) = %q, %v", data, err)
	}
	if _, err := f.Fetch(ctx, server.URL+"/big.jpg"); err == nil {
		t.Error("expected size limit error")
	}
	if _, err := f.Fetch(ctx, server.URL+"/page"); err == nil {
		t.Error("expected content type error")
	}
	if _, err := f.Fetch(ctx, server.URL+"/missing.jpg"); err == nil {
		t.Error("expected status error")
	}
}
