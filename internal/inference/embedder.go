package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/reclaim-app/reclaim/internal/apperr"
	"github.com/reclaim-app/reclaim/internal/cache"
	"github.com/reclaim-app/reclaim/internal/model"
)

// ImageEmbedder turns image bytes into a fixed-size vector
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)
}

// TextEmbedder turns text into a semantic vector
type TextEmbedder interface {
	Name() string
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// HTTPImageEmbedder posts image bytes to a CLIP-style service returning {"embedding": [...]}
type HTTPImageEmbedder struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPImageEmbedder creates an image embedder for endpoint
func NewHTTPImageEmbedder(endpoint string, opts HTTPOptions) *HTTPImageEmbedder {
	return &HTTPImageEmbedder{
		endpoint:   endpoint,
		httpClient: newHTTPClient(opts),
	}
}

// EmbedImage returns the image embedding
func (e *HTTPImageEmbedder) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	var resp struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := doJSON(ctx, e.httpClient, http.MethodPost, e.endpoint, "application/octet-stream", image, nil, &resp); err != nil {
		return nil, apperr.Unavailable("embedder.image", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, apperr.Unavailable("embedder.image", fmt.Errorf("empty embedding"))
	}
	return resp.Embedding, nil
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint (or a compatible server)
type OpenAIEmbedder struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	timeout time.Duration
}

// NewOpenAIEmbedder creates a text embedder backed by go-openai
func NewOpenAIEmbedder(cfg model.TextEmbeddingConfig, timeout time.Duration) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	embedModel := openai.EmbeddingModel(cfg.Model)
	if cfg.Model == "" {
		embedModel = openai.SmallEmbedding3
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIEmbedder{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   embedModel,
		timeout: timeout,
	}, nil
}

// Name returns the provider name
func (e *OpenAIEmbedder) Name() string {
	return "openai"
}

// EmbedText returns the embedding for text
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Invalid("embedder.text", "empty text")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, apperr.Unavailable("embedder.text", fmt.Errorf("OpenAI API error: %w", err))
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, apperr.Unavailable("embedder.text", fmt.Errorf("no embedding returned"))
	}
	return resp.Data[0].Embedding, nil
}

// NewTextEmbedder builds the configured text embedder.
// Returns nil, nil when no provider is configured (semantic scoring disabled).
func NewTextEmbedder(cfg model.TextEmbeddingConfig, timeout time.Duration, c cache.Cache) (TextEmbedder, error) {
	var embedder TextEmbedder
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		e, err := NewOpenAIEmbedder(cfg, timeout)
		if err != nil {
			return nil, err
		}
		embedder = e
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown text embedding provider: %s (supported: openai)", cfg.Provider)
	}

	if c != nil {
		return &CachedTextEmbedder{next: embedder, cache: c, model: cfg.Model}, nil
	}
	return embedder, nil
}

// CachedTextEmbedder memoises text embeddings
type CachedTextEmbedder struct {
	next  TextEmbedder
	cache cache.Cache
	model string
}

// NewCachedTextEmbedder wraps next with c
func NewCachedTextEmbedder(next TextEmbedder, c cache.Cache, model string) *CachedTextEmbedder {
	return &CachedTextEmbedder{next: next, cache: c, model: model}
}

// Name returns the wrapped provider name
func (e *CachedTextEmbedder) Name() string {
	return e.next.Name()
}

// EmbedText returns a cached vector or asks the wrapped embedder
func (e *CachedTextEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	key := cache.Key("text-embed", e.next.Name(), e.model, text)
	if vec, ok := getVector(e.cache, key); ok {
		return vec, nil
	}
	vec, err := e.next.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	putVector(e.cache, key, vec)
	return vec, nil
}

// CachedImageEmbedder memoises image embeddings by content hash
type CachedImageEmbedder struct {
	next  ImageEmbedder
	cache cache.Cache
}

// NewCachedImageEmbedder wraps next with c
func NewCachedImageEmbedder(next ImageEmbedder, c cache.Cache) *CachedImageEmbedder {
	return &CachedImageEmbedder{next: next, cache: c}
}

// EmbedImage returns a cached vector or asks the wrapped embedder
func (e *CachedImageEmbedder) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	sum := sha256.Sum256(image)
	key := cache.Key("image-embed", hex.EncodeToString(sum[:]))
	if vec, ok := getVector(e.cache, key); ok {
		return vec, nil
	}
	vec, err := e.next.EmbedImage(ctx, image)
	if err != nil {
		return nil, err
	}
	putVector(e.cache, key, vec)
	return vec, nil
}

func getVector(c cache.Cache, key string) ([]float32, bool) {
	raw, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil || len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

func putVector(c cache.Cache, key string, vec []float32) {
	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	_ = c.Set(key, raw, 0)
}
