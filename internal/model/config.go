package model

import (
	"fmt"
	"time"
)

// Config holds all tunable settings for reclaim
type Config struct {
	Matching  MatchingConfig  `yaml:"matching" mapstructure:"matching"`
	Claims    ClaimConfig     `yaml:"claims" mapstructure:"claims"`
	Inference InferenceConfig `yaml:"inference" mapstructure:"inference"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Index     IndexConfig     `yaml:"index" mapstructure:"index"`
	Events    EventsConfig    `yaml:"events" mapstructure:"events"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// MatchWeights weights the component scores into a pair total.
// Total = sum(w_i * c_i) / sum(w_i).
type MatchWeights struct {
	Embedding float64 `yaml:"embedding" mapstructure:"embedding"`
	Text      float64 `yaml:"text" mapstructure:"text"`
	Class     float64 `yaml:"class" mapstructure:"class"`
	Location  float64 `yaml:"location" mapstructure:"location"`
	Time      float64 `yaml:"time" mapstructure:"time"`
}

// Sum returns the total weight
func (w MatchWeights) Sum() float64 {
	return w.Embedding + w.Text + w.Class + w.Location + w.Time
}

// TextScoring tunes the hybrid text component
type TextScoring struct {
	LexicalWeight        float64 `yaml:"lexical_weight" mapstructure:"lexical_weight"`
	SemanticWeight       float64 `yaml:"semantic_weight" mapstructure:"semantic_weight"`
	CategoryExactBonus   int     `yaml:"category_exact_bonus" mapstructure:"category_exact_bonus"`
	CategoryRelatedBonus int     `yaml:"category_related_bonus" mapstructure:"category_related_bonus"`
	ColorExactBonus      int     `yaml:"color_exact_bonus" mapstructure:"color_exact_bonus"`
	ColorRelatedBonus    int     `yaml:"color_related_bonus" mapstructure:"color_related_bonus"`
	MaterialExactBonus   int     `yaml:"material_exact_bonus" mapstructure:"material_exact_bonus"`
}

// MatchingConfig configures pair scoring and bulk matching
type MatchingConfig struct {
	Weights        MatchWeights `yaml:"weights" mapstructure:"weights"`
	Text           TextScoring  `yaml:"text" mapstructure:"text"`
	MinMatchScore  int          `yaml:"min_match_score" mapstructure:"min_match_score"`
	TopMatches     int          `yaml:"top_matches" mapstructure:"top_matches"`
	SimilarResults int          `yaml:"similar_results" mapstructure:"similar_results"`
	Workers        int          `yaml:"workers" mapstructure:"workers"`
	IoUThreshold   float64      `yaml:"iou_threshold" mapstructure:"iou_threshold"`
}

// ClaimConfig collects every threshold used by claim evaluation and resolution
type ClaimConfig struct {
	MinProofLength        int           `yaml:"min_proof_length" mapstructure:"min_proof_length"`
	GoodProofLength       int           `yaml:"good_proof_length" mapstructure:"good_proof_length"`
	VagueProofScore       int           `yaml:"vague_proof_score" mapstructure:"vague_proof_score"`
	MediumProofScore      int           `yaml:"medium_proof_score" mapstructure:"medium_proof_score"`
	GoodProofScore        int           `yaml:"good_proof_score" mapstructure:"good_proof_score"`
	KeywordPoints         int           `yaml:"keyword_points" mapstructure:"keyword_points"`
	MaxKeywordMatches     int           `yaml:"max_keyword_matches" mapstructure:"max_keyword_matches"`
	MediaURLBonus         int           `yaml:"media_url_bonus" mapstructure:"media_url_bonus"`
	LowQualityThreshold   int           `yaml:"low_quality_threshold" mapstructure:"low_quality_threshold"`
	StrongProofKeywords   []string      `yaml:"strong_proof_keywords" mapstructure:"strong_proof_keywords"`
	MediaHosts            []string      `yaml:"media_hosts" mapstructure:"media_hosts"`
	MaxRejectionPenalty   int           `yaml:"max_rejection_penalty" mapstructure:"max_rejection_penalty"`
	RepeatOffenderCount   int           `yaml:"repeat_offender_count" mapstructure:"repeat_offender_count"`
	RepeatOffenderPenalty int           `yaml:"repeat_offender_penalty" mapstructure:"repeat_offender_penalty"`
	MultipleRejections    int           `yaml:"multiple_rejections" mapstructure:"multiple_rejections"`
	SuspiciousPenalty     int           `yaml:"suspicious_penalty" mapstructure:"suspicious_penalty"`
	SimilarClaimsWindow   time.Duration `yaml:"similar_claims_window" mapstructure:"similar_claims_window"`
	RepeatedCategoryCount int           `yaml:"repeated_category_count" mapstructure:"repeated_category_count"`
	ConfidenceWeight      float64       `yaml:"confidence_weight" mapstructure:"confidence_weight"`
	ProofQualityWeight    float64       `yaml:"proof_quality_weight" mapstructure:"proof_quality_weight"`
	HistoryWeight         float64       `yaml:"history_weight" mapstructure:"history_weight"`
	AutoAwardThreshold    int           `yaml:"auto_award_threshold" mapstructure:"auto_award_threshold"`
	MinimumConfidenceGap  int           `yaml:"minimum_confidence_gap" mapstructure:"minimum_confidence_gap"`
	SuspiciousThreshold   int           `yaml:"suspicious_threshold" mapstructure:"suspicious_threshold"`
	CriticalThreshold     int           `yaml:"critical_threshold" mapstructure:"critical_threshold"`
	FlagPenalty           int           `yaml:"flag_penalty" mapstructure:"flag_penalty"`
	RepeatOffenderReport  int           `yaml:"repeat_offender_report" mapstructure:"repeat_offender_report"`
	Workers               int           `yaml:"workers" mapstructure:"workers"`
	// MarkConflicts moves competing pending claims to conflict when a resolution needs review
	MarkConflicts bool `yaml:"mark_conflicts" mapstructure:"mark_conflicts"`
}

// DetectorConfig describes one remote object detector
type DetectorConfig struct {
	Name   string `yaml:"name" mapstructure:"name"`
	Format string `yaml:"format" mapstructure:"format"` // "edge" (xmin/ymin/xmax/ymax) or "center" (x/y/width/height)
	URL    string `yaml:"url" mapstructure:"url"`
	APIKey string `yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// TextEmbeddingConfig configures the optional semantic text embedder
type TextEmbeddingConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // "openai" or "" (disabled)
	Model    string `yaml:"model" mapstructure:"model"`
	APIKey   string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL  string `yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// InferenceConfig configures the remote inference collaborators
type InferenceConfig struct {
	Detectors      []DetectorConfig    `yaml:"detectors" mapstructure:"detectors"`
	ImageEmbedURL  string              `yaml:"image_embed_url" mapstructure:"image_embed_url"`
	TextEmbedding  TextEmbeddingConfig `yaml:"text_embedding" mapstructure:"text_embedding"`
	Timeout        time.Duration       `yaml:"timeout" mapstructure:"timeout"`
	MaxImageBytes  int64               `yaml:"max_image_bytes" mapstructure:"max_image_bytes"`
	UserAgent      string              `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPProxy      string              `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy     string              `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	MinDetectScore float64             `yaml:"min_detect_score" mapstructure:"min_detect_score"`
}

// CacheConfig configures caching of inference results
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Backend   string        `yaml:"backend" mapstructure:"backend"` // "memory", "layered" or "redis"
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	RedisAddr string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	MaxItems  int           `yaml:"max_items" mapstructure:"max_items"` // memory layer bound, 0 = unbounded
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // "memory" or "postgres"
	DSN    string `yaml:"dsn,omitempty" mapstructure:"dsn"`
}

// IndexConfig selects the vector index backend
type IndexConfig struct {
	Backend    string `yaml:"backend" mapstructure:"backend"` // "memory" or "qdrant"
	QdrantAddr string `yaml:"qdrant_addr" mapstructure:"qdrant_addr"`
	Collection string `yaml:"collection" mapstructure:"collection"`
	Dimension  int    `yaml:"dimension" mapstructure:"dimension"`
}

// EventsConfig selects the domain event publisher
type EventsConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"` // "none" or "amqp"
	URL      string `yaml:"url,omitempty" mapstructure:"url"`
	Exchange string `yaml:"exchange" mapstructure:"exchange"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr              string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout       time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	TriggerRate       float64       `yaml:"trigger_rate" mapstructure:"trigger_rate"` // batch triggers per second per caller
	TriggerBurst      int           `yaml:"trigger_burst" mapstructure:"trigger_burst"`
	LimiterIdleExpiry time.Duration `yaml:"limiter_idle_expiry" mapstructure:"limiter_idle_expiry"`
}

// LogConfig configures logging
type LogConfig struct {
	Mode string `yaml:"mode" mapstructure:"mode"` // "dev" or "prod"
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Matching: MatchingConfig{
			Weights: MatchWeights{
				Embedding: 0.5,
				Text:      0.3,
				Class:     0.2,
			},
			Text: TextScoring{
				LexicalWeight:        0.6,
				SemanticWeight:       0.4,
				CategoryExactBonus:   20,
				CategoryRelatedBonus: 10,
				ColorExactBonus:      10,
				ColorRelatedBonus:    5,
				MaterialExactBonus:   10,
			},
			MinMatchScore:  30,
			TopMatches:     10,
			SimilarResults: 10,
			Workers:        4,
			IoUThreshold:   0.5,
		},
		Claims: ClaimConfig{
			MinProofLength:      20,
			GoodProofLength:     100,
			VagueProofScore:     10,
			MediumProofScore:    20,
			GoodProofScore:      40,
			KeywordPoints:       10,
			MaxKeywordMatches:   4,
			MediaURLBonus:       20,
			LowQualityThreshold: 30,
			StrongProofKeywords: []string{
				"serial", "serial number", "imei", "model number", "receipt", "invoice",
				"scratch", "dent", "sticker", "engraved", "engraving", "initials",
				"inscription", "crack", "wallpaper", "lock screen", "password", "photo",
				"custom", "tag", "keychain", "brand",
			},
			MediaHosts: []string{
				"res.cloudinary.com", "imgur.com", "i.imgur.com", "s3.amazonaws.com",
				"storage.googleapis.com", "firebasestorage.googleapis.com",
			},
			MaxRejectionPenalty:   50,
			RepeatOffenderCount:   5,
			RepeatOffenderPenalty: 20,
			MultipleRejections:    3,
			SuspiciousPenalty:     5,
			SimilarClaimsWindow:   30 * 24 * time.Hour,
			RepeatedCategoryCount: 3,
			ConfidenceWeight:      0.4,
			ProofQualityWeight:    0.35,
			HistoryWeight:         0.25,
			AutoAwardThreshold:    85,
			MinimumConfidenceGap:  15,
			SuspiciousThreshold:   50,
			CriticalThreshold:     80,
			FlagPenalty:           10,
			RepeatOffenderReport:  3,
			Workers:               4,
		},
		Inference: InferenceConfig{
			Timeout:        10 * time.Second,
			MaxImageBytes:  10 * 1024 * 1024,
			UserAgent:      "reclaim/0.3 (+https://github.com/reclaim-app/reclaim)",
			MinDetectScore: 0.3,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Backend:  "memory",
			TTL:      24 * time.Hour,
			MaxItems: 50000,
		},
		Store: StoreConfig{
			Driver: "memory",
		},
		Index: IndexConfig{
			Backend:    "memory",
			QdrantAddr: "localhost:6334",
			Collection: "reclaim_items",
			Dimension:  512,
		},
		Events: EventsConfig{
			Driver:   "none",
			Exchange: "reclaim.events",
		},
		Server: ServerConfig{
			Addr:              ":8080",
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			TriggerRate:       0.2,
			TriggerBurst:      2,
			LimiterIdleExpiry: 10 * time.Minute,
		},
		Log: LogConfig{
			Mode: "dev",
		},
	}
}

// Validate rejects settings that would make scoring meaningless
func (c Config) Validate() error {
	w := c.Matching.Weights
	for name, v := range map[string]float64{
		"embedding": w.Embedding, "text": w.Text, "class": w.Class, "location": w.Location, "time": w.Time,
	} {
		if v < 0 {
			return fmt.Errorf("matching weight %s must not be negative", name)
		}
	}
	if w.Sum() == 0 {
		return fmt.Errorf("at least one matching weight must be positive")
	}
	if c.Matching.MinMatchScore < 0 || c.Matching.MinMatchScore > 100 {
		return fmt.Errorf("min_match_score must be within 0-100, got %d", c.Matching.MinMatchScore)
	}
	if c.Matching.IoUThreshold <= 0 || c.Matching.IoUThreshold > 1 {
		return fmt.Errorf("iou_threshold must be within (0, 1], got %.2f", c.Matching.IoUThreshold)
	}

	cl := c.Claims
	if cl.MinProofLength > cl.GoodProofLength {
		return fmt.Errorf("min_proof_length (%d) exceeds good_proof_length (%d)", cl.MinProofLength, cl.GoodProofLength)
	}
	if cl.SuspiciousThreshold > cl.CriticalThreshold {
		return fmt.Errorf("suspicious_threshold (%d) exceeds critical_threshold (%d)", cl.SuspiciousThreshold, cl.CriticalThreshold)
	}
	if cl.ConfidenceWeight < 0 || cl.ProofQualityWeight < 0 || cl.HistoryWeight < 0 {
		return fmt.Errorf("claim weights must not be negative")
	}
	if cl.AutoAwardThreshold < 0 || cl.AutoAwardThreshold > 100 {
		return fmt.Errorf("auto_award_threshold must be within 0-100, got %d", cl.AutoAwardThreshold)
	}
	return nil
}
