package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/reclaim-app/reclaim/internal/model"
)

// Cache defines the interface for caching inference results
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
	Close() error
}

// StatsReporter is implemented by caches that count hits and misses
type StatsReporter interface {
	Stats() Stats
}

// Key builds a namespaced cache key from arbitrary parts
func Key(namespace string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "reclaim:v1:" + namespace + ":" + hex.EncodeToString(hash[:])
}

// New builds the cache selected by configuration.
// Returns nil, nil when caching is disabled.
func New(cfg model.CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryCache(cfg.TTL, 10*time.Minute, cfg.MaxItems), nil
	case "layered":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("layered cache requires cache.dir")
		}
		return NewLayeredCache(NewMemoryCache(cfg.TTL, 10*time.Minute, cfg.MaxItems), NewDiskCache(cfg.Dir, cfg.TTL)), nil
	case "redis":
		rc, err := NewRedisCache(cfg.RedisAddr, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return rc, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s (supported: memory, layered, redis)", cfg.Backend)
	}
}
