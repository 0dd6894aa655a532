package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations. Used to memoize the
// per-symbol news-freshness signal between runs. Supports a local LRU or
// Redis, optionally layered two-phase.
type Cache interface {
	// Get retrieves a value from cache. Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetNewsSignal retrieves a cached news signal for a symbol.
	// Returns nil, nil on a miss.
	GetNewsSignal(ctx context.Context, symbol string) (*NewsSignal, error)

	// SetNewsSignal caches a news signal for a symbol.
	SetNewsSignal(ctx context.Context, symbol string, sig *NewsSignal, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// NewsSignal is the injectable per-symbol freshness signal.
// Score is normalized to [0,1]; 0 means no signal / neutral.
type NewsSignal struct {
	Symbol         string    `json:"symbol"`
	Score          float64   `json:"score"`
	FreshnessHours *float64  `json:"freshnessHours,omitempty"`
	ProbedAt       time.Time `json:"probedAt"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `yaml:"type" mapstructure:"type"`

	// Local LRU cache settings
	LocalMaxSize int           `yaml:"local_max_size" mapstructure:"local_max_size"`
	LocalTTL     time.Duration `yaml:"local_ttl" mapstructure:"local_ttl"`

	// Redis settings
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`

	// Two-phase settings
	EnableTwoPhase bool `yaml:"enable_two_phase" mapstructure:"enable_two_phase"` // If true, check local first, then Redis
}
