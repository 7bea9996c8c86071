package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetMarker retrieves a cached recent-submission marker for an email.
	GetMarker(ctx context.Context, email string) (*SubmissionMarker, error)

	// SetMarker caches a recent-submission marker so resubmission checks
	// can skip the repository.
	SetMarker(ctx context.Context, email string, marker *SubmissionMarker, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new value.
	// Used for per-email attempt counting.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// SubmissionMarker is the cached record of a recent submission, keyed by the
// applicant's lowercased email.
type SubmissionMarker struct {
	SubmissionID string    `json:"submissionId"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
