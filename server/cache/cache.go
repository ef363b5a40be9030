package cache

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss is returned by Get and GetTTL when the key is absent or has
// expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores JSON-serializable values. Both backends round-trip values
// through JSON so a result written by one can be read through the other.
type Cache interface {
	Set(ctx context.Context, key string, value any) error

	Get(ctx context.Context, key string, dest any) error

	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)

	SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error

	GetTTL(ctx context.Context, key string) (time.Duration, error)

	Increment(ctx context.Context, key string) (int64, error)

	IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Purge drops every entry in the cache.
	Purge(ctx context.Context) error

	GetStats(ctx context.Context) (*CacheStats, error)

	Close() error
}

type CacheStats struct {
	Connected bool   `json:"connected"`
	Info      string `json:"info"`
}

// GenerateCacheKey hashes the components into a fixed-width key.
func GenerateCacheKey(components ...string) string {
	h := md5.New()
	for _, component := range components {
		h.Write([]byte(component))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
