// Package cache stores metadata lookups between requests.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Len() int
	Close() error
}

// Options configures New.
type Options struct {
	Size          int
	TTL           time.Duration
	RedisAddress  string
	RedisPassword string
	RedisDB       int
}

// New returns the cache implementation registered under provider ("memory" or "redis").
func New(provider string, opts Options) (Cache, error) {
	switch provider {
	case "", "memory":
		return NewMemory(opts.Size, opts.TTL), nil
	case "redis":
		return NewRedis(opts)
	default:
		return nil, fmt.Errorf("cache: unknown provider %q", provider)
	}
}
