package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryCache struct {
	inner *lru.LRU[string, []byte]
}

// NewMemory creates an in-process LRU whose entries expire after ttl.
func NewMemory(size int, ttl time.Duration) Cache {
	if size <= 0 {
		size = 1
	}
	return &memoryCache{inner: lru.NewLRU[string, []byte](size, nil, ttl)}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	return m.inner.Get(key)
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte) {
	m.inner.Add(key, value)
}

func (m *memoryCache) Len() int {
	return m.inner.Len()
}

func (m *memoryCache) Close() error {
	return nil
}
