package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "gsd:meta:"

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to Redis/Valkey and verifies the connection.
func NewRedis(opts Options) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddress,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newRedisWithClient(client, opts.TTL), nil
}

func newRedisWithClient(client *redis.Client, ttl time.Duration) *redisCache {
	return &redisCache{client: client, ttl: ttl}
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set is best effort; a failed write only costs a future miss.
func (r *redisCache) Set(ctx context.Context, key string, value []byte) {
	_ = r.client.Set(ctx, keyPrefix+key, value, r.ttl).Err()
}

// Len counts keys under the addon prefix.
func (r *redisCache) Len() int {
	var (
		cursor uint64
		count  int
	)
	ctx := context.Background()
	for {
		keys, next, err := r.client.Scan(ctx, cursor, keyPrefix+"*", 500).Result()
		if err != nil {
			return count
		}
		count += len(keys)
		if next == 0 {
			return count
		}
		cursor = next
	}
}

func (r *redisCache) Close() error {
	return r.client.Close()
}
