package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheNotAvailable = errors.New("cache not available")
	ErrCacheNotFound     = errors.New("cache key not found")
)

// CacheConfig defines cache behavior per data type.
type CacheConfig struct {
	TTL    time.Duration
	Prefix string
}

var (
	// Exam reads are hot during an active exam window.
	ExamCacheConfig = CacheConfig{
		TTL:    5 * time.Minute,
		Prefix: "exam:",
	}

	// Identity lookups change rarely.
	UserCacheConfig = CacheConfig{
		TTL:    15 * time.Minute,
		Prefix: "user:",
	}
)

// CacheHelper provides read-through caching for repositories. All
// operations degrade gracefully when no Redis client is configured.
type CacheHelper struct {
	client *redis.Client
	prefix string
}

func NewCacheHelper(client *redis.Client, prefix string) *CacheHelper {
	return &CacheHelper{
		client: client,
		prefix: prefix,
	}
}

func (c *CacheHelper) key(key string) string {
	return c.prefix + key
}

// Get retrieves and unmarshals data from cache.
func (c *CacheHelper) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrCacheNotAvailable
	}

	data, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheNotFound
		}
		return fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}

	return nil
}

// Set marshals and stores data in cache. A nil client is a no-op.
func (c *CacheHelper) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}

	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

// Delete removes keys from cache.
func (c *CacheHelper) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.key(k)
	}
	return c.client.Del(ctx, prefixed...).Err()
}

// InvalidatePattern removes all keys matching pattern under this helper's
// prefix, using SCAN to avoid blocking Redis.
func (c *CacheHelper) InvalidatePattern(ctx context.Context, pattern string) error {
	if c.client == nil {
		return nil
	}

	iter := c.client.Scan(ctx, 0, c.key(pattern), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan error: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// CacheOrExecute returns the cached value for key, or executes fn, caches
// its result and returns it. Cache failures degrade to a plain execute.
func (c *CacheHelper) CacheOrExecute(ctx context.Context, key string, dest interface{}, ttl time.Duration, fn func() (interface{}, error)) error {
	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	}

	value, err := fn()
	if err != nil {
		return err
	}

	// Best effort; the caller already has the value.
	_ = c.Set(ctx, key, value, ttl)

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	return json.Unmarshal(data, dest)
}

// SafeInvalidate drops matching keys and swallows cache errors; writers
// must not fail because invalidation did.
func SafeInvalidate(ctx context.Context, helper *CacheHelper, pattern string) {
	_ = helper.InvalidatePattern(ctx, pattern)
}
