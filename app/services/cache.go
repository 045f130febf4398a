package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hikarudo/uwabami/utils"
	"github.com/redis/go-redis/v9"
)

// Cache is a byte-value cache with per-entry TTL. Read paths treat it as
// advisory: a miss or an error falls through to the database.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisCache implements Cache on a shared redis instance
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a redis-backed cache. All keys are namespaced with
// the given prefix.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(key string) string {
	return c.prefix + ":" + key
}

// Get retrieves a cached value, reporting whether it was present
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cache key %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores a value with the given TTL
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

// Delete removes a cached value
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache key %s: %w", key, err)
	}
	return nil
}

type memoryCacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache implements Cache in process memory with a hard entry cap.
// When full it evicts expired entries first, then the entry closest to
// expiry. Used in tests and as a fallback when redis is not configured.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryCacheEntry
	maxEntries int
}

// NewMemoryCache creates a bounded in-memory cache
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &MemoryCache{
		entries:    make(map[string]memoryCacheEntry),
		maxEntries: maxEntries,
	}
}

// Get retrieves a cached value, reporting whether it was present and fresh
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if utils.UTCNow().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores a value with the given TTL, evicting if the cache is full
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = memoryCacheEntry{
		value:     value,
		expiresAt: utils.UTCNowAdd(ttl),
	}
	return nil
}

// Delete removes a cached value
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// evictLocked drops expired entries, then the entry closest to expiry if the
// cache is still at capacity. Caller holds the mutex.
func (c *MemoryCache) evictLocked() {
	now := utils.UTCNow()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}

	var oldestKey string
	var oldestExpiry time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.expiresAt.Before(oldestExpiry) {
			oldestKey = k
			oldestExpiry = e.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
