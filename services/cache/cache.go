// Package cache provides the core.Cache implementations: Redis in production, a map in dev & tests.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
)

type redisCache struct {
	client *redis.Client
}

var _ core.Cache = (*redisCache)(nil)

func NewRedisCache(client *redis.Client) core.Cache {
	return &redisCache{client: client}
}

// Connect opens a Redis client and pings it.
func Connect(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Address,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "pinging redis at %s", conf.Address)
	}
	return client, nil
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == redis.Nil:
		return nil, false, nil
	case err != nil:
		return nil, false, errors.Wrapf(err, "GET %s", key)
	}
	return val, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return errors.Wrapf(c.client.Set(ctx, key, val, ttl).Err(), "SET %s", key)
}

func (c *redisCache) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Incr(ctx, key).Result()
	return n, errors.Wrapf(err, "INCR %s", key)
}

type memoryEntry struct {
	val       []byte
	expiresAt time.Time // zero: never
}

// MemoryCache is a TTL-aware map; expired entries are dropped lazily on read.
// Counters live in the same map as decimal strings, like Redis INCR.
type MemoryCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

var _ core.Cache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.live(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.val...), true, nil
}

// live returns the unexpired entry under key. The caller holds mu.
func (c *MemoryCache) live(key string) (memoryEntry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (c *MemoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := memoryEntry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	e, ok := c.live(key)
	if ok {
		var err error
		if n, err = strconv.ParseInt(string(e.val), 10, 64); err != nil {
			return 0, errors.Errorf("INCR %s: value is not an integer", key)
		}
	}
	n++
	e.val = []byte(strconv.FormatInt(n, 10))
	c.entries[key] = e
	return n, nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type noop struct{}

// Noop never stores anything; every Get misses.
var Noop core.Cache = noop{}

func (noop) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (noop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (noop) Incr(context.Context, string) (int64, error)              { return 0, nil }
