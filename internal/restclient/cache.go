package restclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReadThroughCache is a Redis-backed cache for REST Data Plane GET
// responses. Entries expire on their own TTL and are also proactively
// dropped when an invalidation message arrives on the entry's
// invalidation channel, so a write through the REST Data Plane (from
// any process) is reflected here without waiting out the TTL.
type ReadThroughCache struct {
	rdb    *redis.Client
	prefix string
}

// NewReadThroughCache wraps rdb, namespacing every key under prefix
// (e.g. "cache:rest:").
func NewReadThroughCache(rdb *redis.Client, prefix string) *ReadThroughCache {
	return &ReadThroughCache{rdb: rdb, prefix: prefix}
}

func (c *ReadThroughCache) fullKey(key string) string {
	return c.prefix + key
}

// Get decodes a cached value into out. The bool return is true only on
// a cache hit; a miss or error leaves out untouched.
func (c *ReadThroughCache) Get(ctx context.Context, key string, out any) (bool, error) {
	raw, err := c.rdb.Get(ctx, c.fullKey(key)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key with the given TTL.
func (c *ReadThroughCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, c.fullKey(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Invalidate deletes key and publishes an invalidation notice so other
// processes sharing this cache drop their copy immediately (a process
// with no local copy simply ignores the message).
func (c *ReadThroughCache) Invalidate(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("cache invalidate %s: %w", key, err)
	}
	return c.rdb.Publish(ctx, c.invalidationChannel(), key).Err()
}

func (c *ReadThroughCache) invalidationChannel() string {
	return c.prefix + "invalidate"
}

// Subscribe listens for invalidation notices published by Invalidate
// (from this or any other process) and evicts the matching key from
// this process's view of the cache — a no-op beyond the Del/Publish
// pair above since Redis itself is the source of truth, but it lets a
// caller hook a local in-memory mirror (none exists yet; reserved for
// a future optimization) into the same invalidation stream.
func (c *ReadThroughCache) Subscribe(ctx context.Context, onInvalidate func(key string)) error {
	sub := c.rdb.Subscribe(ctx, c.invalidationChannel())
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				onInvalidate(msg.Payload)
			}
		}
	}()
	return nil
}
