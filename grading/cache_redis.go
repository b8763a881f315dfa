package grading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces report keys, e.g. "grade_example.com".
const DefaultKeyPrefix = "grade_"

// RedisCache shares reports between service instances through Redis.
// Keys are written without a TTL: stale entries are bypassed by the reader
// and overwritten by the next fresh report.
type RedisCache struct {
	client redis.Cmdable
	prefix string
	hint   time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache wraps a connected client.
func NewRedisCache(client redis.Cmdable, prefix string, hint time.Duration) *RedisCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if hint <= 0 {
		hint = DefaultFreshness
	}
	return &RedisCache{client: client, prefix: prefix, hint: hint}
}

// OpenRedis parses a redis:// or rediss:// URL, connects and pings.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *RedisCache) key(domain string) string {
	return c.prefix + domain
}

// Get loads the entry stored for domain.
func (c *RedisCache) Get(ctx context.Context, domain string) (CacheEntry, bool, error) {
	raw, err := c.client.Get(ctx, c.key(domain)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return CacheEntry{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return entry, true, nil
}

// Put stores report under domain, replacing any previous entry.
func (c *RedisCache) Put(ctx context.Context, domain string, report GradeReport) error {
	entry := CacheEntry{Report: report, ExpiresHint: report.ComputedAt.Add(c.hint)}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.key(domain), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
