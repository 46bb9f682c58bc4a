// Package cache provides a Redis backed search result cache.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/osa030/voxbox/internal/domain/track"
)

const keyPrefix = "voxbox:search:"

// RedisCache stores search results as JSON under a normalized query key.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache connects to the Redis server at url (redis://host:port/db).
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping failed")
	}
	return NewRedisCacheWithClient(rdb, ttl), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// Get implements search.Cache.
func (c *RedisCache) Get(ctx context.Context, query string) ([]track.Track, bool, error) {
	data, err := c.rdb.Get(ctx, Key(query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}

	var tracks []track.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, false, errors.Wrap(err, "decode cached tracks")
	}
	return tracks, true, nil
}

// Set implements search.Cache.
func (c *RedisCache) Set(ctx context.Context, query string, tracks []track.Track) error {
	data, err := json.Marshal(tracks)
	if err != nil {
		return errors.Wrap(err, "encode tracks")
	}
	if err := c.rdb.Set(ctx, Key(query), data, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// Key returns the cache key for a query: lowercased with collapsed whitespace.
func Key(query string) string {
	return keyPrefix + strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
