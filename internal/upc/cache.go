package upc

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const cacheKeyPrefix = "upc:lookup:"

// CacheBackend is the subset of *redis.Client used by CachedClient.
type CacheBackend interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedClient memoizes successful, non-empty lookups in Redis. Cache
// failures are logged and never fail the lookup.
type CachedClient struct {
	next   Client
	cache  CacheBackend
	ttl    time.Duration
	logger zerolog.Logger
}

var _ Client = (*CachedClient)(nil)

// NewCachedClient wraps next with a Redis-backed cache.
func NewCachedClient(next Client, cache CacheBackend, ttl time.Duration, logger zerolog.Logger) *CachedClient {
	return &CachedClient{next: next, cache: cache, ttl: ttl, logger: logger}
}

// Lookup serves barcode from the cache when present, otherwise delegates.
func (c *CachedClient) Lookup(ctx context.Context, barcode string) (*Result, error) {
	key := cacheKeyPrefix + barcode

	raw, err := c.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached Result
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return &cached, nil
		}
		c.logger.Warn().Str("key", key).Msg("upc cache: discarding undecodable entry")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Str("key", key).Msg("upc cache: get failed")
	}

	result, err := c.next.Lookup(ctx, barcode)
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return result, nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return result, nil
	}
	if err := c.cache.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("upc cache: set failed")
	}
	return result, nil
}
