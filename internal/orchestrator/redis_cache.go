package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
	"github.com/ctxforge/contextstore/internal/telemetry"
)

// RedisCache is the optional Redis-backed ResponseCache (C17), grounded on
// the teacher's internal/skills RedisSkillsCache idiom: a thin wrapper over
// redis.UniversalClient with a key prefix, TTL-per-Set, and best-effort
// error logging rather than surfaced errors (a cache miss is always a safe
// fallback to a fresh Retrieve).
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisCache(addr, password string, db int, prefix string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "contextstore:response:"
	}
	return &RedisCache{client: client, prefix: prefix}, nil
}

func (c *RedisCache) key(k string) string { return c.prefix + k }

func (c *RedisCache) Get(ctx context.Context, key string) (ctxmodel.ContextResponse, bool) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			telemetry.LoggerWithTrace(ctx).Debug().Err(err).Msg("redis_response_cache_get_failed")
		}
		return ctxmodel.ContextResponse{}, false
	}
	var resp ctxmodel.ContextResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		telemetry.LoggerWithTrace(ctx).Warn().Err(err).Msg("redis_response_cache_decode_failed")
		return ctxmodel.ContextResponse{}, false
	}
	return resp, true
}

func (c *RedisCache) Set(ctx context.Context, key string, resp ctxmodel.ContextResponse, ttl time.Duration) {
	data, err := json.Marshal(resp)
	if err != nil {
		telemetry.LoggerWithTrace(ctx).Warn().Err(err).Msg("redis_response_cache_encode_failed")
		return
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		telemetry.LoggerWithTrace(ctx).Debug().Err(err).Msg("redis_response_cache_set_failed")
	}
}

// Invalidate drops every key under this cache's prefix. Response cache
// invalidation is rare enough (one per Store call) that a SCAN+DEL sweep is
// acceptable rather than tracking keys separately.
func (c *RedisCache) Invalidate(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			telemetry.LoggerWithTrace(ctx).Debug().Err(err).Str("key", iter.Val()).Msg("redis_response_cache_invalidate_failed")
		}
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
