package service

import (
	"context"
	"time"

	"github.com/dethiai/dethiai-backend/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache is a best-effort string cache. Misses and backend failures look the
// same to callers; the database stays the source of truth.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

type redisCache struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisCache wraps a Redis client as a Cache. Backend errors are logged
// and swallowed so a Redis outage degrades to cache misses.
func NewRedisCache(client *redis.Client, log zerolog.Logger) Cache {
	return &redisCache{
		client: client,
		log:    logger.Component(log, "cache"),
	}
}

func (c *redisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		}
		return "", false
	}
	return val, true
}

func (c *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

func (c *redisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache delete failed")
	}
}
