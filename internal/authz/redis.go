package authz

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "identity:role:"

// RedisCache is a Cache shared across instances, backed by Redis. Failures
// degrade to cache misses; storage stays authoritative.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache creates a Redis-backed role cache.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func redisKey(userID int64) string {
	return redisKeyPrefix + strconv.FormatInt(userID, 10)
}

// Get returns the cached role for the user, if present.
func (c *RedisCache) Get(ctx context.Context, userID int64) (string, bool) {
	role, err := c.client.Get(ctx, redisKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "role cache get failed",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		return "", false
	}
	return role, true
}

// Set stores the role for the user.
func (c *RedisCache) Set(ctx context.Context, userID int64, role string) {
	if err := c.client.Set(ctx, redisKey(userID), role, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "role cache set failed",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// Remove drops the cached role for the user.
func (c *RedisCache) Remove(ctx context.Context, userID int64) {
	if err := c.client.Del(ctx, redisKey(userID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "role cache remove failed",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// Clear drops every cached role entry.
func (c *RedisCache) Clear(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.WarnContext(ctx, "role cache clear failed",
				slog.String("key", iter.Val()),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.WarnContext(ctx, "role cache scan failed",
			slog.String("error", err.Error()),
		)
	}
}
