package entitlement

import (
	"context"
	"errors"
	"time"

	"github.com/musician-app/apiserver/config"
	"github.com/musician-app/apiserver/types"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "entitlement:"

// RedisCache is a shared TTL cache for multi-instance deployments.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache constructs a Redis-backed cache from config.
func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *RedisCache) Get(ctx context.Context, platformUserID string) (types.Tier, bool, error) {
	value, err := c.client.Get(ctx, redisKeyPrefix+platformUserID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	tier := types.Tier(value)
	if !tier.Valid() {
		return "", false, nil
	}
	return tier, true, nil
}

func (c *RedisCache) Set(ctx context.Context, platformUserID string, tier types.Tier, ttl time.Duration) error {
	return c.client.Set(ctx, redisKeyPrefix+platformUserID, string(tier), ttl).Err()
}

// Close closes the underlying Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
