package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pairbond/pairbond/internal/config"
)

// StatsTTL bounds how stale the cached queue statistics may get.
const StatsTTL = 30 * time.Second

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// KeyQueueSize is the cache key for the current waiting-pool size.
func (c *RedisCache) KeyQueueSize() string { return "queue:size" }

// KeyQueueStats is the cache key for the serialized queue statistics.
func (c *RedisCache) KeyQueueStats() string { return "queue:stats" }

// SetQueueSize caches the waiting-pool size with the stats TTL.
func (c *RedisCache) SetQueueSize(ctx context.Context, size int64) error {
	return c.Client.Set(ctx, c.KeyQueueSize(), size, StatsTTL).Err()
}

// GetQueueSize returns the cached pool size, or ok=false on a miss.
func (c *RedisCache) GetQueueSize(ctx context.Context) (int64, bool, error) {
	val, err := c.Client.Get(ctx, c.KeyQueueSize()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil // treat garbage as a miss
	}
	return n, true, nil
}

// InvalidateQueueStats drops the cached statistics snapshot after a queue
// mutation so readers never see a stale aggregate past the TTL window.
func (c *RedisCache) InvalidateQueueStats(ctx context.Context) error {
	return c.Client.Del(ctx, c.KeyQueueStats()).Err()
}
