package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lectureqa/backend/internal/logger"
)

// Cache is a thin Redis string cache. It is best-effort: read and write
// failures degrade to misses rather than surfacing errors to callers.
type Cache struct {
	client *redis.Client
	log    *logger.Logger
}

func New(addr string) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log := logger.WithComponent("cache")
	log.Info(ctx, "connected to redis", map[string]interface{}{"addr": addr})
	return &Cache{client: client, log: log}, nil
}

// NewFromClient wraps an existing Redis client so the cache can share the
// connection pool used by the job status registry.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client, log: logger.WithComponent("cache")}
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.log.Warn(ctx, "cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return "", false
	}
	return val, true
}

func (c *Cache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	err := c.client.Set(ctx, key, value, ttl).Err()
	if err != nil {
		c.log.Warn(ctx, "cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		return err
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
