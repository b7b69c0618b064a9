package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"training-service/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient is a thin JSON cache over Redis, used for read-mostly payloads
// like the leaderboard page. The service degrades to direct database reads
// when Redis is unavailable.
type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(cfg *config.RedisConfig) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

func (c *RedisClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// SetJSON stores value JSON-encoded under key with the given TTL.
func (c *RedisClient) SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

// GetJSON loads the value stored under key into out. Returns redis.Nil
// wrapped in the error chain on a cache miss.
func (c *RedisClient) GetJSON(ctx context.Context, key string, out any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return fmt.Errorf("cache read %s: %w", key, err)
	}
	return json.Unmarshal(data, out)
}
