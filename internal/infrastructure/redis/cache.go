package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-api-assets/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// Cache is the key-value store backing sessions and rate-limit counters.
type Cache struct {
	client goredis.UniversalClient // works with both single and cluster
}

func NewCache(client goredis.UniversalClient) *Cache {
	return &Cache{client: client}
}

// Get returns the value at key, or an error wrapping domain.ErrNotFound.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", fmt.Errorf("cache key %s: %w", key, domain.ErrNotFound)
	}
	return v, err
}

// Set stores value at key. A zero ttl stores the key without expiry.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Del removes key and reports whether anything was deleted.
func (c *Cache) Del(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TTL returns the remaining lifetime of key. Keys without expiry report 0;
// missing keys report an error wrapping domain.ErrNotFound.
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	switch {
	case d == -2 || d == -2*time.Second:
		return 0, fmt.Errorf("cache key %s: %w", key, domain.ErrNotFound)
	case d < 0:
		return 0, nil
	}
	return d, nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
