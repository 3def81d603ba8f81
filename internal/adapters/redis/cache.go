package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Cache wraps the shared redis client used by the rate limiter and the
// idempotency replay store. Seat state itself never touches redis; the
// registry is the single in-process authority.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
