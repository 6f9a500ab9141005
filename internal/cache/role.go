package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tasklane/tasklane/internal/model"
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// GetRole returns the cached role for a user, or ErrCacheMiss.
func (c *Cache) GetRole(ctx context.Context, userID string) (model.Role, error) {
	val, err := c.client.Get(ctx, key("role", userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("redis get role: %w", err)
	}
	return model.Role(val), nil
}

// SetRole caches a resolved role. An empty role is stored as well so that
// users without metadata do not trigger a provider lookup on every request.
func (c *Cache) SetRole(ctx context.Context, userID string, role model.Role, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, key("role", userID), string(role), ttl).Err(); err != nil {
		return fmt.Errorf("redis set role: %w", err)
	}
	return nil
}
