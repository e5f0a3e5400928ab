// Package cache wraps Redis for the hot paths next to the store: the
// underage cooldown marker and the active session token. The store stays
// authoritative; a cold or broken cache only costs an extra query.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	SessionTokenTTL = 1 * time.Hour

	opTimeout = 2 * time.Second
)

type Cache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(url string, prefix string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{
		client: client,
		prefix: prefix,
	}, nil
}

func (c *Cache) Key(parts ...string) string {
	if c.prefix == "" {
		return strings.Join(parts, ":")
	}
	return c.prefix + ":" + strings.Join(parts, ":")
}

// InCooldown reports whether the user carries a cooldown marker.
func (c *Cache) InCooldown(userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	result, err := c.client.Exists(ctx, c.Key("cooldown", userID)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// MarkCooldown sets the cooldown marker with the given TTL.
func (c *Cache) MarkCooldown(userID string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return c.client.Set(ctx, c.Key("cooldown", userID), "1", ttl).Err()
}

// CacheSessionToken remembers the active session token for a short window
// so granted checks can skip a store read on busy users.
func (c *Cache) CacheSessionToken(userID, token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return c.client.Set(ctx, c.Key("session", userID), token, SessionTokenTTL).Err()
}

// GetSessionToken returns the cached token or "" on a miss.
func (c *Cache) GetSessionToken(userID string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	token, err := c.client.Get(ctx, c.Key("session", userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return token, err
}

// DropSessionToken removes the cached token after deactivation or revoke.
func (c *Cache) DropSessionToken(userID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return c.client.Del(ctx, c.Key("session", userID)).Err()
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
