// Package cache stores code -> full URL entries in Redis for the redirect fast path.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/shortlinks/internal/config"
	"github.com/sundayezeilo/shortlinks/internal/errx"
)

// DefaultKeyPrefix namespaces link entries inside a Redis database shared with the event bus.
const DefaultKeyPrefix = "link:"

// LinkCache is a Redis-backed code -> URL cache. Entry lifetime is enforced by Redis TTLs.
type LinkCache struct {
	client redis.Cmdable
	prefix string
}

func New(client redis.Cmdable) *LinkCache {
	return &LinkCache{client: client, prefix: DefaultKeyPrefix}
}

func (c *LinkCache) key(code string) string { return c.prefix + code }

// Get returns the cached URL for code. A missing key is ("", false, nil).
// Transport failures and context deadlines are errx.Unavailable.
func (c *LinkCache) Get(ctx context.Context, code string) (string, bool, error) {
	const op = "cache.LinkCache.Get"

	val, err := c.client.Get(ctx, c.key(code)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, errx.E(op, errx.Unavailable, err)
	}
	return val, true, nil
}

// Set stores url under code for ttl, replacing any existing entry.
func (c *LinkCache) Set(ctx context.Context, code, url string, ttl time.Duration) error {
	const op = "cache.LinkCache.Set"

	if ttl <= 0 {
		return errx.Errorf(op, errx.Invalid, "ttl must be positive, got %s", ttl)
	}
	if err := c.client.Set(ctx, c.key(code), url, ttl).Err(); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

// Connect builds a client from cfg and pings it once.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}
