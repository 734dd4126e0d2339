package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlibekovAA/panel-auth/internal/common/clock"
	"github.com/AlibekovAA/panel-auth/internal/common/constants"
	"github.com/AlibekovAA/panel-auth/internal/common/crypto"
)

const redisLenTimeout = time.Second

// RedisCache shares revocations between instances. Keys expire together
// with the token they describe, so PurgeExpired has nothing to do.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	clock  clock.Clock
}

func NewRedisCache(client redis.UniversalClient, prefix string, clk clock.Clock) *RedisCache {
	if prefix == "" {
		prefix = constants.RedisRevocationKeyPrefix
	}
	return &RedisCache{client: client, prefix: prefix, clock: clk}
}

// NewRedisClient parses a redis:// URL and checks connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (c *RedisCache) key(token string) string {
	return c.prefix + crypto.HashToken(token)
}

func (c *RedisCache) Add(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(c.clock.Now())
	if ttl <= 0 {
		return nil
	}
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	if err := c.client.SetNX(ctx, c.key(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to add revoked token: %w", err)
	}
	return nil
}

func (c *RedisCache) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return n > 0, nil
}

func (c *RedisCache) PurgeExpired(context.Context) (int, error) {
	return 0, nil
}

// Len counts keys under the prefix with SCAN. It returns 0 if redis is
// unreachable.
func (c *RedisCache) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), redisLenTimeout)
	defer cancel()

	count := 0
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if iter.Err() != nil {
		return 0
	}
	return count
}
