package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultIdempotencyPrefix = "dispensing:submit:"

// RedisIdempotencyStore shares submission claims across instances
type RedisIdempotencyStore struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisIdempotencyStore wraps an existing client
func NewRedisIdempotencyStore(client redis.Cmdable, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultIdempotencyPrefix
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

// Claim uses SETNX so only one caller wins the key until ttl expires
func (s *RedisIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim submission key: %w", err)
	}
	return ok, nil
}

// Release deletes the claim
func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release submission key: %w", err)
	}
	return nil
}
