package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erp/dispensing/internal/domain/dispensing"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultPrivilegePrefix = "dispensing:privilege:"

// InMemoryPrivilegeCache keeps resolved privileges per operator key
type InMemoryPrivilegeCache struct {
	mu      sync.RWMutex
	entries map[string]privilegeEntry
	now     func() time.Time
}

type privilegeEntry struct {
	snapshot  dispensing.PrivilegeSnapshot
	expiresAt time.Time
}

// NewInMemoryPrivilegeCache creates an empty cache
func NewInMemoryPrivilegeCache() *InMemoryPrivilegeCache {
	return &InMemoryPrivilegeCache{
		entries: make(map[string]privilegeEntry),
		now:     time.Now,
	}
}

// Get returns nil, nil on a miss or expired entry
func (c *InMemoryPrivilegeCache) Get(ctx context.Context, key string) (*dispensing.PrivilegeSnapshot, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(e.expiresAt) {
		return nil, nil
	}
	snap := e.snapshot
	snap.Roles = append([]string(nil), e.snapshot.Roles...)
	return &snap, nil
}

// Set stores a copy of snap for ttl
func (c *InMemoryPrivilegeCache) Set(ctx context.Context, key string, snap *dispensing.PrivilegeSnapshot, ttl time.Duration) error {
	if snap == nil || ttl <= 0 {
		return nil
	}
	stored := *snap
	stored.Roles = append([]string(nil), snap.Roles...)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = privilegeEntry{snapshot: stored, expiresAt: c.now().Add(ttl)}
	return nil
}

// Delete drops the entry for key
func (c *InMemoryPrivilegeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// RedisPrivilegeCache stores privilege snapshots as JSON
type RedisPrivilegeCache struct {
	client    redis.Cmdable
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisPrivilegeCache wraps an existing client
func NewRedisPrivilegeCache(client redis.Cmdable, logger *zap.Logger) *RedisPrivilegeCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPrivilegeCache{client: client, keyPrefix: defaultPrivilegePrefix, logger: logger}
}

// Get returns nil, nil on a miss
func (c *RedisPrivilegeCache) Get(ctx context.Context, key string) (*dispensing.PrivilegeSnapshot, error) {
	cacheKey := c.keyPrefix + key

	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get privilege from cache: %w", err)
	}

	var snap dispensing.PrivilegeSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Warn("dropping corrupted privilege entry", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, cacheKey)
		return nil, fmt.Errorf("failed to unmarshal privilege: %w", err)
	}
	return &snap, nil
}

// Set stores snap for ttl
func (c *RedisPrivilegeCache) Set(ctx context.Context, key string, snap *dispensing.PrivilegeSnapshot, ttl time.Duration) error {
	if snap == nil || ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal privilege: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set privilege in cache: %w", err)
	}
	return nil
}

// Delete drops the entry for key
func (c *RedisPrivilegeCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.keyPrefix+key).Err()
}
