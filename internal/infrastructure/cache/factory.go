package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/dispensing/internal/domain/dispensing"
	"github.com/erp/dispensing/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IdempotencyStore claims a key for a bounded time
type IdempotencyStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// PrivilegeCache stores resolved operator privileges
type PrivilegeCache interface {
	Get(ctx context.Context, key string) (*dispensing.PrivilegeSnapshot, error)
	Set(ctx context.Context, key string, snap *dispensing.PrivilegeSnapshot, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

var (
	_ IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
	_ IdempotencyStore = (*RedisIdempotencyStore)(nil)
	_ PrivilegeCache   = (*InMemoryPrivilegeCache)(nil)
	_ PrivilegeCache   = (*RedisPrivilegeCache)(nil)
)

// Stores bundles the caches the dispensing service depends on
type Stores struct {
	Idempotency IdempotencyStore
	Privileges  PrivilegeCache
	Backend     string

	closers []func() error
}

// Close releases the underlying connections
func (s *Stores) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FactoryOption configures NewStores
type FactoryOption func(*factory)

type factory struct {
	logger                *zap.Logger
	allowInMemoryFallback bool
	pingTimeout           time.Duration
}

// WithLogger sets the logger used to report fallbacks
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to in-memory stores.
// Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStores builds Redis-backed stores when Redis is enabled and reachable,
// otherwise in-memory ones.
func NewStores(cfg config.RedisConfig, opts ...FactoryOption) (*Stores, error) {
	f := &factory{
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		pingTimeout:           5 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}

	if cfg.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), f.pingTimeout)
		err := client.Ping(ctx).Err()
		cancel()
		if err == nil {
			f.logger.Info("using Redis caches", zap.String("addr", cfg.Addr()))
			return &Stores{
				Idempotency: NewRedisIdempotencyStore(client, ""),
				Privileges:  NewRedisPrivilegeCache(client, f.logger),
				Backend:     "redis",
				closers:     []func() error{client.Close},
			}, nil
		}
		_ = client.Close()
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory caches; duplicate submissions are only guarded per instance",
			zap.Error(err))
	}

	idem := NewInMemoryIdempotencyStore()
	return &Stores{
		Idempotency: idem,
		Privileges:  NewInMemoryPrivilegeCache(),
		Backend:     "memory",
		closers:     []func() error{idem.Close},
	}, nil
}
