package cache

import (
	"context"

	appcashdesk "github.com/clinicdesk/backend/internal/application/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/clinicdesk/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backends are the coordination primitives of the cash desk services
type Backends struct {
	Locker      appcashdesk.SessionLocker
	Idempotency shared.IdempotencyStore
	// Client is the shared Redis client, nil for the in-memory backend
	Client *redis.Client
}

// Close releases the idempotency store and the Redis client
func (b *Backends) Close() error {
	if b.Idempotency != nil {
		_ = b.Idempotency.Close()
	}
	return nil
}

// Factory builds Backends from configuration
type Factory struct {
	redisConfig           config.RedisConfig
	cashdeskConfig        config.CashdeskConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory backends when Redis is unavailable.
// Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(redisCfg config.RedisConfig, cashdeskCfg config.CashdeskConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           redisCfg,
		cashdeskConfig:        cashdeskCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// InMemory returns process-local backends
func (f *Factory) InMemory() *Backends {
	return &Backends{
		Locker:      NewInMemorySessionLocker(),
		Idempotency: NewInMemoryIdempotencyStore(),
	}
}

// Create returns Redis backends when lock_backend is "redis", falling back to in-memory
// when Redis is unreachable and fallback is allowed
func (f *Factory) Create() (*Backends, error) {
	if f.cashdeskConfig.LockBackend != "redis" {
		f.logger.Info("using in-memory session locks and idempotency store")
		return f.InMemory(), nil
	}

	client, err := NewRedisClient(context.Background(), f.redisConfig)
	if err != nil {
		if !f.allowInMemoryFallback {
			return nil, err
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory session locks. "+
			"Sites are then only serialised within this instance.",
			zap.Error(err),
		)
		return f.InMemory(), nil
	}

	f.logger.Info("using Redis session locks and idempotency store")
	return &Backends{
		Locker: NewRedisSessionLocker(client,
			WithLockTTL(f.cashdeskConfig.LockTTL),
			WithLockerLogger(f.logger)),
		Idempotency: NewRedisIdempotencyStoreWithClient(client, ""),
		Client:      client,
	}, nil
}
