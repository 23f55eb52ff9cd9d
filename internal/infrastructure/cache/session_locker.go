package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	appcashdesk "github.com/clinicdesk/backend/internal/application/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/clinicdesk/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// InMemorySessionLocker is a keyed mutex. It serialises site mutations within one process.
type InMemorySessionLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewInMemorySessionLocker creates an empty keyed mutex
func NewInMemorySessionLocker() *InMemorySessionLocker {
	return &InMemorySessionLocker{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free or ctx is done
func (l *InMemorySessionLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl, false)
		return nil, shared.NewInfrastructureError("acquire session lock", ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, kl, true) })
	}, nil
}

func (l *InMemorySessionLocker) release(key string, kl *keyLock, held bool) {
	if held {
		<-kl.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// Held returns the number of keys currently tracked
func (l *InMemorySessionLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// releaseScript deletes the lock only if it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSessionLocker serialises site mutations across instances with SET NX PX locks
type RedisSessionLocker struct {
	client       *redis.Client
	keyPrefix    string
	ttl          time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

// RedisLockerOption configures a RedisSessionLocker
type RedisLockerOption func(*RedisSessionLocker)

// WithLockTTL sets how long a lock survives a crashed holder
func WithLockTTL(ttl time.Duration) RedisLockerOption {
	return func(l *RedisSessionLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithPollInterval sets the wait between acquisition attempts
func WithPollInterval(d time.Duration) RedisLockerOption {
	return func(l *RedisSessionLocker) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// WithLockerLogger sets the logger used for release failures
func WithLockerLogger(logger *zap.Logger) RedisLockerOption {
	return func(l *RedisSessionLocker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewRedisSessionLocker creates a locker on an existing client
func NewRedisSessionLocker(client *redis.Client, opts ...RedisLockerOption) *RedisSessionLocker {
	l := &RedisSessionLocker{
		client:       client,
		keyPrefix:    "lock:",
		ttl:          10 * time.Second,
		pollInterval: 25 * time.Millisecond,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock polls SET NX until it owns key or ctx is done
func (l *RedisSessionLocker) Lock(ctx context.Context, key string) (func(), error) {
	ctx, span := telemetry.StartSpan(ctx, "session_lock.acquire",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("lock.key", key))
	defer span.End()

	redisKey := l.keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()
	for attempt := 1; ; attempt++ {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, shared.NewInfrastructureError("acquire session lock", err)
		}
		if ok {
			telemetry.SetAttributes(span, telemetry.SpanAttrAttempt, attempt)
			telemetry.SetOK(span)
			break
		}
		select {
		case <-ctx.Done():
			err := fmt.Errorf("lock %s busy: %w", key, ctx.Err())
			telemetry.RecordError(span, err)
			return nil, shared.NewInfrastructureError("acquire session lock", err)
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warn("Failed to release session lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

var _ appcashdesk.SessionLocker = (*InMemorySessionLocker)(nil)
var _ appcashdesk.SessionLocker = (*RedisSessionLocker)(nil)
