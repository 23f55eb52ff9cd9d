package cache

import (
	"context"
	"sync"
	"time"

	"github.com/clinicdesk/backend/internal/domain/shared"
)

const idempotencySweepInterval = 5 * time.Minute

type remembered struct {
	value   string
	expires time.Time
}

func (r remembered) live(now time.Time) bool { return now.Before(r.expires) }

// InMemoryIdempotencyStore keeps keys in process memory.
// Replays are only recognised by the instance that saw the first request.
type InMemoryIdempotencyStore struct {
	mu    sync.RWMutex
	keys  map[string]remembered
	now   func() time.Time
	stop  context.CancelFunc
	done  chan struct{}
	once  sync.Once
}

// NewInMemoryIdempotencyStore starts a store with a background sweeper. Call Close to stop it.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &InMemoryIdempotencyStore{
		keys: make(map[string]remembered),
		now:  time.Now,
		stop: cancel,
		done: make(chan struct{}),
	}
	go s.sweep(ctx)
	return s
}

func (s *InMemoryIdempotencyStore) Remember(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if r, ok := s.keys[key]; ok && r.live(now) {
		return false, nil
	}
	s.keys[key] = remembered{value: value, expires: now.Add(ttl)}
	return true, nil
}

func (s *InMemoryIdempotencyStore) Lookup(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.keys[key]
	if !ok || !r.live(s.now()) {
		return "", false, nil
	}
	return r.value, true, nil
}

func (s *InMemoryIdempotencyStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.keys, key)
	s.mu.Unlock()
	return nil
}

// Close stops the sweeper. It is idempotent.
func (s *InMemoryIdempotencyStore) Close() error {
	s.once.Do(func() {
		s.stop()
		<-s.done
	})
	return nil
}

func (s *InMemoryIdempotencyStore) sweep(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(idempotencySweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup drops expired keys
func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, r := range s.keys {
		if !r.live(now) {
			delete(s.keys, k)
		}
	}
}

// Size counts stored keys, expired ones included until the next sweep
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
