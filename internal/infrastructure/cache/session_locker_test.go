package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemorySessionLocker_SerialisesOneKey(t *testing.T) {
	locker := NewInMemorySessionLocker()
	ctx := context.Background()

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "site-a")
			require.NoError(t, err)
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
	assert.Equal(t, 0, locker.Held())
}

func TestInMemorySessionLocker_IndependentKeys(t *testing.T) {
	locker := NewInMemorySessionLocker()
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "site-a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := locker.Lock(ctx, "site-b")
	require.NoError(t, err)
	unlockB()
	unlockB()
}

func TestInMemorySessionLocker_ContextCancel(t *testing.T) {
	locker := NewInMemorySessionLocker()
	unlock, err := locker.Lock(context.Background(), "site-a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "site-a")
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))

	unlock()
	assert.Equal(t, 0, locker.Held())
}

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisSessionLocker_AcquireAndRelease(t *testing.T) {
	mr, client := newMiniredisClient(t)
	locker := NewRedisSessionLocker(client, WithLockTTL(time.Second), WithPollInterval(time.Millisecond))
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "site-a")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:site-a"))

	busyCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(busyCtx, "site-a")
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))

	unlock()
	assert.False(t, mr.Exists("lock:site-a"))

	unlock2, err := locker.Lock(ctx, "site-a")
	require.NoError(t, err)
	unlock2()
}

func TestRedisSessionLocker_ReleaseKeepsForeignLock(t *testing.T) {
	mr, client := newMiniredisClient(t)
	locker := NewRedisSessionLocker(client, WithLockTTL(time.Second))
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "site-a")
	require.NoError(t, err)

	// the lock expired and another holder took it
	require.NoError(t, mr.Set("lock:site-a", "someone-else"))
	unlock()

	value, err := mr.Get("lock:site-a")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}

func TestRedisIdempotencyStore(t *testing.T) {
	_, client := newMiniredisClient(t)
	store := NewRedisIdempotencyStoreWithClient(client, "")
	ctx := context.Background()

	isNew, err := store.Remember(ctx, "k", "entry-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = store.Remember(ctx, "k", "entry-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, isNew)

	value, ok, err := store.Lookup(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "entry-1", value)

	require.NoError(t, store.Forget(ctx, "k"))
	_, ok, err = store.Lookup(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
