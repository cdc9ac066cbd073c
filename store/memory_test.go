package store

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	v, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestMemoryStore_IncrDecr(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i := 1; i <= 3; i++ {
		v, err := s.IncrWithTTL(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(i), v)
	}

	v, err := s.DecrWithTTL(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
}

func TestMemoryStore_DecrBelowZero(t *testing.T) {
	s := NewMemoryStore()
	v, err := s.DecrWithTTL(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemoryStore(WithClock(clock.Now))

	_, err := s.IncrWithTTL(ctx, "k", 10*time.Second)
	require.NoError(t, err)

	ttl, ok := s.TTL("k")
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, ttl)

	clock.Advance(9 * time.Second)
	v, _ := s.Get(ctx, "k")
	assert.Equal(t, int64(1), v)

	clock.Advance(time.Second)
	v, _ = s.Get(ctx, "k")
	assert.Equal(t, int64(0), v, "key should expire once its TTL elapses")
}

func TestMemoryStore_MutationRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemoryStore(WithClock(clock.Now))

	_, _ = s.IncrWithTTL(ctx, "k", 10*time.Second)
	clock.Advance(8 * time.Second)
	_, _ = s.IncrWithTTL(ctx, "k", 10*time.Second)
	clock.Advance(8 * time.Second)

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestMemoryStore_SetAndSetNX(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "k", 42, 0))
	v, _ := s.Get(ctx, "k")
	assert.Equal(t, int64(42), v)

	ttl, ok := s.TTL("k")
	assert.True(t, ok)
	assert.Zero(t, ttl, "ttl <= 0 stores without expiry")

	set, err := s.SetNX(ctx, "lease", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = s.SetNX(ctx, "lease", "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, set)
}

func TestMemoryStore_GetNonInteger(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, _ = s.SetNX(ctx, "lease", "holder", 0)
	_, err := s.Get(ctx, "lease")
	assert.ErrorIs(t, err, ErrNotInteger)
}

func TestMemoryStore_KeysAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_ = s.Set(ctx, "p:queue-lock:a", 1, 0)
	_, _ = s.SetNX(ctx, "p:queue-lock:a:lease:1", "1", 0)
	_, _ = s.SetNX(ctx, "p:queue-lock:a:lease:2", "1", 0)
	_ = s.Set(ctx, "p:queue-lock:b", 1, 0)

	keys, err := s.Keys(ctx, "p:queue-lock:a:lease:*")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"p:queue-lock:a:lease:1", "p:queue-lock:a:lease:2"}, keys)

	require.NoError(t, s.Delete(ctx, keys...))
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemoryStore(WithClock(clock.Now))

	_, _ = s.IncrWithTTL(ctx, "short", time.Second)
	_, _ = s.IncrWithTTL(ctx, "long", time.Hour)

	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, s.Cleanup())
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_StartBackgroundCleanup(t *testing.T) {
	s := NewMemoryStore()

	stop := s.StartBackgroundCleanup(0)
	stop() // disabled cleanup returns a no-op

	stop = s.StartBackgroundCleanup(10 * time.Millisecond)
	stop()
	stop() // stopping twice is safe
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	_, err := s.IncrWithTTL(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Ping(ctx), ErrClosed)
}

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg conc.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Go(func() {
			_, _ = s.IncrWithTTL(ctx, "k", time.Minute)
		})
	}
	wg.Wait()

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(100), v)
}

func TestMemoryStore_DecrFloorWithTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemoryStore(WithClock(clock.Now))

	_, _ = s.IncrWithTTL(ctx, "k", time.Hour)

	v, err := s.DecrFloorWithTTL(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	v, err = s.DecrFloorWithTTL(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v, "never below zero")

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	ttl, ok := s.TTL("k")
	require.True(t, ok)
	assert.Equal(t, time.Minute, ttl)
}

func TestMemoryStore_KeysMatchAcrossSlashes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, _ = s.SetNX(ctx, "p:queue-lock:a:lease:host/1:100:1", "1", 0)
	_, _ = s.SetNX(ctx, "p:queue-lock:a:lease:host-2:100:1", "1", 0)

	keys, err := s.Keys(ctx, "p:queue-lock:a:lease:*")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}
