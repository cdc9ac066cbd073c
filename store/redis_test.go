package store

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStore(RedisConfig{Addr: mr.Addr()})
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore_Ping(t *testing.T) {
	s, _ := newTestRedisStore(t)
	require.NoError(t, s.Ping(context.Background()))
}

func TestRedisStore_IncrDecrWithTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	v, err := s.IncrWithTTL(ctx, "qt:queue-lock:mailers", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = s.IncrWithTTL(ctx, "qt:queue-lock:mailers", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	assert.Equal(t, time.Hour, mr.TTL("qt:queue-lock:mailers"))

	v, err = s.DecrWithTTL(ctx, "qt:queue-lock:mailers", 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.Equal(t, 30*time.Minute, mr.TTL("qt:queue-lock:mailers"), "decrement refreshes ttl")
}

func TestRedisStore_GetMissingAndExpired(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	v, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	_, err = s.IncrWithTTL(ctx, "k", 5*time.Second)
	require.NoError(t, err)

	mr.FastForward(6 * time.Second)
	v, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestRedisStore_GetNonInteger(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	require.NoError(t, mr.Set("k", "not-a-number"))
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotInteger)
}

func TestRedisStore_SetAndSetNX(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	require.NoError(t, s.Set(ctx, "k", 0, time.Minute))
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "0", got)

	ok, err := s.SetNX(ctx, "lease", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetNX(ctx, "lease", "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_KeysAndDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	for _, k := range []string{"p:queue-lock:a:lease:1", "p:queue-lock:a:lease:2", "p:queue-lock:b:lease:1"} {
		require.NoError(t, mr.Set(k, "1"))
	}

	keys, err := s.Keys(ctx, "p:queue-lock:a:lease:*")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"p:queue-lock:a:lease:1", "p:queue-lock:a:lease:2"}, keys)

	require.NoError(t, s.Delete(ctx, keys...))
	require.NoError(t, s.Delete(ctx))
	assert.False(t, mr.Exists("p:queue-lock:a:lease:1"))
	assert.True(t, mr.Exists("p:queue-lock:b:lease:1"))
}

func TestRedisStore_WithClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreWithClient(client)
	defer s.Close()

	assert.Same(t, client, s.Client())
	require.NoError(t, s.Ping(context.Background()))
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(RedisConfig{Addr: mr.Addr()})
	defer s.Close()
	mr.Close()

	_, err := s.IncrWithTTL(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}

func TestRedisStore_DecrFloorWithTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	_, err := s.IncrWithTTL(ctx, "qt:job-concurrency:SyncJob:u1", time.Hour)
	require.NoError(t, err)

	v, err := s.DecrFloorWithTTL(ctx, "qt:job-concurrency:SyncJob:u1", 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
	assert.Equal(t, 30*time.Minute, mr.TTL("qt:job-concurrency:SyncJob:u1"))

	v, err = s.DecrFloorWithTTL(ctx, "qt:job-concurrency:SyncJob:u1", 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v, "never below zero")

	got, err := s.Get(ctx, "qt:job-concurrency:SyncJob:u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	// A missing key is created at zero rather than -1.
	v, err = s.DecrFloorWithTTL(ctx, "qt:queue-lock:fresh", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
	assert.Equal(t, time.Hour, mr.TTL("qt:queue-lock:fresh"))
}
