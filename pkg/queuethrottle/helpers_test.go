package queuethrottle

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/queuethrottle/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	// Aligned to a minute boundary so window math is easy to follow.
	return &fakeClock{now: time.Unix(1_700_000_040, 0)}
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

var errStoreDown = errors.New("store down")

// flakyStore fails selected operations of a wrapped store.
type flakyStore struct {
	store.Store

	mu       sync.Mutex
	failGet  bool
	failIncr bool
	failDecr bool
	// failPrefix makes Get fail only for keys with this prefix.
	failPrefix string
}

func (s *flakyStore) set(get, incr, decr bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGet, s.failIncr, s.failDecr = get, incr, decr
}

func (s *flakyStore) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	fail := s.failGet || (s.failPrefix != "" && strings.HasPrefix(key, s.failPrefix))
	s.mu.Unlock()
	if fail {
		return 0, errStoreDown
	}
	return s.Store.Get(ctx, key)
}

func (s *flakyStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	fail := s.failIncr
	s.mu.Unlock()
	if fail {
		return 0, errStoreDown
	}
	return s.Store.IncrWithTTL(ctx, key, ttl)
}

func (s *flakyStore) DecrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	fail := s.failDecr
	s.mu.Unlock()
	if fail {
		return 0, errStoreDown
	}
	return s.Store.DecrWithTTL(ctx, key, ttl)
}

func (s *flakyStore) DecrFloorWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	fail := s.failDecr
	s.mu.Unlock()
	if fail {
		return 0, errStoreDown
	}
	return s.Store.DecrFloorWithTTL(ctx, key, ttl)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
