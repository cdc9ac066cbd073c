package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with key expiry.
// It is safe for concurrent use and suitable for tests and single-process
// deployments; it does not coordinate across processes.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
	closed  bool
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// Ensure MemoryStore implements Store interface
var _ Store = (*MemoryStore)(nil)

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the time source used for expiry. Tests use it to move time
// forward without sleeping.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lookup returns a live entry, evicting it first if it has expired.
// MUST be called with s.mu locked.
func (s *MemoryStore) lookup(key string) (*memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return e, true
}

func (s *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

func (s *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Get returns the counter value for key, or 0 if it does not exist.
func (s *MemoryStore) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return 0, err
	}
	e, ok := s.lookup(key)
	if !ok {
		return 0, nil
	}
	return parseCounter(key, e.value)
}

// IncrWithTTL increments key by one and refreshes its expiry.
func (s *MemoryStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return s.add(ctx, key, 1, ttl, false)
}

// DecrWithTTL decrements key by one and refreshes its expiry.
func (s *MemoryStore) DecrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return s.add(ctx, key, -1, ttl, false)
}

// DecrFloorWithTTL decrements key by one, clamping at zero, and refreshes
// its expiry.
func (s *MemoryStore) DecrFloorWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return s.add(ctx, key, -1, ttl, true)
}

func (s *MemoryStore) add(ctx context.Context, key string, delta int64, ttl time.Duration, floor bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return 0, err
	}

	var current int64
	if e, ok := s.lookup(key); ok {
		v, err := parseCounter(key, e.value)
		if err != nil {
			return 0, err
		}
		current = v
	}

	current += delta
	if floor && current < 0 {
		current = 0
	}
	s.entries[key] = &memoryEntry{
		value:     strconv.FormatInt(current, 10),
		expiresAt: s.expiry(ttl),
	}
	return current, nil
}

// Set overwrites the counter value for key.
func (s *MemoryStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}
	s.entries[key] = &memoryEntry{
		value:     strconv.FormatInt(value, 10),
		expiresAt: s.expiry(ttl),
	}
	return nil
}

// SetNX stores value under key only if key is absent.
func (s *MemoryStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return false, err
	}
	if _, ok := s.lookup(key); ok {
		return false, nil
	}
	s.entries[key] = &memoryEntry{value: value, expiresAt: s.expiry(ttl)}
	return true, nil
}

// Delete removes the given keys.
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

// Keys returns the live keys matching a glob pattern, with the same rules
// as Redis SCAN MATCH.
func (s *MemoryStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var keys []string
	for key := range s.entries {
		if _, ok := s.lookup(key); !ok {
			continue
		}
		if MatchGlob(pattern, key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// TTL returns the remaining lifetime of key. The boolean is false when the
// key is missing; a zero duration with true means the key never expires.
func (s *MemoryStore) TTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return 0, false
	}
	if e.expiresAt.IsZero() {
		return 0, true
	}
	return e.expiresAt.Sub(s.now()), true
}

// Ping always succeeds unless the store is closed.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check(ctx)
}

// Close marks the store closed. Subsequent operations return ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of live keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key := range s.entries {
		if _, ok := s.lookup(key); ok {
			n++
		}
	}
	return n
}

// Cleanup removes expired keys and returns how many were removed.
func (s *MemoryStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if _, ok := s.lookup(key); !ok {
			removed++
		}
	}
	return removed
}

// StartBackgroundCleanup starts a goroutine that periodically removes expired keys.
// Call the returned function to stop the cleanup goroutine.
func (s *MemoryStore) StartBackgroundCleanup(interval time.Duration) func() {
	if interval <= 0 {
		return func() {}
	}

	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-ticker.C:
				s.Cleanup()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}

func parseCounter(key, raw string) (int64, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: key %s", ErrNotInteger, key)
	}
	return v, nil
}
