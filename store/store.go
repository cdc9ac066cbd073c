// Package store provides the shared counter storage used by the admission
// gates. Counters are plain integers with an optional expiry; every mutation
// that the gates perform refreshes that expiry so abandoned counters heal
// themselves.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotInteger is returned when a counter key holds a non-integer value.
	ErrNotInteger = errors.New("store: value is not an integer")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store: closed")
)

// Store defines the counter operations the gates rely on.
type Store interface {
	// Get returns the counter value, or 0 if the key does not exist.
	Get(ctx context.Context, key string) (int64, error)

	// IncrWithTTL increments the counter and refreshes its expiry in one batch.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// DecrWithTTL decrements the counter and refreshes its expiry in one batch.
	DecrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// DecrFloorWithTTL decrements the counter without letting it drop below
	// zero and refreshes its expiry, as one atomic step.
	DecrFloorWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Set overwrites the counter. A ttl <= 0 stores the key without expiry.
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error

	// SetNX stores value only if key does not exist and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Keys returns keys matching a Redis-style glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
