package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore provides Redis-backed counter storage shared by every worker
// process that points at the same Redis.
type RedisStore struct {
	client redis.UniversalClient
}

// Ensure RedisStore implements Store interface
var _ Store = (*RedisStore)(nil)

// RedisConfig for creating a Redis store
type RedisConfig struct {
	Addr     string // Redis address (e.g., "localhost:6379")
	Password string // Redis password (empty for no auth)
	DB       int    // Redis database number
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(config RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisStore{client: client}
}

// NewRedisStoreWithClient wraps an existing client. Close closes the client.
func NewRedisStoreWithClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Client returns the underlying Redis client.
func (s *RedisStore) Client() redis.UniversalClient { return s.client }

// Get returns the counter value for key, or 0 if it does not exist.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: get %s: %w", key, err)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: key %s", ErrNotInteger, key)
	}
	return v, nil
}

// IncrWithTTL runs INCR and EXPIRE inside one MULTI/EXEC.
func (s *RedisStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return s.add(ctx, key, 1, ttl)
}

// DecrWithTTL runs DECR and EXPIRE inside one MULTI/EXEC.
func (s *RedisStore) DecrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return s.add(ctx, key, -1, ttl)
}

// decrFloorScript decrements KEYS[1], resets it to 0 if that made it
// negative, and sets a PEXPIRE of ARGV[1] milliseconds when positive.
var decrFloorScript = redis.NewScript(`
local n = redis.call('DECR', KEYS[1])
if n < 0 then
  redis.call('SET', KEYS[1], '0')
  n = 0
end
if tonumber(ARGV[1]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// DecrFloorWithTTL decrements key without going below zero. The repair runs
// inside the same script so a concurrent INCR cannot be lost.
func (s *RedisStore) DecrFloorWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := decrFloorScript.Run(ctx, s.client, []string{key}, max(ttl.Milliseconds(), 0)).Int64()
	if err != nil {
		return 0, fmt.Errorf("store: decr %s: %w", key, err)
	}
	return n, nil
}

func (s *RedisStore) add(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	var cmd *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if delta > 0 {
			cmd = pipe.Incr(ctx, key)
		} else {
			cmd = pipe.Decr(ctx, key)
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: add %d to %s: %w", delta, key, err)
	}
	return cmd.Val(), nil
}

// Set overwrites the counter value for key.
func (s *RedisStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}

// SetNX stores value under key only if key is absent.
func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("store: setnx %s: %w", key, err)
	}
	return ok, nil
}

// Delete removes the given keys.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("store: del: %w", err)
	}
	return nil
}

// Keys scans for keys matching pattern. SCAN is used instead of KEYS so a
// large keyspace does not block the server.
func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("store: scan %s: %w", pattern, err)
	}
	return keys, nil
}

// Ping checks if Redis connection is alive
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
