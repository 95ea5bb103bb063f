package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRecordNotFound is returned by Get for an absent or expired key.
	ErrRecordNotFound = errors.New("token record not found")
	// ErrStoreUnavailable wraps every transport-level Redis failure.
	ErrStoreUnavailable = errors.New("token store unavailable")
)

// RedisTokenStore is a thin key/value layer over Redis with per-key TTLs.
// Single-key atomicity of GET, SET EX and DEL is the only consistency it
// relies on.
type RedisTokenStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisTokenStore returns a store writing under prefix. An empty prefix
// stores keys verbatim.
func NewRedisTokenStore(client redis.UniversalClient, prefix string) *RedisTokenStore {
	return &RedisTokenStore{redis: client, prefix: prefix}
}

func (s *RedisTokenStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Set writes value with the given TTL, replacing any previous value.
func (s *RedisTokenStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("token record ttl must be positive")
	}
	if err := s.redis.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Get returns the stored value or ErrRecordNotFound.
func (s *RedisTokenStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.redis.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return data, nil
}

// Delete removes key. Deleting an absent key is not an error; the boolean
// reports whether this call removed something.
func (s *RedisTokenStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// Ping checks connectivity with a SET/GET round trip of a short-lived probe key.
func (s *RedisTokenStore) Ping(ctx context.Context) error {
	const probe = "healthcheck:probe"
	if err := s.Set(ctx, probe, []byte("test"), 20*time.Second); err != nil {
		return err
	}
	got, err := s.Get(ctx, probe)
	if err != nil {
		return err
	}
	if string(got) != "test" {
		return fmt.Errorf("%w: probe value mismatch", ErrStoreUnavailable)
	}
	return nil
}
