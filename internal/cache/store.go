package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Store keeps short-lived values in Redis under a common prefix.
type Store struct {
	R      *redis.Client
	Prefix string
}

// Enabled reports whether the store has a backing client.
func (s Store) Enabled() bool {
	return s.R != nil
}

// Get returns the raw value. ok is false on a miss.
func (s Store) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	if s.R == nil {
		return nil, false, nil
	}
	data, err := s.R.Get(ctx, s.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores the value. A non-positive ttl is a no-op.
func (s Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.R == nil || ttl <= 0 {
		return nil
	}
	return s.R.Set(ctx, s.Prefix+key, value, ttl).Err()
}

// GetJSON decodes a stored JSON value into dst.
func (s Store) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON encodes value as JSON and stores it.
func (s Store) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, data, ttl)
}

// Ping checks connectivity with the backing Redis.
func (s Store) Ping(ctx context.Context) error {
	if s.R == nil {
		return errors.New("redis not configured")
	}
	return s.R.Ping(ctx).Err()
}

// HashKey derives a fixed-length key from arbitrary content.
func HashKey(namespace string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return namespace + ":" + hex.EncodeToString(sum[:])
}
