package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by Redis. Values are JSON encoded and expire
// through key TTLs.
type Redis[T any] struct {
	client redis.UniversalClient
	prefix string
	idle   time.Duration
}

// NewRedis builds a Redis store. Keys are namespaced with prefix.
func NewRedis[T any](client redis.UniversalClient, prefix string, idle time.Duration) *Redis[T] {
	return &Redis[T]{client: client, prefix: prefix, idle: idle}
}

func (r *Redis[T]) key(k Key) string {
	return r.prefix + k.String()
}

// Get returns the value for key if present.
func (r *Redis[T]) Get(ctx context.Context, key Key) (T, bool, error) {
	var zero T
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("session get %s: %w", key, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false, fmt.Errorf("session decode %s: %w", key, err)
	}
	return v, true, nil
}

// Put stores value under key with a fresh TTL.
func (r *Redis[T]) Put(ctx context.Context, key Key, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("session encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.key(key), data, r.idle).Err(); err != nil {
		return fmt.Errorf("session put %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (r *Redis[T]) Delete(ctx context.Context, key Key) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("session delete %s: %w", key, err)
	}
	return nil
}
