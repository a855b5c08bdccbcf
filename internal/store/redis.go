package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "bg"

// RedisBackend stores each value under bg:<namespace>:<key>
type RedisBackend struct {
	rdb goredis.UniversalClient
	ttl time.Duration
}

// NewRedisBackend wraps an existing client. A zero ttl keeps values forever.
func NewRedisBackend(rdb goredis.UniversalClient, ttl time.Duration) *RedisBackend {
	return &RedisBackend{rdb: rdb, ttl: ttl}
}

// RedisKey returns the key a namespaced value is stored under
func RedisKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, namespace, key)
}

func (b *RedisBackend) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	v, err := b.rdb.Get(ctx, RedisKey(namespace, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

func (b *RedisBackend) Set(ctx context.Context, namespace, key string, value []byte) error {
	if err := b.rdb.Set(ctx, RedisKey(namespace, key), value, b.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, namespace, key string) error {
	if err := b.rdb.Del(ctx, RedisKey(namespace, key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
