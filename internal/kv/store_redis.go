package kv

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisTimeout   = 3 * time.Second
	redisScanCount = 100
	// DefaultRedisNamespace prefixes every key written by RedisStore.
	DefaultRedisNamespace = "finedu:"
)

// RedisStore is a Store backed by Redis or Dragonfly.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore returns a store over client. Keys are written under namespace.
func NewRedisStore(client *redis.Client, namespace string) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisStore{client: client, namespace: namespace}, nil
}

func (s *RedisStore) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	v, err := s.client.Get(ctx, s.namespace+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := s.client.Set(ctx, s.namespace+key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := s.client.Del(ctx, s.namespace+key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Keys(prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	match := escapeGlob(s.namespace+prefix) + "*"
	keys := make([]string, 0)
	iter := s.client.Scan(ctx, 0, match, redisScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.namespace))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan keys: %w", err)
	}

	// SCAN may return a key more than once.
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

// HealthCheck verifies the Redis connection is alive.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
