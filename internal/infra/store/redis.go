package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"connection-pro/internal/domain"
	"connection-pro/internal/infra/metrics"
)

// RedisStore реализует domain.Store через Redis строки.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ domain.Store = (*RedisStore)(nil)

// NewRedis создаёт хранилище. Все ключи получают префикс prefix.
func NewRedis(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Get возвращает значение записи.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "get", key, start, nil)
		return nil, domain.ErrNotFound
	}
	metrics.ObserveNetworkRequest("redis", "get", key, start, err)
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Set перезаписывает запись целиком.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.client.Set(ctx, s.prefix+key, value, 0).Err()
	metrics.ObserveNetworkRequest("redis", "set", key, start, err)
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
