package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore реализует ProcessedStore в Redis: ключ с TTL на каждое обработанное сообщение.
// Общий для всех экземпляров worker.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore создаёт store; prefix добавляется ко всем ключам
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

// MarkProcessed SET key 1 EX ttl
func (s *RedisStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis mark processed %s: %w", key, err)
	}
	return nil
}

// IsProcessed EXISTS key
func (s *RedisStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis is processed %s: %w", key, err)
	}
	return n > 0, nil
}
