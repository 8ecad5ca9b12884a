package hilo

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSequence общая последовательность в Redis: INCRBY key size.
// Подходит для развёртываний, где несколько сервисов делят один счётчик без доступа к БД.
type RedisSequence struct {
	client redis.Cmdable
	key    string
}

// NewRedisSequence создаёт источник поверх ключа key
func NewRedisSequence(client redis.Cmdable, key string) *RedisSequence {
	return &RedisSequence{client: client, key: key}
}

// NextBlock INCRBY возвращает конец блока, начало = end - size + 1
func (s *RedisSequence) NextBlock(ctx context.Context, size int64) (int64, error) {
	end, err := s.client.IncrBy(ctx, s.key, size).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incrby %s: %w", s.key, err)
	}
	return end - size + 1, nil
}
