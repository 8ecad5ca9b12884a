package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore реализует ProcessedStore на map в памяти процесса.
// Подходит для одного экземпляра worker; между экземплярами ключи не видны.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]time.Time // key -> expiresAt
	now  func() time.Time
}

// NewMemoryStore создаёт новый in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys: make(map[string]time.Time),
		now:  time.Now,
	}
}

// MarkProcessed сохраняет key как обработанный с указанным ttl
func (s *MemoryStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupExpiredLocked()
	s.keys[key] = s.now().Add(ttl)
	return nil
}

// IsProcessed проверяет, был ли key уже обработан
func (s *MemoryStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, exists := s.keys[key]
	if !exists {
		return false, nil
	}
	if !s.now().Before(expiresAt) {
		delete(s.keys, key)
		return false, nil
	}
	return true, nil
}

// cleanupExpiredLocked удаляет протухшие записи (вызывается с уже захваченным lock)
func (s *MemoryStore) cleanupExpiredLocked() {
	now := s.now()
	for key, expiresAt := range s.keys {
		if !now.Before(expiresAt) {
			delete(s.keys, key)
		}
	}
}
