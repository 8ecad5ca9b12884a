// Package idempotency хранит ключи уже обработанных сообщений, чтобы повторная доставка
// не отправляла письмо о заказе второй раз.
package idempotency

import (
	"context"
	"time"
)

// ProcessedStore хранит информацию об обработанных сообщениях
type ProcessedStore interface {
	// MarkProcessed сохраняет key как обработанный на ttl. Повторный вызов продлевает ttl.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) error

	// IsProcessed возвращает true, если key был обработан и ttl ещё не истёк.
	IsProcessed(ctx context.Context, key string) (bool, error)
}
