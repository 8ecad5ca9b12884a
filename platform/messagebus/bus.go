// Package messagebus даёт сервисам транспорт-независимую шину сообщений.
// Реализации: Kafka (consumer group), NATS (queue group) и in-memory для тестов и local.
package messagebus

import (
	"context"
	"errors"
)

// ErrClosed возвращается при Publish/Subscribe после Close
var ErrClosed = errors.New("messagebus: closed")

// Message сообщение шины
type Message struct {
	// Subject топик Kafka / subject NATS / имя очереди
	Subject string
	// Key ключ партиционирования (для Kafka), может быть пустым
	Key []byte
	// Data тело сообщения
	Data []byte
	// Headers заголовки: correlation-id, message-type, traceparent
	Headers map[string]string

	// Partition и Offset заполняются только Kafka транспортом (для логов и DLQ)
	Partition int
	Offset    int64
}

// Header возвращает значение заголовка или пустую строку
func (m *Message) Header(key string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[key]
}

// Handler обрабатывает одно сообщение.
// nil = сообщение подтверждается (ack), ошибка = не подтверждается и может быть доставлено повторно.
type Handler func(ctx context.Context, msg *Message) error

// Publisher публикует сообщения
type Publisher interface {
	Publish(ctx context.Context, subject string, msg Message) error
}

// Subscriber подписывает обработчик на subject.
// Сообщения одного subject делятся между подписчиками одной group (competing consumers).
// Подписка живёт до отмены ctx или Close шины.
type Subscriber interface {
	Subscribe(ctx context.Context, subject, group string, handler Handler) error
}

// Bus объединяет Publisher и Subscriber.
// Close дожидается завершения обработчиков, которые уже получили сообщение.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}
