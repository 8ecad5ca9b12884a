package service

import (
	"context"

	"github.com/shestoi/ordering/messages"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=OrderMessagePublisher --dir=. --output=./mocks --outpkg=mocks

// OrderMessagePublisher публикует сообщение Order в шину.
// Реализация не знает про транспорт сервиса: Kafka, NATS или память выбираются при сборке приложения.
type OrderMessagePublisher interface {
	PublishOrder(ctx context.Context, msg messages.Order) error
}
