package repository

import (
	"context"
	"errors"

	"github.com/shestoi/ordering/services/order/internal/domain"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=OrderRepository --dir=. --output=./mocks --outpkg=mocks

// OrderRepository хранилище агрегата Order.
// Save выдаёт id новому заказу до первой записи; повторный Save обновляет заказ.
type OrderRepository interface {
	Save(ctx context.Context, order *domain.Order) error

	// GetByID возвращает ErrNotFound, если заказа нет
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
}

// IDGenerator выдаёт id для новых заказов (hilo.Generator)
type IDGenerator interface {
	Next(ctx context.Context) (int64, error)
}

var (
	// ErrNotFound заказ не найден
	ErrNotFound = errors.New("order not found")
	// ErrConflict нарушено ограничение уникальности или ссылочной целостности
	ErrConflict = errors.New("order persistence conflict")
	// ErrMissingAddress у сохранённого заказа нет строки адреса
	ErrMissingAddress = errors.New("order address row is missing")
)
