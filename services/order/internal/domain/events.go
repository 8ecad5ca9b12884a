package domain

import "time"

// DomainEvent событие, поднятое агрегатом. Не сохраняется в БД.
type DomainEvent interface {
	EventName() string
}

// OrderStartedDomainEvent поднимается при создании заказа
type OrderStartedDomainEvent struct {
	OrderDate       time.Time
	BuyerID         *int64
	PaymentMethodID *int64
}

func (OrderStartedDomainEvent) EventName() string { return "OrderStarted" }

// OrderStatusChangedDomainEvent поднимается при каждом переходе статуса
type OrderStatusChangedDomainEvent struct {
	OrderID int64
	From    OrderStatus
	To      OrderStatus
}

func (OrderStatusChangedDomainEvent) EventName() string { return "OrderStatusChanged" }
