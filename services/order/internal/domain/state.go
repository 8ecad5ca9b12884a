package domain

import (
	"fmt"
	"time"
)

// OrderState сырое состояние агрегата для слоя хранения.
// Поля соответствуют закрытым полям Order один к одному; доменные события сюда не входят.
type OrderState struct {
	ID              int64
	OrderDate       time.Time
	OrderStatusID   int
	BuyerID         *int64
	PaymentMethodID *int64
	Description     *string
	Address         Address
}

// State снимает состояние заказа
func (o *Order) State() OrderState {
	var description *string
	if o.description != nil {
		d := *o.description
		description = &d
	}
	return OrderState{
		ID:              o.id,
		OrderDate:       o.orderDate,
		OrderStatusID:   o.orderStatusID,
		BuyerID:         copyInt64(o.buyerID),
		PaymentMethodID: copyInt64(o.paymentMethodID),
		Description:     description,
		Address:         o.address,
	}
}

// RestoreOrder восстанавливает заказ из хранилища; события не поднимаются
func RestoreOrder(s OrderState) (*Order, error) {
	if s.ID <= 0 {
		return nil, fmt.Errorf("%w: restored order must have an id, got %d", ErrInvalidOrder, s.ID)
	}
	if s.OrderDate.IsZero() {
		return nil, fmt.Errorf("%w: order %d has no order date", ErrInvalidOrder, s.ID)
	}
	if _, err := StatusFromID(s.OrderStatusID); err != nil {
		return nil, fmt.Errorf("order %d: %w", s.ID, err)
	}

	o := &Order{
		id:              s.ID,
		orderDate:       s.OrderDate.UTC(),
		orderStatusID:   s.OrderStatusID,
		buyerID:         copyInt64(s.BuyerID),
		paymentMethodID: copyInt64(s.PaymentMethodID),
		address:         s.Address,
		persisted:       true,
	}
	if s.Description != nil {
		d := *s.Description
		o.description = &d
	}
	return o, nil
}
