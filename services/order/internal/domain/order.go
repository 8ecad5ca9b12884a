// Package domain содержит агрегат Order.
// Поля агрегата закрыты; менять их можно только через доменные методы.
// Слой хранения работает с OrderState через State/RestoreOrder.
package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidStatusTransition переход статуса запрещён
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	// ErrIDAlreadyAssigned id уже выдан заказу
	ErrIDAlreadyAssigned = errors.New("order id already assigned")
	// ErrInvalidOrder состояние заказа нарушает инварианты
	ErrInvalidOrder = errors.New("invalid order")
)

// Order агрегат заказа
type Order struct {
	id              int64
	orderDate       time.Time
	orderStatusID   int
	buyerID         *int64
	paymentMethodID *int64
	description     *string
	address         Address
	persisted       bool

	domainEvents []DomainEvent
}

// NewOrder создаёт новый (transient) заказ в статусе submitted
func NewOrder(address Address, orderDate time.Time, buyerID, paymentMethodID *int64) (*Order, error) {
	if orderDate.IsZero() {
		return nil, fmt.Errorf("%w: order date is required", ErrInvalidOrder)
	}

	o := &Order{
		orderDate:       orderDate.UTC(),
		orderStatusID:   StatusSubmitted.ID,
		buyerID:         copyInt64(buyerID),
		paymentMethodID: copyInt64(paymentMethodID),
		address:         address,
	}
	o.addEvent(OrderStartedDomainEvent{
		OrderDate:       o.orderDate,
		BuyerID:         copyInt64(buyerID),
		PaymentMethodID: copyInt64(paymentMethodID),
	})
	return o, nil
}

// ID 0 у заказа, который ещё не сохранялся
func (o *Order) ID() int64 { return o.id }

// IsTransient true, пока заказу не выдан id
func (o *Order) IsTransient() bool { return o.id == 0 }

// IsPersisted true, если строки заказа уже зафиксированы в хранилище.
// Выданный id ещё не означает, что заказ сохранён: вставка могла откатиться.
func (o *Order) IsPersisted() bool { return o.persisted }

// MarkPersisted вызывается слоем хранения после успешной фиксации
func (o *Order) MarkPersisted() { o.persisted = true }

func (o *Order) OrderDate() time.Time { return o.orderDate }

func (o *Order) Address() Address { return o.address }

func (o *Order) BuyerID() *int64 { return copyInt64(o.buyerID) }

func (o *Order) PaymentMethodID() *int64 { return copyInt64(o.paymentMethodID) }

// Description пустая строка, если описание не задано
func (o *Order) Description() string {
	if o.description == nil {
		return ""
	}
	return *o.description
}

// Status текущий статус заказа
func (o *Order) Status() OrderStatus {
	s, err := StatusFromID(o.orderStatusID)
	if err != nil {
		// Order создаётся только через NewOrder/RestoreOrder, которые проверяют статус
		panic(err)
	}
	return s
}

// AssignID выдаёт заказу id; вызывается слоем хранения один раз перед первым сохранением
func (o *Order) AssignID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: id must be positive, got %d", ErrInvalidOrder, id)
	}
	if o.id != 0 {
		return fmt.Errorf("%w: order %d", ErrIDAlreadyAssigned, o.id)
	}
	o.id = id
	return nil
}

func (o *Order) SetBuyerID(id int64) {
	o.buyerID = &id
}

func (o *Order) SetPaymentMethodID(id int64) {
	o.paymentMethodID = &id
}

func (o *Order) SetDescription(description string) {
	o.description = &description
}

// SetAwaitingValidationStatus submitted -> awaitingvalidation
func (o *Order) SetAwaitingValidationStatus() error {
	return o.transition(StatusAwaitingValidation, StatusSubmitted)
}

// SetStockConfirmedStatus awaitingvalidation -> stockconfirmed
func (o *Order) SetStockConfirmedStatus() error {
	if err := o.transition(StatusStockConfirmed, StatusAwaitingValidation); err != nil {
		return err
	}
	o.SetDescription("All the items were confirmed with available stock.")
	return nil
}

// SetPaidStatus stockconfirmed -> paid
func (o *Order) SetPaidStatus() error {
	if err := o.transition(StatusPaid, StatusStockConfirmed); err != nil {
		return err
	}
	o.SetDescription("The payment was performed at a simulated \"American Bank checking bank account ending on XX35071\"")
	return nil
}

// SetShippedStatus paid -> shipped
func (o *Order) SetShippedStatus() error {
	if err := o.transition(StatusShipped, StatusPaid); err != nil {
		return err
	}
	o.SetDescription("The order was shipped.")
	return nil
}

// SetCancelledStatus отменяет заказ из любого статуса, кроме paid и shipped
func (o *Order) SetCancelledStatus() error {
	if err := o.transition(StatusCancelled,
		StatusSubmitted, StatusAwaitingValidation, StatusStockConfirmed, StatusCancelled,
	); err != nil {
		return err
	}
	o.SetDescription("The order was cancelled.")
	return nil
}

// SetCancelledStatusWhenStockIsRejected awaitingvalidation -> cancelled
func (o *Order) SetCancelledStatusWhenStockIsRejected(rejectedItems []string) error {
	if err := o.transition(StatusCancelled, StatusAwaitingValidation); err != nil {
		return err
	}
	o.SetDescription(fmt.Sprintf("The product items don't have stock: (%v).", rejectedItems))
	return nil
}

func (o *Order) transition(to OrderStatus, allowedFrom ...OrderStatus) error {
	from := o.Status()
	for _, s := range allowedFrom {
		if s.ID != from.ID {
			continue
		}
		if from.ID != to.ID {
			o.orderStatusID = to.ID
			o.addEvent(OrderStatusChangedDomainEvent{OrderID: o.id, From: from, To: to})
		}
		return nil
	}
	return fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, from, to)
}

// DomainEvents возвращает копию накопленных событий
func (o *Order) DomainEvents() []DomainEvent {
	out := make([]DomainEvent, len(o.domainEvents))
	copy(out, o.domainEvents)
	return out
}

func (o *Order) ClearDomainEvents() {
	o.domainEvents = nil
}

func (o *Order) addEvent(e DomainEvent) {
	o.domainEvents = append(o.domainEvents, e)
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
