package domain

import (
	"fmt"
	"strings"
)

// OrderStatus элемент справочника ordering.orderstatus
type OrderStatus struct {
	ID   int
	Name string
}

var (
	StatusSubmitted          = OrderStatus{ID: 1, Name: "submitted"}
	StatusAwaitingValidation = OrderStatus{ID: 2, Name: "awaitingvalidation"}
	StatusStockConfirmed     = OrderStatus{ID: 3, Name: "stockconfirmed"}
	StatusPaid               = OrderStatus{ID: 4, Name: "paid"}
	StatusShipped            = OrderStatus{ID: 5, Name: "shipped"}
	StatusCancelled          = OrderStatus{ID: 6, Name: "cancelled"}
)

// Statuses возвращает все статусы в порядке id
func Statuses() []OrderStatus {
	return []OrderStatus{
		StatusSubmitted,
		StatusAwaitingValidation,
		StatusStockConfirmed,
		StatusPaid,
		StatusShipped,
		StatusCancelled,
	}
}

// StatusFromID возвращает статус по id
func StatusFromID(id int) (OrderStatus, error) {
	for _, s := range Statuses() {
		if s.ID == id {
			return s, nil
		}
	}
	return OrderStatus{}, fmt.Errorf("%w: unknown order status id %d", ErrInvalidOrder, id)
}

// StatusFromName возвращает статус по имени, регистр не важен
func StatusFromName(name string) (OrderStatus, error) {
	for _, s := range Statuses() {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}
	return OrderStatus{}, fmt.Errorf("%w: unknown order status %q", ErrInvalidOrder, name)
}

func (s OrderStatus) String() string {
	return s.Name
}
