// Package orderingmap содержит отображение агрегата Order на схему ordering.
package orderingmap

import (
	"sync"
	"time"

	"github.com/shestoi/ordering/services/order/internal/domain"
	"github.com/shestoi/ordering/services/order/internal/mapping"
)

const (
	Schema        = "ordering"
	OrdersTable   = "orders"
	AddressTable  = "order_addresses"
	StatusTable   = "orderstatus"
	OrderSequence = "orderseq"

	// AddressNavigation имя owned навигации адреса
	AddressNavigation = "Address"
	// AddressShadowKey колонка order_addresses, хранящая id заказа
	AddressShadowKey = "order_id"
)

// NewOrderMapping собирает отображение Order
func NewOrderMapping() (*mapping.Mapping[domain.OrderState], error) {
	return mapping.NewBuilder[domain.OrderState]("Order").
		ToTable(OrdersTable, Schema).
		HasKey("Id", "id", mapping.Bind(func(s *domain.OrderState) *int64 { return &s.ID })).
		UseHiLo(OrderSequence, Schema).
		Field("_buyerId", "buyer_id",
			mapping.Bind(func(s *domain.OrderState) **int64 { return &s.BuyerID }), mapping.Optional()).
		Field("_orderDate", "order_date",
			mapping.Bind(func(s *domain.OrderState) *time.Time { return &s.OrderDate }), mapping.Required()).
		Field("_orderStatusId", "order_status_id",
			mapping.Bind(func(s *domain.OrderState) *int { return &s.OrderStatusID }), mapping.Required()).
		Field("_paymentMethodId", "payment_method_id",
			mapping.Bind(func(s *domain.OrderState) **int64 { return &s.PaymentMethodID }), mapping.Optional()).
		Property("Description", "description",
			mapping.Bind(func(s *domain.OrderState) **string { return &s.Description }), mapping.Optional()).
		OwnsOne(AddressNavigation, AddressTable, func(a *mapping.OwnedBuilder[domain.OrderState]) {
			a.ShadowKey(AddressShadowKey).
				Property("Street", "street", mapping.Bind(func(s *domain.OrderState) *string { return &s.Address.Street })).
				Property("City", "city", mapping.Bind(func(s *domain.OrderState) *string { return &s.Address.City })).
				Property("State", "state", mapping.Bind(func(s *domain.OrderState) *string { return &s.Address.State })).
				Property("Country", "country", mapping.Bind(func(s *domain.OrderState) *string { return &s.Address.Country })).
				Property("ZipCode", "zip_code", mapping.Bind(func(s *domain.OrderState) *string { return &s.Address.ZipCode })).
				WithOwner()
		}).
		HasOne("OrderStatus", Schema, StatusTable, "_orderStatusId").
		Ignore("DomainEvents").
		Build()
}

var (
	orderOnce    sync.Once
	orderMapping *mapping.Mapping[domain.OrderState]
	orderErr     error
)

// OrderMapping отображение Order, собранное один раз на процесс
func OrderMapping() (*mapping.Mapping[domain.OrderState], error) {
	orderOnce.Do(func() {
		orderMapping, orderErr = NewOrderMapping()
	})
	return orderMapping, orderErr
}

// Register собирает отображение Order и добавляет его в реестр
func Register(r *mapping.Registry) (*mapping.Mapping[domain.OrderState], error) {
	m, err := OrderMapping()
	if err != nil {
		return nil, err
	}
	if err := r.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}
