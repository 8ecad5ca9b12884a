// Package messages описывает контракт сообщений между сервисами ordering.
package messages

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Заголовки сообщений шины
const (
	HeaderCorrelationID = "correlation-id"
	HeaderMessageType   = "message-type"
	HeaderMessageID     = "message-id"
	HeaderContentType   = "content-type"

	// OrderMessageType значение message-type для Order
	OrderMessageType = "ordering.messages:Order"
	ContentTypeJSON  = "application/json"
)

var (
	ErrInvalidOrder = errors.New("invalid order message")
)

// ParseError ошибка разбора сообщения Order; Field пуст, если тело не является JSON
type ParseError struct {
	Field   string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Order сообщение о созданном заказе.
// Значение неизменяемо: создаётся через NewOrder или Decode и передаётся по значению.
type Order struct {
	OrderID       uuid.UUID
	OrderAmount   decimal.Decimal
	OrderNumber   string
	OrderDate     time.Time
	CorrelationID uuid.UUID
}

// NewOrder создаёт и валидирует сообщение
func NewOrder(orderID uuid.UUID, amount decimal.Decimal, number string, date time.Time, correlationID uuid.UUID) (Order, error) {
	o := Order{
		OrderID:       orderID,
		OrderAmount:   amount,
		OrderNumber:   number,
		OrderDate:     date.UTC(),
		CorrelationID: correlationID,
	}
	if err := o.Validate(); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Validate проверяет инварианты сообщения
func (o Order) Validate() error {
	switch {
	case o.OrderID == uuid.Nil:
		return fmt.Errorf("%w: orderId is required", ErrInvalidOrder)
	case o.OrderAmount.IsNegative():
		return fmt.Errorf("%w: orderAmount must be >= 0, got %s", ErrInvalidOrder, o.OrderAmount)
	case o.OrderNumber == "":
		return fmt.Errorf("%w: orderNumber is required", ErrInvalidOrder)
	case o.OrderDate.IsZero():
		return fmt.Errorf("%w: orderDate is required", ErrInvalidOrder)
	case o.CorrelationID == uuid.Nil:
		return fmt.Errorf("%w: correlation id is required", ErrInvalidOrder)
	}
	return nil
}

// orderBody JSON тело сообщения. Correlation id передаётся в заголовке, не в теле.
type orderBody struct {
	OrderID     uuid.UUID   `json:"orderId"`
	OrderAmount json.Number `json:"orderAmount"`
	OrderNumber string      `json:"orderNumber"`
	OrderDate   time.Time   `json:"orderDate"`
}

// Encode возвращает JSON тело и заголовки сообщения
func (o Order) Encode() ([]byte, map[string]string, error) {
	if err := o.Validate(); err != nil {
		return nil, nil, err
	}

	body, err := json.Marshal(orderBody{
		OrderID:     o.OrderID,
		OrderAmount: json.Number(o.OrderAmount.String()),
		OrderNumber: o.OrderNumber,
		OrderDate:   o.OrderDate,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal order message: %w", err)
	}

	headers := map[string]string{
		HeaderCorrelationID: o.CorrelationID.String(),
		HeaderMessageType:   OrderMessageType,
		HeaderContentType:   ContentTypeJSON,
	}
	return body, headers, nil
}

// Decode разбирает тело и заголовки. Ошибки разбора возвращаются как *ParseError.
func Decode(body []byte, headers map[string]string) (Order, error) {
	if t, ok := headers[HeaderMessageType]; ok && t != OrderMessageType {
		return Order{}, &ParseError{Field: HeaderMessageType, Message: fmt.Sprintf("unexpected message type %q", t)}
	}

	correlationID, err := uuid.Parse(headers[HeaderCorrelationID])
	if err != nil {
		return Order{}, &ParseError{Field: HeaderCorrelationID, Message: "correlation id header is missing or not a uuid", Err: err}
	}

	var raw struct {
		OrderID     uuid.UUID       `json:"orderId"`
		OrderAmount decimal.Decimal `json:"orderAmount"`
		OrderNumber string          `json:"orderNumber"`
		OrderDate   time.Time       `json:"orderDate"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Order{}, &ParseError{Message: "order message body is not valid json", Err: err}
	}

	o := Order{
		OrderID:       raw.OrderID,
		OrderAmount:   raw.OrderAmount,
		OrderNumber:   raw.OrderNumber,
		OrderDate:     raw.OrderDate,
		CorrelationID: correlationID,
	}
	if err := o.Validate(); err != nil {
		return Order{}, &ParseError{Message: err.Error(), Err: err}
	}
	return o, nil
}
