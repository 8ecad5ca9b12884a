package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shestoi/ordering/messages"
	"github.com/shestoi/ordering/platform/observability"
	"github.com/shestoi/ordering/services/order/internal/domain"
	"github.com/shestoi/ordering/services/order/internal/repository"
)

// orderNamespace пространство имён для детерминированного uuid заказа из его числового id
var orderNamespace = uuid.MustParse("6f1c1c52-8f7e-4c52-9b5c-3f2b1a0e4d11")

// ErrInvalidInput входные данные команды некорректны
var ErrInvalidInput = errors.New("invalid input")

// OrderService сценарии заказа на стороне производителя: оформление, смена статуса, чтение
type OrderService struct {
	logger    *zap.Logger
	orderRepo repository.OrderRepository
	publisher OrderMessagePublisher
	now       func() time.Time
}

// NewOrderService создаёт новый экземпляр OrderService
func NewOrderService(logger *zap.Logger, orderRepo repository.OrderRepository, publisher OrderMessagePublisher) *OrderService {
	return &OrderService{
		logger:    logger,
		orderRepo: orderRepo,
		publisher: publisher,
		now:       time.Now,
	}
}

// PlaceOrderInput данные для оформления заказа
type PlaceOrderInput struct {
	Address         domain.Address
	BuyerID         *int64
	PaymentMethodID *int64
	Description     string
	Amount          decimal.Decimal
	// OrderNumber если пусто, используется PO-<id>
	OrderNumber string
}

// PlaceOrderOutput результат оформления
type PlaceOrderOutput struct {
	OrderID       int64
	OrderNumber   string
	CorrelationID uuid.UUID
	Status        domain.OrderStatus
}

// PlaceOrder создаёт заказ, сохраняет его (id выдаётся HiLo) и публикует сообщение Order.
// Если публикация не удалась, заказ остаётся сохранённым, ошибка возвращается вызывающему.
func (s *OrderService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderOutput, error) {
	if input.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must be >= 0", ErrInvalidInput)
	}

	order, err := domain.NewOrder(input.Address, s.now(), input.BuyerID, input.PaymentMethodID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if input.Description != "" {
		order.SetDescription(input.Description)
	}

	if err := s.orderRepo.Save(ctx, order); err != nil {
		s.logger.Error("failed to save order", zap.Error(err))
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	number := input.OrderNumber
	if number == "" {
		number = "PO-" + strconv.FormatInt(order.ID(), 10)
	}
	correlationID := uuid.New()
	ctx = observability.WithCorrelationID(ctx, correlationID)

	log := observability.L(ctx, s.logger).With(
		zap.Int64("order_id", order.ID()),
		zap.String("order_number", number),
	)

	msg, err := messages.NewOrder(OrderUUID(order.ID()), input.Amount, number, order.OrderDate(), correlationID)
	if err != nil {
		return nil, fmt.Errorf("build order message: %w", err)
	}
	if err := s.publisher.PublishOrder(ctx, msg); err != nil {
		log.Error("failed to publish order message", zap.Error(err))
		return nil, fmt.Errorf("failed to publish order %d: %w", order.ID(), err)
	}

	order.ClearDomainEvents()
	log.Info("order placed")

	return &PlaceOrderOutput{
		OrderID:       order.ID(),
		OrderNumber:   number,
		CorrelationID: correlationID,
		Status:        order.Status(),
	}, nil
}

// StatusCommand команда смены статуса
type StatusCommand string

const (
	CommandAwaitValidation StatusCommand = "await-validation"
	CommandConfirmStock    StatusCommand = "confirm-stock"
	CommandPay             StatusCommand = "pay"
	CommandShip            StatusCommand = "ship"
	CommandCancel          StatusCommand = "cancel"
)

// ChangeStatus загружает заказ, применяет переход и сохраняет
func (s *OrderService) ChangeStatus(ctx context.Context, orderID int64, cmd StatusCommand) (domain.OrderStatus, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return domain.OrderStatus{}, fmt.Errorf("failed to get order: %w", err)
	}

	var transition func() error
	switch cmd {
	case CommandAwaitValidation:
		transition = order.SetAwaitingValidationStatus
	case CommandConfirmStock:
		transition = order.SetStockConfirmedStatus
	case CommandPay:
		transition = order.SetPaidStatus
	case CommandShip:
		transition = order.SetShippedStatus
	case CommandCancel:
		transition = order.SetCancelledStatus
	default:
		return domain.OrderStatus{}, fmt.Errorf("%w: unknown status command %q", ErrInvalidInput, cmd)
	}

	from := order.Status()
	if err := transition(); err != nil {
		return from, err
	}

	if err := s.orderRepo.Save(ctx, order); err != nil {
		s.logger.Error("failed to save order", zap.Int64("order_id", orderID), zap.Error(err))
		return from, fmt.Errorf("failed to save order: %w", err)
	}

	s.logger.Info("order status changed",
		zap.Int64("order_id", orderID),
		zap.String("from", from.Name),
		zap.String("to", order.Status().Name),
	)
	return order.Status(), nil
}

// GetOrder возвращает заказ по id
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// OrderUUID стабильный uuid заказа для сообщений: один и тот же id всегда даёт один uuid
func OrderUUID(id int64) uuid.UUID {
	return uuid.NewSHA1(orderNamespace, []byte(strconv.FormatInt(id, 10)))
}
