// Package main содержит playground, оформляющий демонстрационный заказ.
//
// Заказ сохраняется (id выдаётся HiLo) и публикуется сообщение Order в ORDER_QUEUE.
// Конфигурация та же, что у Order Service; для запуска без инфраструктуры:
//
//	ORDER_STORAGE=memory MESSAGEBUS_TRANSPORT=memory go run ./services/order/cmd/order-playground
//
// PLAYGROUND_ORDER_NUMBER задаёт номер заказа (по умолчанию PO-<id>).
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shestoi/ordering/messages"
	"github.com/shestoi/ordering/platform/messagebus"
	"github.com/shestoi/ordering/services/order/internal/app"
	"github.com/shestoi/ordering/services/order/internal/config"
	"github.com/shestoi/ordering/services/order/internal/domain"
	"github.com/shestoi/ordering/services/order/internal/service"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg.Log()

	application, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build app: %v", err)
	}
	defer application.Close()

	logger := application.Logger()

	// В памяти сообщение некому прочитать, поэтому подписываемся сами и печатаем его
	var received chan messages.Order
	if cfg.Bus.Transport == messagebus.TransportMemory {
		received = make(chan messages.Order, 1)
		err := application.Bus().Subscribe(ctx, cfg.Bus.OrderQueue, "order-playground", func(_ context.Context, msg *messagebus.Message) error {
			order, err := messages.Decode(msg.Data, msg.Headers)
			if err != nil {
				return err
			}
			received <- order
			return nil
		})
		if err != nil {
			logger.Error("failed to subscribe", zap.Error(err))
			os.Exit(1)
		}
	}

	address := domain.NewAddress("1 Main St", "Redmond", "WA", "USA", "98052")

	out, err := application.Orders().PlaceOrder(ctx, service.PlaceOrderInput{
		Address:     address,
		Description: "playground order",
		Amount:      decimal.RequireFromString("100.50"),
		OrderNumber: os.Getenv("PLAYGROUND_ORDER_NUMBER"),
	})
	if err != nil {
		logger.Error("failed to place order", zap.Error(err))
		os.Exit(1) //выход с кодом ошибки 1 - критическая ошибка
	}

	logger.Info("order placed",
		zap.Int64("order_id", out.OrderID),
		zap.String("order_number", out.OrderNumber),
		zap.String("correlation_id", out.CorrelationID.String()),
		zap.String("status", out.Status.Name),
	)

	if received == nil {
		return
	}
	select {
	case order := <-received:
		logger.Info("order message received",
			zap.String("order_id", order.OrderID.String()),
			zap.String("order_number", order.OrderNumber),
			zap.String("order_amount", order.OrderAmount.String()),
			zap.String("correlation_id", order.CorrelationID.String()),
		)
	case <-ctx.Done():
		logger.Warn("order message not received", zap.Error(ctx.Err()))
	}
}
