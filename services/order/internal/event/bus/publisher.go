package bus

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shestoi/ordering/messages"
	"github.com/shestoi/ordering/platform/messagebus"
	"github.com/shestoi/ordering/platform/observability"
)

// OrderPublisher реализует service.OrderMessagePublisher поверх messagebus.Publisher
type OrderPublisher struct {
	logger    *zap.Logger
	publisher messagebus.Publisher
	subject   string
	tracer    trace.Tracer
}

// NewOrderPublisher создаёт publisher сообщений Order в subject
func NewOrderPublisher(logger *zap.Logger, publisher messagebus.Publisher, subject string) *OrderPublisher {
	return &OrderPublisher{
		logger:    logger,
		publisher: publisher,
		subject:   subject,
		tracer:    otel.Tracer("order/publisher"),
	}
}

// PublishOrder кодирует сообщение, добавляет traceparent в заголовки и публикует
func (p *OrderPublisher) PublishOrder(ctx context.Context, msg messages.Order) error {
	ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	ctx, span := p.tracer.Start(ctx, "PublishOrder",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("correlationId", msg.CorrelationID.String()),
			attribute.String("messaging.destination.name", p.subject),
		),
	)
	defer span.End()

	body, headers, err := msg.Encode()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode order message")
		return err
	}
	headers = observability.InjectHeaders(ctx, headers)

	err = p.publisher.Publish(ctx, p.subject, messagebus.Message{
		Key:     []byte(msg.OrderID.String()),
		Data:    body,
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish order message")
		observability.L(ctx, p.logger).Error("failed to publish order message",
			zap.String("subject", p.subject),
			zap.String("order_number", msg.OrderNumber),
			zap.Error(err),
		)
		return err
	}

	observability.L(ctx, p.logger).Info("order message published",
		zap.String("subject", p.subject),
		zap.String("order_number", msg.OrderNumber),
	)
	return nil
}
