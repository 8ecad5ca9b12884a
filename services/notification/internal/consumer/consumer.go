// Package consumer обрабатывает сообщения Order: отправляет письмо о заказе
// и подтверждает сообщение согласно AckPolicy.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shestoi/ordering/messages"
	"github.com/shestoi/ordering/platform/messagebus"
	"github.com/shestoi/ordering/platform/observability"
	"github.com/shestoi/ordering/services/notification/internal/email"
	"github.com/shestoi/ordering/services/notification/internal/idempotency"
)

const (
	spanName = "OrderProduct"

	statusSent        = "Consume a message and process successfully."
	statusSendFailed  = "Error occured when sending email in OrderConsumer"
	statusInvalid     = "Invalid Order message"
	statusUnexpected  = "Unexpected failure in OrderConsumer"
	statusDelayFailed = "Processing delay interrupted in OrderConsumer"
)

// DeadLetterPublisher принимает сообщения, которые невозможно разобрать
type DeadLetterPublisher interface {
	Publish(ctx context.Context, original *messagebus.Message, err error) error
}

// Config настройки OrderConsumer
type Config struct {
	// Recipient адрес, на который уходят письма о заказах
	Recipient string
	// ProcessingDelay пауза перед отправкой письма; 0 = без паузы
	ProcessingDelay time.Duration
	AckPolicy       AckPolicy
}

// Option настраивает OrderConsumer
type Option func(*OrderConsumer)

// WithSleeper подменяет реализацию задержки
func WithSleeper(s Sleeper) Option {
	return func(c *OrderConsumer) { c.sleeper = s }
}

// WithDeadLetter включает публикацию невалидных сообщений в DLQ
func WithDeadLetter(dlq DeadLetterPublisher) Option {
	return func(c *OrderConsumer) { c.dlq = dlq }
}

// WithDeduplication не отправляет письмо повторно для заказа, уже уведомлённого в течение ttl.
// Ключ - orderId сообщения. Ошибки store не блокируют отправку.
func WithDeduplication(store idempotency.ProcessedStore, ttl time.Duration) Option {
	return func(c *OrderConsumer) {
		c.dedup = store
		c.dedupTTL = ttl
	}
}

// WithTracerProvider задаёт TracerProvider (по умолчанию глобальный)
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *OrderConsumer) { c.tracer = tp.Tracer("notification") }
}

// WithMeterProvider задаёт MeterProvider (по умолчанию глобальный)
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *OrderConsumer) { c.meterProvider = mp }
}

// OrderConsumer обработчик сообщений Order
type OrderConsumer struct {
	logger        *zap.Logger
	sender        email.Sender
	cfg           Config
	sleeper       Sleeper
	dlq           DeadLetterPublisher
	dedup         idempotency.ProcessedStore
	dedupTTL      time.Duration
	tracer        trace.Tracer
	meterProvider metric.MeterProvider
	metrics       *consumerMetrics
	newID         func() uuid.UUID
}

// NewOrderConsumer создаёт обработчик сообщений Order
func NewOrderConsumer(logger *zap.Logger, sender email.Sender, cfg Config, opts ...Option) (*OrderConsumer, error) {
	if cfg.Recipient == "" {
		return nil, errors.New("consumer: recipient is required")
	}
	if cfg.ProcessingDelay < 0 {
		return nil, errors.New("consumer: processing delay must not be negative")
	}
	if cfg.AckPolicy == "" {
		cfg.AckPolicy = AckAlways
	}

	c := &OrderConsumer{
		logger:        logger,
		sender:        sender,
		cfg:           cfg,
		sleeper:       &DefaultSleeper{},
		tracer:        otel.Tracer("notification"),
		meterProvider: otel.GetMeterProvider(),
		newID:         uuid.New,
	}
	for _, opt := range opts {
		opt(c)
	}

	m, err := newConsumerMetrics(c.meterProvider)
	if err != nil {
		return nil, err
	}
	c.metrics = m
	return c, nil
}

// Start подписывает Handle на subject в consumer group
func (c *OrderConsumer) Start(ctx context.Context, sub messagebus.Subscriber, subject, group string) error {
	c.logger.Info("starting order consumer",
		zap.String("subject", subject),
		zap.String("group", group),
		zap.String("ack_policy", string(c.cfg.AckPolicy)),
		zap.Duration("processing_delay", c.cfg.ProcessingDelay),
	)
	return sub.Subscribe(ctx, subject, group, c.Handle)
}

// Handle обрабатывает одно сообщение Order. Подходит как messagebus.Handler.
// Ошибка возвращается только при AckOnSuccess и неудачной отправке
// или если невалидное сообщение не удалось положить в DLQ.
// Паника внутри обработки не выходит наружу: сообщение подтверждается.
func (c *OrderConsumer) Handle(ctx context.Context, msg *messagebus.Message) (err error) {
	start := time.Now()

	ctx = observability.ExtractHeaders(ctx, msg.Headers)
	ctx, span := c.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("correlationId", msg.Header(messages.HeaderCorrelationID)),
			attribute.String("messaging.destination.name", msg.Subject),
		),
	)
	defer span.End()

	outcome := outcomeSent
	// orderLog задан после разбора сообщения, пока не записан "Consumed Order Message"
	var orderLog *zap.Logger
	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("order consumer panic: %v", r)
			observability.L(ctx, c.logger).Error(statusUnexpected, zap.Error(perr))
			span.RecordError(perr)
			span.SetStatus(codes.Error, statusUnexpected)
			outcome = outcomePanic
			err = nil
			if orderLog != nil {
				orderLog.Info("Consumed Order Message")
			}
		}
		c.metrics.record(ctx, outcome, time.Since(start))
	}()

	order, decodeErr := messages.Decode(msg.Data, msg.Headers)
	if decodeErr != nil {
		outcome = outcomeInvalid
		return c.handleInvalid(ctx, span, msg, decodeErr)
	}

	ctx = observability.WithCorrelationID(ctx, order.CorrelationID)
	log := observability.L(ctx, c.logger).With(zap.String("order_number", order.OrderNumber))

	log.Info("Consume Order Message")
	orderLog = log

	if c.alreadySent(ctx, log, order) {
		outcome = outcomeDuplicate
		span.SetStatus(codes.Ok, statusSent)
		orderLog = nil
		log.Info("Consumed Order Message", zap.Bool("duplicate", true))
		return nil
	}

	sendErr := c.dispatch(ctx, order)
	if sendErr != nil {
		outcome = outcomeFailed
		log.Error(statusSendFailed, zap.Error(sendErr))
		span.RecordError(sendErr)
		span.SetStatus(codes.Error, statusSendFailed)
	} else {
		span.SetStatus(codes.Ok, statusSent)
		c.markSent(ctx, log, order)
	}

	orderLog = nil
	log.Info("Consumed Order Message")

	if sendErr != nil && !c.cfg.AckPolicy.ackOnFailure() {
		return fmt.Errorf("send order notification: %w", sendErr)
	}
	return nil
}

// dispatch ждёт ProcessingDelay и отправляет письмо; паника Sender превращается в ошибку
func (c *OrderConsumer) dispatch(ctx context.Context, order messages.Order) (err error) {
	if c.cfg.ProcessingDelay > 0 {
		if err := c.sleeper.Sleep(ctx, c.cfg.ProcessingDelay); err != nil {
			return fmt.Errorf("%s: %w", statusDelayFailed, err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("email sender panic: %v", r)
		}
	}()
	return c.sender.Send(ctx, order.CorrelationID, c.newID(), c.cfg.Recipient, "Order: "+order.OrderNumber)
}

func (c *OrderConsumer) alreadySent(ctx context.Context, log *zap.Logger, order messages.Order) bool {
	if c.dedup == nil {
		return false
	}
	sent, err := c.dedup.IsProcessed(ctx, order.OrderID.String())
	if err != nil {
		log.Warn("failed to check processed store, sending anyway", zap.Error(err))
		return false
	}
	if sent {
		log.Info("order notification already sent, skipping")
	}
	return sent
}

func (c *OrderConsumer) markSent(ctx context.Context, log *zap.Logger, order messages.Order) {
	if c.dedup == nil {
		return
	}
	if err := c.dedup.MarkProcessed(ctx, order.OrderID.String(), c.dedupTTL); err != nil {
		log.Warn("failed to mark order notification as sent", zap.Error(err))
	}
}

// handleInvalid невалидное сообщение не будет обработано и при повторе: кладём в DLQ и подтверждаем
func (c *OrderConsumer) handleInvalid(ctx context.Context, span trace.Span, msg *messagebus.Message, decodeErr error) error {
	log := observability.L(ctx, c.logger).With(
		zap.String("subject", msg.Subject),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)
	log.Error(statusInvalid, zap.Error(decodeErr))
	span.RecordError(decodeErr)
	span.SetStatus(codes.Error, statusInvalid)

	if c.dlq == nil {
		return nil
	}
	if err := c.dlq.Publish(ctx, msg, decodeErr); err != nil {
		log.Error("failed to publish to DLQ, not acknowledging", zap.Error(err))
		return fmt.Errorf("publish invalid order message to DLQ: %w", err)
	}
	return nil
}
