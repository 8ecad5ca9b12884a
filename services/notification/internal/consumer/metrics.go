package consumer

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Исходы обработки сообщения для атрибута outcome
const (
	outcomeSent      = "sent"
	outcomeFailed    = "send_failed"
	outcomeInvalid   = "invalid"
	outcomePanic     = "panic"
	outcomeDuplicate = "duplicate"
)

type consumerMetrics struct {
	consumed metric.Int64Counter
	duration metric.Float64Histogram
}

func newConsumerMetrics(mp metric.MeterProvider) (*consumerMetrics, error) {
	meter := mp.Meter("github.com/shestoi/ordering/services/notification/internal/consumer")

	consumed, err := meter.Int64Counter("orders_consumed_total",
		metric.WithDescription("Order messages handled by the notification consumer"),
	)
	if err != nil {
		return nil, fmt.Errorf("orders_consumed_total counter: %w", err)
	}

	duration, err := meter.Float64Histogram("order_notification_duration_ms",
		metric.WithDescription("Time spent handling one Order message"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("order_notification_duration_ms histogram: %w", err)
	}

	return &consumerMetrics{consumed: consumed, duration: duration}, nil
}

func (m *consumerMetrics) record(ctx context.Context, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.consumed.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}
