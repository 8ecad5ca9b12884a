package observability

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type correlationKey struct{}

// WithCorrelationID кладёт correlation id сообщения в контекст
func WithCorrelationID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext достаёт correlation id, если он был положен через WithCorrelationID
func CorrelationIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(correlationKey{}).(uuid.UUID)
	return id, ok
}

// TraceFields возвращает zap-поля trace_id/span_id (если есть span) и correlation_id (если есть в ctx).
func TraceFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id, ok := CorrelationIDFromContext(ctx); ok {
		fields = append(fields, zap.String("correlation_id", id.String()))
	}
	return fields
}

// L возвращает logger с полями из TraceFields.
// Использовать в хендлерах и сервисах: observability.L(ctx, logger).Info(...)
func L(ctx context.Context, base *zap.Logger) *zap.Logger {
	fields := TraceFields(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
