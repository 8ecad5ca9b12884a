package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// HeaderCarrier адаптирует заголовки сообщения шины к propagation.TextMapCarrier
type HeaderCarrier map[string]string

// Get возвращает значение по ключу
func (c HeaderCarrier) Get(key string) string {
	return c[key]
}

// Set устанавливает пару key-value
func (c HeaderCarrier) Set(key, value string) {
	c[key] = value
}

// Keys возвращает все ключи заголовков
func (c HeaderCarrier) Keys() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	return out
}

var _ propagation.TextMapCarrier = HeaderCarrier(nil)

// InjectHeaders записывает traceparent/baggage из ctx в headers.
// Если headers == nil, создаётся новая map.
func InjectHeaders(ctx context.Context, headers map[string]string) map[string]string {
	if headers == nil {
		headers = make(map[string]string)
	}
	otel.GetTextMapPropagator().Inject(ctx, HeaderCarrier(headers))
	return headers
}

// ExtractHeaders восстанавливает remote span context из заголовков сообщения
func ExtractHeaders(ctx context.Context, headers map[string]string) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, HeaderCarrier(headers))
}
