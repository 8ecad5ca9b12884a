package observability

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// HTTPMiddleware возвращает chi/http middleware: span на запрос через otelhttp
// и logger с trace_id/span_id в контексте запроса.
func HTTPMiddleware(serviceName string, logger *zap.Logger) func(http.Handler) http.Handler {
	traced := otelhttp.NewMiddleware(serviceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Path
		}),
	)
	return func(next http.Handler) http.Handler {
		withLog := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := withLogger(r.Context(), L(r.Context(), logger))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
		return traced(withLog)
	}
}

type ctxKeyLogger struct{}

func withLogger(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger{}, log)
}

// LoggerFromContext возвращает logger из контекста (если был положен HTTPMiddleware), иначе nil.
func LoggerFromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKeyLogger{}).(*zap.Logger); ok {
		return l
	}
	return nil
}
