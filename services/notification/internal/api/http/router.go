package httpapi

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	platformhealth "github.com/shestoi/ordering/platform/health/http"
	platformobservability "github.com/shestoi/ordering/platform/observability"
)

// NewRouter создаёт HTTP роутер Notification Service.
// /health отвечает, что процесс жив; /ready выполняет проверки зависимостей (503, если хоть одна упала).
func NewRouter(readiness map[string]platformhealth.Check, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if logger != nil {
		router.Use(platformobservability.HTTPMiddleware("notification", logger))
	}

	router.Get("/health", platformhealth.Handler(nil))
	router.Get("/ready", platformhealth.Handler(readiness))

	return router
}
