package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// Check проверка одной зависимости; nil = ok
type Check func(ctx context.Context) error

// Handler возвращает HTTP handler для health/readiness endpoint.
// Без проверок всегда отвечает 200 {"status":"ok"}.
// Если хоть одна проверка вернула ошибку, отвечает 503 и перечисляет упавшие проверки.
func Handler(checks map[string]Check) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		code := http.StatusOK
		results := make(map[string]string, len(names))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				results[name] = err.Error()
				status = "not ready"
				code = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		body := map[string]any{"status": status}
		if len(results) > 0 {
			body["checks"] = results
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}
