package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Check
		wantCode   int
		wantStatus string
	}{
		{
			name:       "no checks",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "all checks pass",
			checks: map[string]Check{
				"messagebus": func(context.Context) error { return nil },
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "one check fails",
			checks: map[string]Check{
				"messagebus": func(context.Context) error { return nil },
				"consumer":   func(context.Context) error { return errors.New("not subscribed") },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Handler(tt.checks).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantCode, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
		})
	}
}
