package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestAuthMiddleware_Handler(t *testing.T) {
	m := NewAuthMiddleware([]string{"key-one", " ", "key-two"}, zap.NewNop())

	tests := []struct {
		name       string
		path       string
		header     string
		value      string
		wantStatus int
	}{
		{"missing key", "/api/v1/detect", "", "", http.StatusUnauthorized},
		{"wrong key", "/api/v1/detect", "X-API-Key", "nope", http.StatusUnauthorized},
		{"header key", "/api/v1/detect", "X-API-Key", "key-one", http.StatusOK},
		{"bearer token", "/api/v1/detect", "Authorization", "Bearer key-two", http.StatusOK},
		{"blank configured key is not a key", "/api/v1/detect", "X-API-Key", " ", http.StatusUnauthorized},
		{"health is public", "/health", "", "", http.StatusOK},
		{"metrics is public", "/metrics", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var client string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				client, _ = GetClient(r.Context())
			})

			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			m.Handler(handler).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK && tt.header != "" {
				assert.Contains(t, client, "key:")
				assert.NotContains(t, client, tt.value)
			}
		})
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	m := NewAuthMiddleware(nil, zap.NewNop())
	assert.False(t, m.Enabled())

	rec := httptest.NewRecorder()
	m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/detect", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"none", nil, ""},
		{"x-api-key", map[string]string{"X-API-Key": "abc"}, "abc"},
		{"bearer", map[string]string{"Authorization": "bearer abc"}, "abc"},
		{"basic ignored", map[string]string{"Authorization": "Basic abc"}, ""},
		{"header wins", map[string]string{"X-API-Key": "one", "Authorization": "Bearer two"}, "one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, extractAPIKey(req))
		})
	}
}
