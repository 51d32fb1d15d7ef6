package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/testforge/uidetect/pkg/httputil"
)

type contextKey string

// ContextKeyClient holds a stable, non-secret identifier of the authenticated key.
const ContextKeyClient contextKey = "client"

// GetClient extracts the client identifier from context
func GetClient(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextKeyClient).(string)
	return id, ok
}

var publicPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// AuthMiddleware checks requests against a static set of API keys. With no keys
// configured every request passes.
type AuthMiddleware struct {
	keys   [][]byte
	logger *zap.Logger
}

// NewAuthMiddleware creates an auth middleware; blank keys are ignored.
func NewAuthMiddleware(keys []string, logger *zap.Logger) *AuthMiddleware {
	m := &AuthMiddleware{logger: logger}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			m.keys = append(m.keys, []byte(k))
		}
	}
	return m
}

// Enabled reports whether any key is configured.
func (m *AuthMiddleware) Enabled() bool {
	return len(m.keys) > 0
}

// Handler returns the middleware handler
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() || publicPaths[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		key := extractAPIKey(r)
		if key == "" {
			httputil.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key required")
			return
		}
		if !m.valid(key) {
			m.logger.Warn("rejected API key", zap.String("path", r.URL.Path), zap.String("remote_addr", r.RemoteAddr))
			httputil.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid API key")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyClient, clientID(key))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) valid(key string) bool {
	found := 0
	for _, k := range m.keys {
		found |= subtle.ConstantTimeCompare(k, []byte(key))
	}
	return found == 1
}

// extractAPIKey reads X-API-Key, falling back to a bearer token.
func extractAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func clientID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "key:" + hex.EncodeToString(sum[:6])
}
