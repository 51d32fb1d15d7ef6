// Package api exposes detection over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/testforge/uidetect/internal/api/handlers"
	"github.com/testforge/uidetect/internal/api/middleware"
	"github.com/testforge/uidetect/internal/config"
	"github.com/testforge/uidetect/internal/resilience"
	"github.com/testforge/uidetect/pkg/httputil"
)

// HealthChecker is satisfied by the Redis cache.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Limiter is a health-checked rate limiter, satisfied by the Redis cache.
type Limiter interface {
	HealthChecker
	middleware.RateLimiter
}

// Router holds the HTTP router and its dependencies
type Router struct {
	chi.Router
	logger *zap.Logger
}

// RouterConfig contains configuration for the router
type RouterConfig struct {
	Detector       handlers.ElementDetector
	Opener         handlers.PageOpener
	Cache          Limiter
	Breakers       []*resilience.Breaker
	Metrics        http.Handler
	HTTPMetrics    func(http.Handler) http.Handler
	Security       config.SecurityConfig
	RequestTimeout time.Duration
	MaxRequestSize int64
	Logger         *zap.Logger
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 90 * time.Second
	}

	r := chi.NewRouter()

	// Base middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(cfg.Logger).Handler)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Handler)
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics)
	}

	if cfg.Security.CORSEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Security.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			MaxAge:         300,
		}))
	}

	r.Use(middleware.NewAuthMiddleware(cfg.Security.APIKeys, cfg.Logger).Handler)

	// Rate limiting (if Redis is available)
	if cfg.Cache != nil && cfg.Security.RateLimitEnabled {
		r.Use(middleware.NewRateLimitMiddleware(cfg.Cache, cfg.Security.RateLimitRPM, true, cfg.Logger).Handler)
	}

	// Health check endpoints (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(cfg.Cache, cfg.Breakers))
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
		if cfg.MaxRequestSize > 0 {
			r.Use(limitBody(cfg.MaxRequestSize))
		}

		detectHandler := handlers.NewDetectHandler(cfg.Detector, cfg.Opener, cfg.Logger)
		r.Post("/detect", detectHandler.Detect)
	})

	return &Router{
		Router: r,
		logger: cfg.Logger,
	}
}

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

// healthHandler returns basic health status
func healthHandler(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "uidetect-api",
	})
}

// readyHandler checks dependencies. Open breakers are reported but do not fail readiness.
func readyHandler(cache HealthChecker, breakers []*resilience.Breaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string)
		allHealthy := true

		if cache != nil {
			if err := cache.Health(r.Context()); err != nil {
				checks["redis"] = "unhealthy: " + err.Error()
				allHealthy = false
			} else {
				checks["redis"] = "healthy"
			}
		} else {
			checks["redis"] = "not configured"
		}

		for _, b := range breakers {
			if b == nil {
				continue
			}
			checks[b.Name()] = "breaker " + b.State().String()
		}

		status := http.StatusOK
		statusText := "ready"
		if !allHealthy {
			status = http.StatusServiceUnavailable
			statusText = "not ready"
		}

		httputil.JSON(w, status, map[string]any{
			"status": statusText,
			"checks": checks,
		})
	}
}
