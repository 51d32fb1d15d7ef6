package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsActive  prometheus.Gauge

	// Detection metrics
	DetectionsTotal     *prometheus.CounterVec
	DetectionDuration   *prometheus.HistogramVec
	StrategyAttempts    *prometheus.CounterVec
	StrategyResolved    *prometheus.CounterVec
	StrategyDuration    *prometheus.HistogramVec
	FieldsUnresolved    *prometheus.CounterVec
	ScreenshotsArchived prometheus.Counter
	TempCleanupFailures prometheus.Counter

	// Vision service metrics
	VisionRequestsTotal   *prometheus.CounterVec
	VisionRequestDuration *prometheus.HistogramVec
	VisionCacheHits       prometheus.Counter
	VisionCacheMisses     prometheus.Counter
	BreakerState          *prometheus.GaugeVec
}

// NewMetrics creates metrics registered on a fresh registry, so several instances can
// coexist in tests.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "uidetect"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_active",
				Help:      "Number of active HTTP requests",
			},
		),

		DetectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "detections_total",
				Help:      "Detection calls by context and outcome (complete, partial, empty)",
			},
			[]string{"context", "outcome"},
		),
		DetectionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "detection_duration_seconds",
				Help:      "End-to-end detection call duration",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"context"},
		),
		StrategyAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "strategy_attempts_total",
				Help:      "Strategy attempts by strategy and status (ok, error)",
			},
			[]string{"strategy", "status"},
		),
		StrategyResolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "strategy_fields_resolved_total",
				Help:      "Fields committed by each strategy",
			},
			[]string{"strategy"},
		),
		StrategyDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "strategy_duration_seconds",
				Help:      "Strategy attempt duration",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"strategy"},
		),
		FieldsUnresolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fields_unresolved_total",
				Help:      "Requested fields left unresolved after every strategy",
			},
			[]string{"context"},
		),
		ScreenshotsArchived: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "screenshots_archived_total",
				Help:      "Screenshots archived for calls with unresolved fields",
			},
		),
		TempCleanupFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "temp_cleanup_failures_total",
				Help:      "Temporary screenshot files that could not be removed",
			},
		),

		VisionRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vision_requests_total",
				Help:      "Vision service calls by service and status",
			},
			[]string{"service", "status"},
		),
		VisionRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "vision_request_duration_seconds",
				Help:      "Vision service call duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"service"},
		),
		VisionCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vision_cache_hits_total",
				Help:      "Localizer responses served from cache",
			},
		),
		VisionCacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vision_cache_misses_total",
				Help:      "Localizer cache misses",
			},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state per service (0 closed, 1 open, 2 half-open)",
			},
			[]string{"service"},
		),
	}

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDetection records one detection call.
func (m *Metrics) RecordDetection(context string, requested, resolved int, duration time.Duration) {
	outcome := "partial"
	switch {
	case resolved == 0:
		outcome = "empty"
	case resolved >= requested:
		outcome = "complete"
	}
	m.DetectionsTotal.WithLabelValues(context, outcome).Inc()
	m.DetectionDuration.WithLabelValues(context).Observe(duration.Seconds())
	if requested > resolved {
		m.FieldsUnresolved.WithLabelValues(context).Add(float64(requested - resolved))
	}
}

// RecordStrategy records one strategy attempt.
func (m *Metrics) RecordStrategy(strategy string, resolved int, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StrategyAttempts.WithLabelValues(strategy, status).Inc()
	m.StrategyResolved.WithLabelValues(strategy).Add(float64(resolved))
	m.StrategyDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordVision records a vision service call.
func (m *Metrics) RecordVision(service, status string, duration time.Duration) {
	m.VisionRequestsTotal.WithLabelValues(service, status).Inc()
	m.VisionRequestDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordCache records a localizer cache lookup.
func (m *Metrics) RecordCache(hit bool) {
	if hit {
		m.VisionCacheHits.Inc()
		return
	}
	m.VisionCacheMisses.Inc()
}

// RecordTempCleanupFailure counts a screenshot temp file that could not be removed.
func (m *Metrics) RecordTempCleanupFailure() {
	m.TempCleanupFailures.Inc()
}

// RecordArchive counts a screenshot archived for an unresolved detection.
func (m *Metrics) RecordArchive() {
	m.ScreenshotsArchived.Inc()
}

// SetBreakerState publishes a breaker state transition.
func (m *Metrics) SetBreakerState(service string, state int) {
	m.BreakerState.WithLabelValues(service).Set(float64(state))
}

// HTTPMiddleware returns middleware for recording HTTP metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsActive.Inc()
		defer m.HTTPRequestsActive.Dec()

		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		m.RecordHTTPRequest(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
