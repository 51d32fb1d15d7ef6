// Package app assembles the detector and its collaborators from configuration. Both the
// HTTP server and the CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/testforge/uidetect/internal/browser"
	"github.com/testforge/uidetect/internal/config"
	"github.com/testforge/uidetect/internal/observability"
	"github.com/testforge/uidetect/internal/repository/redis"
	"github.com/testforge/uidetect/internal/resilience"
	"github.com/testforge/uidetect/internal/services/detection"
	"github.com/testforge/uidetect/internal/storage"
	"github.com/testforge/uidetect/internal/vision"
)

// Options selects the optional parts Build starts.
type Options struct {
	// Browser starts the configured engine so URLs can be opened.
	Browser bool
	// Redis connects the localization cache and the API rate limiter when configured.
	Redis bool
}

// App owns everything Build started. Close releases it in reverse order.
type App struct {
	Detector *detection.Detector
	Metrics  *observability.Metrics
	Breakers []*resilience.Breaker
	// Cache is nil when Redis is not configured or unreachable.
	Cache *redis.Cache
	// Opener is nil unless Options.Browser was set and the browser started.
	Opener browser.Opener

	logger  *zap.Logger
	closers []func() error
}

// Build wires the detector from cfg. Optional dependencies that fail to start are logged
// and left out; only AI provider misconfiguration is an error.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Metrics: observability.NewMetrics("uidetect"),
		logger:  logger,
	}

	if opts.Redis && (cfg.Localizer.CacheEnabled || cfg.Security.RateLimitEnabled) {
		cache, err := redis.New(cfg.Redis, cfg.Localizer.CacheTTL)
		if err != nil {
			logger.Warn("Failed to connect to Redis, caching disabled", zap.Error(err))
		} else {
			a.Cache = cache
			a.closers = append(a.closers, cache.Close)
			logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr()))
		}
	}

	v, err := NewVision(ctx, cfg, a.Metrics, logger)
	if err != nil {
		return nil, err
	}
	a.Breakers = v.Breakers

	localizer := v.Localizer
	if localizer != nil && a.Cache != nil && cfg.Localizer.CacheEnabled {
		localizer = vision.NewCachedLocalizer(localizer, a.Cache, a.Metrics, logger)
	}

	detectorOpts := []detection.Option{detection.WithMetrics(a.Metrics)}
	if cfg.Storage.Enabled && cfg.Detection.ArchiveUnresolved {
		archive, err := storage.NewScreenshotArchive(cfg.Storage)
		if err == nil {
			err = archive.EnsureBucket(ctx)
		}
		if err != nil {
			logger.Warn("Screenshot archive unavailable", zap.Error(err))
		} else {
			detectorOpts = append(detectorOpts, detection.WithArchive(archive))
			logger.Info("Archiving unresolved screenshots", zap.String("bucket", cfg.Storage.Bucket))
		}
	}

	a.Detector = detection.NewDetector(detection.Config{
		FieldConcurrency:  cfg.Detection.FieldConcurrency,
		MaxCandidates:     cfg.Detection.MaxCandidates,
		TempDir:           cfg.Detection.TempDir,
		ArchiveUnresolved: cfg.Detection.ArchiveUnresolved,
	}, localizer, v.Mapper, logger, detectorOpts...)
	// The detector closes the localizer and mapper.
	a.closers = append(a.closers, a.Detector.Close)

	if opts.Browser && cfg.Browser.Enabled {
		opener, err := browser.New(cfg.Browser, logger)
		if err != nil {
			logger.Warn("Failed to start browser, URL detection disabled", zap.Error(err))
		} else {
			a.Opener = opener
			a.closers = append(a.closers, opener.Close)
			logger.Info("Browser started", zap.String("engine", cfg.Browser.Engine))
		}
	}

	return a, nil
}

// Close releases everything Build started.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Vision is the guarded AI pair. Either side may be nil when disabled.
type Vision struct {
	Localizer vision.Localizer
	Mapper    vision.Reasoner
	Breakers  []*resilience.Breaker
}

// NewVision builds the localizer and mapper named in cfg, each behind its own breaker.
func NewVision(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) (Vision, error) {
	var v Vision

	var reasoner vision.Reasoner
	if cfg.Mapper.Enabled() {
		baseURL := cfg.Mapper.BaseURL
		apiKey := cfg.Mapper.APIKey()
		if strings.EqualFold(cfg.Mapper.Provider, "service") {
			if baseURL == "" {
				baseURL = cfg.Localizer.URL
			}
			apiKey = cfg.Localizer.APIKey
		}
		r, err := vision.NewReasoner(ctx, vision.ProviderConfig{
			Provider:  cfg.Mapper.Provider,
			APIKey:    apiKey,
			Model:     cfg.Mapper.Model,
			BaseURL:   baseURL,
			MaxTokens: cfg.Mapper.MaxTokens,
		})
		if err != nil {
			return Vision{}, fmt.Errorf("creating mapper: %w", err)
		}
		reasoner = r
		b := newBreaker("mapper", cfg.Breaker, metrics, logger)
		v.Mapper = vision.GuardReasoner(r, b, metrics)
		v.Breakers = append(v.Breakers, b)
	}

	var localizer vision.Localizer
	switch strings.ToLower(cfg.Localizer.Mode) {
	case "service":
		client, err := vision.NewServiceClient(vision.ServiceConfig{
			BaseURL:      cfg.Localizer.URL,
			APIKey:       cfg.Localizer.APIKey,
			LocalizeTask: cfg.Localizer.Task,
			Timeout:      cfg.Localizer.Timeout,
			RateLimitRPM: cfg.Localizer.RateLimitRPM,
		})
		if err != nil {
			return Vision{}, fmt.Errorf("creating localizer: %w", err)
		}
		localizer = client
	case "llm":
		if reasoner == nil {
			return Vision{}, errors.New("llm localizer requires a mapper provider")
		}
		localizer = vision.NewReasonerLocalizer(reasoner, cfg.Mapper.MaxImageWidth, cfg.Detection.TempDir, logger)
	}
	if localizer != nil {
		b := newBreaker("localizer", cfg.Breaker, metrics, logger)
		v.Localizer = vision.GuardLocalizer(localizer, b, metrics)
		v.Breakers = append(v.Breakers, b)
	}

	logger.Info("Vision configured",
		zap.String("localizer", cfg.Localizer.Mode),
		zap.String("mapper", cfg.Mapper.Provider),
	)
	return v, nil
}

func newBreaker(name string, cfg config.BreakerConfig, metrics *observability.Metrics, logger *zap.Logger) *resilience.Breaker {
	return resilience.New(resilience.Config{
		Name:        name,
		MaxFailures: cfg.MaxFailures,
		Cooldown:    cfg.Cooldown,
		OnStateChange: func(name string, from, to resilience.State) {
			metrics.SetBreakerState(name, int(to))
			logger.Warn("Circuit breaker state changed",
				zap.String("service", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}
