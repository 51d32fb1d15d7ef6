package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/testforge/uidetect/internal/api"
	"github.com/testforge/uidetect/internal/app"
	"github.com/testforge/uidetect/internal/config"
	"github.com/testforge/uidetect/internal/observability"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(string(cfg.Env), cfg.GetLogLevel())
	defer logger.Sync()

	logger.Info("Starting uidetect API", zap.String("environment", string(cfg.Env)))

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	services, err := app.Build(startCtx, cfg, logger, app.Options{Browser: true, Redis: true})
	cancel()
	if err != nil {
		logger.Fatal("Failed to initialize detector", zap.Error(err))
	}
	defer func() {
		if err := services.Close(); err != nil {
			logger.Warn("Failed to release resources", zap.Error(err))
		}
	}()

	routerCfg := api.RouterConfig{
		Detector:       services.Detector,
		Breakers:       services.Breakers,
		Metrics:        services.Metrics.Handler(),
		HTTPMetrics:    services.Metrics.HTTPMiddleware,
		Security:       cfg.Security,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxRequestSize: cfg.Server.MaxRequestSize,
		Logger:         logger,
	}
	// Interface fields stay nil when the service is absent.
	if services.Cache != nil {
		routerCfg.Cache = services.Cache
	}
	if services.Opener != nil {
		routerCfg.Opener = services.Opener
	}
	if cfg.Security.AuthEnabled() {
		logger.Info("API key authentication enabled", zap.Int("keys", len(cfg.Security.APIKeys)))
	}

	router := api.NewRouter(routerCfg)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API server listening", zap.String("addr", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", zap.Error(err))
		}

	case sig := <-shutdown:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed, forcing close", zap.Error(err))
			server.Close()
		}

		logger.Info("Server stopped gracefully")
	}
}
