package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/providerlens/providerlens/internal/api"
	"github.com/providerlens/providerlens/internal/browser"
	"github.com/providerlens/providerlens/internal/config"
	"github.com/providerlens/providerlens/internal/observability"
	"github.com/providerlens/providerlens/internal/services/aggregate"
	"github.com/providerlens/providerlens/internal/sources"
)

func main() {
	// Load .env in development; missing file is fine
	godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.App.Environment, cfg.GetLogLevel())
	defer logger.Sync()

	logger.Info("Starting ProviderLens API",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	// Launch the shared browser session
	session, err := browser.NewSession(cfg.Browser, logger.Named("browser"))
	if err != nil {
		logger.Fatal("Failed to launch browser", zap.Error(err))
	}
	defer session.Close()
	logger.Info("Browser session ready", zap.Bool("headless", cfg.Browser.Headless))

	// Metrics
	metrics := observability.InitMetrics(cfg.App.Name)

	// REST collaborators
	collab := aggregate.Collaborators{
		Registry: sources.NewRegistryClient(cfg.Registry, logger),
		Places:   sources.NewPlacesClient(cfg.Places, logger),
		WebDir:   sources.NewWebDirClient(cfg.WebDir, logger),
	}
	if !collab.Places.Configured() {
		logger.Warn("Places API key not set, places lookups disabled")
	}

	// Lookup service
	lookups := aggregate.NewService(session, collab, cfg, metrics, logger.Named("lookup"))

	// Create router
	router := api.NewRouter(api.RouterConfig{
		Lookups:    lookups,
		Metrics:    metrics,
		Logger:     logger,
		EnableCORS: true,
		RateLimit:  cfg.Server.RateLimit,
		RunTimeout: cfg.RunTimeout,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API server listening", zap.String("addr", addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal("Server error", zap.Error(err))

	case sig := <-shutdown:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Create shutdown context with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed, forcing close", zap.Error(err))
			server.Close()
		}

		logger.Info("Server stopped gracefully")
	}
}

// initLogger creates a configured zap logger
func initLogger(env, level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build()
	if err != nil {
		// Fall back to basic logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
