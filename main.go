// Package main is the entry point for the fx-calc HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/yelinaung/fx-calc/internal/api"
	"gitlab.com/yelinaung/fx-calc/internal/config"
	"gitlab.com/yelinaung/fx-calc/internal/database"
	"gitlab.com/yelinaung/fx-calc/internal/exchange"
	"gitlab.com/yelinaung/fx-calc/internal/logger"
	"gitlab.com/yelinaung/fx-calc/internal/models"
	"gitlab.com/yelinaung/fx-calc/internal/repository"
	"gitlab.com/yelinaung/fx-calc/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("fx-calc %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Configure(cfg.LogLevel, cfg.LogFormat)
	logger.InitHashSalt(cfg.LogHashSalt)
	logger.Log.Info().Str("config", cfg.String()).Msg("Configuration loaded")

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Exporter:    cfg.Telemetry.Exporter,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	logger.Log.Info().Msg("Database initialized successfully")

	retry := exchange.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Exchange.MaxAttempts
	retry.BaseDelay = cfg.Exchange.RetryDelay

	provider, err := exchange.NewProvider(exchange.ProviderConfig{
		Name:              cfg.Exchange.Provider,
		BaseURL:           cfg.Exchange.BaseURL,
		APIKey:            cfg.Exchange.APIKey,
		Timeout:           cfg.Exchange.Timeout,
		RequestsPerSecond: cfg.Exchange.RateLimit,
		Retry:             retry,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create exchange rate provider")
	}
	if closer, ok := provider.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	rates := exchange.NewCachedRepository(
		provider,
		models.NewCurrencyRegistry(),
		cfg.CacheDuration(),
		exchange.WithBaseCurrency(cfg.Exchange.BaseCurrency),
	)

	server := api.NewServer(rates, repository.NewCalculationRepository(pool))
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Log.Info().Msg("Shutting down...")
		cancel()
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error().Err(err).Msg("HTTP server shutdown failed")
		}
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Log.Error().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	logger.Log.Info().Str("addr", cfg.HTTPAddr).Str("provider", provider.Name()).Msg("HTTP server starting")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatal().Err(err).Msg("HTTP server failed")
	}
}
