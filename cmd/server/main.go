package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/hsds-validator/internal/config"
	"github.com/JonMunkholm/hsds-validator/internal/core"
	"github.com/JonMunkholm/hsds-validator/internal/logging"
	"github.com/JonMunkholm/hsds-validator/internal/metrics"
	"github.com/JonMunkholm/hsds-validator/internal/resources"
	"github.com/JonMunkholm/hsds-validator/internal/store"
	"github.com/JonMunkholm/hsds-validator/internal/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog := resources.NewCatalog(
		resources.WithOverrideDir(cfg.Validation.SchemaDir),
		resources.WithLogger(logger),
	)
	logger.Info("schemas available", "count", len(catalog.Types()))

	if cfg.Validation.SchemaDir != "" && cfg.Validation.WatchSchemas {
		go func() {
			if err := catalog.Watch(ctx, cfg.Validation.SchemaDir); err != nil {
				logger.Error("schema watcher stopped", "dir", cfg.Validation.SchemaDir, "error", err)
			}
		}()
	}

	collector := metrics.NewCollector(metrics.Config{Namespace: cfg.Metrics.Namespace}, nil)

	opts := []core.ServiceOption{
		core.WithLimiter(core.NewValidationLimiter(cfg.Validation.MaxConcurrent, cfg.Validation.MaxWaitTime)),
		core.WithMetrics(collector),
		core.WithTimeout(cfg.Validation.Timeout),
		core.WithLogger(logger),
	}
	serverOpts := []web.ServerOption{
		web.WithMetricsHandler(collector.Handler()),
		web.WithLogger(logger),
	}

	if cfg.Database.Enabled() {
		history, err := store.Open(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to open history database", "error", err)
			os.Exit(1)
		}
		defer history.Close()
		logger.Info("validation history enabled")

		opts = append(opts, core.WithHistory(history))
		serverOpts = append(serverOpts, web.WithHistoryPinger(history))
	}

	service := core.NewService(catalog, opts...)
	server := web.NewServer(service, cfg, serverOpts...)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if active := service.Limiter().ActiveCount(); active > 0 {
			logger.Info("waiting for validations to complete", "active", active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				logger.Warn("validations did not complete in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
