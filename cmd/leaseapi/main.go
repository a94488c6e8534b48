package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/V4T54L/tenancy-engine/internal/adapter/api"
	"github.com/V4T54L/tenancy-engine/internal/app"
	"github.com/V4T54L/tenancy-engine/internal/pkg/config"
	"github.com/V4T54L/tenancy-engine/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Stores, Directory and Use Cases ---
	a, err := app.Open(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// --- Start Admin and Metrics Server ---
	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: api.NewAdminRouter(prometheus.DefaultGatherer, a.Deps, logger),
	}

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Initialize Lease API Server ---
	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewRouter(cfg, logger, a.Metrics, a.Leases, a.Alerts),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("starting lease api server", "addr", apiServer.Addr, "timezone", cfg.Timezone)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("lease api server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("lease api server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}
