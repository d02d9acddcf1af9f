package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"clubfines/internal/backend"
	"clubfines/internal/cli"
	apphttp "clubfines/internal/http"
	"clubfines/internal/middleware/ratelimit"
	"clubfines/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()

	store, bcfg, err := cli.OpenStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	notifier, err := backend.NewFactory(logger).CreateNotifier(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize notifier", "error", err, "notifier", cfg.NotifyBackend)
		_ = store.Cleanup()
		os.Exit(1)
	}

	svc := services.NewFineService(store.Store, notifier.Notifier)

	loadCtx, cancelLoad := context.WithTimeout(ctx, time.Minute)
	repaired, err := svc.Load(loadCtx)
	cancelLoad()
	if err != nil {
		logger.Error("Failed to load ledger", "error", err, "backend", cfg.DataBackend)
		_ = store.Cleanup()
		os.Exit(1)
	}
	if len(repaired) > 0 {
		logger.Warn("Ledger repaired on load", "discrepancies", len(repaired))
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		AdminPassword: cfg.AdminPassword,
		CacheTTL:      cfg.CacheTTL,
		CacheSize:     cfg.CacheSize,
		RateLimit:     ratelimit.DefaultConfig(),
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if notifier.Cleanup != nil {
			if err := notifier.Cleanup(); err != nil {
				logger.Error("Notifier cleanup error", "error", err)
			}
		}
		if err := store.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting clubfines server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"notifier", cfg.NotifyBackend,
		"members", len(svc.Members()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
