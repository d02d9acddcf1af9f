package main

import (
	"context"
	"errors"
	"os"
	"time"

	"clubfines/internal/amqp"
	"clubfines/internal/backend"
	"clubfines/internal/cli"
	"clubfines/internal/config"
	"clubfines/internal/services"
	"clubfines/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting fines-worker")

	cfg := config.Load()
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// The primary store is only read here; the server owns writes.
	store, bcfg, err := cli.OpenStore(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Cleanup()

	sheetsClient, err := backend.NewSheetsClient(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	processor := services.NewMirrorProcessor(store.Store, sheetsClient, services.MirrorProcessorConfig{
		Interval:   cfg.SyncInterval,
		MaxRetries: cfg.SyncMaxRetries,
		RetryDelay: 2 * time.Second,
	})
	mirrorWorker := worker.NewMirrorWorker(processor, sheetsClient, cfg.SyncImmediate)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Mirror processor stop error", "error", err)
		}
	})

	// Cover anything published while the worker was down
	logger.Info("Performing startup mirror...")
	if err := mirrorWorker.StartupMirror(ctx); err != nil {
		logger.Error("Startup mirror failed", "error", err)
		// Don't exit - the periodic loop retries
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start mirror processor", "error", err)
		os.Exit(1)
	}
	logger.Info("Mirror processor started",
		"interval", cfg.SyncInterval,
		"max_retries", cfg.SyncMaxRetries,
		"immediate", cfg.SyncImmediate)

	if err := amqpClient.ConsumeChanges(ctx, mirrorWorker.HandleChangeMessage); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = processor.Stop(stopCtx)
		cancel()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	stats := processor.Stats()
	logger.Info("Worker shutdown complete",
		"mirrored", stats.Mirrored,
		"skipped", stats.Skipped,
		"failed", stats.Failed)
}
