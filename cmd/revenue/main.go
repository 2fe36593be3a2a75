package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"revenue/internal/backend"
	"revenue/internal/cli"
	"revenue/internal/log"
)

func main() {
	once := flag.Bool("once", false, "run a single poll and exit, ignoring RUN_INTERVAL")
	flag.Parse()
	os.Exit(run(*once))
}

func run(once bool) int {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting revenue poller")

	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	b, err := backend.NewFactory(logger).Build(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend",
			log.FieldOperation, log.OpStartup,
			log.FieldError, err.Error())
		return 1
	}
	defer func() {
		shutdownCtx, shutdownCancel := cli.ShutdownContext(30 * time.Second)
		defer shutdownCancel()
		if err := b.Close(shutdownCtx); err != nil {
			logger.Warn("Cleanup finished with errors", log.FieldError, err.Error())
		}
		logger.Info("Revenue poller stopped")
	}()

	if once || cfg.RunInterval == 0 {
		if _, err := b.Service.Run(ctx, time.Now()); err != nil {
			logger.Error("Run failed", log.FieldError, err.Error())
			return 1
		}
		return 0
	}

	if b.Sync != nil {
		// Days that failed to reach the sheet earlier are retried in the background.
		if err := b.Sync.Start(ctx); err != nil {
			logger.Error("Failed to start sheet sync", log.FieldError, err.Error())
		}
	}

	logger.Info("Polling", "interval", cfg.RunInterval.String())
	runLoop(ctx, logger, b, cfg.RunInterval)
	return 0
}

func runLoop(ctx context.Context, logger *log.Logger, b *backend.Backend, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := b.Service.Run(ctx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Run failed", log.FieldError, err.Error())
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
