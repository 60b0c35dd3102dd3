/**
 * @description
 * This is the main entry point for the scheduler.
 * It is a non-HTTP, long-running process that executes scheduled tasks (cron jobs):
 * currently the monthly reset of subscriber call counters.
 */
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/razajohri/lunalink-real/internal/app"
	"github.com/razajohri/lunalink-real/internal/config"
	"github.com/razajohri/lunalink-real/internal/logging"
	"github.com/razajohri/lunalink-real/internal/security"
	"github.com/razajohri/lunalink-real/internal/store"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	if envErr != nil {
		logger.Debug("no .env file found, using environment variables")
	}

	ctx := context.Background()

	dbpool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database setup failed", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	// The usage jobs never touch store tokens; a passthrough cipher is enough.
	cipher, _ := security.NewTokenCipher("")
	repository := store.NewRepository(dbpool, cipher)

	jobs := app.NewJobs(app.NewUsageService(repository), logger)
	scheduler := app.NewScheduler(jobs, logger, cfg.ResetUsageJobSchedule)

	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	logger.Info("scheduler started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping scheduler")
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	logger.Info("scheduler stopped gracefully")
}
