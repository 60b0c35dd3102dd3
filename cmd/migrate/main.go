/**
 * @description
 * Applies the embedded database migrations.
 *
 * Usage:
 *   go run ./cmd/migrate [up|down [steps]|status|version]
 *
 * @dependencies
 * - Environment variables: DATABASE_URL
 */
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/razajohri/lunalink-real/internal/config"
	"github.com/razajohri/lunalink-real/internal/logging"
	"github.com/razajohri/lunalink-real/internal/store"
)

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbpool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database setup failed", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()

	migrator, err := store.NewMigrator(dbpool, logger)
	if err != nil {
		logger.Error("failed to build migrator", "error", err)
		os.Exit(1)
	}

	switch command {
	case "up":
		err = migrator.Up(ctx)
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			steps, err = strconv.Atoi(os.Args[2])
			if err != nil || steps < 1 {
				fmt.Fprintf(os.Stderr, "invalid step count %q\n", os.Args[2])
				os.Exit(1)
			}
		}
		err = migrator.Down(ctx, steps)
	case "status":
		err = migrator.Status(ctx)
	case "version":
		var version int64
		version, err = migrator.Version(ctx)
		if err == nil {
			fmt.Printf("Current migration version: %d\n", version)
		}
	default:
		fmt.Println("Usage: go run ./cmd/migrate [up|down [steps]|status|version]")
		os.Exit(1)
	}

	if err != nil {
		logger.Error("migration command failed", "command", command, "error", err)
		os.Exit(1)
	}
}
