/**
 * @description
 * This is the main entry point for the LunaLink API.
 * It wires configuration, the database pool, the Shopify, Stripe and voice
 * clients, the optional Redis limiter and RabbitMQ producer, and the HTTP router,
 * then serves until SIGINT/SIGTERM.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/razajohri/lunalink-real/internal/api"
	"github.com/razajohri/lunalink-real/internal/app"
	"github.com/razajohri/lunalink-real/internal/config"
	"github.com/razajohri/lunalink-real/internal/logging"
	"github.com/razajohri/lunalink-real/internal/metrics"
	"github.com/razajohri/lunalink-real/internal/security"
	"github.com/razajohri/lunalink-real/internal/store"
	"github.com/razajohri/lunalink-real/pkg/rabbitmq"
	"github.com/razajohri/lunalink-real/pkg/shopifyclient"
	"github.com/razajohri/lunalink-real/pkg/stripeclient"
	"github.com/razajohri/lunalink-real/pkg/vapiclient"
)

func main() {
	// Load .env file for local development. In production, env vars are set directly.
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbpool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database setup failed", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	cipher, err := security.NewTokenCipher(cfg.TokenEncryptionKey)
	if err != nil {
		logger.Error("invalid TOKEN_ENCRYPTION_KEY", "error", err)
		os.Exit(1)
	}
	if !cipher.Enabled() {
		logger.Warn("TOKEN_ENCRYPTION_KEY not set; store access tokens are saved unencrypted")
	}

	repository := store.NewRepository(dbpool, cipher)

	// Events are best effort; the API runs without a broker.
	var publisher app.EventPublisher
	if strings.TrimSpace(cfg.RabbitMQURL) != "" {
		producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.EventsExchange)
		if err != nil {
			logger.Warn("rabbitmq unavailable; domain events disabled", "error", err)
		} else {
			defer producer.Close()
			publisher = producer
			logger.Info("rabbitmq producer connected", "exchange", cfg.EventsExchange)
		}
	}

	var limiter app.RateLimiter
	if cfg.CheckoutRateLimit > 0 && strings.TrimSpace(cfg.RedisURL) != "" {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			logger.Warn("redis url parse failed; checkout rate limiting disabled", "error", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
			pingErr := redisClient.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				logger.Warn("redis ping failed; checkout rate limiting disabled", "error", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				limiter = app.NewCheckoutLimiter(redisClient, cfg.CheckoutRateLimit, cfg.CheckoutRateWindow)
				logger.Info("redis connected; checkout rate limiting enabled", "limit", cfg.CheckoutRateLimit, "window", cfg.CheckoutRateWindow)
			}
		}
	}

	var billingProvider app.BillingProvider
	if strings.TrimSpace(cfg.StripeSecretKey) != "" {
		billingProvider = stripeclient.NewClient(cfg.StripeSecretKey, cfg.StripeMaxNetworkRetries)
	} else {
		logger.Warn("STRIPE_SECRET_KEY is not set; checkout is unavailable")
	}

	var callSource app.CallSource
	if strings.TrimSpace(cfg.VapiAPIKey) != "" {
		callSource = vapiclient.NewClient(vapiclient.Config{BaseURL: cfg.VapiBaseURL, APIKey: cfg.VapiAPIKey})
	}

	shopify := shopifyclient.NewClient(cfg.ShopifyAPIKey, cfg.ShopifyAPISecret, cfg.ShopifyScopes, cfg.ShopifyRedirectURI)

	shopifyService := app.NewShopifyService(repository, shopify, publisher, logger, app.ShopifyOptions{
		VerifyHMAC:        cfg.ShopifyVerifyHMAC,
		VerifyManualToken: cfg.ShopifyVerifyManualToken,
	})
	billingService := app.NewBillingService(billingProvider, repository, publisher, limiter, logger, app.BillingOptions{
		WebhookSecret: cfg.StripeWebhookSecret,
		WebhookParser: stripeclient.ParseWebhookEvent,
	})
	usageService := app.NewUsageService(repository)
	callService := app.NewCallService(callSource, logger)

	handler := api.NewHandler(shopifyService, billingService, usageService, callService, cfg.AppBaseURL, logger, metrics.New())
	router := api.NewRouter(handler, cfg.SupabaseJWTSecret, cfg.InternalAPIKey, cfg.MetricsPath)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
