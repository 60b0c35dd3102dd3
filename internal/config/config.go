/**
 * @description
 * This file handles the configuration management for the LunaLink backend.
 * It uses the 'viper' library to load configuration from environment variables,
 * providing a centralized and consistent way to manage application settings.
 * The API server, the scheduler and the maintenance CLI all share this Config.
 */
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	LogFormat   string `mapstructure:"LOG_FORMAT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	MetricsPath string `mapstructure:"METRICS_PATH"`

	// AppBaseURL is the dashboard origin used for OAuth redirects and as the
	// fallback origin for checkout success/cancel URLs.
	AppBaseURL        string `mapstructure:"APP_BASE_URL"`
	SupabaseJWTSecret string `mapstructure:"SUPABASE_JWT_SECRET"`
	InternalAPIKey    string `mapstructure:"INTERNAL_API_KEY"`

	ShopifyAPIKey            string `mapstructure:"SHOPIFY_API_KEY"`
	ShopifyAPISecret         string `mapstructure:"SHOPIFY_API_SECRET"`
	ShopifyScopes            string `mapstructure:"SHOPIFY_SCOPES"`
	ShopifyRedirectURI       string `mapstructure:"SHOPIFY_REDIRECT_URI"`
	ShopifyVerifyHMAC        bool   `mapstructure:"SHOPIFY_VERIFY_HMAC"`
	ShopifyVerifyManualToken bool   `mapstructure:"SHOPIFY_VERIFY_MANUAL_TOKEN"`
	TokenEncryptionKey       string `mapstructure:"TOKEN_ENCRYPTION_KEY"`

	StripeSecretKey         string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret     string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	StripeMaxNetworkRetries int64  `mapstructure:"STRIPE_MAX_NETWORK_RETRIES"`

	RedisURL           string        `mapstructure:"REDIS_URL"`
	CheckoutRateLimit  int           `mapstructure:"CHECKOUT_RATE_LIMIT"`
	CheckoutRateWindow time.Duration `mapstructure:"CHECKOUT_RATE_WINDOW"`

	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	VapiAPIKey  string `mapstructure:"VAPI_API_KEY"`
	VapiBaseURL string `mapstructure:"VAPI_BASE_URL"`

	ResetUsageJobSchedule string `mapstructure:"RESET_USAGE_JOB_SCHEDULE"`
}

var envKeys = []string{
	"SERVER_PORT",
	"DATABASE_URL",
	"LOG_FORMAT",
	"LOG_LEVEL",
	"METRICS_PATH",
	"APP_BASE_URL",
	"SUPABASE_JWT_SECRET",
	"INTERNAL_API_KEY",
	"SHOPIFY_API_KEY",
	"SHOPIFY_API_SECRET",
	"SHOPIFY_SCOPES",
	"SHOPIFY_REDIRECT_URI",
	"SHOPIFY_VERIFY_HMAC",
	"SHOPIFY_VERIFY_MANUAL_TOKEN",
	"TOKEN_ENCRYPTION_KEY",
	"STRIPE_SECRET_KEY",
	"STRIPE_WEBHOOK_SECRET",
	"STRIPE_MAX_NETWORK_RETRIES",
	"REDIS_URL",
	"CHECKOUT_RATE_LIMIT",
	"CHECKOUT_RATE_WINDOW",
	"RABBITMQ_URL",
	"EVENTS_EXCHANGE",
	"VAPI_API_KEY",
	"VAPI_BASE_URL",
	"RESET_USAGE_JOB_SCHEDULE",
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("METRICS_PATH", "/metrics")
	viper.SetDefault("APP_BASE_URL", "https://lunalink-real.lovable.app")
	viper.SetDefault("SHOPIFY_SCOPES", "read_checkouts,read_customers")
	viper.SetDefault("SHOPIFY_VERIFY_HMAC", false)
	viper.SetDefault("SHOPIFY_VERIFY_MANUAL_TOKEN", false)
	viper.SetDefault("STRIPE_MAX_NETWORK_RETRIES", 2)
	viper.SetDefault("CHECKOUT_RATE_LIMIT", 5)
	viper.SetDefault("CHECKOUT_RATE_WINDOW", "1m")
	viper.SetDefault("EVENTS_EXCHANGE", "lunalink_events")
	viper.SetDefault("VAPI_BASE_URL", "https://api.vapi.ai")
	viper.SetDefault("RESET_USAGE_JOB_SCHEDULE", "0 1 1 * *") // At 01:00 on day-of-month 1.
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.AppBaseURL = strings.TrimSuffix(strings.TrimSpace(config.AppBaseURL), "/")
	if strings.TrimSpace(config.ShopifyRedirectURI) == "" {
		config.ShopifyRedirectURI = config.AppBaseURL + "/shopify/callback"
	}

	if strings.TrimSpace(config.DatabaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if config.AppBaseURL == "" {
		return nil, fmt.Errorf("APP_BASE_URL is required")
	}
	if config.StripeMaxNetworkRetries < 0 {
		config.StripeMaxNetworkRetries = 0
	}

	return &config, nil
}
