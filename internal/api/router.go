/**
 * @description
 * This file sets up the HTTP router using the go-chi/chi router.
 * It defines the API routes, applies middleware for logging, CORS, and authentication,
 * and maps the routes to their corresponding handler functions.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the routes. The metrics
// endpoint is mounted only when metricsPath is set and the handler has metrics.
func NewRouter(h *Handler, jwtSecret, internalAPIKey, metricsPath string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Client-Info", "Apikey"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("LunaLink backend is healthy"))
	})

	if metricsPath != "" && h.metrics != nil {
		r.Method(http.MethodGet, metricsPath, h.metrics.Handler())
	}

	// Public: Shopify redirects the merchant's browser here, Stripe posts signed events.
	r.Get("/shopify/callback", h.handleShopifyCallback)
	r.Post("/webhooks/stripe", h.handleStripeWebhook)
	r.Get("/billing/plans", h.handleListPlans)

	r.Group(func(r chi.Router) {
		r.Use(SupabaseAuthMiddleware(jwtSecret))

		r.Get("/shopify/connect-url", h.handleShopifyConnectURL)
		r.Get("/shopify/store", h.handleGetStore)
		r.Put("/shopify/store", h.handleConnectStore)

		r.Post("/billing/checkout", h.handleCreateCheckout)
		r.Post("/billing/check-subscription", h.handleCheckSubscription)
		r.Get("/billing/subscription", h.handleGetSubscription)

		r.Get("/calls", h.handleListCalls)
		r.Get("/calls/stats", h.handleCallStats)
	})

	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalAPIKey))

		r.Post("/internal/usage/calls", h.handleRecordCalls)
	})

	return r
}
