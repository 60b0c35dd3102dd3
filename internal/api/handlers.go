/**
 * @description
 * This file contains the Handler type shared by all HTTP handlers and the
 * response helpers. Handlers parse the request, call the service layer and map
 * service errors onto status codes.
 */
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/razajohri/lunalink-real/internal/app"
	"github.com/razajohri/lunalink-real/internal/domain"
	"github.com/razajohri/lunalink-real/internal/metrics"
)

// StoreService is the store-connection behaviour the handlers depend on.
type StoreService interface {
	HandleCallback(ctx context.Context, p app.CallbackParams) app.CallbackResult
	ConnectURL(userID, rawShop string) (string, error)
	GetStatus(ctx context.Context, userID string) (*domain.StoreStatus, error)
	ConnectManually(ctx context.Context, userID, rawDomain, accessToken string) (*domain.StoreStatus, error)
}

// BillingService is the checkout and subscription behaviour the handlers depend on.
type BillingService interface {
	CreateCheckout(ctx context.Context, req app.CheckoutRequest) (string, error)
	GetSubscription(ctx context.Context, userID string) (*domain.SubscriptionRecord, error)
	CheckSubscription(ctx context.Context, userID, email string) (*domain.SubscriptionRecord, error)
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error
}

// UsageService meters placed calls.
type UsageService interface {
	RecordCalls(ctx context.Context, userID string, calls int) (*domain.SubscriptionRecord, error)
}

// CallService serves the call log and analytics.
type CallService interface {
	ListCalls(ctx context.Context, assistantID string) domain.CallList
	Stats(ctx context.Context, assistantID string) domain.CallStats
}

// Handler holds the application services that handlers interact with.
type Handler struct {
	stores     StoreService
	billing    BillingService
	usage      UsageService
	calls      CallService
	appBaseURL string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewHandler creates a new Handler. appBaseURL is the dashboard origin that
// OAuth redirects and checkout return URLs point at. m may be nil.
func NewHandler(stores StoreService, billing BillingService, usage UsageService, calls CallService, appBaseURL string, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		stores:     stores,
		billing:    billing,
		usage:      usage,
		calls:      calls,
		appBaseURL: appBaseURL,
		logger:     logger,
		metrics:    m,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// subscriptionResponse adds the derived remaining-calls figure to a record.
type subscriptionResponse struct {
	*domain.SubscriptionRecord
	CallsRemaining int `json:"calls_remaining"`
}

func newSubscriptionResponse(sub *domain.SubscriptionRecord) subscriptionResponse {
	return subscriptionResponse{SubscriptionRecord: sub, CallsRemaining: sub.CallsRemaining()}
}

// respondWithJSON is a helper function to write JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}
