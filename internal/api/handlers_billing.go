package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/razajohri/lunalink-real/internal/app"
	"github.com/razajohri/lunalink-real/internal/domain"
)

// Stripe never sends event payloads larger than this.
const maxWebhookBodyBytes = 65536

// handleCreateCheckout answers 200 {url} or 500 {error}; rate limited callers get 429.
func (h *Handler) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Plan string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Invalid request body")
		return
	}

	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		origin = h.appBaseURL
	}

	checkoutURL, err := h.billing.CreateCheckout(r.Context(), app.CheckoutRequest{
		UserID:         userID,
		Email:          EmailFromContext(r.Context()),
		Plan:           req.Plan,
		Origin:         origin,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		var rateErr *app.RateLimitError
		if errors.As(err, &rateErr) {
			h.metrics.Checkout(planLabel(req.Plan), "rate_limited")
			w.Header().Set("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds))
			respondWithError(w, http.StatusTooManyRequests, rateErr.Error())
			return
		}
		h.metrics.Checkout(planLabel(req.Plan), "failed")
		h.logger.Error("create checkout failed", "user_id", userID, "plan", req.Plan, "error", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.metrics.Checkout(planLabel(req.Plan), "created")
	respondWithJSON(w, http.StatusOK, map[string]string{"url": checkoutURL})
}

// planLabel keeps arbitrary client input out of metric labels.
func planLabel(plan string) string {
	if p, ok := domain.LookupPlan(plan); ok {
		return p.ID
	}
	return "invalid"
}

func (h *Handler) handleCheckSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sub, err := h.billing.CheckSubscription(r.Context(), userID, EmailFromContext(r.Context()))
	if err != nil {
		h.logger.Error("check subscription failed", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, newSubscriptionResponse(sub))
}

func (h *Handler) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sub, err := h.billing.GetSubscription(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load subscription", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load subscription")
		return
	}

	respondWithJSON(w, http.StatusOK, newSubscriptionResponse(sub))
}

func (h *Handler) handleListPlans(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"plans":           domain.Plans(),
		"setup_fee_cents": domain.SetupFeeCents,
		"currency":        domain.Currency,
	})
}

func (h *Handler) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if err := h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		switch {
		case errors.Is(err, app.ErrWebhookNotConfigured):
			h.metrics.WebhookEvent("unconfigured")
			respondWithError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, app.ErrInvalidWebhook):
			h.metrics.WebhookEvent("rejected")
			h.logger.Warn("rejected stripe webhook", "error", err)
			respondWithError(w, http.StatusBadRequest, "Invalid webhook signature")
		default:
			h.metrics.WebhookEvent("failed")
			h.logger.Error("failed to process stripe webhook", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to process webhook")
		}
		return
	}

	h.metrics.WebhookEvent("processed")
	respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}
