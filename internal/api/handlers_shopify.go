package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/razajohri/lunalink-real/internal/app"
	"github.com/razajohri/lunalink-real/internal/domain"
)

// handleShopifyCallback completes the OAuth install and always redirects the
// merchant back to the dashboard with either success= or error=.
func (h *Handler) handleShopifyCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result := h.stores.HandleCallback(r.Context(), app.CallbackParams{
		Code:  q.Get("code"),
		Shop:  q.Get("shop"),
		State: q.Get("state"),
		Error: q.Get("error"),
		Query: r.URL,
	})
	h.metrics.CallbackOutcome(result.Code)

	http.Redirect(w, r, h.dashboardRedirect(result), http.StatusFound)
}

func (h *Handler) dashboardRedirect(result app.CallbackResult) string {
	key := "error"
	if result.Success {
		key = "success"
	}
	return h.appBaseURL + "/dashboard?" + url.Values{key: []string{result.Code}}.Encode()
}

func (h *Handler) handleShopifyConnectURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	connectURL, err := h.stores.ConnectURL(userID, r.URL.Query().Get("shop"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Please enter a valid store URL")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"url": connectURL})
}

func (h *Handler) handleGetStore(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	status, err := h.stores.GetStatus(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load store connection", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load store connection")
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}

// handleConnectStore saves a domain and access token entered by hand.
func (h *Handler) handleConnectStore(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Domain      string `json:"domain"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	status, err := h.stores.ConnectManually(r.Context(), userID, req.Domain, req.AccessToken)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidShopDomain), errors.Is(err, app.ErrAccessTokenRequired):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrAccessTokenRejected):
			respondWithError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.logger.Error("failed to connect store", "user_id", userID, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to save store connection")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}
