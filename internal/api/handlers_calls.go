package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/razajohri/lunalink-real/internal/app"
	"github.com/razajohri/lunalink-real/internal/store"
)

func (h *Handler) handleListCalls(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.calls.ListCalls(r.Context(), r.URL.Query().Get("assistant_id")))
}

func (h *Handler) handleCallStats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.calls.Stats(r.Context(), r.URL.Query().Get("assistant_id")))
}

// handleRecordCalls is called by the calling workers after placing calls.
func (h *Handler) handleRecordCalls(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Calls  int    `json:"calls"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sub, err := h.usage.RecordCalls(r.Context(), req.UserID, req.Calls)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidUsage):
			h.metrics.CallsRecorded("invalid")
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrSubscriberNotFound):
			h.metrics.CallsRecorded("not_found")
			respondWithError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, store.ErrCallLimitReached):
			h.metrics.CallsRecorded("limit_reached")
			respondWithError(w, http.StatusPaymentRequired, err.Error())
		default:
			h.metrics.CallsRecorded("failed")
			h.logger.Error("failed to record calls", "user_id", req.UserID, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to record calls")
		}
		return
	}

	h.metrics.CallsRecorded("recorded")
	respondWithJSON(w, http.StatusOK, newSubscriptionResponse(sub))
}
