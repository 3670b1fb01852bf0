package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"reconcile/internal/middleware"
	"reconcile/internal/services"

	"github.com/go-chi/chi/v5"
)

type confirmRequest struct {
	InstallmentID string `json:"installment_id"`
	PaymentDate   string `json:"payment_date"`
}

func (h *Handler) ConfirmLine(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.InstallmentID == "" {
		respondError(w, http.StatusBadRequest, "missing installment_id")
		return
	}
	paymentDate := time.Now().UTC()
	if req.PaymentDate != "" {
		parsed, err := time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid payment_date")
			return
		}
		paymentDate = parsed
	}
	line, err := h.resolutions.Confirm(r.Context(), services.ConfirmRequest{
		LineID:        chi.URLParam(r, "lineID"),
		InstallmentID: req.InstallmentID,
		PaymentDate:   paymentDate,
		ActorID:       actorID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, line)
}

type ignoreRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) IgnoreLine(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req ignoreRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	line, err := h.resolutions.Ignore(r.Context(), services.IgnoreRequest{
		LineID:  chi.URLParam(r, "lineID"),
		Reason:  req.Reason,
		ActorID: actorID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, line)
}
