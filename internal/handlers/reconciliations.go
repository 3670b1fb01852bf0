package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"reconcile/internal/middleware"
	"reconcile/internal/services"
	"reconcile/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type closeRequest struct {
	PeriodStart    string   `json:"period_start"`
	PeriodEnd      string   `json:"period_end"`
	OpeningBalance string   `json:"opening_balance"`
	ClosingBalance string   `json:"closing_balance"`
	StatementIDs   []string `json:"statement_ids"`
}

func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	periodStart, err := time.Parse("2006-01-02", req.PeriodStart)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid period_start")
		return
	}
	periodEnd, err := time.Parse("2006-01-02", req.PeriodEnd)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid period_end")
		return
	}
	opening, err := decimal.NewFromString(req.OpeningBalance)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid opening_balance")
		return
	}
	closing, err := decimal.NewFromString(req.ClosingBalance)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid closing_balance")
		return
	}

	reconciliation, err := h.closer.Close(r.Context(), services.CloseRequest{
		AccountID:      chi.URLParam(r, "accountID"),
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		OpeningBalance: opening,
		ClosingBalance: closing,
		StatementIDs:   req.StatementIDs,
		ActorID:        actorID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, reconciliation)
}

func (h *Handler) ListReconciliations(w http.ResponseWriter, r *http.Request) {
	reconciliations, err := h.reconciliations.ListByAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, reconciliations)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetByID(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "account not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func (h *Handler) WSBalance(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWS(w, r, h.hub, chi.URLParam(r, "accountID"))
}
