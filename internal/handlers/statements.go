package handlers

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strconv"

	"reconcile/internal/middleware"
	"reconcile/internal/services"
	"reconcile/internal/validator"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (h *Handler) ImportStatement(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := r.ParseMultipartForm(validator.MaxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()
	if err := validator.ValidateUpload(header.Filename, header.Size); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	content, err := io.ReadAll(io.LimitReader(file, validator.MaxUploadBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable file")
		return
	}
	if len(content) > validator.MaxUploadBytes {
		respondError(w, http.StatusBadRequest, validator.ErrFileTooLarge.Error())
		return
	}

	req := services.ImportRequest{
		AccountID: chi.URLParam(r, "accountID"),
		FileName:  header.Filename,
		MimeType:  header.Header.Get("Content-Type"),
		Content:   content,
		ActorID:   actorID,
	}
	if raw := r.FormValue("opening_balance"); raw != "" {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid opening_balance")
			return
		}
		req.OpeningBalance = &value
	}
	if raw := r.FormValue("closing_balance"); raw != "" {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid closing_balance")
			return
		}
		req.ClosingBalance = &value
	}

	statement, err := h.importer.Import(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, statement)
}

func (h *Handler) ListStatements(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50)
	statements, err := h.statements.ListByAccount(r.Context(), chi.URLParam(r, "accountID"), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, statements)
}

func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	statement, err := h.statements.GetByID(r.Context(), chi.URLParam(r, "statementID"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "statement not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, statement)
}

func (h *Handler) ListLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.lines.ListByStatement(r.Context(), chi.URLParam(r, "statementID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, lines)
}

func (h *Handler) RunSuggestions(w http.ResponseWriter, r *http.Request) {
	statement, err := h.suggestions.Suggest(r.Context(), chi.URLParam(r, "statementID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statement)
}

func pagination(r *http.Request, defaultLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
