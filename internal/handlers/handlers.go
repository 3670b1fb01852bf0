package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"reconcile/internal/parser"
	"reconcile/internal/services"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps the engine's error taxonomy onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	var parseErr *parser.ParseError
	var validationErr *services.ValidationError
	var notFoundErr *services.NotFoundError
	switch {
	case errors.Is(err, services.ErrDuplicateStatement):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &parseErr):
		respondError(w, http.StatusUnprocessableEntity, parseErr.Error())
	case errors.As(err, &validationErr):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": validationErr.Reason,
			"field": validationErr.Field,
		})
	case errors.As(err, &notFoundErr):
		respondError(w, http.StatusNotFound, notFoundErr.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
