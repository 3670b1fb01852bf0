package handlers

import (
	"net/http"

	"reconcile/internal/config"
	"reconcile/internal/middleware"
	"reconcile/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	cfg             config.Config
	importer        ImportService
	suggestions     SuggestionService
	resolutions     ResolutionService
	closer          CloseService
	statements      StatementReader
	lines           LineReader
	accounts        AccountReader
	reconciliations ReconciliationReader
	hub             *websocket.Hub
}

func New(cfg config.Config, importer ImportService, suggestions SuggestionService, resolutions ResolutionService, closer CloseService, statements StatementReader, lines LineReader, accounts AccountReader, reconciliations ReconciliationReader, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:             cfg,
		importer:        importer,
		suggestions:     suggestions,
		resolutions:     resolutions,
		closer:          closer,
		statements:      statements,
		lines:           lines,
		accounts:        accounts,
		reconciliations: reconciliations,
		hub:             hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticated := router.With(middleware.Auth(h.cfg.JWTSecret))
	authenticated.Post("/accounts/{accountID}/statements", h.ImportStatement)
	authenticated.Get("/accounts/{accountID}/statements", h.ListStatements)
	authenticated.Get("/statements/{statementID}", h.GetStatement)
	authenticated.Get("/statements/{statementID}/lines", h.ListLines)
	authenticated.Post("/statements/{statementID}/suggestions", h.RunSuggestions)
	authenticated.Post("/lines/{lineID}/confirm", h.ConfirmLine)
	authenticated.Post("/lines/{lineID}/ignore", h.IgnoreLine)
	authenticated.Post("/accounts/{accountID}/reconciliations", h.ClosePeriod)
	authenticated.Get("/accounts/{accountID}/reconciliations", h.ListReconciliations)
	authenticated.Get("/accounts/{accountID}", h.GetAccount)
	router.Get("/ws/accounts/{accountID}/balance", h.WSBalance)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
