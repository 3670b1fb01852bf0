package handlers

import (
	"context"

	"reconcile/internal/models"
	"reconcile/internal/services"
)

type ImportService interface {
	Import(ctx context.Context, req services.ImportRequest) (models.Statement, error)
}

type SuggestionService interface {
	Suggest(ctx context.Context, statementID string) (models.Statement, error)
}

type ResolutionService interface {
	Confirm(ctx context.Context, req services.ConfirmRequest) (models.StatementLine, error)
	Ignore(ctx context.Context, req services.IgnoreRequest) (models.StatementLine, error)
}

type CloseService interface {
	Close(ctx context.Context, req services.CloseRequest) (models.Reconciliation, error)
}

type StatementReader interface {
	GetByID(ctx context.Context, statementID string) (models.Statement, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Statement, error)
}

type LineReader interface {
	ListByStatement(ctx context.Context, statementID string) ([]models.StatementLine, error)
}

type AccountReader interface {
	GetByID(ctx context.Context, accountID string) (models.Account, error)
}

type ReconciliationReader interface {
	ListByAccount(ctx context.Context, accountID string) ([]models.Reconciliation, error)
}
