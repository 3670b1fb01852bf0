package store

import (
	"context"
	"time"

	"reconcile/internal/models"
)

type ReconciliationStore struct {
	db DB
}

func NewReconciliationStore(db DB) *ReconciliationStore {
	return &ReconciliationStore{db: db}
}

func (s *ReconciliationStore) Create(ctx context.Context, tx Execer, reconciliation models.Reconciliation) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reconciliations (id, account_id, period_start, period_end, opening_balance, closing_balance, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, reconciliation.ID, reconciliation.AccountID, reconciliation.PeriodStart, reconciliation.PeriodEnd,
		reconciliation.OpeningBalance, reconciliation.ClosingBalance, reconciliation.Status,
		reconciliation.CreatedBy, reconciliation.CreatedAt)
	return err
}

// ExistsOverlapping reports whether any reconciliation of the account has a
// period intersecting [start, end]. The schema also guards this with an
// exclusion constraint; this pre-check gives a field-level error instead of a
// constraint violation in the common case.
func (s *ReconciliationStore) ExistsOverlapping(ctx context.Context, accountID string, start, end time.Time) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM reconciliations
			WHERE account_id = $1 AND period_start <= $3 AND period_end >= $2
		)
	`, accountID, start, end)
	return exists, err
}

func (s *ReconciliationStore) ListByAccount(ctx context.Context, accountID string) ([]models.Reconciliation, error) {
	var rows []models.Reconciliation
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, period_start, period_end, opening_balance, closing_balance, status, created_by, created_at
		FROM reconciliations
		WHERE account_id = $1
		ORDER BY period_start DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
