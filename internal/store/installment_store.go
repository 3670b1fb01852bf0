package store

import (
	"context"
	"time"

	"reconcile/internal/models"

	"github.com/shopspring/decimal"
)

type InstallmentStore struct {
	db DB
}

func NewInstallmentStore(db DB) *InstallmentStore {
	return &InstallmentStore{db: db}
}

// Candidate is an open installment joined with its owning entry, as returned
// by the suggestion query.
type Candidate struct {
	models.Installment
	EntryAccountID   string `db:"entry_account_id"`
	EntryDescription string `db:"entry_description"`
}

func (s *InstallmentStore) GetByID(ctx context.Context, installmentID string) (models.Installment, error) {
	var row models.Installment
	err := s.db.GetContext(ctx, &row, `
		SELECT id, entry_id, number, total, due_date, movement_date, status, payment_date
		FROM installments
		WHERE id = $1
	`, installmentID)
	if err != nil {
		return models.Installment{}, err
	}
	return row, nil
}

func (s *InstallmentStore) GetEntry(ctx context.Context, entryID string) (models.Entry, error) {
	var row models.Entry
	err := s.db.GetContext(ctx, &row, `
		SELECT id, account_id, description, status, created_at
		FROM entries
		WHERE id = $1
	`, entryID)
	if err != nil {
		return models.Entry{}, err
	}
	return row, nil
}

// FindCandidates returns open installments of the account whose total is
// within tolerance of the absolute line amount: entry not canceled, status
// planned or pending, no payment date.
func (s *InstallmentStore) FindCandidates(ctx context.Context, accountID string, amount, tolerance decimal.Decimal) ([]Candidate, error) {
	var rows []Candidate
	err := s.db.SelectContext(ctx, &rows, `
		SELECT i.id, i.entry_id, i.number, i.total, i.due_date, i.movement_date, i.status, i.payment_date,
		       e.account_id AS entry_account_id, e.description AS entry_description
		FROM installments i
		JOIN entries e ON e.id = i.entry_id
		WHERE e.account_id = $1
		  AND e.status <> $2
		  AND i.status IN ($3, $4)
		  AND i.payment_date IS NULL
		  AND ABS(i.total - $5) <= $6
		ORDER BY i.due_date NULLS LAST, i.id
	`, accountID, models.EntryStatusCanceled, models.InstallmentStatusPlanned,
		models.InstallmentStatusPending, amount.Abs(), tolerance)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkPaid records the payment date and flips the installment to paid.
func (s *InstallmentStore) MarkPaid(ctx context.Context, tx Execer, installmentID string, paymentDate time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE installments
		SET status = $1, payment_date = $2
		WHERE id = $3 AND payment_date IS NULL
	`, models.InstallmentStatusPaid, paymentDate, installmentID)
	return err
}
