package store

import (
	"context"
	"time"

	"reconcile/internal/models"

	"github.com/lib/pq"
)

type StatementStore struct {
	db DB
}

func NewStatementStore(db DB) *StatementStore {
	return &StatementStore{db: db}
}

func (s *StatementStore) Create(ctx context.Context, tx Execer, statement models.Statement) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO statements (id, account_id, reference, original_filename, content_hash, status, meta, imported_by, imported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, statement.ID, statement.AccountID, statement.Reference, statement.OriginalFilename,
		statement.ContentHash, statement.Status, statement.Meta, statement.ImportedBy, statement.ImportedAt)
	return err
}

func (s *StatementStore) GetByID(ctx context.Context, statementID string) (models.Statement, error) {
	var row models.Statement
	err := s.db.GetContext(ctx, &row, `
		SELECT id, account_id, reference, original_filename, content_hash, status, meta, imported_by, imported_at
		FROM statements
		WHERE id = $1
	`, statementID)
	if err != nil {
		return models.Statement{}, err
	}
	return row, nil
}

func (s *StatementStore) ExistsByHash(ctx context.Context, accountID, contentHash string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM statements WHERE account_id = $1 AND content_hash = $2)
	`, accountID, contentHash)
	return exists, err
}

func (s *StatementStore) UpdateStatus(ctx context.Context, tx Execer, statementID, status string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE statements SET status = $1 WHERE id = $2
	`, status, statementID)
	return err
}

func (s *StatementStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Statement, error) {
	var rows []models.Statement
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, reference, original_filename, content_hash, status, meta, imported_by, imported_at
		FROM statements
		WHERE account_id = $1
		ORDER BY imported_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListInPeriod selects statements imported within [start, end] for the
// account. When statementIDs is non-empty the selection is restricted to
// that subset.
func (s *StatementStore) ListInPeriod(ctx context.Context, tx Selecter, accountID string, start, end time.Time, statementIDs []string) ([]models.Statement, error) {
	var rows []models.Statement
	if len(statementIDs) == 0 {
		err := tx.SelectContext(ctx, &rows, `
			SELECT id, account_id, reference, original_filename, content_hash, status, meta, imported_by, imported_at
			FROM statements
			WHERE account_id = $1 AND imported_at::date BETWEEN $2 AND $3
			ORDER BY imported_at
		`, accountID, start, end)
		return rows, err
	}
	err := tx.SelectContext(ctx, &rows, `
		SELECT id, account_id, reference, original_filename, content_hash, status, meta, imported_by, imported_at
		FROM statements
		WHERE account_id = $1 AND imported_at::date BETWEEN $2 AND $3 AND id = ANY($4)
		ORDER BY imported_at
	`, accountID, start, end, pq.Array(statementIDs))
	return rows, err
}

func (s *StatementStore) MarkReconciled(ctx context.Context, tx Execer, statementIDs []string) error {
	if len(statementIDs) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE statements SET status = $1 WHERE id = ANY($2)
	`, models.StatementStatusReconciled, pq.Array(statementIDs))
	return err
}
