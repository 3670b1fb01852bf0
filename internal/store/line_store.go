package store

import (
	"context"
	"fmt"
	"strings"

	"reconcile/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type LineStore struct {
	db DB
}

func NewLineStore(db DB) *LineStore {
	return &LineStore{db: db}
}

// insertBatchSize bounds the size of a single multi-row insert so very large
// statements do not blow up one statement's parameter list.
const insertBatchSize = 500

func (s *LineStore) InsertBatch(ctx context.Context, tx Execer, lines []models.StatementLine) error {
	for start := 0; start < len(lines); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(lines) {
			end = len(lines)
		}
		if err := s.insertChunk(ctx, tx, lines[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *LineStore) insertChunk(ctx context.Context, tx Execer, lines []models.StatementLine) error {
	const columns = 10
	placeholders := make([]string, 0, len(lines))
	args := make([]any, 0, len(lines)*columns)
	for i, line := range lines {
		base := i * columns
		row := make([]string, columns)
		for j := range row {
			row[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(row, ", ")+")")
		var balance any
		if line.Balance.Valid {
			balance = line.Balance.Decimal
		}
		args = append(args, line.ID, line.StatementID, line.Position, line.Date,
			line.Description, line.Amount, balance, line.DocumentNumber, line.FitID, line.MatchStatus)
	}
	query := `
		INSERT INTO statement_lines (id, statement_id, position, transaction_date, description, amount, balance, document_number, fit_id, match_status)
		VALUES ` + strings.Join(placeholders, ", ")
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func (s *LineStore) GetByID(ctx context.Context, lineID string) (models.StatementLine, error) {
	var row models.StatementLine
	err := s.db.GetContext(ctx, &row, selectLineColumns+`
		FROM statement_lines
		WHERE id = $1
	`, lineID)
	if err != nil {
		return models.StatementLine{}, err
	}
	return row, nil
}

// GetForUpdate locks the line row for the rest of the transaction so
// concurrent confirm/ignore on the same line serialize.
func (s *LineStore) GetForUpdate(ctx context.Context, tx Getter, lineID string) (models.StatementLine, error) {
	var row models.StatementLine
	err := tx.GetContext(ctx, &row, selectLineColumns+`
		FROM statement_lines
		WHERE id = $1
		FOR UPDATE
	`, lineID)
	if err != nil {
		return models.StatementLine{}, err
	}
	return row, nil
}

func (s *LineStore) ListByStatement(ctx context.Context, statementID string) ([]models.StatementLine, error) {
	var rows []models.StatementLine
	err := s.db.SelectContext(ctx, &rows, selectLineColumns+`
		FROM statement_lines
		WHERE statement_id = $1
		ORDER BY position
	`, statementID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateSuggestion rewrites the suggestion-engine owned fields of a line.
func (s *LineStore) UpdateSuggestion(ctx context.Context, tx Execer, lineID, matchStatus string, meta models.MatchMeta) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE statement_lines
		SET match_status = $1, match_meta = $2
		WHERE id = $3
	`, matchStatus, meta, lineID)
	return err
}

// UpdateResolution rewrites the resolution-owned fields of a line.
func (s *LineStore) UpdateResolution(ctx context.Context, tx Execer, line models.StatementLine) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE statement_lines
		SET match_status = $1, match_meta = $2, matched_installment_id = $3, matched_by = $4, matched_at = $5
		WHERE id = $6
	`, line.MatchStatus, line.MatchMeta, line.MatchedInstallmentID, line.MatchedBy, line.MatchedAt, line.ID)
	return err
}

// CountPending counts lines still unmatched or suggested for one statement.
func (s *LineStore) CountPending(ctx context.Context, tx Getter, statementID string) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM statement_lines
		WHERE statement_id = $1 AND match_status IN ($2, $3)
	`, statementID, models.MatchStatusUnmatched, models.MatchStatusSuggested)
	return count, err
}

// CountResolved counts lines already confirmed or ignored for one statement.
func (s *LineStore) CountResolved(ctx context.Context, tx Getter, statementID string) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM statement_lines
		WHERE statement_id = $1 AND match_status IN ($2, $3)
	`, statementID, models.MatchStatusConfirmed, models.MatchStatusIgnored)
	return count, err
}

// CountPendingForStatements counts pending lines across a statement set.
func (s *LineStore) CountPendingForStatements(ctx context.Context, tx Getter, statementIDs []string) (int, error) {
	if len(statementIDs) == 0 {
		return 0, nil
	}
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM statement_lines
		WHERE statement_id = ANY($1) AND match_status IN ($2, $3)
	`, pq.Array(statementIDs), models.MatchStatusUnmatched, models.MatchStatusSuggested)
	return count, err
}

// SumConfirmed totals the signed amounts of confirmed lines across a
// statement set.
func (s *LineStore) SumConfirmed(ctx context.Context, tx Getter, statementIDs []string) (decimal.Decimal, error) {
	if len(statementIDs) == 0 {
		return decimal.Zero, nil
	}
	var sum decimal.Decimal
	err := tx.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM statement_lines
		WHERE statement_id = ANY($1) AND match_status = $2
	`, pq.Array(statementIDs), models.MatchStatusConfirmed)
	return sum, err
}

const selectLineColumns = `
		SELECT id, statement_id, position, transaction_date, description, amount, balance,
		       document_number, fit_id, match_status, match_meta, matched_installment_id,
		       matched_by, matched_at`
