package store

import (
	"context"

	"reconcile/internal/models"
)

type MatchRecordStore struct {
	db DB
}

func NewMatchRecordStore(db DB) *MatchRecordStore {
	return &MatchRecordStore{db: db}
}

// Create writes the immutable audit row for one confirmation. Records are
// never updated or deleted.
func (s *MatchRecordStore) Create(ctx context.Context, tx Execer, record models.MatchRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO match_records (id, line_id, installment_id, confidence, matched_by, matched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, record.ID, record.LineID, record.InstallmentID, record.Confidence, record.MatchedBy, record.MatchedAt)
	return err
}

func (s *MatchRecordStore) ListByLine(ctx context.Context, lineID string) ([]models.MatchRecord, error) {
	var rows []models.MatchRecord
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, line_id, installment_id, confidence, matched_by, matched_at
		FROM match_records
		WHERE line_id = $1
		ORDER BY matched_at
	`, lineID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
