package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"reconcile/internal/db"
	"reconcile/internal/models"
	"reconcile/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchRecordStore interface {
	Create(ctx context.Context, tx store.Execer, record models.MatchRecord) error
}

// InstallmentPayer is the external payment operation: it marks an installment
// paid with the given date inside the surrounding transaction.
type InstallmentPayer interface {
	MarkPaid(ctx context.Context, tx store.Execer, installmentID string, paymentDate time.Time) error
}

type ResolutionService struct {
	txRunner     db.TxRunner
	statements   StatementStore
	lines        LineStore
	installments InstallmentStore
	payments     InstallmentPayer
	records      MatchRecordStore
	audit        AuditStore
	now          func() time.Time
}

func NewResolutionService(txRunner db.TxRunner, statements StatementStore, lines LineStore, installments InstallmentStore, payments InstallmentPayer, records MatchRecordStore, audit AuditStore) *ResolutionService {
	return &ResolutionService{
		txRunner:     txRunner,
		statements:   statements,
		lines:        lines,
		installments: installments,
		payments:     payments,
		records:      records,
		audit:        audit,
		now:          time.Now,
	}
}

type ConfirmRequest struct {
	LineID        string
	InstallmentID string
	PaymentDate   time.Time
	ActorID       string
}

// Confirm matches a line to an installment. The installment's owning entry
// must belong to the same financial account as the line's statement. An
// unpaid installment is paid with the requested date; an already-paid one
// keeps its recorded payment date.
func (s *ResolutionService) Confirm(ctx context.Context, req ConfirmRequest) (models.StatementLine, error) {
	installment, err := s.installments.GetByID(ctx, req.InstallmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.StatementLine{}, &NotFoundError{Entity: "installment", ID: req.InstallmentID}
		}
		return models.StatementLine{}, err
	}
	entry, err := s.installments.GetEntry(ctx, installment.EntryID)
	if err != nil {
		return models.StatementLine{}, err
	}

	var updated models.StatementLine
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		line, err := s.lines.GetForUpdate(ctx, tx, req.LineID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &NotFoundError{Entity: "statement line", ID: req.LineID}
			}
			return err
		}
		statement, err := s.statements.GetByID(ctx, line.StatementID)
		if err != nil {
			return err
		}
		if entry.AccountID != statement.AccountID {
			return &ValidationError{Field: "installment_id", Reason: "installment belongs to a different financial account"}
		}

		now := s.now().UTC()
		if !installment.Paid() {
			if err := s.payments.MarkPaid(ctx, tx, installment.ID, req.PaymentDate); err != nil {
				return err
			}
		}

		confidence := candidateConfidence(line.MatchMeta, installment.ID)
		actor := req.ActorID
		installmentID := installment.ID
		line.MatchStatus = models.MatchStatusConfirmed
		line.MatchedInstallmentID = &installmentID
		line.MatchedBy = &actor
		line.MatchedAt = &now
		line.MatchMeta.Confirmed = &models.ConfirmedMeta{ConfirmedAt: now}
		if err := s.lines.UpdateResolution(ctx, tx, line); err != nil {
			return err
		}

		if err := s.records.Create(ctx, tx, models.MatchRecord{
			ID:            uuid.NewString(),
			LineID:        line.ID,
			InstallmentID: installment.ID,
			Confidence:    confidence,
			MatchedBy:     req.ActorID,
			MatchedAt:     now,
		}); err != nil {
			return err
		}

		if err := s.recomputeStatementStatus(ctx, tx, statement.ID); err != nil {
			return err
		}

		data, _ := json.Marshal(map[string]any{
			"installment_id": installment.ID,
			"confidence":     confidence,
		})
		if err := s.audit.Log(ctx, tx, req.ActorID, "line.confirm", "statement_line", line.ID, string(data)); err != nil {
			return err
		}
		updated = line
		return nil
	})
	if err != nil {
		return models.StatementLine{}, err
	}
	return updated, nil
}

type IgnoreRequest struct {
	LineID  string
	Reason  string
	ActorID string
}

// Ignore resolves a line as not matchable, clearing any installment link.
func (s *ResolutionService) Ignore(ctx context.Context, req IgnoreRequest) (models.StatementLine, error) {
	var updated models.StatementLine
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		line, err := s.lines.GetForUpdate(ctx, tx, req.LineID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &NotFoundError{Entity: "statement line", ID: req.LineID}
			}
			return err
		}

		now := s.now().UTC()
		actor := req.ActorID
		line.MatchStatus = models.MatchStatusIgnored
		line.MatchedInstallmentID = nil
		line.MatchedBy = &actor
		line.MatchedAt = &now
		line.MatchMeta.Ignored = &models.IgnoredMeta{Reason: req.Reason, IgnoredAt: now}
		if err := s.lines.UpdateResolution(ctx, tx, line); err != nil {
			return err
		}

		if err := s.recomputeStatementStatus(ctx, tx, line.StatementID); err != nil {
			return err
		}

		data, _ := json.Marshal(map[string]string{"reason": req.Reason})
		if err := s.audit.Log(ctx, tx, req.ActorID, "line.ignore", "statement_line", line.ID, string(data)); err != nil {
			return err
		}
		updated = line
		return nil
	})
	if err != nil {
		return models.StatementLine{}, err
	}
	return updated, nil
}

// recomputeStatementStatus flips the statement to reconciled once no line is
// unmatched or suggested, and back to imported otherwise. A statement with no
// resolved lines at all never counts as reconciled.
func (s *ResolutionService) recomputeStatementStatus(ctx context.Context, tx store.Tx, statementID string) error {
	pending, err := s.lines.CountPending(ctx, tx, statementID)
	if err != nil {
		return err
	}
	resolved, err := s.lines.CountResolved(ctx, tx, statementID)
	if err != nil {
		return err
	}
	status := models.StatementStatusImported
	if pending == 0 && resolved > 0 {
		status = models.StatementStatusReconciled
	}
	return s.statements.UpdateStatus(ctx, tx, statementID, status)
}

func candidateConfidence(meta models.MatchMeta, installmentID string) *int {
	confidence, ok := meta.CandidateConfidence(installmentID)
	if !ok {
		return nil
	}
	return &confidence
}
