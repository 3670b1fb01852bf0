package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reconcile/internal/db"
	"reconcile/internal/models"
	"reconcile/internal/money"
	"reconcile/internal/store"
	"reconcile/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// closeTolerance bounds how far the declared closing balance may sit from
// opening plus confirmed amounts. Intentionally wider than the candidate
// amount tolerance; both values are load-bearing for historical acceptance.
var closeTolerance = decimal.RequireFromString("0.05")

type ReconciliationStore interface {
	Create(ctx context.Context, tx store.Execer, reconciliation models.Reconciliation) error
	ExistsOverlapping(ctx context.Context, accountID string, start, end time.Time) (bool, error)
}

type BalanceHub interface {
	BroadcastBalance(accountID string, update websocket.BalanceUpdate)
}

type CloseService struct {
	txRunner        db.TxRunner
	statements      StatementStore
	lines           LineStore
	accounts        AccountStore
	reconciliations ReconciliationStore
	audit           AuditStore
	hub             BalanceHub
	now             func() time.Time
}

func NewCloseService(txRunner db.TxRunner, statements StatementStore, lines LineStore, accounts AccountStore, reconciliations ReconciliationStore, audit AuditStore, hub BalanceHub) *CloseService {
	return &CloseService{
		txRunner:        txRunner,
		statements:      statements,
		lines:           lines,
		accounts:        accounts,
		reconciliations: reconciliations,
		audit:           audit,
		hub:             hub,
		now:             time.Now,
	}
}

type CloseRequest struct {
	AccountID      string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	// StatementIDs optionally restricts which in-period statements the close
	// covers; empty means all of them.
	StatementIDs []string
	ActorID      string
}

// Close validates that every targeted statement is fully resolved and that
// the declared balances tie out, then locks the period into a reconciliation
// record and updates the account's current balance.
func (s *CloseService) Close(ctx context.Context, req CloseRequest) (models.Reconciliation, error) {
	if req.PeriodEnd.Before(req.PeriodStart) {
		return models.Reconciliation{}, &ValidationError{Field: "period_end", Reason: "period end before period start"}
	}
	if _, err := s.accounts.GetByID(ctx, req.AccountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Reconciliation{}, &NotFoundError{Entity: "account", ID: req.AccountID}
		}
		return models.Reconciliation{}, err
	}
	overlaps, err := s.reconciliations.ExistsOverlapping(ctx, req.AccountID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return models.Reconciliation{}, err
	}
	if overlaps {
		return models.Reconciliation{}, &ValidationError{Field: "period", Reason: "overlaps an existing reconciliation"}
	}

	reconciliation := models.Reconciliation{
		ID:             uuid.NewString(),
		AccountID:      req.AccountID,
		PeriodStart:    req.PeriodStart,
		PeriodEnd:      req.PeriodEnd,
		OpeningBalance: money.Round2(req.OpeningBalance),
		ClosingBalance: money.Round2(req.ClosingBalance),
		Status:         models.ReconciliationStatusClosed,
		CreatedBy:      req.ActorID,
		CreatedAt:      s.now().UTC(),
	}

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		statements, err := s.statements.ListInPeriod(ctx, tx, req.AccountID, req.PeriodStart, req.PeriodEnd, req.StatementIDs)
		if err != nil {
			return err
		}
		statementIDs := make([]string, 0, len(statements))
		for _, statement := range statements {
			statementIDs = append(statementIDs, statement.ID)
		}

		pending, err := s.lines.CountPendingForStatements(ctx, tx, statementIDs)
		if err != nil {
			return err
		}
		if pending > 0 {
			return &ValidationError{Field: "statements", Reason: fmt.Sprintf("%d lines still unmatched or suggested", pending)}
		}

		if len(statements) > 0 {
			confirmed, err := s.lines.SumConfirmed(ctx, tx, statementIDs)
			if err != nil {
				return err
			}
			expected := money.Round2(reconciliation.OpeningBalance.Add(confirmed))
			if !money.WithinTolerance(expected, reconciliation.ClosingBalance, closeTolerance) {
				return &ValidationError{
					Field:  "closing_balance",
					Reason: fmt.Sprintf("expected %s from confirmed amounts, got %s", expected, reconciliation.ClosingBalance),
				}
			}
		}

		if err := s.reconciliations.Create(ctx, tx, reconciliation); err != nil {
			if store.IsExclusionViolation(err) {
				return &ValidationError{Field: "period", Reason: "overlaps an existing reconciliation"}
			}
			return err
		}
		if err := s.statements.MarkReconciled(ctx, tx, statementIDs); err != nil {
			return err
		}
		if err := s.accounts.UpdateBalance(ctx, tx, req.AccountID, reconciliation.ClosingBalance); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"period_start": req.PeriodStart.Format("2006-01-02"),
			"period_end":   req.PeriodEnd.Format("2006-01-02"),
			"statements":   len(statementIDs),
		})
		return s.audit.Log(ctx, tx, req.ActorID, "period.close", "reconciliation", reconciliation.ID, string(data))
	})
	if err != nil {
		return models.Reconciliation{}, err
	}

	s.hub.BroadcastBalance(req.AccountID, websocket.BalanceUpdate{
		AccountID: req.AccountID,
		Balance:   reconciliation.ClosingBalance.StringFixed(2),
	})
	return reconciliation, nil
}
