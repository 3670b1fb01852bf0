package services

import (
	"context"
	"time"

	"reconcile/internal/models"
	"reconcile/internal/parser"
	"reconcile/internal/store"
	"reconcile/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

func exclusionViolation() error {
	return &pq.Error{Code: "23P01", Constraint: "reconciliations_account_period_excl"}
}

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type stubStatementStore struct {
	createFn         func(ctx context.Context, tx store.Execer, statement models.Statement) error
	getByIDFn        func(ctx context.Context, statementID string) (models.Statement, error)
	existsByHashFn   func(ctx context.Context, accountID, contentHash string) (bool, error)
	updateStatusFn   func(ctx context.Context, tx store.Execer, statementID, status string) error
	listInPeriodFn   func(ctx context.Context, tx store.Selecter, accountID string, start, end time.Time, statementIDs []string) ([]models.Statement, error)
	markReconciledFn func(ctx context.Context, tx store.Execer, statementIDs []string) error
}

func (s stubStatementStore) Create(ctx context.Context, tx store.Execer, statement models.Statement) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, statement)
}

func (s stubStatementStore) GetByID(ctx context.Context, statementID string) (models.Statement, error) {
	if s.getByIDFn == nil {
		return models.Statement{ID: statementID}, nil
	}
	return s.getByIDFn(ctx, statementID)
}

func (s stubStatementStore) ExistsByHash(ctx context.Context, accountID, contentHash string) (bool, error) {
	if s.existsByHashFn == nil {
		return false, nil
	}
	return s.existsByHashFn(ctx, accountID, contentHash)
}

func (s stubStatementStore) UpdateStatus(ctx context.Context, tx store.Execer, statementID, status string) error {
	if s.updateStatusFn == nil {
		return nil
	}
	return s.updateStatusFn(ctx, tx, statementID, status)
}

func (s stubStatementStore) ListInPeriod(ctx context.Context, tx store.Selecter, accountID string, start, end time.Time, statementIDs []string) ([]models.Statement, error) {
	if s.listInPeriodFn == nil {
		return nil, nil
	}
	return s.listInPeriodFn(ctx, tx, accountID, start, end, statementIDs)
}

func (s stubStatementStore) MarkReconciled(ctx context.Context, tx store.Execer, statementIDs []string) error {
	if s.markReconciledFn == nil {
		return nil
	}
	return s.markReconciledFn(ctx, tx, statementIDs)
}

type stubLineStore struct {
	insertBatchFn      func(ctx context.Context, tx store.Execer, lines []models.StatementLine) error
	getForUpdateFn     func(ctx context.Context, tx store.Getter, lineID string) (models.StatementLine, error)
	listByStatementFn  func(ctx context.Context, statementID string) ([]models.StatementLine, error)
	updateSuggestionFn func(ctx context.Context, tx store.Execer, lineID, matchStatus string, meta models.MatchMeta) error
	updateResolutionFn func(ctx context.Context, tx store.Execer, line models.StatementLine) error
	countPendingFn     func(ctx context.Context, tx store.Getter, statementID string) (int, error)
	countResolvedFn    func(ctx context.Context, tx store.Getter, statementID string) (int, error)
	countPendingForFn  func(ctx context.Context, tx store.Getter, statementIDs []string) (int, error)
	sumConfirmedFn     func(ctx context.Context, tx store.Getter, statementIDs []string) (decimal.Decimal, error)
}

func (s stubLineStore) InsertBatch(ctx context.Context, tx store.Execer, lines []models.StatementLine) error {
	if s.insertBatchFn == nil {
		return nil
	}
	return s.insertBatchFn(ctx, tx, lines)
}

func (s stubLineStore) GetForUpdate(ctx context.Context, tx store.Getter, lineID string) (models.StatementLine, error) {
	if s.getForUpdateFn == nil {
		return models.StatementLine{ID: lineID}, nil
	}
	return s.getForUpdateFn(ctx, tx, lineID)
}

func (s stubLineStore) ListByStatement(ctx context.Context, statementID string) ([]models.StatementLine, error) {
	if s.listByStatementFn == nil {
		return nil, nil
	}
	return s.listByStatementFn(ctx, statementID)
}

func (s stubLineStore) UpdateSuggestion(ctx context.Context, tx store.Execer, lineID, matchStatus string, meta models.MatchMeta) error {
	if s.updateSuggestionFn == nil {
		return nil
	}
	return s.updateSuggestionFn(ctx, tx, lineID, matchStatus, meta)
}

func (s stubLineStore) UpdateResolution(ctx context.Context, tx store.Execer, line models.StatementLine) error {
	if s.updateResolutionFn == nil {
		return nil
	}
	return s.updateResolutionFn(ctx, tx, line)
}

func (s stubLineStore) CountPending(ctx context.Context, tx store.Getter, statementID string) (int, error) {
	if s.countPendingFn == nil {
		return 0, nil
	}
	return s.countPendingFn(ctx, tx, statementID)
}

func (s stubLineStore) CountResolved(ctx context.Context, tx store.Getter, statementID string) (int, error) {
	if s.countResolvedFn == nil {
		return 0, nil
	}
	return s.countResolvedFn(ctx, tx, statementID)
}

func (s stubLineStore) CountPendingForStatements(ctx context.Context, tx store.Getter, statementIDs []string) (int, error) {
	if s.countPendingForFn == nil {
		return 0, nil
	}
	return s.countPendingForFn(ctx, tx, statementIDs)
}

func (s stubLineStore) SumConfirmed(ctx context.Context, tx store.Getter, statementIDs []string) (decimal.Decimal, error) {
	if s.sumConfirmedFn == nil {
		return decimal.Zero, nil
	}
	return s.sumConfirmedFn(ctx, tx, statementIDs)
}

type stubAccountStore struct {
	getByIDFn       func(ctx context.Context, accountID string) (models.Account, error)
	updateBalanceFn func(ctx context.Context, tx store.Execer, accountID string, balance decimal.Decimal) error
}

func (s stubAccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	if s.getByIDFn == nil {
		return models.Account{ID: accountID}, nil
	}
	return s.getByIDFn(ctx, accountID)
}

func (s stubAccountStore) UpdateBalance(ctx context.Context, tx store.Execer, accountID string, balance decimal.Decimal) error {
	if s.updateBalanceFn == nil {
		return nil
	}
	return s.updateBalanceFn(ctx, tx, accountID, balance)
}

type stubInstallmentStore struct {
	getByIDFn        func(ctx context.Context, installmentID string) (models.Installment, error)
	getEntryFn       func(ctx context.Context, entryID string) (models.Entry, error)
	findCandidatesFn func(ctx context.Context, accountID string, amount, tolerance decimal.Decimal) ([]store.Candidate, error)
}

func (s stubInstallmentStore) GetByID(ctx context.Context, installmentID string) (models.Installment, error) {
	if s.getByIDFn == nil {
		return models.Installment{ID: installmentID}, nil
	}
	return s.getByIDFn(ctx, installmentID)
}

func (s stubInstallmentStore) GetEntry(ctx context.Context, entryID string) (models.Entry, error) {
	if s.getEntryFn == nil {
		return models.Entry{ID: entryID}, nil
	}
	return s.getEntryFn(ctx, entryID)
}

func (s stubInstallmentStore) FindCandidates(ctx context.Context, accountID string, amount, tolerance decimal.Decimal) ([]store.Candidate, error) {
	if s.findCandidatesFn == nil {
		return nil, nil
	}
	return s.findCandidatesFn(ctx, accountID, amount, tolerance)
}

type stubPayer struct {
	markPaidFn func(ctx context.Context, tx store.Execer, installmentID string, paymentDate time.Time) error
}

func (s stubPayer) MarkPaid(ctx context.Context, tx store.Execer, installmentID string, paymentDate time.Time) error {
	if s.markPaidFn == nil {
		return nil
	}
	return s.markPaidFn(ctx, tx, installmentID, paymentDate)
}

type stubMatchRecordStore struct {
	createFn func(ctx context.Context, tx store.Execer, record models.MatchRecord) error
}

func (s stubMatchRecordStore) Create(ctx context.Context, tx store.Execer, record models.MatchRecord) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, record)
}

type stubReconciliationStore struct {
	createFn            func(ctx context.Context, tx store.Execer, reconciliation models.Reconciliation) error
	existsOverlappingFn func(ctx context.Context, accountID string, start, end time.Time) (bool, error)
}

func (s stubReconciliationStore) Create(ctx context.Context, tx store.Execer, reconciliation models.Reconciliation) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, reconciliation)
}

func (s stubReconciliationStore) ExistsOverlapping(ctx context.Context, accountID string, start, end time.Time) (bool, error) {
	if s.existsOverlappingFn == nil {
		return false, nil
	}
	return s.existsOverlappingFn(ctx, accountID, start, end)
}

type stubAuditStore struct {
	logFn func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

type stubHub struct {
	calls []websocket.BalanceUpdate
}

func (s *stubHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	s.calls = append(s.calls, update)
}

type stubParser struct {
	statement parser.Statement
	err       error
}

func (s stubParser) Supports(string, string) bool { return true }

func (s stubParser) Parse([]byte, string) (parser.Statement, error) {
	return s.statement, s.err
}

type stubSelector struct {
	parser parser.Parser
	err    error
}

func (s stubSelector) Select(fileName, mimeType string) (parser.Parser, error) {
	return s.parser, s.err
}

type stubBlobStore struct {
	putFn func(ctx context.Context, key string, blob []byte) (string, error)
}

func (s stubBlobStore) Put(ctx context.Context, key string, blob []byte) (string, error) {
	if s.putFn == nil {
		return "stored/" + key, nil
	}
	return s.putFn(ctx, key, blob)
}

func (s stubBlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	return nil, nil
}
