package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"reconcile/internal/db"
	"reconcile/internal/models"
	"reconcile/internal/parser"
	"reconcile/internal/storage"
	"reconcile/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type StatementStore interface {
	Create(ctx context.Context, tx store.Execer, statement models.Statement) error
	GetByID(ctx context.Context, statementID string) (models.Statement, error)
	ExistsByHash(ctx context.Context, accountID, contentHash string) (bool, error)
	UpdateStatus(ctx context.Context, tx store.Execer, statementID, status string) error
	ListInPeriod(ctx context.Context, tx store.Selecter, accountID string, start, end time.Time, statementIDs []string) ([]models.Statement, error)
	MarkReconciled(ctx context.Context, tx store.Execer, statementIDs []string) error
}

type LineStore interface {
	InsertBatch(ctx context.Context, tx store.Execer, lines []models.StatementLine) error
	GetForUpdate(ctx context.Context, tx store.Getter, lineID string) (models.StatementLine, error)
	ListByStatement(ctx context.Context, statementID string) ([]models.StatementLine, error)
	UpdateSuggestion(ctx context.Context, tx store.Execer, lineID, matchStatus string, meta models.MatchMeta) error
	UpdateResolution(ctx context.Context, tx store.Execer, line models.StatementLine) error
	CountPending(ctx context.Context, tx store.Getter, statementID string) (int, error)
	CountResolved(ctx context.Context, tx store.Getter, statementID string) (int, error)
	CountPendingForStatements(ctx context.Context, tx store.Getter, statementIDs []string) (int, error)
	SumConfirmed(ctx context.Context, tx store.Getter, statementIDs []string) (decimal.Decimal, error)
}

type AccountStore interface {
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	UpdateBalance(ctx context.Context, tx store.Execer, accountID string, balance decimal.Decimal) error
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type ParserSelector interface {
	Select(fileName, mimeType string) (parser.Parser, error)
}

type ImportService struct {
	txRunner   db.TxRunner
	statements StatementStore
	lines      LineStore
	accounts   AccountStore
	audit      AuditStore
	selector   ParserSelector
	blobs      storage.BlobStore
	now        func() time.Time
}

func NewImportService(txRunner db.TxRunner, statements StatementStore, lines LineStore, accounts AccountStore, audit AuditStore, selector ParserSelector, blobs storage.BlobStore) *ImportService {
	return &ImportService{
		txRunner:   txRunner,
		statements: statements,
		lines:      lines,
		accounts:   accounts,
		audit:      audit,
		selector:   selector,
		blobs:      blobs,
		now:        time.Now,
	}
}

type ImportRequest struct {
	AccountID string
	FileName  string
	MimeType  string
	Content   []byte
	ActorID   string
	// Caller-supplied balance overrides take precedence over parser-derived
	// and inferred values.
	OpeningBalance *decimal.Decimal
	ClosingBalance *decimal.Decimal
}

// Import deduplicates, parses, stores and persists one uploaded statement
// file. The whole write is a single transaction: a parser or write failure
// leaves no partial statement or lines behind.
func (s *ImportService) Import(ctx context.Context, req ImportRequest) (models.Statement, error) {
	if _, err := s.accounts.GetByID(ctx, req.AccountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Statement{}, &NotFoundError{Entity: "account", ID: req.AccountID}
		}
		return models.Statement{}, err
	}

	digest := sha256.Sum256(req.Content)
	contentHash := hex.EncodeToString(digest[:])
	exists, err := s.statements.ExistsByHash(ctx, req.AccountID, contentHash)
	if err != nil {
		return models.Statement{}, err
	}
	if exists {
		return models.Statement{}, ErrDuplicateStatement
	}

	fileParser, err := s.selector.Select(req.FileName, req.MimeType)
	if err != nil {
		return models.Statement{}, err
	}
	parsed, err := fileParser.Parse(req.Content, req.FileName)
	if err != nil {
		return models.Statement{}, err
	}

	key := fmt.Sprintf("accounts/%s/%s.%s", req.AccountID, contentHash, parser.FileExtension(req.FileName))
	storagePath, err := s.blobs.Put(ctx, key, req.Content)
	if err != nil {
		return models.Statement{}, fmt.Errorf("store raw file: %w", err)
	}

	statement := models.Statement{
		ID:               uuid.NewString(),
		AccountID:        req.AccountID,
		Reference:        parsed.Reference,
		OriginalFilename: req.FileName,
		ContentHash:      contentHash,
		Status:           models.StatementStatusImported,
		Meta:             parsed.Meta,
		ImportedBy:       req.ActorID,
		ImportedAt:       s.now().UTC(),
	}
	statement.Meta.StoragePath = storagePath
	mergeBalances(&statement.Meta, req, parsed.Lines)

	lines := make([]models.StatementLine, 0, len(parsed.Lines))
	for i, parsedLine := range parsed.Lines {
		line := models.StatementLine{
			ID:          uuid.NewString(),
			StatementID: statement.ID,
			Position:    i,
			Date:        parsedLine.Date,
			Description: parsedLine.Description,
			Amount:      parsedLine.Amount,
			MatchStatus: models.MatchStatusUnmatched,
		}
		if parsedLine.Balance != nil {
			line.Balance = decimal.NewNullDecimal(*parsedLine.Balance)
		}
		if parsedLine.DocumentNumber != "" {
			value := parsedLine.DocumentNumber
			line.DocumentNumber = &value
		}
		if parsedLine.FitID != "" {
			value := parsedLine.FitID
			line.FitID = &value
		}
		lines = append(lines, line)
	}

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.statements.Create(ctx, tx, statement); err != nil {
			if store.IsUniqueViolation(err, "statements_account_hash_key") {
				return ErrDuplicateStatement
			}
			return err
		}
		if err := s.lines.InsertBatch(ctx, tx, lines); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"file":  req.FileName,
			"hash":  contentHash,
			"lines": len(lines),
		})
		return s.audit.Log(ctx, tx, req.ActorID, "statement.import", "statement", statement.ID, string(data))
	})
	if err != nil {
		return models.Statement{}, err
	}
	return statement, nil
}

// mergeBalances fills the statement's opening and closing balances with the
// highest-precedence value available: caller override, then parser-derived,
// then inference from running balances (lines ordered by transaction date,
// ties broken by file order).
func mergeBalances(meta *models.StatementMeta, req ImportRequest, lines []parser.Line) {
	if req.OpeningBalance != nil {
		meta.OpeningBalance = req.OpeningBalance
	}
	if req.ClosingBalance != nil {
		meta.ClosingBalance = req.ClosingBalance
	}
	if meta.OpeningBalance != nil && meta.ClosingBalance != nil {
		return
	}
	if len(lines) == 0 {
		return
	}

	ordered := make([]parser.Line, len(lines))
	copy(ordered, lines)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})
	if meta.OpeningBalance == nil {
		first := ordered[0]
		if first.Balance != nil {
			opening := first.Balance.Sub(first.Amount).Round(2)
			meta.OpeningBalance = &opening
		}
	}
	if meta.ClosingBalance == nil {
		last := ordered[len(ordered)-1]
		if last.Balance != nil {
			closing := last.Balance.Round(2)
			meta.ClosingBalance = &closing
		}
	}
}
