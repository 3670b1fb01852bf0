package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatementStatusImported   = "imported"
	StatementStatusReconciled = "reconciled"
)

const (
	MatchStatusUnmatched = "unmatched"
	MatchStatusSuggested = "suggested"
	MatchStatusConfirmed = "confirmed"
	MatchStatusIgnored   = "ignored"
)

const (
	InstallmentStatusPlanned  = "planned"
	InstallmentStatusPending  = "pending"
	InstallmentStatusPaid     = "paid"
	InstallmentStatusCanceled = "canceled"
)

const (
	EntryStatusOpen     = "open"
	EntryStatusCanceled = "canceled"
)

const ReconciliationStatusClosed = "closed"

type Account struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	CurrentBalance decimal.Decimal `db:"current_balance" json:"current_balance"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

type Statement struct {
	ID               string        `db:"id" json:"id"`
	AccountID        string        `db:"account_id" json:"account_id"`
	Reference        string        `db:"reference" json:"reference"`
	OriginalFilename string        `db:"original_filename" json:"original_filename"`
	ContentHash      string        `db:"content_hash" json:"content_hash"`
	Status           string        `db:"status" json:"status"`
	Meta             StatementMeta `db:"meta" json:"meta"`
	ImportedBy       string        `db:"imported_by" json:"imported_by"`
	ImportedAt       time.Time     `db:"imported_at" json:"imported_at"`
}

// StatementMeta carries parser- and storage-derived attributes of a statement.
// Balances are pointers: absent means the parser could not determine them and
// inference from running balances did not apply either.
type StatementMeta struct {
	OpeningBalance     *decimal.Decimal `json:"opening_balance,omitempty"`
	ClosingBalance     *decimal.Decimal `json:"closing_balance,omitempty"`
	ClosingBalanceDate *time.Time       `json:"closing_balance_date,omitempty"`
	RangeStart         *time.Time       `json:"range_start,omitempty"`
	RangeEnd           *time.Time       `json:"range_end,omitempty"`
	BankAccountID      string           `json:"bank_account_id,omitempty"`
	BankRoutingID      string           `json:"bank_routing_id,omitempty"`
	Parser             string           `json:"parser,omitempty"`
	StoragePath        string           `json:"storage_path,omitempty"`
}

func (m StatementMeta) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *StatementMeta) Scan(src any) error {
	return scanJSON(src, m)
}

type StatementLine struct {
	ID                   string              `db:"id" json:"id"`
	StatementID          string              `db:"statement_id" json:"statement_id"`
	Position             int                 `db:"position" json:"position"`
	Date                 time.Time           `db:"transaction_date" json:"transaction_date"`
	Description          string              `db:"description" json:"description"`
	Amount               decimal.Decimal     `db:"amount" json:"amount"`
	Balance              decimal.NullDecimal `db:"balance" json:"balance"`
	DocumentNumber       *string             `db:"document_number" json:"document_number,omitempty"`
	FitID                *string             `db:"fit_id" json:"fit_id,omitempty"`
	MatchStatus          string              `db:"match_status" json:"match_status"`
	MatchMeta            MatchMeta           `db:"match_meta" json:"match_meta"`
	MatchedInstallmentID *string             `db:"matched_installment_id" json:"matched_installment_id,omitempty"`
	MatchedBy            *string             `db:"matched_by" json:"matched_by,omitempty"`
	MatchedAt            *time.Time          `db:"matched_at" json:"matched_at,omitempty"`
}

// Pending reports whether the line still blocks its statement from being
// considered reconciled.
func (l StatementLine) Pending() bool {
	return l.MatchStatus == MatchStatusUnmatched || l.MatchStatus == MatchStatusSuggested
}

// Suggestion is one ranked candidate produced by the suggestion engine.
type Suggestion struct {
	InstallmentID     string     `json:"installment_id"`
	EntryID           string     `json:"entry_id"`
	Confidence        int        `json:"confidence"`
	EntryDescription  string     `json:"entry_description"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	InstallmentNumber int        `json:"installment_number"`
}

type SuggestedMeta struct {
	Candidates []Suggestion `json:"candidates"`
}

type ConfirmedMeta struct {
	ConfirmedAt time.Time `json:"confirmed_at"`
}

type IgnoredMeta struct {
	Reason    string    `json:"reason,omitempty"`
	IgnoredAt time.Time `json:"ignored_at"`
}

// MatchMeta is the per-status metadata of a statement line. Resolution merges
// rather than replaces: a confirmed line still carries the suggestion list its
// confidence was read from.
type MatchMeta struct {
	Suggested *SuggestedMeta `json:"suggested,omitempty"`
	Confirmed *ConfirmedMeta `json:"confirmed,omitempty"`
	Ignored   *IgnoredMeta   `json:"ignored,omitempty"`
}

func (m MatchMeta) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *MatchMeta) Scan(src any) error {
	return scanJSON(src, m)
}

// CandidateConfidence looks up the stored confidence for an installment in the
// suggestion list. The second return is false when the installment was never
// suggested, e.g. a manual confirmation.
func (m MatchMeta) CandidateConfidence(installmentID string) (int, bool) {
	if m.Suggested == nil {
		return 0, false
	}
	for _, candidate := range m.Suggested.Candidates {
		if candidate.InstallmentID == installmentID {
			return candidate.Confidence, true
		}
	}
	return 0, false
}

type MatchRecord struct {
	ID            string    `db:"id" json:"id"`
	LineID        string    `db:"line_id" json:"line_id"`
	InstallmentID string    `db:"installment_id" json:"installment_id"`
	Confidence    *int      `db:"confidence" json:"confidence,omitempty"`
	MatchedBy     string    `db:"matched_by" json:"matched_by"`
	MatchedAt     time.Time `db:"matched_at" json:"matched_at"`
}

// Entry is the accounting document an installment belongs to. The engine only
// reads its account linkage, status and description.
type Entry struct {
	ID          string    `db:"id" json:"id"`
	AccountID   string    `db:"account_id" json:"account_id"`
	Description string    `db:"description" json:"description"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type Installment struct {
	ID           string          `db:"id" json:"id"`
	EntryID      string          `db:"entry_id" json:"entry_id"`
	Number       int             `db:"number" json:"number"`
	Total        decimal.Decimal `db:"total" json:"total"`
	DueDate      *time.Time      `db:"due_date" json:"due_date,omitempty"`
	MovementDate *time.Time      `db:"movement_date" json:"movement_date,omitempty"`
	Status       string          `db:"status" json:"status"`
	PaymentDate  *time.Time      `db:"payment_date" json:"payment_date,omitempty"`
}

func (i Installment) Paid() bool {
	return i.PaymentDate != nil
}

type Reconciliation struct {
	ID             string          `db:"id" json:"id"`
	AccountID      string          `db:"account_id" json:"account_id"`
	PeriodStart    time.Time       `db:"period_start" json:"period_start"`
	PeriodEnd      time.Time       `db:"period_end" json:"period_end"`
	OpeningBalance decimal.Decimal `db:"opening_balance" json:"opening_balance"`
	ClosingBalance decimal.Decimal `db:"closing_balance" json:"closing_balance"`
	Status         string          `db:"status" json:"status"`
	CreatedBy      string          `db:"created_by" json:"created_by"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

func scanJSON(src, dest any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return errors.New("unsupported source for json column")
	}
}
