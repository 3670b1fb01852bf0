package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"reconcile/internal/db"
	"reconcile/internal/models"
	"reconcile/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// amountTolerance bounds how far an installment total may sit from the
// absolute line amount to qualify as a candidate.
var amountTolerance = decimal.RequireFromString("0.01")

const (
	baseScore          = 50
	maxScore           = 100
	suggestedThreshold = 75
	maxCandidates      = 5
)

type InstallmentStore interface {
	GetByID(ctx context.Context, installmentID string) (models.Installment, error)
	GetEntry(ctx context.Context, entryID string) (models.Entry, error)
	FindCandidates(ctx context.Context, accountID string, amount, tolerance decimal.Decimal) ([]store.Candidate, error)
}

type SuggestionService struct {
	txRunner     db.TxRunner
	statements   StatementStore
	lines        LineStore
	installments InstallmentStore
}

func NewSuggestionService(txRunner db.TxRunner, statements StatementStore, lines LineStore, installments InstallmentStore) *SuggestionService {
	return &SuggestionService{
		txRunner:     txRunner,
		statements:   statements,
		lines:        lines,
		installments: installments,
	}
}

// Suggest scores open installments against every non-confirmed line of the
// statement and stores the ranked candidates. Re-running is idempotent and
// never reverts a confirmed line.
func (s *SuggestionService) Suggest(ctx context.Context, statementID string) (models.Statement, error) {
	statement, err := s.statements.GetByID(ctx, statementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Statement{}, &NotFoundError{Entity: "statement", ID: statementID}
		}
		return models.Statement{}, err
	}
	lines, err := s.lines.ListByStatement(ctx, statementID)
	if err != nil {
		return models.Statement{}, err
	}

	type lineUpdate struct {
		lineID string
		status string
		meta   models.MatchMeta
	}
	updates := make([]lineUpdate, 0, len(lines))
	for _, line := range lines {
		if line.MatchStatus == models.MatchStatusConfirmed {
			continue
		}
		candidates, err := s.installments.FindCandidates(ctx, statement.AccountID, line.Amount, amountTolerance)
		if err != nil {
			return models.Statement{}, err
		}
		suggestions := rankCandidates(line, candidates)
		meta := line.MatchMeta
		meta.Ignored = nil
		if len(suggestions) == 0 {
			meta.Suggested = nil
			updates = append(updates, lineUpdate{line.ID, models.MatchStatusUnmatched, meta})
			continue
		}
		meta.Suggested = &models.SuggestedMeta{Candidates: suggestions}
		status := models.MatchStatusUnmatched
		if suggestions[0].Confidence >= suggestedThreshold {
			status = models.MatchStatusSuggested
		}
		updates = append(updates, lineUpdate{line.ID, status, meta})
	}

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, update := range updates {
			if err := s.lines.UpdateSuggestion(ctx, tx, update.lineID, update.status, update.meta); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Statement{}, err
	}
	return statement, nil
}

// rankCandidates scores every candidate and keeps the top ones by descending
// confidence. Ties keep the store's due-date ordering.
func rankCandidates(line models.StatementLine, candidates []store.Candidate) []models.Suggestion {
	suggestions := make([]models.Suggestion, 0, len(candidates))
	for _, candidate := range candidates {
		suggestions = append(suggestions, models.Suggestion{
			InstallmentID:     candidate.ID,
			EntryID:           candidate.EntryID,
			Confidence:        scoreCandidate(line.Date, line.Description, candidate),
			EntryDescription:  candidate.EntryDescription,
			DueDate:           candidate.DueDate,
			InstallmentNumber: candidate.Number,
		})
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	if len(suggestions) > maxCandidates {
		suggestions = suggestions[:maxCandidates]
	}
	return suggestions
}

// scoreCandidate computes the 50..100 heuristic confidence: a fixed base,
// plus proximity of the transaction date to the installment's anchor date,
// plus a description affinity component.
func scoreCandidate(lineDate time.Time, lineDescription string, candidate store.Candidate) int {
	score := baseScore + dateScore(lineDate, anchorDate(lineDate, candidate)) +
		descriptionScore(lineDescription, candidate.EntryDescription)
	if score > maxScore {
		score = maxScore
	}
	return score
}

// anchorDate is the installment due date, falling back to its movement date,
// falling back to the line's own date.
func anchorDate(lineDate time.Time, candidate store.Candidate) time.Time {
	if candidate.DueDate != nil {
		return *candidate.DueDate
	}
	if candidate.MovementDate != nil {
		return *candidate.MovementDate
	}
	return lineDate
}

func dateScore(lineDate, anchor time.Time) int {
	days := daysBetween(lineDate, anchor)
	if days > 30 {
		days = 30
	}
	return 30 - days
}

func descriptionScore(lineDescription, entryDescription string) int {
	left := strings.ToLower(strings.TrimSpace(lineDescription))
	right := strings.ToLower(strings.TrimSpace(entryDescription))
	if left == "" || right == "" {
		return 15
	}
	if strings.Contains(left, right) || strings.Contains(right, left) {
		return 30
	}
	return 10
}

func daysBetween(a, b time.Time) int {
	dayA := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	dayB := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(dayB.Sub(dayA).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}
