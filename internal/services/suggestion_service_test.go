package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"reconcile/internal/models"
	"reconcile/internal/store"

	"github.com/shopspring/decimal"
)

func candidate(id string, total string, dueDate *time.Time, description string) store.Candidate {
	return store.Candidate{
		Installment: models.Installment{
			ID:      id,
			EntryID: "entry-" + id,
			Number:  1,
			Total:   dec(total),
			DueDate: dueDate,
			Status:  models.InstallmentStatusPending,
		},
		EntryAccountID:   "acc-1",
		EntryDescription: description,
	}
}

func timePtr(value string) *time.Time {
	parsed := day(value)
	return &parsed
}

func TestSuggestUnknownStatement(t *testing.T) {
	service := NewSuggestionService(fakeTxRunner{}, stubStatementStore{
		getByIDFn: func(context.Context, string) (models.Statement, error) {
			return models.Statement{}, sql.ErrNoRows
		},
	}, stubLineStore{}, stubInstallmentStore{})

	if _, err := service.Suggest(context.Background(), "missing"); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSuggestSameDaySubstringMatchScoresTop(t *testing.T) {
	lines := []models.StatementLine{{
		ID:          "line-1",
		StatementID: "stmt-1",
		Date:        day("2025-03-10"),
		Description: "Pagamento Fornecedor ACME",
		Amount:      dec("-500.00"),
		MatchStatus: models.MatchStatusUnmatched,
	}}
	updates := map[string]struct {
		status string
		meta   models.MatchMeta
	}{}
	service := NewSuggestionService(fakeTxRunner{}, stubStatementStore{}, stubLineStore{
		listByStatementFn: func(context.Context, string) ([]models.StatementLine, error) {
			return lines, nil
		},
		updateSuggestionFn: func(_ context.Context, _ store.Execer, lineID, matchStatus string, meta models.MatchMeta) error {
			updates[lineID] = struct {
				status string
				meta   models.MatchMeta
			}{matchStatus, meta}
			return nil
		},
	}, stubInstallmentStore{
		findCandidatesFn: func(_ context.Context, _ string, amount, tolerance decimal.Decimal) ([]store.Candidate, error) {
			if !amount.Equal(dec("-500.00")) || !tolerance.Equal(dec("0.01")) {
				t.Fatalf("unexpected candidate query: amount=%s tolerance=%s", amount, tolerance)
			}
			return []store.Candidate{
				candidate("inst-1", "500.00", timePtr("2025-03-10"), "Fornecedor ACME"),
			}, nil
		},
	})

	if _, err := service.Suggest(context.Background(), "stmt-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	update, ok := updates["line-1"]
	if !ok {
		t.Fatalf("line was not updated")
	}
	if update.status != models.MatchStatusSuggested {
		t.Fatalf("expected suggested status, got %q", update.status)
	}
	candidates := update.meta.Suggested.Candidates
	if len(candidates) != 1 || candidates[0].Confidence != 100 {
		t.Fatalf("expected confidence 100, got %+v", candidates)
	}
}

func TestSuggestConfidenceDecaysWithDateDistance(t *testing.T) {
	line := models.StatementLine{Date: day("2025-03-10"), Description: "x", Amount: dec("100.00")}

	previous := 101
	for _, due := range []string{"2025-03-10", "2025-03-15", "2025-03-25", "2025-05-10"} {
		suggestions := rankCandidates(line, []store.Candidate{
			candidate("inst-1", "100.00", timePtr(due), "y"),
		})
		if len(suggestions) != 1 {
			t.Fatalf("expected one suggestion for due %s", due)
		}
		confidence := suggestions[0].Confidence
		if confidence > previous {
			t.Fatalf("confidence must not grow with date distance: due %s scored %d after %d", due, confidence, previous)
		}
		if confidence < 50 || confidence > 100 {
			t.Fatalf("confidence out of range: %d", confidence)
		}
		previous = confidence
	}
	// 30+ days away with unrelated descriptions bottoms out at base + 0 + 10.
	far := rankCandidates(line, []store.Candidate{candidate("inst-1", "100.00", timePtr("2025-05-10"), "y")})
	if far[0].Confidence != 60 {
		t.Fatalf("expected floor confidence 60, got %d", far[0].Confidence)
	}
}

func TestSuggestBelowThresholdStaysUnmatched(t *testing.T) {
	lines := []models.StatementLine{{
		ID:          "line-1",
		Date:        day("2025-03-10"),
		Description: "Transferencia",
		Amount:      dec("100.00"),
		MatchStatus: models.MatchStatusUnmatched,
	}}
	var gotStatus string
	var gotMeta models.MatchMeta
	service := NewSuggestionService(fakeTxRunner{}, stubStatementStore{}, stubLineStore{
		listByStatementFn: func(context.Context, string) ([]models.StatementLine, error) {
			return lines, nil
		},
		updateSuggestionFn: func(_ context.Context, _ store.Execer, _, matchStatus string, meta models.MatchMeta) error {
			gotStatus = matchStatus
			gotMeta = meta
			return nil
		},
	}, stubInstallmentStore{
		findCandidatesFn: func(context.Context, string, decimal.Decimal, decimal.Decimal) ([]store.Candidate, error) {
			// 20 days out, unrelated description: 50 + 10 + 10 = 70 < 75.
			return []store.Candidate{candidate("inst-1", "100.00", timePtr("2025-03-30"), "Aluguel")}, nil
		},
	})

	if _, err := service.Suggest(context.Background(), "stmt-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotStatus != models.MatchStatusUnmatched {
		t.Fatalf("expected unmatched below threshold, got %q", gotStatus)
	}
	if gotMeta.Suggested == nil || len(gotMeta.Suggested.Candidates) != 1 {
		t.Fatalf("candidate list must be stored regardless of status: %+v", gotMeta)
	}
	if gotMeta.Suggested.Candidates[0].Confidence != 70 {
		t.Fatalf("expected confidence 70, got %d", gotMeta.Suggested.Candidates[0].Confidence)
	}
}

func TestSuggestKeepsTopFiveCandidates(t *testing.T) {
	line := models.StatementLine{Date: day("2025-03-10"), Description: "Pagamento", Amount: dec("100.00")}
	candidates := make([]store.Candidate, 0, 7)
	for i, due := range []string{"2025-03-10", "2025-03-11", "2025-03-12", "2025-03-13", "2025-03-14", "2025-03-15", "2025-03-16"} {
		candidates = append(candidates, candidate(string(rune('a'+i)), "100.00", timePtr(due), "Outro"))
	}
	suggestions := rankCandidates(line, candidates)
	if len(suggestions) != 5 {
		t.Fatalf("expected top 5, got %d", len(suggestions))
	}
	for i := 1; i < len(suggestions); i++ {
		if suggestions[i].Confidence > suggestions[i-1].Confidence {
			t.Fatalf("suggestions not sorted by descending confidence: %+v", suggestions)
		}
	}
	if suggestions[0].InstallmentID != "a" {
		t.Fatalf("closest due date should rank first, got %q", suggestions[0].InstallmentID)
	}
}

func TestSuggestSkipsConfirmedLines(t *testing.T) {
	lines := []models.StatementLine{
		{ID: "line-1", MatchStatus: models.MatchStatusConfirmed, Date: day("2025-03-01"), Amount: dec("10.00")},
		{ID: "line-2", MatchStatus: models.MatchStatusIgnored, Date: day("2025-03-01"), Amount: dec("10.00")},
	}
	var touched []string
	service := NewSuggestionService(fakeTxRunner{}, stubStatementStore{}, stubLineStore{
		listByStatementFn: func(context.Context, string) ([]models.StatementLine, error) {
			return lines, nil
		},
		updateSuggestionFn: func(_ context.Context, _ store.Execer, lineID, matchStatus string, _ models.MatchMeta) error {
			touched = append(touched, lineID+":"+matchStatus)
			return nil
		},
	}, stubInstallmentStore{})

	if _, err := service.Suggest(context.Background(), "stmt-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Re-running suggestion never reverts a confirmed line, but an ignored
	// line with no remaining candidates falls back to unmatched.
	if len(touched) != 1 || touched[0] != "line-2:unmatched" {
		t.Fatalf("unexpected updates: %v", touched)
	}
}

func TestSuggestNoCandidatesClearsSuggestionMeta(t *testing.T) {
	lines := []models.StatementLine{{
		ID:          "line-1",
		Date:        day("2025-03-10"),
		Amount:      dec("42.00"),
		MatchStatus: models.MatchStatusSuggested,
		MatchMeta: models.MatchMeta{
			Suggested: &models.SuggestedMeta{Candidates: []models.Suggestion{{InstallmentID: "stale"}}},
		},
	}}
	var gotMeta models.MatchMeta
	var gotStatus string
	service := NewSuggestionService(fakeTxRunner{}, stubStatementStore{}, stubLineStore{
		listByStatementFn: func(context.Context, string) ([]models.StatementLine, error) {
			return lines, nil
		},
		updateSuggestionFn: func(_ context.Context, _ store.Execer, _, matchStatus string, meta models.MatchMeta) error {
			gotStatus = matchStatus
			gotMeta = meta
			return nil
		},
	}, stubInstallmentStore{})

	if _, err := service.Suggest(context.Background(), "stmt-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotStatus != models.MatchStatusUnmatched || gotMeta.Suggested != nil {
		t.Fatalf("expected stale suggestion cleared: status=%q meta=%+v", gotStatus, gotMeta)
	}
}
