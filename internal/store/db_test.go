package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	err := &pq.Error{Code: "23505", Constraint: "statements_account_hash_key"}
	if !IsUniqueViolation(err, "statements_account_hash_key") {
		t.Fatalf("expected match on named constraint")
	}
	if !IsUniqueViolation(err, "") {
		t.Fatalf("empty constraint matches any unique violation")
	}
	if IsUniqueViolation(err, "other_key") {
		t.Fatalf("different constraint must not match")
	}
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Fatalf("non-pq errors must not match")
	}
	wrapped := fmt.Errorf("create statement: %w", err)
	if !IsUniqueViolation(wrapped, "statements_account_hash_key") {
		t.Fatalf("wrapped pq errors must match")
	}
}

func TestIsExclusionViolation(t *testing.T) {
	if !IsExclusionViolation(&pq.Error{Code: "23P01"}) {
		t.Fatalf("expected exclusion violation match")
	}
	if IsExclusionViolation(&pq.Error{Code: "23505"}) {
		t.Fatalf("unique violations are not exclusion violations")
	}
	if IsExclusionViolation(nil) {
		t.Fatalf("nil must not match")
	}
}
