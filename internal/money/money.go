package money

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// decimalCommaPattern matches amounts like "-300,00" or "1.234,56" where the
// comma is the decimal separator and dots, if any, group thousands.
var decimalCommaPattern = regexp.MustCompile(`^-?\d+(\.\d{3})*,\d+$`)

// ParseAmount parses a monetary string with unknown locale conventions.
// When the value matches the decimal-comma pattern the dots are treated as
// thousands separators; otherwise commas are stripped as thousands separators.
// The result is rounded to 2 decimal places.
func ParseAmount(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	trimmed = strings.TrimPrefix(trimmed, "+")
	normalized := strings.ReplaceAll(trimmed, " ", "")
	if decimalCommaPattern.MatchString(normalized) {
		normalized = strings.ReplaceAll(normalized, ".", "")
		normalized = strings.ReplaceAll(normalized, ",", ".")
	} else {
		normalized = strings.ReplaceAll(normalized, ",", "")
	}
	value, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return Round2(value), nil
}

// Round2 rounds half away from zero to 2 decimal places, the precision every
// monetary value in the engine is persisted with.
func Round2(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

// WithinTolerance reports whether two amounts differ by at most the given
// tolerance, after 2-decimal rounding of the difference.
func WithinTolerance(left, right, tolerance decimal.Decimal) bool {
	return Round2(left.Sub(right)).Abs().LessThanOrEqual(tolerance)
}
