package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"reconcile/internal/models"

	"github.com/shopspring/decimal"
)

// ParseError reports a file that could not be turned into statement lines.
// It always aborts before anything is persisted.
type ParseError struct {
	FileName string
	Reason   string
}

func (e *ParseError) Error() string {
	if e.FileName == "" {
		return "parse error: " + e.Reason
	}
	return fmt.Sprintf("parse error in %s: %s", e.FileName, e.Reason)
}

// Line is one normalized transaction row, before persistence.
type Line struct {
	Date           time.Time
	Description    string
	Amount         decimal.Decimal
	Balance        *decimal.Decimal
	DocumentNumber string
	FitID          string
}

// Statement is the normalized output of a parser run.
type Statement struct {
	Reference string
	Lines     []Line
	Meta      models.StatementMeta
}

type Parser interface {
	// Supports reports whether the parser can handle a file with the given
	// lowercase extension (without dot) and MIME type.
	Supports(extension, mimeType string) bool
	Parse(raw []byte, fileName string) (Statement, error)
}

// Selector holds an explicit, ordered parser list. Order matters: on
// ambiguous extensions the first supporting parser wins.
type Selector struct {
	parsers []Parser
}

func NewSelector(parsers ...Parser) *Selector {
	return &Selector{parsers: parsers}
}

// DefaultSelector registers the CSV parser ahead of the OFX parser.
func DefaultSelector() *Selector {
	return NewSelector(NewCSVParser(), NewOFXParser())
}

func (s *Selector) Select(fileName, mimeType string) (Parser, error) {
	extension := FileExtension(fileName)
	for _, p := range s.parsers {
		if p.Supports(extension, mimeType) {
			return p, nil
		}
	}
	return nil, &ParseError{FileName: fileName, Reason: "unsupported format"}
}

// FileExtension returns the lowercase extension without the leading dot.
func FileExtension(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
}

func fileStem(fileName string) string {
	base := filepath.Base(fileName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"01/02/2006",
}

var genericDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02.01.2006",
	"02/01/06",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// parseDate tries the fixed format list first and falls back to a wider set
// of layouts for exotic exports.
func parseDate(input string) (time.Time, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, true
		}
	}
	for _, layout := range genericDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
