package parser

import (
	"encoding/xml"
	"regexp"
	"strings"
	"time"

	"reconcile/internal/models"
	"reconcile/internal/money"

	"github.com/shopspring/decimal"
)

// OFXParser decodes OFX and QFX statements. Real-world files are usually
// SGML with unclosed single-line leaf tags; the raw content is rewritten into
// well-formed XML before decoding.
type OFXParser struct{}

func NewOFXParser() *OFXParser {
	return &OFXParser{}
}

var ofxExtensions = map[string]bool{"ofx": true, "qfx": true}

var ofxMimeTypes = map[string]bool{
	"application/x-ofx": true,
	"application/ofx":   true,
	"application/x-qfx": true,
}

func (p *OFXParser) Supports(extension, mimeType string) bool {
	return ofxExtensions[extension] || ofxMimeTypes[mimeType]
}

type ofxTransaction struct {
	Type     string `xml:"TRNTYPE"`
	DtPosted string `xml:"DTPOSTED"`
	DtUser   string `xml:"DTUSER"`
	Amount   string `xml:"TRNAMT"`
	FitID    string `xml:"FITID"`
	CheckNum string `xml:"CHECKNUM"`
	Name     string `xml:"NAME"`
	Memo     string `xml:"MEMO"`
}

type ofxDocument struct {
	BankTrnUID       string           `xml:"BANKMSGSRSV1>STMTTRNRS>TRNUID"`
	BankRoutingID    string           `xml:"BANKMSGSRSV1>STMTTRNRS>STMTRS>BANKACCTFROM>BANKID"`
	BankAccountID    string           `xml:"BANKMSGSRSV1>STMTTRNRS>STMTRS>BANKACCTFROM>ACCTID"`
	BankRangeStart   string           `xml:"BANKMSGSRSV1>STMTTRNRS>STMTRS>BANKTRANLIST>DTSTART"`
	BankRangeEnd     string           `xml:"BANKMSGSRSV1>STMTTRNRS>STMTRS>BANKTRANLIST>DTEND"`
	BankTransactions []ofxTransaction `xml:"BANKMSGSRSV1>STMTTRNRS>STMTRS>BANKTRANLIST>STMTTRN"`
	BankBalance      string           `xml:"BANKMSGSRSV1>STMTTRNRS>STMTRS>LEDGERBAL>BALAMT"`
	BankBalanceAsOf  string           `xml:"BANKMSGSRSV1>STMTTRNRS>STMTRS>LEDGERBAL>DTASOF"`

	CardTrnUID       string           `xml:"CREDITCARDMSGSRSV1>CCSTMTTRNRS>TRNUID"`
	CardAccountID    string           `xml:"CREDITCARDMSGSRSV1>CCSTMTTRNRS>CCSTMTRS>CCACCTFROM>ACCTID"`
	CardRangeStart   string           `xml:"CREDITCARDMSGSRSV1>CCSTMTTRNRS>CCSTMTRS>BANKTRANLIST>DTSTART"`
	CardRangeEnd     string           `xml:"CREDITCARDMSGSRSV1>CCSTMTTRNRS>CCSTMTRS>BANKTRANLIST>DTEND"`
	CardTransactions []ofxTransaction `xml:"CREDITCARDMSGSRSV1>CCSTMTTRNRS>CCSTMTRS>BANKTRANLIST>CCSTMTTRN"`
	CardBalance      string           `xml:"CREDITCARDMSGSRSV1>CCSTMTTRNRS>CCSTMTRS>LEDGERBAL>BALAMT"`
	CardBalanceAsOf  string           `xml:"CREDITCARDMSGSRSV1>CCSTMTTRNRS>CCSTMTRS>LEDGERBAL>DTASOF"`
}

func (p *OFXParser) Parse(raw []byte, fileName string) (Statement, error) {
	content := string(raw)
	if strings.TrimSpace(content) == "" {
		return Statement{}, &ParseError{FileName: fileName, Reason: "empty file"}
	}
	start := strings.Index(strings.ToUpper(content), "<OFX>")
	if start < 0 {
		return Statement{}, &ParseError{FileName: fileName, Reason: "missing <OFX> root"}
	}
	normalized := normalizeSGML(content[start:])

	var document ofxDocument
	if err := xml.Unmarshal([]byte(normalized), &document); err != nil {
		return Statement{}, &ParseError{FileName: fileName, Reason: "malformed OFX content"}
	}

	transactions := document.BankTransactions
	meta := bankMeta(document)
	reference := document.BankTrnUID
	if len(transactions) == 0 {
		transactions = document.CardTransactions
		meta = cardMeta(document)
		reference = document.CardTrnUID
	}

	var lines []Line
	for _, txn := range transactions {
		amount, err := money.ParseAmount(txn.Amount)
		if err != nil {
			continue
		}
		date, ok := parseOFXDate(txn.DtPosted)
		if !ok {
			date, ok = parseOFXDate(txn.DtUser)
		}
		if !ok {
			continue
		}
		description := strings.TrimSpace(txn.Memo)
		if description == "" {
			description = strings.TrimSpace(txn.Name)
		}
		lines = append(lines, Line{
			Date:           date,
			Description:    description,
			Amount:         amount,
			DocumentNumber: strings.TrimSpace(txn.CheckNum),
			FitID:          strings.TrimSpace(txn.FitID),
		})
	}
	if len(lines) == 0 {
		return Statement{}, &ParseError{FileName: fileName, Reason: "no usable transactions"}
	}

	statement := Statement{
		Reference: fileStem(fileName),
		Lines:     lines,
		Meta:      meta,
	}
	statement.Meta.Parser = "ofx"
	// Banks that don't assign statement ids emit the placeholder TRNUID "0";
	// treat it as absent so the filename stem wins.
	if reference = strings.TrimSpace(reference); reference != "" && reference != "0" {
		statement.Reference = reference
	}
	return statement, nil
}

func bankMeta(document ofxDocument) models.StatementMeta {
	return models.StatementMeta{
		BankAccountID:      strings.TrimSpace(document.BankAccountID),
		BankRoutingID:      strings.TrimSpace(document.BankRoutingID),
		ClosingBalance:     parseOptionalAmount(document.BankBalance),
		ClosingBalanceDate: parseOptionalOFXDate(document.BankBalanceAsOf),
		RangeStart:         parseOptionalOFXDate(document.BankRangeStart),
		RangeEnd:           parseOptionalOFXDate(document.BankRangeEnd),
	}
}

func cardMeta(document ofxDocument) models.StatementMeta {
	return models.StatementMeta{
		BankAccountID:      strings.TrimSpace(document.CardAccountID),
		ClosingBalance:     parseOptionalAmount(document.CardBalance),
		ClosingBalanceDate: parseOptionalOFXDate(document.CardBalanceAsOf),
		RangeStart:         parseOptionalOFXDate(document.CardRangeStart),
		RangeEnd:           parseOptionalOFXDate(document.CardRangeEnd),
	}
}

// unclosedTagPattern matches a single-line leaf tag whose value runs to the
// end of the line without a closing tag. The optional carriage return keeps
// CRLF exports matching, since (?m)$ only anchors before a newline.
var unclosedTagPattern = regexp.MustCompile(`(?m)<([A-Za-z0-9_.]+)>([^<\r\n]+?)[ \t]*\r?$`)

// ampersandPattern matches either a well-formed entity or a bare ampersand.
var ampersandPattern = regexp.MustCompile(`&(amp;|lt;|gt;|quot;|apos;|#[0-9]+;)?`)

func normalizeSGML(content string) string {
	escaped := ampersandPattern.ReplaceAllStringFunc(content, func(match string) string {
		if match == "&" {
			return "&amp;"
		}
		return match
	})
	return unclosedTagPattern.ReplaceAllString(escaped, "<$1>$2</$1>")
}

// parseOFXDate accepts the 8-digit YYYYMMDD and 14-digit YYYYMMDDHHMMSS
// forms, ignoring timezone suffixes like [-3:GMT], with a generic fallback.
func parseOFXDate(input string) (time.Time, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return time.Time{}, false
	}
	digits := leadingDigits(trimmed)
	if len(digits) >= 14 {
		if parsed, err := time.Parse("20060102150405", digits[:14]); err == nil {
			return parsed, true
		}
	}
	if len(digits) >= 8 {
		if parsed, err := time.Parse("20060102", digits[:8]); err == nil {
			return parsed, true
		}
	}
	return parseDate(trimmed)
}

func leadingDigits(value string) string {
	for i, r := range value {
		if r < '0' || r > '9' {
			return value[:i]
		}
	}
	return value
}

func parseOptionalAmount(value string) *decimal.Decimal {
	amount, err := money.ParseAmount(value)
	if err != nil {
		return nil
	}
	return &amount
}

func parseOptionalOFXDate(value string) *time.Time {
	date, ok := parseOFXDate(value)
	if !ok {
		return nil
	}
	return &date
}
