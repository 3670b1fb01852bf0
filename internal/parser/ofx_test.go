package parser

import (
	"errors"
	"strings"
	"testing"
)

const sgmlBankStatement = `OFXHEADER:100
DATA:OFXSGML
VERSION:102

<OFX>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>REF-2025-07
<STMTRS>
<BANKACCTFROM>
<BANKID>0341
<ACCTID>12345-6
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20250701
<DTEND>20250731
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250702120000[-3:GMT]
<TRNAMT>1500.50
<FITID>ABC123
<NAME>TED Recebida
<MEMO>Pagamento Cliente & Cia
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250710
<TRNAMT>-300.00
<FITID>ABC124
<CHECKNUM>000321
<NAME>Boleto
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>4700.00
<DTASOF>20250731
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>
`

func TestOFXParseSGMLBankStatement(t *testing.T) {
	statement, err := NewOFXParser().Parse([]byte(sgmlBankStatement), "julho.ofx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if statement.Reference != "REF-2025-07" {
		t.Fatalf("expected TRNUID reference, got %q", statement.Reference)
	}
	if len(statement.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(statement.Lines))
	}
	first := statement.Lines[0]
	if first.Description != "Pagamento Cliente & Cia" {
		t.Fatalf("expected MEMO description with escaped ampersand restored, got %q", first.Description)
	}
	if got := first.Date.Format("2006-01-02"); got != "2025-07-02" {
		t.Fatalf("expected 14-digit DTPOSTED parse, got %s", got)
	}
	if first.Amount.String() != "1500.5" || first.FitID != "ABC123" {
		t.Fatalf("unexpected first line: %+v", first)
	}
	second := statement.Lines[1]
	if second.Description != "Boleto" {
		t.Fatalf("expected NAME fallback when MEMO absent, got %q", second.Description)
	}
	if second.DocumentNumber != "000321" {
		t.Fatalf("expected CHECKNUM document number, got %q", second.DocumentNumber)
	}

	meta := statement.Meta
	if meta.BankAccountID != "12345-6" || meta.BankRoutingID != "0341" {
		t.Fatalf("unexpected account meta: %+v", meta)
	}
	if meta.ClosingBalance == nil || meta.ClosingBalance.String() != "4700" {
		t.Fatalf("expected ledger closing balance, got %v", meta.ClosingBalance)
	}
	if meta.RangeStart == nil || meta.RangeStart.Format("2006-01-02") != "2025-07-01" {
		t.Fatalf("expected declared range start, got %v", meta.RangeStart)
	}
	if meta.Parser != "ofx" {
		t.Fatalf("expected ofx parser tag, got %q", meta.Parser)
	}
}

func TestOFXParseCreditCardStatement(t *testing.T) {
	raw := []byte(`<OFX>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>0
<CCSTMTRS>
<CCACCTFROM>
<ACCTID>4111
</CCACCTFROM>
<BANKTRANLIST>
<CCSTMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250215
<TRNAMT>-89.90
<FITID>CC1
<MEMO>Streaming
</CCSTMTTRN>
</BANKTRANLIST>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>
`)
	statement, err := NewOFXParser().Parse(raw, "fatura-fev.qfx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// TRNUID "0" is a placeholder and must not override the filename stem.
	if statement.Reference != "fatura-fev" {
		t.Fatalf("expected filename stem reference, got %q", statement.Reference)
	}
	if len(statement.Lines) != 1 || statement.Lines[0].Amount.String() != "-89.9" {
		t.Fatalf("unexpected lines: %+v", statement.Lines)
	}
	if statement.Meta.BankAccountID != "4111" {
		t.Fatalf("expected card account id, got %q", statement.Meta.BankAccountID)
	}
}

func TestOFXParseWellFormedXML(t *testing.T) {
	raw := []byte(`<OFX><BANKMSGSRSV1><STMTTRNRS><STMTRS><BANKTRANLIST>` +
		`<STMTTRN><DTPOSTED>20250101</DTPOSTED><TRNAMT>10.00</TRNAMT><MEMO>Juros</MEMO></STMTTRN>` +
		`</BANKTRANLIST></STMTRS></STMTTRNRS></BANKMSGSRSV1></OFX>`)
	statement, err := NewOFXParser().Parse(raw, "x.ofx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(statement.Lines) != 1 || statement.Lines[0].Description != "Juros" {
		t.Fatalf("unexpected lines: %+v", statement.Lines)
	}
}

func TestOFXSkipsTransactionsWithoutDateOrAmount(t *testing.T) {
	raw := []byte(`<OFX><BANKMSGSRSV1><STMTTRNRS><STMTRS><BANKTRANLIST>
<STMTTRN>
<TRNAMT>10.00
<MEMO>Sem data
</STMTTRN>
<STMTTRN>
<DTPOSTED>20250101
<TRNAMT>not-a-number
<MEMO>Sem valor
</STMTTRN>
<STMTTRN>
<DTPOSTED>20250102
<TRNAMT>5.00
<MEMO>Valida
</STMTTRN>
</BANKTRANLIST></STMTRS></STMTTRNRS></BANKMSGSRSV1></OFX>`)
	statement, err := NewOFXParser().Parse(raw, "x.ofx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(statement.Lines) != 1 || statement.Lines[0].Description != "Valida" {
		t.Fatalf("expected only the valid transaction, got %+v", statement.Lines)
	}
}

func TestOFXFailures(t *testing.T) {
	p := NewOFXParser()
	cases := []struct {
		name string
		raw  string
	}{
		{"empty file", "  "},
		{"missing root", "OFXHEADER:100\nno root here"},
		{"zero usable transactions", "<OFX><BANKMSGSRSV1></BANKMSGSRSV1></OFX>"},
	}
	for _, tc := range cases {
		_, err := p.Parse([]byte(tc.raw), "bad.ofx")
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("%s: expected ParseError, got %v", tc.name, err)
		}
	}
}

func TestOFXParseSGMLWithCRLFLineEndings(t *testing.T) {
	crlf := strings.ReplaceAll(sgmlBankStatement, "\n", "\r\n")
	statement, err := NewOFXParser().Parse([]byte(crlf), "julho.ofx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if statement.Reference != "REF-2025-07" {
		t.Fatalf("expected TRNUID reference, got %q", statement.Reference)
	}
	if len(statement.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(statement.Lines))
	}
	first := statement.Lines[0]
	if first.Description != "Pagamento Cliente & Cia" {
		t.Fatalf("unexpected first description: %q", first.Description)
	}
	if first.Amount.String() != "1500.5" || first.FitID != "ABC123" {
		t.Fatalf("unexpected first line: %+v", first)
	}
	if statement.Meta.ClosingBalance == nil || statement.Meta.ClosingBalance.String() != "4700" {
		t.Fatalf("expected ledger closing balance, got %v", statement.Meta.ClosingBalance)
	}
}

func TestNormalizeSGML(t *testing.T) {
	input := "<NAME>Foo & Bar\n<BAL>1.00</BAL>"
	got := normalizeSGML(input)
	if !strings.Contains(got, "<NAME>Foo &amp; Bar</NAME>") {
		t.Fatalf("expected unclosed tag rewritten and ampersand escaped, got %q", got)
	}
	if crlf := normalizeSGML("<NAME>Foo\r\n<BAL>1.00</BAL>\r\n"); !strings.Contains(crlf, "<NAME>Foo</NAME>") {
		t.Fatalf("expected CRLF-terminated tag rewritten, got %q", crlf)
	}
	if !strings.Contains(got, "<BAL>1.00</BAL>") {
		t.Fatalf("already-closed tags must pass through, got %q", got)
	}
	if strings.Contains(normalizeSGML("<MEMO>A &amp; B\n"), "&amp;amp;") {
		t.Fatalf("well-formed entities must not be double-escaped")
	}
}

func TestParseOFXDate(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"20250702120000[-3:GMT]", "2025-07-02"},
		{"20250710", "2025-07-10"},
		{"2025-07-10", "2025-07-10"},
	}
	for _, tc := range cases {
		got, ok := parseOFXDate(tc.input)
		if !ok {
			t.Fatalf("parseOFXDate(%q): expected success", tc.input)
		}
		if got.Format("2006-01-02") != tc.want {
			t.Fatalf("parseOFXDate(%q) = %s, want %s", tc.input, got.Format("2006-01-02"), tc.want)
		}
	}
	if _, ok := parseOFXDate(""); ok {
		t.Fatalf("empty input should fail")
	}
}
