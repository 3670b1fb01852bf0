package parser

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"reconcile/internal/money"
)

// CSVParser decodes delimited statement exports. The first row must be a
// header naming at least date, description and amount columns.
type CSVParser struct{}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

var csvExtensions = map[string]bool{"csv": true, "txt": true}

var csvMimeTypes = map[string]bool{
	"text/csv":                 true,
	"text/plain":               true,
	"application/csv":          true,
	"application/vnd.ms-excel": true,
}

func (p *CSVParser) Supports(extension, mimeType string) bool {
	return csvExtensions[extension] || csvMimeTypes[mimeType]
}

var headerSynonyms = map[string][]string{
	"date": {
		"data", "date", "dt", "data movimento", "data mov", "data lancamento",
		"data do movimento", "movimento", "dtposted",
	},
	"description": {
		"descricao", "description", "historico", "memo", "detalhes",
		"lancamento", "name", "descricao do movimento", "historic",
	},
	"amount": {
		"valor", "amount", "montante", "value", "vlr", "valor (r$)",
		"credito/debito", "quantia",
	},
	"balance": {
		"saldo", "balance", "saldo apos", "running balance", "saldo atual",
	},
	"document": {
		"documento", "document", "doc", "num doc", "numero documento",
		"document number", "nro documento", "no documento", "cheque",
	},
}

func (p *CSVParser) Parse(raw []byte, fileName string) (Statement, error) {
	content := strings.TrimSpace(string(bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))))
	if content == "" {
		return Statement{}, &ParseError{FileName: fileName, Reason: "empty file"}
	}

	headerLine := content
	if idx := strings.IndexAny(content, "\r\n"); idx >= 0 {
		headerLine = content[:idx]
	}
	delimiter := detectDelimiter(headerLine)

	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return Statement{}, &ParseError{FileName: fileName, Reason: "unreadable header row"}
	}
	columns, err := mapColumns(header)
	if err != nil {
		return Statement{}, &ParseError{FileName: fileName, Reason: err.Error()}
	}

	var lines []Line
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed rows are recovered locally, like rows with bad
			// dates or amounts.
			continue
		}
		if len(record) < len(header) {
			continue
		}
		date, ok := parseDate(record[columns.date])
		if !ok {
			continue
		}
		amount, err := money.ParseAmount(record[columns.amount])
		if err != nil {
			continue
		}
		line := Line{
			Date:        date,
			Description: strings.TrimSpace(record[columns.description]),
			Amount:      amount,
		}
		if columns.balance >= 0 {
			if balance, err := money.ParseAmount(record[columns.balance]); err == nil {
				line.Balance = &balance
			}
		}
		if columns.document >= 0 {
			line.DocumentNumber = strings.TrimSpace(record[columns.document])
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return Statement{}, &ParseError{FileName: fileName, Reason: "no usable transactions"}
	}

	statement := Statement{
		Reference: fileStem(fileName),
		Lines:     lines,
	}
	statement.Meta.Parser = "csv"
	return statement, nil
}

var delimiterCandidates = []rune{',', ';', '\t', '|'}

// detectDelimiter picks the candidate occurring most often in the header row.
// Ties resolve toward the comma because candidates are checked in order and
// only a strictly higher count replaces the current pick.
func detectDelimiter(headerLine string) rune {
	best := ','
	bestCount := -1
	for _, candidate := range delimiterCandidates {
		count := strings.Count(headerLine, string(candidate))
		if count > bestCount {
			best = candidate
			bestCount = count
		}
	}
	return best
}

type columnIndexes struct {
	date        int
	description int
	amount      int
	balance     int
	document    int
}

func mapColumns(header []string) (columnIndexes, error) {
	columns := columnIndexes{date: -1, description: -1, amount: -1, balance: -1, document: -1}
	for i, cell := range header {
		name := normalizeHeader(cell)
		switch {
		case columns.date < 0 && matchesSynonym("date", name):
			columns.date = i
		case columns.description < 0 && matchesSynonym("description", name):
			columns.description = i
		case columns.amount < 0 && matchesSynonym("amount", name):
			columns.amount = i
		case columns.balance < 0 && matchesSynonym("balance", name):
			columns.balance = i
		case columns.document < 0 && matchesSynonym("document", name):
			columns.document = i
		}
	}
	switch {
	case columns.date < 0:
		return columns, &headerError{"date"}
	case columns.description < 0:
		return columns, &headerError{"description"}
	case columns.amount < 0:
		return columns, &headerError{"amount"}
	}
	return columns, nil
}

type headerError struct {
	column string
}

func (e *headerError) Error() string {
	return "missing required column: " + e.column
}

func matchesSynonym(kind, name string) bool {
	for _, synonym := range headerSynonyms[kind] {
		if name == synonym {
			return true
		}
	}
	return false
}

var accentFolder = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "õ", "o", "ö", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ç", "c", "ñ", "n",
)

func normalizeHeader(cell string) string {
	return accentFolder.Replace(strings.ToLower(strings.TrimSpace(cell)))
}
