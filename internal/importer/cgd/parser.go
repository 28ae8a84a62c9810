package cgd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	enc "github.com/MrJamesThe3rd/factura/internal/encoding"
	"github.com/MrJamesThe3rd/factura/internal/money"
	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

var ErrNoHeader = errors.New("no matching CGD format found: expected columns for conta, extrato, or cartão")

// Parser reads CGD bank CSV exports in any of the known layouts.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// record is a CSV record with the file line it started on.
type record struct {
	line  int
	cells []string
}

func (p *Parser) Parse(r io.Reader) ([]transaction.RawRow, error) {
	text, err := enc.Detect(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	records, err := readRecords(text)
	if err != nil {
		return nil, err
	}

	b, headerIdx, ok := detectLayout(records)
	if !ok {
		return nil, ErrNoHeader
	}

	var rows []transaction.RawRow

	for _, rec := range records[headerIdx+1:] {
		if row, ok := b.row(rec); ok {
			rows = append(rows, row)
		}
	}

	return rows, nil
}

func readRecords(r io.Reader) ([]record, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records []record

	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}

		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		line, _ := reader.FieldPos(0)
		records = append(records, record{line: line, cells: cells})
	}
}

// detectLayout scans records for the first header that binds a known layout
// and returns the binding with the header's record index.
func detectLayout(records []record) (binding, int, bool) {
	for idx, rec := range records {
		header := make(map[string]int)

		for i, cell := range rec.cells {
			if name := strings.TrimSpace(cell); name != "" {
				header[name] = i
			}
		}

		for _, l := range layouts {
			if b, ok := l.bind(header); ok {
				return b, idx, true
			}
		}
	}

	return binding{}, 0, false
}

// splitAmount picks the non-zero side of a debit/credit pair. When neither
// side holds a usable number, the raw non-empty cell is kept so the filter
// can report it.
func splitAmount(debit, credit string) string {
	debitValue := "-" + strings.TrimLeft(debit, "-+")

	if nonZero(debit) {
		return debitValue
	}

	if nonZero(credit) {
		return credit
	}

	switch {
	case debit != "":
		return debitValue
	default:
		return credit
	}
}

func nonZero(s string) bool {
	if s == "" {
		return false
	}

	c, err := money.Parse(s)

	return err == nil && c != 0
}
