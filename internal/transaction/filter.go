package transaction

import (
	"errors"
	"strings"
	"time"

	"github.com/MrJamesThe3rd/factura/internal/money"
)

// dateLayouts are tried in order; the first that parses wins.
var dateLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"2006-01-02",
	"02.01.2006",
	"2/1/2006",
}

// Classification splits a statement into disjoint, order-preserving groups.
type Classification struct {
	Eligible      []Transaction
	ExcludedDebit []Transaction
	ExcludedZero  []Transaction
	Malformed     []Malformed
}

// Total returns the number of rows classified.
func (c Classification) Total() int {
	return len(c.Eligible) + len(c.ExcludedDebit) + len(c.ExcludedZero) + len(c.Malformed)
}

// Classify parses raw rows and sorts them by sign. A row that cannot be parsed
// is reported in Malformed and does not stop the remaining rows.
func Classify(rows []RawRow) Classification {
	var c Classification

	for _, row := range rows {
		tx, err := Parse(row)
		if err != nil {
			var perr *ParseError
			if !errors.As(err, &perr) {
				perr = &ParseError{Line: row.Line, Err: err}
			}

			c.Malformed = append(c.Malformed, Malformed{Row: row, Err: perr})

			continue
		}

		switch {
		case tx.Amount > 0:
			c.Eligible = append(c.Eligible, tx)
		case tx.Amount < 0:
			c.ExcludedDebit = append(c.ExcludedDebit, tx)
		default:
			c.ExcludedZero = append(c.ExcludedZero, tx)
		}
	}

	return c
}

// Parse interprets a single raw row.
func Parse(row RawRow) (Transaction, error) {
	dateStr := strings.TrimSpace(row.Date)
	if dateStr == "" {
		return Transaction{}, &ParseError{Line: row.Line, Field: FieldDate, Err: ErrMissingField}
	}

	date, ok := parseDate(dateStr)
	if !ok {
		return Transaction{}, &ParseError{Line: row.Line, Field: FieldDate, Value: dateStr, Err: ErrInvalidDate}
	}

	desc := strings.TrimSpace(row.Description)
	if desc == "" {
		return Transaction{}, &ParseError{Line: row.Line, Field: FieldDescription, Err: ErrMissingField}
	}

	amountStr := strings.TrimSpace(row.Amount)
	if amountStr == "" {
		return Transaction{}, &ParseError{Line: row.Line, Field: FieldAmount, Err: ErrMissingField}
	}

	amount, err := money.Parse(amountStr)
	if err != nil {
		return Transaction{}, &ParseError{Line: row.Line, Field: FieldAmount, Value: amountStr, Err: ErrInvalidAmount}
	}

	return Transaction{
		Line:        row.Line,
		Date:        date,
		Description: desc,
		Amount:      amount,
	}, nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
