package transaction

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrJamesThe3rd/factura/internal/money"
)

var (
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidAmount = errors.New("amount is not numeric")
	ErrInvalidDate   = errors.New("unrecognised date")
)

const (
	FieldDate        = "date"
	FieldDescription = "description"
	FieldAmount      = "amount"
)

// RawRow is one statement line as read by an importer, before interpretation.
type RawRow struct {
	Line        int // 1-based line (or sheet row) in the source file
	Date        string
	Description string
	Amount      string
}

// Filler reports whether r is layout rather than a statement line: a blank
// line, a label such as "Saldo final" or "Totais", or a page marker. Filler
// rows have no numeric amount and lack a date or a description. Any other
// row, however incomplete, is left for Classify to report.
func (r RawRow) Filler() bool {
	amount := strings.TrimSpace(r.Amount)
	if amount != "" {
		if _, err := money.Parse(amount); err == nil {
			return false
		}
	}

	return strings.TrimSpace(r.Date) == "" || strings.TrimSpace(r.Description) == ""
}

// Transaction represents one dated, signed statement line.
type Transaction struct {
	Line        int
	Date        time.Time
	Description string
	Amount      money.Cents
}

// IsCredit reports whether the transaction is income and may be invoiced.
func (t Transaction) IsCredit() bool {
	return t.Amount > 0
}

// ParseError describes why a raw row could not be turned into a Transaction.
type ParseError struct {
	Line  int
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Field, e.Err)
	}

	return fmt.Sprintf("line %d: %s %q: %v", e.Line, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Malformed pairs a rejected row with the reason it was rejected.
type Malformed struct {
	Row RawRow
	Err *ParseError
}
