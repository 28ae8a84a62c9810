package importer

import (
	"errors"
	"io"

	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

var ErrUnknownBank = errors.New("unknown bank")

type Bank string

const (
	BankCGD       Bank = "cgd"
	BankSantander Bank = "santander"
)

// Banks lists the supported statement formats in menu order.
func Banks() []Bank {
	return []Bank{BankSantander, BankCGD}
}

// Importer reads a bank statement and returns its data rows uninterpreted.
// Blank and footer rows are dropped; everything else is left for the filter.
type Importer interface {
	Parse(r io.Reader) ([]transaction.RawRow, error)
}
