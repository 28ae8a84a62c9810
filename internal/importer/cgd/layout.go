package cgd

import (
	"strings"

	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

// layout is one CGD export format, recognised by its header cells. amount
// holds either a single signed column or a debit column followed by a
// credit column.
type layout struct {
	name   string
	date   string
	desc   string
	amount []string
}

// layouts are tried in order. The card statement shares "Descrição" with
// the others and its debit/credit pair is the most specific, so it goes first.
var layouts = []layout{
	{name: "cartão", date: "Data", desc: "Descrição", amount: []string{"Débito", "Crédito"}},
	{name: "extrato", date: "Data mov.", desc: "Descrição", amount: []string{"Movimento"}},
	{name: "conta", date: "Data mov.", desc: "Descrição", amount: []string{"Montante"}},
}

// binding is a layout resolved against the column positions of one header.
type binding struct {
	layout
	dateIdx   int
	descIdx   int
	amountIdx []int
}

// bind resolves l against header, which maps trimmed header cells to their
// position. It reports false when a column is missing.
func (l layout) bind(header map[string]int) (binding, bool) {
	b := binding{layout: l}

	var ok bool

	if b.dateIdx, ok = header[l.date]; !ok {
		return binding{}, false
	}

	if b.descIdx, ok = header[l.desc]; !ok {
		return binding{}, false
	}

	for _, name := range l.amount {
		idx, ok := header[name]
		if !ok {
			return binding{}, false
		}

		b.amountIdx = append(b.amountIdx, idx)
	}

	return b, true
}

// row turns a data record into a raw row, reporting false for filler rows.
func (b binding) row(rec record) (transaction.RawRow, bool) {
	row := transaction.RawRow{
		Line:        rec.line,
		Date:        cellValue(rec.cells, b.dateIdx),
		Description: cellValue(rec.cells, b.descIdx),
		Amount:      b.signedAmount(rec.cells),
	}

	return row, !row.Filler()
}

// signedAmount returns the amount cell with debits carrying a leading minus.
func (b binding) signedAmount(cells []string) string {
	if len(b.amountIdx) == 1 {
		return cellValue(cells, b.amountIdx[0])
	}

	return splitAmount(cellValue(cells, b.amountIdx[0]), cellValue(cells, b.amountIdx[1]))
}

// cellValue safely gets a trimmed cell value from a row.
func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
