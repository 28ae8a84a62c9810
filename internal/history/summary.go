package history

import (
	"slices"

	"github.com/MrJamesThe3rd/factura/internal/money"
)

// MonthSummary aggregates the invoices issued in one calendar month.
type MonthSummary struct {
	Month    string      `json:"month"`
	Invoices int         `json:"invoices"`
	Runs     int         `json:"runs"`
	First    string      `json:"first"`
	Last     string      `json:"last"`
	Gross    money.Cents `json:"gross"`
	Base     money.Cents `json:"base"`
	Tax      money.Cents `json:"tax"`
}

// Summarize groups records by issue month, most recent month first.
func Summarize(records []*Record) []MonthSummary {
	byMonth := make(map[string]*MonthSummary)
	runs := make(map[string]map[string]struct{})

	for _, r := range records {
		m := r.Month()

		s, ok := byMonth[m]
		if !ok {
			s = &MonthSummary{Month: m, First: r.Number, Last: r.Number}
			byMonth[m] = s
			runs[m] = make(map[string]struct{})
		}

		s.Invoices++
		s.Gross += r.Gross
		s.Base += r.Base
		s.Tax += r.Tax
		runs[m][r.RunID.String()] = struct{}{}

		// Records arrive ordered by (year, sequence).
		s.Last = r.Number
	}

	out := make([]MonthSummary, 0, len(byMonth))
	for m, s := range byMonth {
		s.Runs = len(runs[m])
		out = append(out, *s)
	}

	slices.SortFunc(out, func(a, b MonthSummary) int {
		switch {
		case a.Month > b.Month:
			return -1
		case a.Month < b.Month:
			return 1
		}

		return 0
	})

	return out
}
