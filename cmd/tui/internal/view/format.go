package view

import (
	"context"
	"time"

	"github.com/MrJamesThe3rd/factura/internal/money"
)

const storeTimeout = 5 * time.Second

// FormatAmount formats cents the way they appear on an invoice, e.g. "1.234,56 €".
func FormatAmount(c money.Cents) string {
	return c.FormatEuropean() + " €"
}

// FormatDate formats a time.Time into YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// StoreCtx returns a context with a standard timeout for history reads.
func StoreCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}
