package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/factura/internal/history"
	"github.com/MrJamesThe3rd/factura/internal/invoice"
	"github.com/MrJamesThe3rd/factura/internal/money"
	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

type Result struct {
	RunID   uuid.UUID
	Backend history.Backend
	RunDate time.Time

	Issued []Issued
	// AlreadyIssued lists records from earlier runs that cover transactions
	// in this statement.
	AlreadyIssued []*history.Record
	ExcludedDebit []transaction.Transaction
	ExcludedZero  []transaction.Transaction
	Malformed     []transaction.Malformed
	NotProcessed  []Pending
	// SplitMismatch lists transactions an earlier run invoiced under a
	// different split. No further part of them is issued.
	SplitMismatch []SplitMismatch

	Summary Summary
}

type Issued struct {
	Invoice   *invoice.Invoice
	Document  *Document
	RenderErr *RenderError
}

// Pending is an eligible transaction the run did not finish.
type Pending struct {
	Transaction transaction.Transaction
	SourceKey   string
	FromPart    int
	Parts       int
}

// SplitMismatch is a transaction whose recorded parts do not line up with
// the split the current cap and rate produce.
type SplitMismatch struct {
	Transaction transaction.Transaction
	SourceKey   string
	Parts       int
	// Prior holds the recorded parts in part order.
	Prior []*history.Record
}

type Summary struct {
	Issued            int
	AlreadyIssued     int
	SplitTransactions int
	ExcludedDebit     int
	ExcludedZero      int
	Malformed         int
	NotProcessed      int
	SplitMismatch     int
	RenderFailures    int
	Gross             money.Cents
	Base              money.Cents
	Tax               money.Cents
	First             string
	Last              string
}

// Complete reports whether every eligible transaction was handled.
func (r *Result) Complete() bool {
	return len(r.NotProcessed) == 0
}

func (r *Result) summarize() {
	s := &r.Summary

	s.Issued = len(r.Issued)
	s.AlreadyIssued = len(r.AlreadyIssued)
	s.ExcludedDebit = len(r.ExcludedDebit)
	s.ExcludedZero = len(r.ExcludedZero)
	s.Malformed = len(r.Malformed)
	s.NotProcessed = len(r.NotProcessed)
	s.SplitMismatch = len(r.SplitMismatch)
	s.RenderFailures = 0
	s.Gross, s.Base, s.Tax = 0, 0, 0

	for _, is := range r.Issued {
		c := is.Invoice.Candidate
		s.Gross += c.Gross
		s.Base += c.Base
		s.Tax += c.Tax

		if is.RenderErr != nil {
			s.RenderFailures++
		}
	}

	if len(r.Issued) > 0 {
		s.First = r.Issued[0].Invoice.Number()
		s.Last = r.Issued[len(r.Issued)-1].Invoice.Number()
	}
}
