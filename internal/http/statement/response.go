package statement

import (
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/factura/internal/engine"
	"github.com/MrJamesThe3rd/factura/internal/history"
	"github.com/MrJamesThe3rd/factura/internal/money"
	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

const dateLayout = "2006-01-02"

type resultResponse struct {
	RunID         uuid.UUID             `json:"run_id"`
	Backend       history.Backend       `json:"backend"`
	RunDate       string                `json:"run_date"`
	Complete      bool                  `json:"complete"`
	Error         string                `json:"error,omitempty"`
	Summary       summaryResponse       `json:"summary"`
	Issued        []issuedResponse      `json:"issued"`
	AlreadyIssued []alreadyResponse     `json:"already_issued"`
	ExcludedDebit []transactionResponse `json:"excluded_debit"`
	ExcludedZero  []transactionResponse `json:"excluded_zero"`
	Malformed     []malformedResponse   `json:"malformed"`
	NotProcessed  []pendingResponse     `json:"not_processed"`
	SplitMismatch []mismatchResponse    `json:"split_mismatch"`
}

type summaryResponse struct {
	Issued            int         `json:"issued"`
	AlreadyIssued     int         `json:"already_issued"`
	SplitTransactions int         `json:"split_transactions"`
	ExcludedDebit     int         `json:"excluded_debit"`
	ExcludedZero      int         `json:"excluded_zero"`
	Malformed         int         `json:"malformed"`
	NotProcessed      int         `json:"not_processed"`
	SplitMismatch     int         `json:"split_mismatch"`
	RenderFailures    int         `json:"render_failures"`
	Gross             money.Cents `json:"gross"`
	Base              money.Cents `json:"base"`
	Tax               money.Cents `json:"tax"`
	First             string      `json:"first,omitempty"`
	Last              string      `json:"last,omitempty"`
}

type transactionResponse struct {
	Line        int         `json:"line"`
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Amount      money.Cents `json:"amount"`
}

type issuedResponse struct {
	Number      string              `json:"number"`
	IssueDate   string              `json:"issue_date"`
	Part        int                 `json:"part"`
	Parts       int                 `json:"parts"`
	Gross       money.Cents         `json:"gross"`
	Base        money.Cents         `json:"base"`
	Tax         money.Cents         `json:"tax"`
	Transaction transactionResponse `json:"transaction"`
	Document    string              `json:"document,omitempty"`
	RenderError string              `json:"render_error,omitempty"`
}

type alreadyResponse struct {
	Number    string      `json:"number"`
	IssueDate string      `json:"issue_date"`
	Part      int         `json:"part"`
	Parts     int         `json:"parts"`
	Gross     money.Cents `json:"gross"`
}

type malformedResponse struct {
	Line  int    `json:"line"`
	Field string `json:"field"`
	Value string `json:"value,omitempty"`
	Error string `json:"error"`
}

type mismatchResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Parts       int                 `json:"parts"`
	Recorded    []alreadyResponse   `json:"recorded"`
}

type pendingResponse struct {
	Transaction transactionResponse `json:"transaction"`
	FromPart    int                 `json:"from_part"`
	Parts       int                 `json:"parts"`
}

func toResultResponse(r *engine.Result) resultResponse {
	resp := resultResponse{
		RunID:         r.RunID,
		Backend:       r.Backend,
		RunDate:       r.RunDate.Format(dateLayout),
		Complete:      r.Complete(),
		Summary:       summaryResponse(r.Summary),
		Issued:        make([]issuedResponse, 0, len(r.Issued)),
		AlreadyIssued: make([]alreadyResponse, 0, len(r.AlreadyIssued)),
		ExcludedDebit: toTransactions(r.ExcludedDebit),
		ExcludedZero:  toTransactions(r.ExcludedZero),
		Malformed:     make([]malformedResponse, 0, len(r.Malformed)),
		NotProcessed:  make([]pendingResponse, 0, len(r.NotProcessed)),
		SplitMismatch: make([]mismatchResponse, 0, len(r.SplitMismatch)),
	}

	for _, is := range r.Issued {
		c := is.Invoice.Candidate
		item := issuedResponse{
			Number:      is.Invoice.Number(),
			IssueDate:   is.Invoice.IssueDate.Format(dateLayout),
			Part:        c.Part,
			Parts:       c.Parts,
			Gross:       c.Gross,
			Base:        c.Base,
			Tax:         c.Tax,
			Transaction: toTransaction(c.Source),
		}

		if is.Document != nil {
			item.Document = is.Document.Name
		}

		if is.RenderErr != nil {
			item.RenderError = is.RenderErr.Error()
		}

		resp.Issued = append(resp.Issued, item)
	}

	for _, rec := range r.AlreadyIssued {
		resp.AlreadyIssued = append(resp.AlreadyIssued, toAlready(rec))
	}

	for _, m := range r.SplitMismatch {
		item := mismatchResponse{
			Transaction: toTransaction(m.Transaction),
			Parts:       m.Parts,
			Recorded:    make([]alreadyResponse, 0, len(m.Prior)),
		}

		for _, rec := range m.Prior {
			item.Recorded = append(item.Recorded, toAlready(rec))
		}

		resp.SplitMismatch = append(resp.SplitMismatch, item)
	}

	for _, m := range r.Malformed {
		resp.Malformed = append(resp.Malformed, malformedResponse{
			Line:  m.Err.Line,
			Field: m.Err.Field,
			Value: m.Err.Value,
			Error: m.Err.Err.Error(),
		})
	}

	for _, p := range r.NotProcessed {
		resp.NotProcessed = append(resp.NotProcessed, pendingResponse{
			Transaction: toTransaction(p.Transaction),
			FromPart:    p.FromPart,
			Parts:       p.Parts,
		})
	}

	return resp
}

func toAlready(rec *history.Record) alreadyResponse {
	return alreadyResponse{
		Number:    rec.Number,
		IssueDate: rec.IssueDate.Format(dateLayout),
		Part:      rec.Part,
		Parts:     rec.Parts,
		Gross:     rec.Gross,
	}
}

func toTransaction(tx transaction.Transaction) transactionResponse {
	return transactionResponse{
		Line:        tx.Line,
		Date:        tx.Date.Format(dateLayout),
		Description: tx.Description,
		Amount:      tx.Amount,
	}
}

func toTransactions(txs []transaction.Transaction) []transactionResponse {
	resp := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		resp[i] = toTransaction(tx)
	}

	return resp
}
