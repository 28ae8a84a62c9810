package invoice

import (
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/factura/internal/history"
	"github.com/MrJamesThe3rd/factura/internal/money"
)

const dateLayout = "2006-01-02"

type invoiceResponse struct {
	Number          string          `json:"number"`
	Year            int             `json:"year"`
	Sequence        int             `json:"sequence"`
	IssueDate       string          `json:"issue_date"`
	TransactionDate string          `json:"transaction_date"`
	Description     string          `json:"description"`
	Part            int             `json:"part"`
	Parts           int             `json:"parts"`
	Gross           money.Cents     `json:"gross"`
	Base            money.Cents     `json:"base"`
	Tax             money.Cents     `json:"tax"`
	TaxRate         string          `json:"tax_rate"`
	Status          string          `json:"status"`
	Backend         history.Backend `json:"backend"`
	RunID           uuid.UUID       `json:"run_id"`
	DocumentURL     string          `json:"document_url"`
}

type nextResponse struct {
	Year     int    `json:"year"`
	Number   string `json:"number"`
	Sequence int    `json:"sequence"`
}

func toResponse(r *history.Record) invoiceResponse {
	return invoiceResponse{
		Number:          r.Number,
		Year:            r.Year,
		Sequence:        r.Sequence,
		IssueDate:       r.IssueDate.Format(dateLayout),
		TransactionDate: r.TransactionDate.Format(dateLayout),
		Description:     r.Description,
		Part:            r.Part,
		Parts:           r.Parts,
		Gross:           r.Gross,
		Base:            r.Base,
		Tax:             r.Tax,
		TaxRate:         r.TaxRate.String(),
		Status:          r.Status,
		Backend:         r.Backend,
		RunID:           r.RunID,
		DocumentURL:     "/api/v1/invoices/" + r.Number + "/document",
	}
}

func toResponseList(records []*history.Record) []invoiceResponse {
	resp := make([]invoiceResponse, len(records))
	for i, r := range records {
		resp[i] = toResponse(r)
	}

	return resp
}
