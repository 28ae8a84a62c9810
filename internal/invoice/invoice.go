package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/factura/internal/money"
	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

type Status string

const StatusIssued Status = "issued"

// Candidate is one invoice-sized slice of an eligible transaction, not yet
// numbered.
type Candidate struct {
	Source transaction.Transaction
	Part   int // 1-based
	Parts  int
	Gross  money.Cents
	Base   money.Cents
	Tax    money.Cents
	Rate   decimal.Decimal
}

// IsSplit reports whether the source transaction produced more than one invoice.
func (c Candidate) IsSplit() bool {
	return c.Parts > 1
}

type Invoice struct {
	ID        Identifier
	IssueDate time.Time
	Candidate Candidate
	Status    Status
	SourceKey string
}

func (i *Invoice) Number() string {
	return i.ID.String()
}
