package invoice

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/factura/internal/money"
	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

const (
	DefaultCap money.Cents = 50000
)

var (
	DefaultTaxRate = decimal.RequireFromString("0.21")

	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrInvalidCap        = errors.New("cap must be positive")
	ErrInvalidRate       = errors.New("tax rate must not be negative")
)

// Splitter cuts eligible transactions into invoice candidates whose gross
// never exceeds the cap.
type Splitter struct {
	cap  money.Cents
	rate decimal.Decimal
	div  decimal.Decimal
}

func NewSplitter(limit money.Cents, rate decimal.Decimal) (*Splitter, error) {
	if limit <= 0 {
		return nil, ErrInvalidCap
	}

	if rate.IsNegative() {
		return nil, ErrInvalidRate
	}

	return &Splitter{
		cap:  limit,
		rate: rate,
		div:  decimal.NewFromInt(1).Add(rate),
	}, nil
}

func (s *Splitter) Cap() money.Cents {
	return s.cap
}

func (s *Splitter) Rate() decimal.Decimal {
	return s.rate
}

// Split returns ceil(amount/cap) candidates. All but the last carry exactly
// the cap; the last carries the remainder, so grosses always sum to the
// transaction amount.
func (s *Splitter) Split(tx transaction.Transaction) ([]Candidate, error) {
	if tx.Amount <= 0 {
		return nil, fmt.Errorf("splitting line %d: %w", tx.Line, ErrNonPositiveAmount)
	}

	n := int((tx.Amount + s.cap - 1) / s.cap)
	candidates := make([]Candidate, 0, n)

	for i := range n {
		gross := s.cap
		if i == n-1 {
			gross = tx.Amount - s.cap*money.Cents(n-1)
		}

		base, tax := s.Breakdown(gross)

		candidates = append(candidates, Candidate{
			Source: tx,
			Part:   i + 1,
			Parts:  n,
			Gross:  gross,
			Base:   base,
			Tax:    tax,
			Rate:   s.rate,
		})
	}

	return candidates, nil
}

// Breakdown derives the tax-exclusive base from a tax-inclusive gross. The
// base is rounded half to even and tax absorbs the difference.
func (s *Splitter) Breakdown(gross money.Cents) (base, tax money.Cents) {
	base = money.FromDecimal(gross.Decimal().DivRound(s.div, 8))

	return base, gross - base
}
