package invoice_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/factura/internal/invoice"
	"github.com/MrJamesThe3rd/factura/internal/money"
	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

func newSplitter(t *testing.T) *invoice.Splitter {
	t.Helper()

	s, err := invoice.NewSplitter(invoice.DefaultCap, invoice.DefaultTaxRate)
	require.NoError(t, err)

	return s
}

func tx(amount money.Cents) transaction.Transaction {
	return transaction.Transaction{
		Line:        3,
		Date:        time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		Description: "TFI Wise",
		Amount:      amount,
	}
}

func TestSplitter_Split(t *testing.T) {
	type want struct {
		gross []money.Cents
		base  []money.Cents
		tax   []money.Cents
	}

	type testCase struct {
		name   string
		amount money.Cents
		want   want
	}

	tests := []testCase{
		{
			name:   "Over cap splits with remainder last",
			amount: 120000,
			want: want{
				gross: []money.Cents{50000, 50000, 20000},
				base:  []money.Cents{41322, 41322, 16529},
				tax:   []money.Cents{8678, 8678, 3471},
			},
		},
		{
			name:   "Exactly cap is one candidate",
			amount: 50000,
			want: want{
				gross: []money.Cents{50000},
				base:  []money.Cents{41322},
				tax:   []money.Cents{8678},
			},
		},
		{
			name:   "Exact multiple of cap",
			amount: 100000,
			want: want{
				gross: []money.Cents{50000, 50000},
				base:  []money.Cents{41322, 41322},
				tax:   []money.Cents{8678, 8678},
			},
		},
		{
			name:   "Under cap",
			amount: 30000,
			want: want{
				gross: []money.Cents{30000},
				base:  []money.Cents{24793},
				tax:   []money.Cents{5207},
			},
		},
		{
			name:   "One cent over cap",
			amount: 50001,
			want: want{
				gross: []money.Cents{50000, 1},
				base:  []money.Cents{41322, 1},
				tax:   []money.Cents{8678, 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newSplitter(t).Split(tx(tt.amount))
			require.NoError(t, err)
			require.Len(t, got, len(tt.want.gross))

			for i, c := range got {
				assert.Equal(t, tt.want.gross[i], c.Gross, "gross[%d]", i)
				assert.Equal(t, tt.want.base[i], c.Base, "base[%d]", i)
				assert.Equal(t, tt.want.tax[i], c.Tax, "tax[%d]", i)
				assert.Equal(t, i+1, c.Part)
				assert.Equal(t, len(got), c.Parts)
				assert.Equal(t, "TFI Wise", c.Source.Description)
			}
		})
	}
}

func TestSplitter_Properties(t *testing.T) {
	s := newSplitter(t)
	rate := decimal.RequireFromString("1.21")

	for amount := money.Cents(1); amount <= 260000; amount += 1237 {
		got, err := s.Split(tx(amount))
		require.NoError(t, err)

		var sum money.Cents

		for _, c := range got {
			assert.LessOrEqual(t, c.Gross, invoice.DefaultCap)
			assert.Positive(t, c.Gross)
			assert.Equal(t, c.Gross, c.Base+c.Tax)

			wantTax := money.FromDecimal(c.Gross.Decimal().Sub(c.Gross.Decimal().Div(rate)))
			assert.InDelta(t, int64(wantTax), int64(c.Tax), 1, "amount %d", amount)

			sum += c.Gross
		}

		assert.Equal(t, amount, sum, "amount %d", amount)
	}
}

func TestSplitter_NonPositive(t *testing.T) {
	s := newSplitter(t)

	_, err := s.Split(tx(0))
	assert.ErrorIs(t, err, invoice.ErrNonPositiveAmount)

	_, err = s.Split(tx(-5000))
	assert.ErrorIs(t, err, invoice.ErrNonPositiveAmount)
}

func TestNewSplitter_Invalid(t *testing.T) {
	_, err := invoice.NewSplitter(0, invoice.DefaultTaxRate)
	assert.ErrorIs(t, err, invoice.ErrInvalidCap)

	_, err = invoice.NewSplitter(invoice.DefaultCap, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, invoice.ErrInvalidRate)
}

func TestSplitter_ZeroRate(t *testing.T) {
	s, err := invoice.NewSplitter(40000, decimal.Zero)
	require.NoError(t, err)

	got, err := s.Split(tx(90000))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, money.Cents(10000), got[2].Gross)
	assert.Equal(t, money.Cents(10000), got[2].Base)
	assert.Equal(t, money.Cents(0), got[2].Tax)
}
