package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/factura/internal/money"
)

func TestParse(t *testing.T) {
	type testCase struct {
		name    string
		input   string
		want    money.Cents
		wantErr bool
	}

	tests := []testCase{
		{name: "European", input: "1.234,56", want: 123456},
		{name: "European negative", input: "-588,74", want: -58874},
		{name: "European large", input: "-1.234.567,89", want: -123456789},
		{name: "Machine", input: "1234.56", want: 123456},
		{name: "Machine with thousands", input: "1,234.56", want: 123456},
		{name: "Integer", input: "300", want: 30000},
		{name: "Single decimal", input: "12.5", want: 1250},
		{name: "Comma thousands only", input: "1,234,567", want: 123456700},
		{name: "Currency marker", input: "1.200,00 €", want: 120000},
		{name: "Currency code", input: "50,00 EUR", want: 5000},
		{name: "Zero", input: "0,00", want: 0},
		{name: "Extra precision rounds half to even", input: "0.125", want: 12},
		{name: "Extra precision rounds up", input: "0.135", want: 14},
		{name: "Empty", input: "", wantErr: true},
		{name: "Sign only", input: "-", wantErr: true},
		{name: "Text", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := money.Parse(tt.input)

			if tt.wantErr {
				assert.ErrorIs(t, err, money.ErrInvalidAmount)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCents_FormatEuropean(t *testing.T) {
	assert.Equal(t, "0,00", money.Cents(0).FormatEuropean())
	assert.Equal(t, "5,07", money.Cents(507).FormatEuropean())
	assert.Equal(t, "413,22", money.Cents(41322).FormatEuropean())
	assert.Equal(t, "1.234,56", money.Cents(123456).FormatEuropean())
	assert.Equal(t, "-1.234.567,89", money.Cents(-123456789).FormatEuropean())
}

func TestCents_Decimal(t *testing.T) {
	assert.Equal(t, "1200.00", money.Cents(120000).String())
	assert.Equal(t, "-0.50", money.Cents(-50).String())
	assert.True(t, money.Cents(41322).Decimal().Equal(decimal.RequireFromString("413.22")))
}

func TestCents_Decode(t *testing.T) {
	var c money.Cents

	require.NoError(t, c.Decode("500"))
	assert.Equal(t, money.Cents(50000), c)

	assert.Error(t, c.Decode("five hundred"))
}
