package cgd_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/MrJamesThe3rd/factura/internal/importer/cgd"
	"github.com/MrJamesThe3rd/factura/internal/money"
	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

func TestParser_Conta(t *testing.T) {
	csv := `Consultar saldos e movimentos à ordem - 31-01-2026;"=""0000"""
Nome cliente;JOHN DOE
NIF;"=""123"""

Dados da conta
Conta;0000 - EUR - Conta Extracto
Saldo contabilístico;1.000,00 EUR
Saldo disponível;1.000,00 EUR

Dados da consulta
Período;Últimos 90 dias
Intervalo de;01-01-2026 a 31-01-2026
Tipos de movimento;Todos

Data mov.;Data-valor;Descrição;Montante;Saldo contabilístico após movimento
30-01-2026;30-01-2026;INSTITUTO GESTAO FINA;-588,74;48.825,46
09-01-2026;09-01-2026;TFI Wise;8.608,52;52.532,78
`

	p := cgd.NewParser()
	rows, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, []transaction.RawRow{
		{Line: 16, Date: "30-01-2026", Description: "INSTITUTO GESTAO FINA", Amount: "-588,74"},
		{Line: 17, Date: "09-01-2026", Description: "TFI Wise", Amount: "8.608,52"},
	}, rows)
}

func TestParser_Extrato(t *testing.T) {
	csv := `Consultar extrato - 15-02-2026 : 0829015676030
Nome empresa ;VIBRANTGARDEN UNIPESSOAL,LDA
NIF ;517948974
Conta ;0829015676030 - EUR - Conta Extracto
Intervalo de ;01-02-2026 a 14-02-2026
Tipos de movimento ;Todos
Saldo contabilístico Inicial ;48.825,46
Saldo contabilístico final ;41.393,66

Data mov. ;Data valor ;Origem ;Descrição ;Movimento ;Estorno ;Saldo contabilístico após movimento ;
13-02-2026;13-02-2026;"=""0003""";PAGAMENTO TSU ;-608,13;  ;41.393,66;
04-02-2026;04-02-2026;SIBS ;TFI Wise ;4.324,06;  ;51.302,85;
`

	p := cgd.NewParser()
	rows, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "PAGAMENTO TSU", rows[0].Description)
	assert.Equal(t, "-608,13", rows[0].Amount)
	assert.Equal(t, 11, rows[0].Line)

	assert.Equal(t, "TFI Wise", rows[1].Description)
	assert.Equal(t, "4.324,06", rows[1].Amount)
}

func TestParser_Cartao(t *testing.T) {
	csv := `Consultar saldos e movimentos de cartões - 15-02-2026
Nome empresa ;VIBRANTGARDEN UNIPESSOAL,LDA
NIF ;517948974

Conta cartão ;4163 **** **** 8016 - EUR - Business Débito
Tipo de movimentos ;Conta à ordem
Desde ;15/12/2025

Data ;Data valor ;Descrição ;Débito ;Crédito ;
16-12-2025 ;14-12-2025 ;PA GONDOMAR         GONDOMAR ;64,00 ; ;
31-12-2025 ;29-12-2025 ;UBER   *TRIP             HELP.UBER.COMNL ;47,91 ; ;
 ; ; ; ;Página 1/2 ;
`

	p := cgd.NewParser()
	rows, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "16-12-2025", rows[0].Date)
	assert.Equal(t, "PA GONDOMAR         GONDOMAR", rows[0].Description)
	assert.Equal(t, "-64,00", rows[0].Amount)

	assert.Equal(t, "31-12-2025", rows[1].Date)
	assert.Equal(t, "-47,91", rows[1].Amount)
}

func TestParser_CartaoCredit(t *testing.T) {
	csv := `Data ;Data valor ;Descrição ;Débito ;Crédito ;
16-12-2025 ;14-12-2025 ;REFUND AMAZON ;0,00 ;25,00 ;
`

	p := cgd.NewParser()
	rows, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "25,00", rows[0].Amount)
}

func TestParser_Latin1Encoding(t *testing.T) {
	utf8CSV := "Data mov.;Descrição;Montante\n30-01-2026;CAFÉ CENTRAL;-10,00\n"

	encoder := charmap.Windows1252.NewEncoder()
	latin1Bytes, err := encoder.Bytes([]byte(utf8CSV))
	require.NoError(t, err)

	p := cgd.NewParser()
	rows, err := p.Parse(bytes.NewReader(latin1Bytes))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "CAFÉ CENTRAL", rows[0].Description)
}

func TestParser_DifferentColumnOrder(t *testing.T) {
	csv := `Random;MetaData
Montante;Descrição;Data mov.;Ignored
-10,00;TEST_ORDER;30-01-2026;XXX
`

	p := cgd.NewParser()
	rows, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "TEST_ORDER", rows[0].Description)
	assert.Equal(t, "-10,00", rows[0].Amount)
	assert.Equal(t, 3, rows[0].Line)
}

func TestParser_EmptyFile(t *testing.T) {
	p := cgd.NewParser()
	_, err := p.Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, cgd.ErrNoHeader)
}

func TestParser_HeaderOnly(t *testing.T) {
	csv := `Data mov.;Data-valor;Descrição;Montante`

	p := cgd.NewParser()
	rows, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParser_IncompleteRowsReachTheFilter(t *testing.T) {
	csv := `Data mov.;Descrição;Montante
30-01-2026;;-10,00
31-01-2026;TFI Wise;n/d
;TFI Wise;300,00
`

	p := cgd.NewParser()
	rows, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	got := transaction.Classify(rows)
	assert.Empty(t, got.Eligible)
	require.Len(t, got.Malformed, 3)
	assert.Equal(t, transaction.FieldDescription, got.Malformed[0].Err.Field)
	assert.Equal(t, transaction.FieldAmount, got.Malformed[1].Err.Field)
	assert.Equal(t, 3, got.Malformed[1].Err.Line)

	assert.Equal(t, transaction.FieldDate, got.Malformed[2].Err.Field)
	assert.ErrorIs(t, got.Malformed[2].Err, transaction.ErrMissingField)
	assert.Equal(t, 4, got.Malformed[2].Err.Line)
	assert.Equal(t, "300,00", got.Malformed[2].Row.Amount)
}

func TestParser_LargeAmounts(t *testing.T) {
	csv := `Data mov.;Descrição;Montante
30-01-2026;BIG TRANSFER;-1.234.567,89
`

	p := cgd.NewParser()
	rows, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	tx, err := transaction.Parse(rows[0])
	require.NoError(t, err)
	assert.Equal(t, money.Cents(-123456789), tx.Amount)
}

func TestParser_SkipsFooterRows(t *testing.T) {
	csv := `Data mov.;Descrição;Montante
30-01-2026;TEST;-10,00
Totais;;;;

`

	p := cgd.NewParser()
	rows, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
