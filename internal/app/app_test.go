package app_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/factura/internal/app"
	"github.com/MrJamesThe3rd/factura/internal/config"
	"github.com/MrJamesThe3rd/factura/internal/history"
	"github.com/MrJamesThe3rd/factura/internal/importer"
)

func TestNew_FileBackend(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("HISTORY_FILE", filepath.Join(dir, "history.json"))
	t.Setenv("OUTPUT_DIR", filepath.Join(dir, "invoices"))
	t.Setenv("INVOICE_COUNTER_SEEDS", "2026:41")
	t.Setenv("COMPANY_NAME", "VIBRANTGARDEN UNIPESSOAL LDA")

	cfg, err := config.Load()
	require.NoError(t, err)

	a, err := app.New(context.Background(), cfg, zap.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.Equal(t, history.BackendFile, a.Session.Backend)
	assert.Nil(t, a.Session.Warning)

	next, err := a.Authority.Preview(context.Background(), 2026)
	require.NoError(t, err)
	assert.Equal(t, "T260042", next.String())

	rows, err := a.Importer.Import(importer.BankCGD,
		strings.NewReader("Data mov.;Descrição;Montante\n10-01-2026;TFI Wise;300,00\n"))
	require.NoError(t, err)

	result, err := a.Engine.Run(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, result.Issued, 1)
	require.NotNil(t, result.Issued[0].Document)
	assert.FileExists(t, result.Issued[0].Document.Path)

	items, err := a.Export.Export(context.Background(), history.Filter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, result.Issued[0].Document.Path, items[0].FilePath)
}

func TestEngineFor_SharesNumbering(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("HISTORY_FILE", filepath.Join(dir, "history.json"))
	t.Setenv("OUTPUT_DIR", filepath.Join(dir, "invoices"))
	t.Setenv("COMPANY_NAME", "VIBRANTGARDEN UNIPESSOAL LDA")

	cfg, err := config.Load()
	require.NoError(t, err)

	a, err := app.New(context.Background(), cfg, zap.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	other := filepath.Join(dir, "other")
	eng, renderer := a.EngineFor(other)
	require.NotNil(t, renderer)

	rows, err := a.Importer.Import(importer.BankCGD,
		strings.NewReader("Data mov.;Descrição;Montante\n10-01-2026;TFI Wise;300,00\n11-01-2026;TFI Acme;120,00\n"))
	require.NoError(t, err)

	first, err := eng.Run(context.Background(), rows[:1])
	require.NoError(t, err)
	require.Len(t, first.Issued, 1)
	assert.Equal(t, other, filepath.Dir(first.Issued[0].Document.Path))

	second, err := a.Engine.Run(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, second.Issued, 1)
	assert.Len(t, second.AlreadyIssued, 1)
	assert.Equal(t, first.Issued[0].Invoice.ID.Seq+1, second.Issued[0].Invoice.ID.Seq)

	items, err := a.ExportFor(other).Export(context.Background(), history.Filter{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, first.Issued[0].Document.Path, items[0].FilePath)
}
