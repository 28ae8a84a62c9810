package pdf_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/factura/internal/invoice"
	"github.com/MrJamesThe3rd/factura/internal/render/pdf"
	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

func sampleInvoice() *invoice.Invoice {
	return &invoice.Invoice{
		ID:        invoice.Identifier{Year: 2026, Seq: 7},
		IssueDate: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Status:    invoice.StatusIssued,
		Candidate: invoice.Candidate{
			Source: transaction.Transaction{
				Date:        time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
				Description: "TFI Wise",
				Amount:      120000,
			},
			Part:  2,
			Parts: 3,
			Gross: 50000,
			Base:  41322,
			Tax:   8678,
			Rate:  invoice.DefaultTaxRate,
		},
	}
}

func TestRenderer_Render(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	r := pdf.New(pdf.Company{
		Name:    "Example Sport SL",
		Address: "Calle Mayor 1, Palma",
		TaxID:   "B00000000",
		Concept: "Consultoría de Tenis",
	}, dir, nil)

	doc, err := r.Render(context.Background(), sampleInvoice())
	require.NoError(t, err)

	assert.Equal(t, "FAC-T260007.pdf", doc.Name)
	assert.Equal(t, filepath.Join(dir, "FAC-T260007.pdf"), doc.Path)

	data, err := os.ReadFile(doc.Path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Equal(t, int64(len(data)), doc.Size)
}

func TestRenderer_CanceledContext(t *testing.T) {
	r := pdf.New(pdf.Company{}, t.TempDir(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, sampleInvoice())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderer_UnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	r := pdf.New(pdf.Company{}, filepath.Join(blocker, "out"), nil)

	_, err := r.Render(context.Background(), sampleInvoice())
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "FAC-T2610000.pdf", pdf.FileName("T2610000"))
}
