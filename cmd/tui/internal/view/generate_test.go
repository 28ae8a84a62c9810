package view

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/factura/internal/engine"
	"github.com/MrJamesThe3rd/factura/internal/history"
	"github.com/MrJamesThe3rd/factura/internal/importer"
	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

type fakeImporter struct {
	rows []transaction.RawRow
	err  error
	body string
}

func (f *fakeImporter) Import(_ importer.Bank, r io.Reader) ([]transaction.RawRow, error) {
	b, _ := io.ReadAll(r)
	f.body = string(b)

	return f.rows, f.err
}

type fakeRunner struct {
	got    []transaction.RawRow
	result *engine.Result
	err    error
}

func (f *fakeRunner) Run(_ context.Context, rows []transaction.RawRow) (*engine.Result, error) {
	f.got = rows
	return f.result, f.err
}

func TestGenerateModel_BankSelect(t *testing.T) {
	m := NewGenerateModel(&fakeImporter{}, nil, "out")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyEnter})

	got := next.(GenerateModel)
	assert.Equal(t, generateStateFilePick, got.state)
	assert.Equal(t, importer.Banks()[1], got.selectedBank)

	next, _ = got.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, generateStateBankSelect, next.(GenerateModel).state)

	_, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, BackMsg{}, cmd())
}

func TestGenerateModel_RunCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.csv")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	rows := []transaction.RawRow{{Line: 2, Date: "2026-01-10", Description: "TFI", Amount: "100"}}
	imp := &fakeImporter{rows: rows}
	runner := &fakeRunner{result: &engine.Result{Summary: engine.Summary{Issued: 1}}}

	var gotDir string

	m := NewGenerateModel(imp, func(dir string) Runner {
		gotDir = dir
		return runner
	}, "out")

	msg := m.runCmd(importer.BankCGD, path, "custom")()

	done, ok := msg.(generateResultMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	assert.Equal(t, 1, done.result.Summary.Issued)
	assert.Equal(t, "custom", gotDir)
	assert.Equal(t, "data", imp.body)
	assert.Equal(t, rows, runner.got)
}

func TestGenerateModel_RunCmdImportError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.csv")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	runner := &fakeRunner{}
	m := NewGenerateModel(&fakeImporter{err: errors.New("no header")}, func(string) Runner { return runner }, "out")

	done := m.runCmd(importer.BankCGD, path, "out")().(generateResultMsg)

	assert.EqualError(t, done.err, "no header")
	assert.Nil(t, runner.got)
}

func TestGenerateModel_Result(t *testing.T) {
	m := NewGenerateModel(&fakeImporter{}, nil, "out")
	m.state = generateStateRunning

	result := &engine.Result{
		Backend: history.BackendFile,
		Summary: engine.Summary{
			Issued: 2,
			First:  "T260001",
			Last:   "T260002",
			Gross:  60000,
			Base:   49587,
			Tax:    10413,
		},
		Issued: []engine.Issued{
			{RenderErr: &engine.RenderError{Number: "T260002", Err: errors.New("disk full")}},
		},
	}

	next, _ := m.Update(generateResultMsg{result: result})
	got := next.(GenerateModel)

	assert.Equal(t, generateStateResult, got.state)

	view := got.View()
	assert.Contains(t, view, "Invoices generated")
	assert.Contains(t, view, "T260001 .. T260002")
	assert.Contains(t, view, "600,00 €")
	assert.Contains(t, view, "Render failures:")
	assert.Contains(t, view, "disk full")

	next, _ = got.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, generateStateBankSelect, next.(GenerateModel).state)
	assert.Nil(t, next.(GenerateModel).result)
}

func TestGenerateModel_PartialResult(t *testing.T) {
	m := NewGenerateModel(&fakeImporter{}, nil, "out")
	m.state = generateStateRunning

	next, _ := m.Update(generateResultMsg{
		result: &engine.Result{Summary: engine.Summary{NotProcessed: 1}},
		err:    errors.New("history unavailable"),
	})

	view := next.View()
	assert.Contains(t, view, "Run stopped: history unavailable")
	assert.Contains(t, view, "Not processed:   1")
}

func TestGenerateModel_SplitMismatch(t *testing.T) {
	m := NewGenerateModel(&fakeImporter{}, nil, "out")
	m.state = generateStateRunning

	tx := transaction.Transaction{
		Line:        7,
		Date:        time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
		Description: "Camp",
		Amount:      120000,
	}

	next, _ := m.Update(generateResultMsg{result: &engine.Result{
		Summary: engine.Summary{SplitMismatch: 1},
		SplitMismatch: []engine.SplitMismatch{{
			Transaction: tx,
			Parts:       4,
			Prior:       []*history.Record{{Number: "T260001", Part: 1, Parts: 3, Gross: 50000}},
		}},
	}})

	view := next.View()
	assert.Contains(t, view, "Split mismatch:  1")
	assert.Contains(t, view, "Invoiced under a different split:")
	assert.Contains(t, view, "line 7  2026-01-06  1.200,00 €  (recorded in 3 parts, now 4)")
}
