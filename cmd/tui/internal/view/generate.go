package view

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/factura/internal/engine"
	"github.com/MrJamesThe3rd/factura/internal/importer"
	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

const (
	runTimeout = 5 * time.Minute
	maxListed  = 10
)

// StatementImporter turns a bank export into raw rows.
type StatementImporter interface {
	Import(bank importer.Bank, r io.Reader) ([]transaction.RawRow, error)
}

// Runner issues invoices for one statement.
type Runner interface {
	Run(ctx context.Context, rows []transaction.RawRow) (*engine.Result, error)
}

// RunnerFactory builds a Runner writing documents to dir.
type RunnerFactory func(dir string) Runner

type generateState int

const (
	generateStateBankSelect generateState = iota
	generateStateFilePick
	generateStateOutputDir
	generateStateRunning
	generateStateResult
)

type GenerateModel struct {
	CommonModel
	importer  StatementImporter
	runnerFor RunnerFactory

	state        generateState
	filePicker   filepicker.Model
	bankOptions  []importer.Bank
	bankCursor   int
	selectedBank importer.Bank
	path         string
	outputDir    string

	form    *huh.Form
	spinner spinner.Model

	result *engine.Result
	err    error
}

func NewGenerateModel(imp StatementImporter, runnerFor RunnerFactory, outputDir string) GenerateModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".xlsx"}
	fp.ShowHidden = false
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return GenerateModel{
		importer:    imp,
		runnerFor:   runnerFor,
		filePicker:  fp,
		bankOptions: importer.Banks(),
		outputDir:   outputDir,
		spinner:     s,
	}
}

func (m GenerateModel) Title() string { return "Generate Invoices" }

func (m GenerateModel) ShortHelp() string {
	switch m.state {
	case generateStateRunning:
		return "Generating..."
	case generateStateResult:
		return "Esc: back"
	}

	return "Esc: back | Enter: select"
}

func (m GenerateModel) Init() tea.Cmd {
	return m.filePicker.Init()
}

func (m GenerateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m.handleEsc()
		}
	case tea.WindowSizeMsg:
		m.filePicker.SetHeight(m.Resize(msg))
	}

	switch m.state {
	case generateStateBankSelect:
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			return m.updateBankSelect(keyMsg)
		}

		return m, nil
	case generateStateFilePick:
		return m.updateFilePick(msg)
	case generateStateOutputDir:
		return m.updateOutputDir(msg)
	case generateStateRunning:
		return m.updateRunning(msg)
	}

	return m, nil
}

func (m GenerateModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case generateStateFilePick:
		m.state = generateStateBankSelect
		return m, nil
	case generateStateOutputDir:
		m.state = generateStateFilePick
		return m, nil
	case generateStateRunning:
		// A run in progress is always awaited.
		return m, nil
	case generateStateResult:
		m.state = generateStateBankSelect
		m.result = nil
		m.err = nil

		return m, nil
	}

	return m, Back
}

func (m GenerateModel) updateBankSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.bankCursor > 0 {
			m.bankCursor--
		}
	case tea.KeyDown:
		if m.bankCursor < len(m.bankOptions)-1 {
			m.bankCursor++
		}
	case tea.KeyEnter:
		m.selectedBank = m.bankOptions[m.bankCursor]
		m.state = generateStateFilePick

		return m, m.filePicker.Init()
	}

	return m, nil
}

func (m GenerateModel) updateFilePick(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.path = path
		m.form = m.buildOutputForm()
		m.state = generateStateOutputDir

		return m, m.form.Init()
	}

	return m, cmd
}

func (m GenerateModel) updateOutputDir(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if dir := strings.TrimSpace(m.form.GetString("output_dir")); dir != "" {
		m.outputDir = dir
	}

	m.state = generateStateRunning
	m.err = nil

	return m, tea.Batch(m.spinner.Tick, m.runCmd(m.selectedBank, m.path, m.outputDir))
}

func (m GenerateModel) updateRunning(msg tea.Msg) (tea.Model, tea.Cmd) {
	if done, ok := msg.(generateResultMsg); ok {
		m.state = generateStateResult
		m.result = done.result
		m.err = done.err

		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)

	return m, cmd
}

func (m GenerateModel) buildOutputForm() *huh.Form {
	dir := m.outputDir

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("output_dir").
				Title("Output Directory").
				Description("Invoice documents are written here").
				Placeholder(m.outputDir).
				Value(&dir),
		),
	).WithWidth(60).WithShowHelp(false)
}

func (m GenerateModel) View() string {
	switch m.state {
	case generateStateBankSelect:
		return m.viewBankSelect()
	case generateStateFilePick:
		return lipgloss.NewStyle().Padding(1).Render(
			fmt.Sprintf("Select statement (%s):\n\n%s", m.selectedBank, m.filePicker.View()),
		)
	case generateStateOutputDir:
		return lipgloss.NewStyle().Padding(1).Render(m.form.View())
	case generateStateRunning:
		return lipgloss.NewStyle().Padding(1).Render(
			fmt.Sprintf("%s Issuing invoices for %s...", m.spinner.View(), m.path),
		)
	case generateStateResult:
		return m.viewResult()
	}

	return ""
}

func (m GenerateModel) viewBankSelect() string {
	s := "Select Bank:\n\n"

	for i, bank := range m.bankOptions {
		cursor := " "
		if i == m.bankCursor {
			cursor = ">"
		}

		s += fmt.Sprintf("%s %s\n", cursor, string(bank))
	}

	return lipgloss.NewStyle().Padding(2).Render(s)
}

func (m GenerateModel) viewResult() string {
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	var lines []string

	switch {
	case m.err != nil && m.result == nil:
		lines = append(lines, errStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.err != nil:
		lines = append(lines, errStyle.Render(fmt.Sprintf("Run stopped: %v", m.err)))
	default:
		lines = append(lines, okStyle.Render("Invoices generated"))
	}

	if m.result != nil {
		lines = append(lines, "")
		lines = append(lines, summaryLines(m.result)...)
		lines = append(lines, detailLines(m.result, warnStyle)...)
	}

	lines = append(lines, "", "(Esc to go back)")

	return lipgloss.NewStyle().Padding(1).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func summaryLines(r *engine.Result) []string {
	s := r.Summary

	lines := []string{
		fmt.Sprintf("Backend:         %s", r.Backend),
		fmt.Sprintf("Issued:          %d", s.Issued),
		fmt.Sprintf("Already issued:  %d", s.AlreadyIssued),
		fmt.Sprintf("Split:           %d", s.SplitTransactions),
		fmt.Sprintf("Debits skipped:  %d", s.ExcludedDebit),
		fmt.Sprintf("Zero skipped:    %d", s.ExcludedZero),
		fmt.Sprintf("Malformed:       %d", s.Malformed),
		fmt.Sprintf("Not processed:   %d", s.NotProcessed),
		fmt.Sprintf("Split mismatch:  %d", s.SplitMismatch),
		fmt.Sprintf("Render failures: %d", s.RenderFailures),
	}

	if s.Issued > 0 {
		lines = append(lines,
			"",
			fmt.Sprintf("Numbers: %s .. %s", s.First, s.Last),
			fmt.Sprintf("Gross:   %s", FormatAmount(s.Gross)),
			fmt.Sprintf("Base:    %s", FormatAmount(s.Base)),
			fmt.Sprintf("Tax:     %s", FormatAmount(s.Tax)),
		)
	}

	return lines
}

func detailLines(r *engine.Result, style lipgloss.Style) []string {
	var lines []string

	var failed []string

	for _, issued := range r.Issued {
		if issued.RenderErr != nil {
			failed = append(failed, issued.RenderErr.Error())
		}
	}

	lines = appendSection(lines, "Render failures:", failed, style)

	malformed := make([]string, 0, len(r.Malformed))
	for _, mf := range r.Malformed {
		malformed = append(malformed, mf.Err.Error())
	}

	lines = appendSection(lines, "Malformed rows:", malformed, style)

	pending := make([]string, 0, len(r.NotProcessed))
	for _, p := range r.NotProcessed {
		pending = append(pending, fmt.Sprintf("line %d  %s  %s  (from part %d of %d)",
			p.Transaction.Line, FormatDate(p.Transaction.Date), FormatAmount(p.Transaction.Amount), p.FromPart, p.Parts))
	}

	lines = appendSection(lines, "Not processed:", pending, style)

	mismatched := make([]string, 0, len(r.SplitMismatch))
	for _, sm := range r.SplitMismatch {
		mismatched = append(mismatched, fmt.Sprintf("line %d  %s  %s  (recorded in %d parts, now %d)",
			sm.Transaction.Line, FormatDate(sm.Transaction.Date), FormatAmount(sm.Transaction.Amount), sm.Prior[0].Parts, sm.Parts))
	}

	return appendSection(lines, "Invoiced under a different split:", mismatched, style)
}

func appendSection(lines []string, title string, items []string, style lipgloss.Style) []string {
	if len(items) == 0 {
		return lines
	}

	lines = append(lines, "", style.Render(title))

	for i, item := range items {
		if i == maxListed {
			lines = append(lines, fmt.Sprintf("  ... and %d more", len(items)-maxListed))
			break
		}

		lines = append(lines, "  "+item)
	}

	return lines
}

type generateResultMsg struct {
	result *engine.Result
	err    error
}

func (m GenerateModel) runCmd(bank importer.Bank, path, dir string) tea.Cmd {
	imp := m.importer
	runner := m.runnerFor(dir)

	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return generateResultMsg{err: err}
		}
		defer f.Close()

		rows, err := imp.Import(bank, f)
		if err != nil {
			return generateResultMsg{err: err}
		}

		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		result, err := runner.Run(ctx, rows)

		return generateResultMsg{result: result, err: err}
	}
}
