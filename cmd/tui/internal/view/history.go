package view

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/factura/internal/export"
	"github.com/MrJamesThe3rd/factura/internal/history"
)

type Exporter interface {
	Export(ctx context.Context, filter history.Filter) ([]export.Item, error)
}

type historyState int

const (
	historyStateMonths historyState = iota
	historyStateInvoices
)

type HistoryModel struct {
	CommonModel
	history  export.Lister
	exporter Exporter
	zipDir   string
	backend  history.Backend

	state    historyState
	months   []history.MonthSummary
	records  []*history.Record
	month    string
	monthTbl table.Model
	invTbl   table.Model

	status string
	err    error
}

func NewHistoryModel(h export.Lister, exp Exporter, zipDir string, backend history.Backend) HistoryModel {
	return HistoryModel{
		history:  h,
		exporter: exp,
		zipDir:   zipDir,
		backend:  backend,
		monthTbl: newTable([]table.Column{
			{Title: "Month", Width: 9},
			{Title: "Invoices", Width: 9},
			{Title: "Runs", Width: 5},
			{Title: "First", Width: 8},
			{Title: "Last", Width: 8},
			{Title: "Gross", Width: 14},
			{Title: "Base", Width: 14},
			{Title: "Tax", Width: 14},
		}),
		invTbl: newTable([]table.Column{
			{Title: "Number", Width: 8},
			{Title: "Issued", Width: 11},
			{Title: "Tx Date", Width: 11},
			{Title: "Part", Width: 6},
			{Title: "Gross", Width: 12},
			{Title: "Base", Width: 12},
			{Title: "Tax", Width: 12},
			{Title: "Description", Width: 36},
		}),
	}
}

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

func (m HistoryModel) Title() string { return "Invoice History" }

func (m HistoryModel) ShortHelp() string {
	if m.state == historyStateInvoices {
		return "Esc: months | z: zip documents"
	}

	return "Esc: back | Enter: open month | z: zip month | r: refresh"
}

func (m HistoryModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.records = msg.records
		m.months = history.Summarize(msg.records)
		m.refreshMonths()

		if m.state == historyStateInvoices {
			m.refreshInvoices()
		}

		return m, nil

	case zipDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.status = fmt.Sprintf("Wrote %d documents to %s", msg.count, msg.path)

		return m, nil

	case tea.WindowSizeMsg:
		h := m.Resize(msg)
		m.monthTbl.SetHeight(h)
		m.invTbl.SetHeight(h)

		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m HistoryModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state == historyStateInvoices {
		switch msg.String() {
		case "esc":
			m.state = historyStateMonths
			m.status = ""

			return m, nil
		case "z":
			return m, m.zipCmd(m.month)
		}

		var cmd tea.Cmd
		m.invTbl, cmd = m.invTbl.Update(msg)

		return m, cmd
	}

	switch msg.String() {
	case "esc":
		return m, Back
	case "r":
		m.status = ""
		return m, m.loadCmd()
	case "enter":
		if month, ok := m.selectedMonth(); ok {
			m.month = month
			m.state = historyStateInvoices
			m.status = ""
			m.refreshInvoices()
		}

		return m, nil
	case "z":
		if month, ok := m.selectedMonth(); ok {
			return m, m.zipCmd(month)
		}

		return m, nil
	}

	var cmd tea.Cmd
	m.monthTbl, cmd = m.monthTbl.Update(msg)

	return m, cmd
}

func (m HistoryModel) selectedMonth() (string, bool) {
	idx := m.monthTbl.Cursor()
	if idx < 0 || idx >= len(m.months) {
		return "", false
	}

	return m.months[idx].Month, true
}

func (m *HistoryModel) refreshMonths() {
	rows := make([]table.Row, 0, len(m.months))

	for _, s := range m.months {
		rows = append(rows, table.Row{
			s.Month,
			fmt.Sprintf("%d", s.Invoices),
			fmt.Sprintf("%d", s.Runs),
			s.First,
			s.Last,
			FormatAmount(s.Gross),
			FormatAmount(s.Base),
			FormatAmount(s.Tax),
		})
	}

	m.monthTbl.SetRows(rows)
}

func (m *HistoryModel) refreshInvoices() {
	var rows []table.Row

	for _, r := range m.records {
		if r.Month() != m.month {
			continue
		}

		part := ""
		if r.Parts > 1 {
			part = fmt.Sprintf("%d/%d", r.Part, r.Parts)
		}

		rows = append(rows, table.Row{
			r.Number,
			FormatDate(r.IssueDate),
			FormatDate(r.TransactionDate),
			part,
			FormatAmount(r.Gross),
			FormatAmount(r.Base),
			FormatAmount(r.Tax),
			r.Description,
		})
	}

	m.invTbl.SetRows(rows)
	m.invTbl.SetCursor(0)
}

func (m HistoryModel) View() string {
	header := lipgloss.NewStyle().Bold(true).Render(
		fmt.Sprintf("%s (%s)", m.Title(), m.backend),
	)

	if m.err != nil {
		return lipgloss.NewStyle().Padding(1).Render(
			header + "\n\n" +
				lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(fmt.Sprintf("Error: %v", m.err)) +
				"\n\n(Esc to go back)",
		)
	}

	body := m.monthTbl.View()
	if len(m.months) == 0 {
		body = "No invoices issued yet."
	}

	if m.state == historyStateInvoices {
		header += "  " + m.month
		body = m.invTbl.View()
	}

	footer := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(m.ShortHelp())
	if m.status != "" {
		footer = m.status + "\n" + footer
	}

	return lipgloss.NewStyle().Padding(1).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", footer),
	)
}

type historyLoadedMsg struct {
	records []*history.Record
	err     error
}

type zipDoneMsg struct {
	path  string
	count int
	err   error
}

func (m HistoryModel) loadCmd() tea.Cmd {
	h := m.history

	return func() tea.Msg {
		ctx, cancel := StoreCtx()
		defer cancel()

		records, err := h.ListIssued(ctx, history.Filter{})

		return historyLoadedMsg{records: records, err: err}
	}
}

func (m HistoryModel) zipCmd(month string) tea.Cmd {
	exp := m.exporter
	dir := m.zipDir

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		items, err := exp.Export(ctx, history.Filter{Month: month})
		if err != nil {
			return zipDoneMsg{err: err}
		}

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return zipDoneMsg{err: err}
		}

		path := filepath.Join(dir, fmt.Sprintf("facturas-%s.zip", month))

		f, err := os.Create(path)
		if err != nil {
			return zipDoneMsg{err: err}
		}
		defer f.Close()

		if err := export.WriteZip(f, items); err != nil {
			return zipDoneMsg{err: err}
		}

		count := 0

		for _, item := range items {
			if item.FilePath != "" {
				count++
			}
		}

		return zipDoneMsg{path: path, count: count}
	}
}
