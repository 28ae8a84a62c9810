package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/factura/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/factura/internal/app"
	"github.com/MrJamesThe3rd/factura/internal/config"
	"github.com/MrJamesThe3rd/factura/internal/logger"
)

type model struct {
	app       *app.App
	outputDir string

	currentView View

	generateView view.GenerateModel
	historyView  view.HistoryModel
}

type View int

const (
	ViewMenu     View = 0
	ViewGenerate View = 1
	ViewHistory  View = 2
)

func initialModel(a *app.App, cfg *config.Config) model {
	return model{
		app:          a,
		outputDir:    cfg.Invoice.OutputDir,
		currentView:  ViewMenu,
		generateView: newGenerateView(a, cfg.Invoice.OutputDir),
		historyView:  newHistoryView(a, cfg.Invoice.OutputDir),
	}
}

func newGenerateView(a *app.App, dir string) view.GenerateModel {
	return view.NewGenerateModel(a.Importer, func(out string) view.Runner {
		eng, _ := a.EngineFor(out)
		return eng
	}, dir)
}

func newHistoryView(a *app.App, dir string) view.HistoryModel {
	return view.NewHistoryModel(a.Session.Store, a.Export, dir, a.Session.Backend)
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewGenerate
				m.generateView = newGenerateView(m.app, m.outputDir)

				return m, m.generateView.Init()
			case "2":
				m.currentView = ViewHistory
				m.historyView = newHistoryView(m.app, m.outputDir)

				return m, m.historyView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewGenerate:
		var newModel tea.Model
		newModel, cmd = m.generateView.Update(msg)
		m.generateView = newModel.(view.GenerateModel)
	case ViewHistory:
		var newModel tea.Model
		newModel, cmd = m.historyView.Update(msg)
		m.historyView = newModel.(view.HistoryModel)
	}

	return m, cmd
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(m.menu())
	case ViewGenerate:
		return m.generateView.View()
	case ViewHistory:
		return m.historyView.View()
	}

	return "Unknown View"
}

func (m model) menu() string {
	s := fmt.Sprintf("Factura (%s history)\n\n", m.app.Session.Backend)

	if w := m.app.Session.Warning; w != nil {
		s += lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("Warning: "+w.Error()) + "\n\n"
	}

	return s +
		"1. Generate Invoices\n" +
		"2. Invoice History\n\n" +
		"q. Quit"
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.App.LogFile), 0o755); err != nil {
		slog.Error("failed to create log directory", "error", err)
		os.Exit(1)
	}

	log, err := logger.NewFile(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("tui failed", zap.Error(err))
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	a, err := app.New(context.Background(), cfg, log, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = tea.NewProgram(initialModel(a, cfg)).Run()

	return err
}
