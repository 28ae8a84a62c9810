// Package app wires the invoicing components from configuration. Both front
// ends build on it.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/factura/internal/config"
	"github.com/MrJamesThe3rd/factura/internal/engine"
	"github.com/MrJamesThe3rd/factura/internal/export"
	"github.com/MrJamesThe3rd/factura/internal/history/session"
	"github.com/MrJamesThe3rd/factura/internal/importer"
	"github.com/MrJamesThe3rd/factura/internal/invoice"
	"github.com/MrJamesThe3rd/factura/internal/metrics"
	"github.com/MrJamesThe3rd/factura/internal/numbering"
	"github.com/MrJamesThe3rd/factura/internal/render/pdf"
)

type App struct {
	Session   *session.Session
	Metrics   *metrics.Metrics
	Importer  *importer.Service
	Authority *numbering.Authority
	Renderer  *pdf.Renderer
	Engine    *engine.Engine
	Export    *export.Service

	splitter *invoice.Splitter
	company  pdf.Company
	log      *zap.Logger
}

// New opens the history session and builds the engine around it. reg may be
// nil, in which case the default prometheus registry is used.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, reg prometheus.Registerer) (*App, error) {
	m := metrics.New(reg)

	sess, err := session.Open(ctx, session.Options{
		DatabaseURL:    cfg.History.DatabaseURL,
		FallbackPath:   cfg.History.File,
		ConnectTimeout: cfg.History.ConnectTimeout,
		LockTimeout:    cfg.History.LockTimeout,
		Seeds:          cfg.Invoice.Seeds,
		Metrics:        m,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}

	splitter, err := invoice.NewSplitter(cfg.Invoice.Cap, cfg.Invoice.TaxRate)
	if err != nil {
		sess.Close()
		return nil, err
	}

	authority := numbering.New(sess.Store,
		numbering.WithLogger(log),
		numbering.WithMetrics(m),
		numbering.WithRetry(cfg.Commit.Attempts, cfg.Commit.Backoff),
	)

	a := &App{
		Session:   sess,
		Metrics:   m,
		Importer:  importer.NewService(),
		Authority: authority,
		splitter:  splitter,
		log:       log,
		company: pdf.Company{
			Name:     cfg.Company.Name,
			Address:  cfg.Company.Address,
			TaxID:    cfg.Company.TaxID,
			Phone:    cfg.Company.Phone,
			Email:    cfg.Company.Email,
			Registry: cfg.Company.Registry,
			Tagline:  cfg.Company.Tagline,
			Concept:  cfg.Company.Concept,
		},
	}

	a.Engine, a.Renderer = a.EngineFor(cfg.Invoice.OutputDir)
	a.Export = a.ExportFor(cfg.Invoice.OutputDir)

	return a, nil
}

// EngineFor builds an engine that writes documents to dir. Numbering and
// history are shared with every other engine of a.
func (a *App) EngineFor(dir string) (*engine.Engine, *pdf.Renderer) {
	renderer := pdf.New(a.company, dir, a.log)

	eng := engine.New(a.splitter, a.Authority,
		engine.WithRenderer(renderer),
		engine.WithHistory(a.Session.Store),
		engine.WithLogger(a.log),
		engine.WithMetrics(a.Metrics),
	)

	return eng, renderer
}

// ExportFor collects documents from dir, re-rendering missing ones there.
func (a *App) ExportFor(dir string) *export.Service {
	return export.NewService(a.Session.Store, pdf.New(a.company, dir, a.log), dir)
}

func (a *App) Close() error {
	return a.Session.Close()
}
