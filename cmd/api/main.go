package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/factura/internal/app"
	"github.com/MrJamesThe3rd/factura/internal/config"
	facturaHttp "github.com/MrJamesThe3rd/factura/internal/http"
	historyHandler "github.com/MrJamesThe3rd/factura/internal/http/history"
	invoiceHandler "github.com/MrJamesThe3rd/factura/internal/http/invoice"
	statementHandler "github.com/MrJamesThe3rd/factura/internal/http/statement"
	"github.com/MrJamesThe3rd/factura/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.Close()

	status := historyHandler.Status{Backend: a.Session.Backend}
	if a.Session.Warning != nil {
		status.Warning = a.Session.Warning
	}

	var (
		statementH = statementHandler.NewHandler(a.Importer, a.Engine, log)
		invoiceH   = invoiceHandler.NewHandler(a.Session.Store, a.Export, a.Authority, log)
		historyH   = historyHandler.NewHandler(a.Session.Store, status, log)
	)

	router := facturaHttp.New(facturaHttp.Options{
		AuthSecret:     cfg.Auth.Secret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Gatherer:       prometheus.DefaultGatherer,
		Logger:         log,
	}, statementH, invoiceH, historyH)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.Timeout,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("backend", string(a.Session.Backend)),
			zap.Bool("auth", cfg.Auth.Secret != ""),
		)

		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
