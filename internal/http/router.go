package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/factura/internal/http/history"
	"github.com/MrJamesThe3rd/factura/internal/http/invoice"
	"github.com/MrJamesThe3rd/factura/internal/http/statement"
)

type Options struct {
	// AuthSecret enables HS256 bearer authentication on /api when set.
	AuthSecret     string
	AllowedOrigins []string
	// Gatherer backs /metrics; prometheus.DefaultGatherer when nil.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

func New(
	opts Options,
	statementsV1 *statement.Handler,
	invoicesV1 *invoice.Handler,
	historyV1 *history.Handler,
) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(RequestLogger(log))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	router.Route("/api/v1", func(r chi.Router) {
		if opts.AuthSecret != "" {
			r.Use(BearerAuth([]byte(opts.AuthSecret)))
		}

		r.Route("/statements", statementsV1.Routes)
		r.Route("/invoices", invoicesV1.Routes)
		r.Route("/history", historyV1.Routes)
		r.Get("/status", historyV1.Status)
	})

	return router
}
