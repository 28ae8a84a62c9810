package metrics

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrJamesThe3rd/factura/internal/history"
)

const namespace = "factura"

const (
	RetryReasonConflict         = "sequence_conflict"
	RetryReasonDeadlineExceeded = "deadline_exceeded"
	RetryReasonLockTimeout      = "lock_timeout"
	RetryReasonUnknown          = "unknown"

	// lockNotAvailable is raised when a commit outwaits its lock_timeout.
	lockNotAvailable = "55P03"
)

// Metrics holds the engine counters. A nil *Metrics records nothing.
type Metrics struct {
	issued         *prometheus.CounterVec
	commitRetries  *prometheus.CounterVec
	commitFailures *prometheus.CounterVec
	fallbacks      prometheus.Counter
	rows           *prometheus.CounterVec
	renderFailures prometheus.Counter
	runs           *prometheus.CounterVec
	issueLatency   *prometheus.HistogramVec
}

func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_issued_total",
			Help:      "Invoices numbered and committed.",
		}, []string{"backend"}),
		commitRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_retries_total",
			Help:      "History commits retried, by reason.",
		}, []string{"backend", "reason"}),
		commitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_failures_total",
			Help:      "History commits abandoned after exhausting retries.",
		}, []string{"backend"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_fallbacks_total",
			Help:      "Sessions that fell back to the file history store.",
		}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statement_rows_total",
			Help:      "Statement rows seen by the filter, by category.",
		}, []string{"category"}),
		renderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_failures_total",
			Help:      "Issued invoices whose document could not be rendered.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Engine runs, by outcome.",
		}, []string{"outcome"}),
		issueLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "issue_duration_seconds",
			Help:      "Time to number and commit one invoice, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
	}

	registerer.MustRegister(
		m.issued,
		m.commitRetries,
		m.commitFailures,
		m.fallbacks,
		m.rows,
		m.renderFailures,
		m.runs,
		m.issueLatency,
	)

	return m
}

func (m *Metrics) InvoiceIssued(backend history.Backend, seconds float64) {
	if m == nil {
		return
	}

	m.issued.WithLabelValues(string(backend)).Inc()
	m.issueLatency.WithLabelValues(string(backend)).Observe(seconds)
}

func (m *Metrics) CommitRetried(backend history.Backend, err error) {
	if m == nil {
		return
	}

	m.commitRetries.WithLabelValues(string(backend), ClassifyRetryReason(err)).Inc()
}

func (m *Metrics) CommitFailed(backend history.Backend) {
	if m == nil {
		return
	}

	m.commitFailures.WithLabelValues(string(backend)).Inc()
}

func (m *Metrics) BackendFallback() {
	if m == nil {
		return
	}

	m.fallbacks.Inc()
}

func (m *Metrics) RowsClassified(category string, n int) {
	if m == nil || n == 0 {
		return
	}

	m.rows.WithLabelValues(category).Add(float64(n))
}

func (m *Metrics) RenderFailed() {
	if m == nil {
		return
	}

	m.renderFailures.Inc()
}

func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}

	m.runs.WithLabelValues(outcome).Inc()
}

// ClassifyRetryReason maps a commit error to a low-cardinality label.
func ClassifyRetryReason(err error) string {
	if errors.Is(err, history.ErrSequenceConflict) {
		return RetryReasonConflict
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return RetryReasonDeadlineExceeded
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable {
		return RetryReasonLockTimeout
	}

	return RetryReasonUnknown
}
