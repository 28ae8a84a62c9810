package numbering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/factura/internal/history"
	"github.com/MrJamesThe3rd/factura/internal/invoice"
	"github.com/MrJamesThe3rd/factura/internal/metrics"
)

const (
	DefaultAttempts = 3
	DefaultBackoff  = 200 * time.Millisecond

	// maxConflicts bounds re-reads after losing a race within one attempt.
	maxConflicts = 32
)

type IssueRequest struct {
	RunID     uuid.UUID
	Candidate invoice.Candidate
	SourceKey string
	// IssueDate defaults to the authority's clock. Its year selects the
	// numbering series.
	IssueDate time.Time
}

// Authority hands out gap-free identifiers. Reading the counter, proposing
// the next value and committing the record happen as one step per year.
type Authority struct {
	store   history.Store
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	attempts uint
	backoff  time.Duration

	mu    sync.Mutex
	years map[int]*sync.Mutex
}

type Option func(*Authority)

func WithLogger(log *zap.Logger) Option {
	return func(a *Authority) { a.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Authority) { a.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(a *Authority) { a.now = now }
}

// WithRetry sets how many times a commit is attempted and the initial wait
// between attempts.
func WithRetry(attempts uint, initial time.Duration) Option {
	return func(a *Authority) {
		if attempts > 0 {
			a.attempts = attempts
		}

		if initial > 0 {
			a.backoff = initial
		}
	}
}

func New(store history.Store, opts ...Option) *Authority {
	a := &Authority{
		store:    store,
		log:      zap.NewNop(),
		now:      time.Now,
		attempts: DefaultAttempts,
		backoff:  DefaultBackoff,
		years:    make(map[int]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *Authority) Backend() history.Backend {
	return a.store.Backend()
}

// Preview returns the identifier the next Issue for year would receive,
// without reserving it.
func (a *Authority) Preview(ctx context.Context, year int) (invoice.Identifier, error) {
	last, err := a.store.LoadCounter(ctx, year)
	if err != nil {
		return invoice.Identifier{}, fmt.Errorf("loading counter: %w", err)
	}

	return invoice.Identifier{Year: year, Seq: last + 1}, nil
}

// Issue numbers the candidate and commits its history record. On success the
// identifier is permanently consumed. When retries are exhausted a
// *history.PersistenceError is returned and no identifier is consumed.
func (a *Authority) Issue(ctx context.Context, req IssueRequest) (*invoice.Invoice, error) {
	issueDate := req.IssueDate
	if issueDate.IsZero() {
		issueDate = a.now()
	}

	year := issueDate.Year()

	lock := a.yearLock(year)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()
	backend := a.store.Backend()

	// The id is fixed up front so a replayed commit is recognised by the store.
	recordID := uuid.New()

	var proposal *history.Record

	op := func() (*history.Record, error) {
		for conflicts := 0; ; conflicts++ {
			if proposal == nil {
				last, err := a.store.LoadCounter(ctx, year)
				if err != nil {
					return nil, err
				}

				proposal = newRecord(recordID, req, issueDate, year, last+1)
			}

			err := a.store.Commit(ctx, proposal)

			switch {
			case err == nil:
				return proposal, nil
			case errors.Is(err, history.ErrSequenceConflict):
				a.metrics.CommitRetried(backend, err)
				a.log.Debug("sequence conflict, re-reading counter",
					zap.Int("year", year),
					zap.String("proposed", proposal.Number),
				)

				proposal = nil

				if conflicts >= maxConflicts {
					return nil, err
				}
			case errors.Is(err, history.ErrInvalidRecord):
				return nil, backoff.Permanent(err)
			default:
				// Keep the proposal: if this commit actually landed, replaying
				// it is a no-op.
				return nil, err
			}
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = a.backoff

	record, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(a.attempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			a.metrics.CommitRetried(backend, err)
			a.log.Warn("history commit failed, retrying",
				zap.Error(err),
				zap.Int("year", year),
				zap.Duration("wait", wait),
			)
		}),
	)
	if err != nil {
		if errors.Is(err, history.ErrInvalidRecord) {
			return nil, err
		}

		a.metrics.CommitFailed(backend)
		a.log.Error("history commit abandoned",
			zap.Error(err),
			zap.Int("year", year),
			zap.Uint("attempts", a.attempts),
		)

		return nil, &history.PersistenceError{Op: "issue", Backend: backend, Err: err}
	}

	a.metrics.InvoiceIssued(backend, time.Since(started).Seconds())

	id := invoice.Identifier{Year: record.Year, Seq: record.Sequence}

	a.log.Info("invoice issued",
		zap.String("number", id.String()),
		zap.String("backend", string(backend)),
		zap.Int("part", req.Candidate.Part),
		zap.Int("parts", req.Candidate.Parts),
	)

	return &invoice.Invoice{
		ID:        id,
		IssueDate: issueDate,
		Candidate: req.Candidate,
		Status:    invoice.StatusIssued,
		SourceKey: req.SourceKey,
	}, nil
}

func (a *Authority) yearLock(year int) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, ok := a.years[year]
	if !ok {
		l = &sync.Mutex{}
		a.years[year] = l
	}

	return l
}

func newRecord(id uuid.UUID, req IssueRequest, issueDate time.Time, year, seq int) *history.Record {
	c := req.Candidate

	return &history.Record{
		ID:              id,
		RunID:           req.RunID,
		Number:          invoice.Identifier{Year: year, Seq: seq}.String(),
		Year:            year,
		Sequence:        seq,
		IssueDate:       issueDate,
		TransactionDate: c.Source.Date,
		Description:     c.Source.Description,
		SourceKey:       req.SourceKey,
		SourceAmount:    c.Source.Amount,
		Part:            c.Part,
		Parts:           c.Parts,
		Gross:           c.Gross,
		Base:            c.Base,
		Tax:             c.Tax,
		TaxRate:         c.Rate,
		Status:          string(invoice.StatusIssued),
	}
}
