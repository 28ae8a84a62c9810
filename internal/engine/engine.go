package engine

import (
	"context"
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/factura/internal/history"
	"github.com/MrJamesThe3rd/factura/internal/invoice"
	"github.com/MrJamesThe3rd/factura/internal/metrics"
	"github.com/MrJamesThe3rd/factura/internal/numbering"
	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

//go:generate mockgen -source=engine.go -destination=engine_mock.go -package=engine
type Issuer interface {
	Issue(ctx context.Context, req numbering.IssueRequest) (*invoice.Invoice, error)
	Backend() history.Backend
}

type Renderer interface {
	Render(ctx context.Context, inv *invoice.Invoice) (*Document, error)
}

type HistoryReader interface {
	ListIssued(ctx context.Context, filter history.Filter) ([]*history.Record, error)
}

// Document is a rendered invoice on disk.
type Document struct {
	Name string
	Path string
	Size int64
}

type RenderError struct {
	Number string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering %s: %v", e.Number, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

type Engine struct {
	splitter *invoice.Splitter
	issuer   Issuer
	renderer Renderer
	history  HistoryReader
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

type Option func(*Engine)

func WithRenderer(r Renderer) Option {
	return func(e *Engine) { e.renderer = r }
}

// WithHistory enables skipping transactions issued by earlier runs.
func WithHistory(h HistoryReader) Option {
	return func(e *Engine) { e.history = h }
}

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(splitter *invoice.Splitter, issuer Issuer, opts ...Option) *Engine {
	e := &Engine{
		splitter: splitter,
		issuer:   issuer,
		log:      zap.NewNop(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run turns a statement into issued invoices, in statement order. If
// issuance fails the run stops and the partial result is returned along with
// the error; everything issued so far stays valid.
func (e *Engine) Run(ctx context.Context, rows []transaction.RawRow) (*Result, error) {
	runDate := e.now()
	classes := transaction.Classify(rows)

	result := &Result{
		RunID:         uuid.New(),
		Backend:       e.issuer.Backend(),
		RunDate:       runDate,
		ExcludedDebit: classes.ExcludedDebit,
		ExcludedZero:  classes.ExcludedZero,
		Malformed:     classes.Malformed,
	}

	e.metrics.RowsClassified("eligible", len(classes.Eligible))
	e.metrics.RowsClassified("excluded_debit", len(classes.ExcludedDebit))
	e.metrics.RowsClassified("excluded_zero", len(classes.ExcludedZero))
	e.metrics.RowsClassified("malformed", len(classes.Malformed))

	for _, m := range classes.Malformed {
		e.log.Warn("skipping malformed row", zap.Int("line", m.Row.Line), zap.Error(m.Err))
	}

	keys := SourceKeys(classes.Eligible)

	prior, err := e.priorRecords(ctx, keys)
	if err != nil {
		e.abandon(result, classes.Eligible, keys, 0, 1, err)
		return result, err
	}

	for i, tx := range classes.Eligible {
		candidates, err := e.splitter.Split(tx)
		if err != nil {
			return result, fmt.Errorf("splitting line %d: %w", tx.Line, err)
		}

		if done := prior[keys[i]]; !sameSplit(done, candidates) {
			m := SplitMismatch{
				Transaction: tx,
				SourceKey:   keys[i],
				Parts:       len(candidates),
				Prior: slices.SortedFunc(maps.Values(done), func(a, b *history.Record) int {
					return cmp.Compare(a.Part, b.Part)
				}),
			}
			result.SplitMismatch = append(result.SplitMismatch, m)

			e.log.Warn("transaction was invoiced under a different split",
				zap.Int("line", tx.Line),
				zap.Int("parts", m.Parts),
				zap.Int("recorded_parts", m.Prior[0].Parts),
			)

			continue
		}

		if len(candidates) > 1 {
			result.Summary.SplitTransactions++
		}

		for _, c := range candidates {
			if rec, ok := prior[keys[i]][c.Part]; ok {
				result.AlreadyIssued = append(result.AlreadyIssued, rec)
				continue
			}

			inv, err := e.issuer.Issue(ctx, numbering.IssueRequest{
				RunID:     result.RunID,
				Candidate: c,
				SourceKey: keys[i],
				IssueDate: runDate,
			})
			if err != nil {
				e.abandon(result, classes.Eligible, keys, i, c.Part, err)
				return result, err
			}

			result.Issued = append(result.Issued, e.render(ctx, inv))
		}
	}

	result.summarize()
	e.metrics.RunFinished("completed")

	e.log.Info("run completed",
		zap.String("run_id", result.RunID.String()),
		zap.Int("issued", len(result.Issued)),
		zap.Int("already_issued", len(result.AlreadyIssued)),
		zap.Int("split_mismatch", len(result.SplitMismatch)),
		zap.Int("malformed", len(result.Malformed)),
	)

	return result, nil
}

func (e *Engine) render(ctx context.Context, inv *invoice.Invoice) Issued {
	entry := Issued{Invoice: inv}

	if e.renderer == nil {
		return entry
	}

	doc, err := e.renderer.Render(ctx, inv)
	if err != nil {
		// The number stays consumed; only the document is missing.
		entry.RenderErr = &RenderError{Number: inv.Number(), Err: err}

		e.metrics.RenderFailed()
		e.log.Error("rendering invoice", zap.String("number", inv.Number()), zap.Error(err))

		return entry
	}

	entry.Document = doc

	return entry
}

// priorRecords indexes records from earlier runs by source key and part.
func (e *Engine) priorRecords(ctx context.Context, keys []string) (map[string]map[int]*history.Record, error) {
	prior := make(map[string]map[int]*history.Record)

	if e.history == nil || len(keys) == 0 {
		return prior, nil
	}

	records, err := e.history.ListIssued(ctx, history.Filter{SourceKeys: keys})
	if err != nil {
		var perr *history.PersistenceError
		if !errors.As(err, &perr) {
			err = &history.PersistenceError{Op: "list", Backend: e.issuer.Backend(), Err: err}
		}

		return nil, err
	}

	for _, r := range records {
		if prior[r.SourceKey] == nil {
			prior[r.SourceKey] = make(map[int]*history.Record)
		}

		prior[r.SourceKey][r.Part] = r
	}

	return prior, nil
}

// sameSplit reports whether every recorded part of a transaction matches the
// candidate at the same position. An unrecorded transaction always matches.
func sameSplit(done map[int]*history.Record, candidates []invoice.Candidate) bool {
	for part, rec := range done {
		if rec.Parts != len(candidates) || part < 1 || part > len(candidates) {
			return false
		}

		if candidates[part-1].Gross != rec.Gross {
			return false
		}
	}

	return true
}

// abandon records the transaction at index from (starting at part) and every
// later eligible transaction as not processed.
func (e *Engine) abandon(result *Result, eligible []transaction.Transaction, keys []string, from, part int, cause error) {
	for i := from; i < len(eligible); i++ {
		p := Pending{
			Transaction: eligible[i],
			SourceKey:   keys[i],
			FromPart:    1,
			Parts:       1,
		}

		if i == from {
			p.FromPart = part
		}

		if cs, err := e.splitter.Split(eligible[i]); err == nil {
			p.Parts = len(cs)
		}

		result.NotProcessed = append(result.NotProcessed, p)
	}

	result.summarize()
	e.metrics.RunFinished("failed")

	e.log.Error("run stopped",
		zap.String("run_id", result.RunID.String()),
		zap.Int("issued", len(result.Issued)),
		zap.Int("not_processed", len(result.NotProcessed)),
		zap.Error(cause),
	)
}
