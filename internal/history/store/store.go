package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/MrJamesThe3rd/factura/internal/history"
)

const (
	uniqueViolation = "23505"

	defaultLockTimeout = 5 * time.Second
)

type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

type Option func(*Store)

// WithLockTimeout bounds how long a commit waits for the counter row lock.
// A commit that gives up fails with SQLSTATE 55P03 and is retried.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, lockTimeout: defaultLockTimeout}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Store) Backend() history.Backend {
	return history.BackendPostgres
}

func (s *Store) Close() error {
	return s.db.Close()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectRecordColumns = `
	id, run_id, number, year, sequence, issue_date, transaction_date, description,
	source_key, source_amount, part, parts, gross, base, tax, tax_rate, status, created_at
`

func scanRecord(s scanner) (*history.Record, error) {
	var r history.Record

	if err := s.Scan(
		&r.ID, &r.RunID, &r.Number, &r.Year, &r.Sequence, &r.IssueDate, &r.TransactionDate, &r.Description,
		&r.SourceKey, &r.SourceAmount, &r.Part, &r.Parts, &r.Gross, &r.Base, &r.Tax, &r.TaxRate, &r.Status,
		&r.CreatedAt,
	); err != nil {
		return nil, err
	}

	r.Backend = history.BackendPostgres

	return &r, nil
}

func (s *Store) LoadCounter(ctx context.Context, year int) (int, error) {
	var last int

	err := s.db.QueryRowContext(ctx, `SELECT last_value FROM invoice_counters WHERE year = $1`, year).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}

	if err != nil {
		return 0, s.fail("load counter", fmt.Errorf("reading counter: %w", err))
	}

	return last, nil
}

// Commit runs the counter check, the record insert and the counter update in
// one transaction holding the counter row lock.
func (s *Store) Commit(ctx context.Context, record *history.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("commit", fmt.Errorf("beginning transaction: %w", err))
	}
	defer dbTx.Rollback()

	setLockTimeout := fmt.Sprintf(`SET LOCAL lock_timeout = %d`, s.lockTimeout.Milliseconds())
	if _, err := dbTx.ExecContext(ctx, setLockTimeout); err != nil {
		return s.fail("commit", fmt.Errorf("setting lock timeout: %w", err))
	}

	ensureCounter := `
		INSERT INTO invoice_counters (year, last_value)
		VALUES ($1, 0)
		ON CONFLICT (year) DO NOTHING
	`
	if _, err := dbTx.ExecContext(ctx, ensureCounter, record.Year); err != nil {
		return s.fail("commit", fmt.Errorf("ensuring counter: %w", err))
	}

	var last int

	lockCounter := `SELECT last_value FROM invoice_counters WHERE year = $1 FOR UPDATE`
	if err := dbTx.QueryRowContext(ctx, lockCounter, record.Year).Scan(&last); err != nil {
		return s.fail("commit", fmt.Errorf("locking counter: %w", err))
	}

	var createdAt time.Time

	existing := `SELECT created_at FROM invoice_records WHERE id = $1`

	err = dbTx.QueryRowContext(ctx, existing, record.ID).Scan(&createdAt)
	switch {
	case err == nil:
		// Already committed by an earlier attempt.
		record.CreatedAt = createdAt
		record.Backend = history.BackendPostgres

		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return s.fail("commit", fmt.Errorf("checking record: %w", err))
	}

	if record.Sequence != last+1 {
		return fmt.Errorf("%w: year %d is at %d, proposed %d",
			history.ErrSequenceConflict, record.Year, last, record.Sequence)
	}

	insertRecord := `
		INSERT INTO invoice_records (
			id, run_id, number, year, sequence, issue_date, transaction_date, description,
			source_key, source_amount, part, parts, gross, base, tax, tax_rate, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW())
		RETURNING created_at
	`

	err = dbTx.QueryRowContext(ctx, insertRecord,
		record.ID,
		record.RunID,
		record.Number,
		record.Year,
		record.Sequence,
		record.IssueDate,
		record.TransactionDate,
		record.Description,
		record.SourceKey,
		record.SourceAmount,
		record.Part,
		record.Parts,
		record.Gross,
		record.Base,
		record.Tax,
		record.TaxRate,
		record.Status,
	).Scan(&record.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s already issued", history.ErrSequenceConflict, record.Number)
		}

		return s.fail("commit", fmt.Errorf("inserting record: %w", err))
	}

	advance := `UPDATE invoice_counters SET last_value = $1, updated_at = NOW() WHERE year = $2`
	if _, err := dbTx.ExecContext(ctx, advance, record.Sequence, record.Year); err != nil {
		return s.fail("commit", fmt.Errorf("advancing counter: %w", err))
	}

	if err := dbTx.Commit(); err != nil {
		return s.fail("commit", fmt.Errorf("committing transaction: %w", err))
	}

	record.Backend = history.BackendPostgres

	return nil
}

func (s *Store) ListIssued(ctx context.Context, filter history.Filter) ([]*history.Record, error) {
	query := `SELECT ` + selectRecordColumns + ` FROM invoice_records WHERE TRUE`

	var args []any

	argIdx := 1

	if filter.Year != 0 {
		query += fmt.Sprintf(" AND year = $%d", argIdx)

		args = append(args, filter.Year)
		argIdx++
	}

	if filter.Month != "" {
		query += fmt.Sprintf(" AND to_char(issue_date, 'YYYY-MM') = $%d", argIdx)

		args = append(args, filter.Month)
		argIdx++
	}

	if filter.From != nil {
		query += fmt.Sprintf(" AND issue_date >= $%d", argIdx)

		args = append(args, *filter.From)
		argIdx++
	}

	if filter.To != nil {
		query += fmt.Sprintf(" AND issue_date <= $%d", argIdx)

		args = append(args, *filter.To)
		argIdx++
	}

	if len(filter.SourceKeys) > 0 {
		query += fmt.Sprintf(" AND source_key = ANY($%d)", argIdx)

		args = append(args, pq.Array(filter.SourceKeys))
	}

	query += " ORDER BY year ASC, sequence ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.fail("list", fmt.Errorf("listing records: %w", err))
	}
	defer rows.Close()

	var records []*history.Record

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, s.fail("list", fmt.Errorf("scanning record: %w", err))
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, s.fail("list", fmt.Errorf("iterating records: %w", err))
	}

	return records, nil
}

func (s *Store) Seed(ctx context.Context, year, last int) error {
	if year <= 0 || last < 0 {
		return fmt.Errorf("seeding year %d with %d: %w", year, last, history.ErrInvalidRecord)
	}

	query := `
		INSERT INTO invoice_counters (year, last_value)
		VALUES ($1, $2)
		ON CONFLICT (year) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, year, last); err != nil {
		return s.fail("seed", fmt.Errorf("seeding counter: %w", err))
	}

	return nil
}

func (s *Store) fail(op string, err error) error {
	return &history.PersistenceError{Op: op, Backend: history.BackendPostgres, Err: err}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
