package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/factura/internal/money"
)

var (
	// ErrSequenceConflict means the counter moved since it was read.
	ErrSequenceConflict = errors.New("sequence conflict")
	ErrInvalidRecord    = errors.New("invalid history record")
)

type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendFile     Backend = "file"
)

// Record is the persisted projection of one issued invoice.
type Record struct {
	ID              uuid.UUID       `json:"id"`
	RunID           uuid.UUID       `json:"run_id"`
	Number          string          `json:"number"`
	Year            int             `json:"year"`
	Sequence        int             `json:"sequence"`
	IssueDate       time.Time       `json:"issue_date"`
	TransactionDate time.Time       `json:"transaction_date"`
	Description     string          `json:"description"`
	SourceKey       string          `json:"source_key"`
	SourceAmount    money.Cents     `json:"source_amount"`
	Part            int             `json:"part"`
	Parts           int             `json:"parts"`
	Gross           money.Cents     `json:"gross"`
	Base            money.Cents     `json:"base"`
	Tax             money.Cents     `json:"tax"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	Status          string          `json:"status"`
	Backend         Backend         `json:"backend"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Validate checks the fields every backend relies on.
func (r *Record) Validate() error {
	switch {
	case r == nil:
		return fmt.Errorf("%w: nil", ErrInvalidRecord)
	case r.ID == uuid.Nil:
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	case r.Year <= 0:
		return fmt.Errorf("%w: year %d", ErrInvalidRecord, r.Year)
	case r.Sequence <= 0:
		return fmt.Errorf("%w: sequence %d", ErrInvalidRecord, r.Sequence)
	case r.Number == "":
		return fmt.Errorf("%w: missing number", ErrInvalidRecord)
	case r.Gross != r.Base+r.Tax:
		return fmt.Errorf("%w: gross %s != base %s + tax %s", ErrInvalidRecord, r.Gross, r.Base, r.Tax)
	}

	return nil
}

// Month returns the issue month as "2006-01".
func (r *Record) Month() string {
	return r.IssueDate.Format("2006-01")
}

type Filter struct {
	Year       int
	Month      string // "2006-01"
	From       *time.Time
	To         *time.Time
	SourceKeys []string
}

// Match reports whether r passes every set field of f.
func (f Filter) Match(r *Record) bool {
	if f.Year != 0 && r.Year != f.Year {
		return false
	}

	if f.Month != "" && r.Month() != f.Month {
		return false
	}

	if f.From != nil && r.IssueDate.Before(*f.From) {
		return false
	}

	if f.To != nil && r.IssueDate.After(*f.To) {
		return false
	}

	if len(f.SourceKeys) > 0 {
		for _, k := range f.SourceKeys {
			if k == r.SourceKey {
				return true
			}
		}

		return false
	}

	return true
}

//go:generate mockgen -source=history.go -destination=store_mock.go -package=history
type Store interface {
	// LoadCounter returns the last sequence issued for year, 0 if none.
	LoadCounter(ctx context.Context, year int) (int, error)
	// Commit writes the record and advances the year's counter to
	// record.Sequence as one atomic step. The record's Sequence must be the
	// counter plus one, otherwise ErrSequenceConflict is returned. Committing
	// a record whose ID is already stored is a no-op.
	Commit(ctx context.Context, record *Record) error
	ListIssued(ctx context.Context, filter Filter) ([]*Record, error)
	// Seed sets the counter for year when none exists yet.
	Seed(ctx context.Context, year, last int) error
	Backend() Backend
	Close() error
}

// PersistenceError is returned when durable state could not be read or written.
type PersistenceError struct {
	Op      string
	Backend Backend
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence (%s) %s: %v", e.Backend, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// BackendUnavailableError reports that the primary backend could not be used.
type BackendUnavailableError struct {
	Backend Backend
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("%s backend unavailable: %v", e.Backend, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}
