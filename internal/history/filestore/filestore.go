// Package filestore keeps invoice history in a single JSON document on disk.
// It is the fallback used when the relational store cannot be reached.
package filestore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/MrJamesThe3rd/factura/internal/history"
)

const documentVersion = 1

type document struct {
	Version  int               `json:"version"`
	Counters map[int]int       `json:"counters"`
	Records  []*history.Record `json:"records"`
}

type Store struct {
	path     string
	lockPath string

	// mu serializes goroutines of this process; the file lock serializes
	// processes sharing the same path.
	mu sync.Mutex
}

// New opens the store at path, creating its directory if needed. It fails
// when the location is not writable.
func New(path string) (*Store, error) {
	s := &Store{
		path:     path,
		lockPath: path + ".lock",
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, s.fail("open", fmt.Errorf("creating directory: %w", err))
	}

	f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, s.fail("open", fmt.Errorf("opening lock file: %w", err))
	}

	f.Close()

	// A corrupt document must surface now rather than on the first commit.
	if _, err := s.read(); err != nil {
		return nil, s.fail("open", err)
	}

	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Backend() history.Backend {
	return history.BackendFile
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) LoadCounter(ctx context.Context, year int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, s.fail("load counter", err)
	}

	var last int

	err := s.withLock(false, func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}

		last = doc.Counters[year]

		return nil
	})
	if err != nil {
		return 0, s.fail("load counter", err)
	}

	return last, nil
}

func (s *Store) Commit(ctx context.Context, record *history.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return s.fail("commit", err)
	}

	var conflict error

	err := s.withLock(true, func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}

		for _, r := range doc.Records {
			if r.ID == record.ID {
				// Already committed by an earlier attempt.
				record.Backend = history.BackendFile
				record.CreatedAt = r.CreatedAt

				return nil
			}
		}

		last := doc.Counters[record.Year]
		if record.Sequence != last+1 {
			conflict = fmt.Errorf("%w: year %d is at %d, proposed %d",
				history.ErrSequenceConflict, record.Year, last, record.Sequence)

			return nil
		}

		stored := *record
		stored.Backend = history.BackendFile

		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = time.Now().UTC()
		}

		doc.Records = append(doc.Records, &stored)
		doc.Counters[record.Year] = record.Sequence

		if err := s.write(doc); err != nil {
			return err
		}

		record.Backend = stored.Backend
		record.CreatedAt = stored.CreatedAt

		return nil
	})
	if err != nil {
		return s.fail("commit", err)
	}

	return conflict
}

func (s *Store) ListIssued(ctx context.Context, filter history.Filter) ([]*history.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, s.fail("list", err)
	}

	var out []*history.Record

	err := s.withLock(false, func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}

		for _, r := range doc.Records {
			if filter.Match(r) {
				out = append(out, r)
			}
		}

		return nil
	})
	if err != nil {
		return nil, s.fail("list", err)
	}

	slices.SortFunc(out, func(a, b *history.Record) int {
		return cmp.Or(cmp.Compare(a.Year, b.Year), cmp.Compare(a.Sequence, b.Sequence))
	})

	return out, nil
}

func (s *Store) Seed(ctx context.Context, year, last int) error {
	if err := ctx.Err(); err != nil {
		return s.fail("seed", err)
	}

	if year <= 0 || last < 0 {
		return fmt.Errorf("seeding year %d with %d: %w", year, last, history.ErrInvalidRecord)
	}

	err := s.withLock(true, func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}

		if _, ok := doc.Counters[year]; ok {
			return nil
		}

		doc.Counters[year] = last

		return s.write(doc)
	})
	if err != nil {
		return s.fail("seed", err)
	}

	return nil
}

func (s *Store) withLock(exclusive bool, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("opening lock file: %w", err)
	}
	defer f.Close()

	if err := lockFile(f, exclusive); err != nil {
		return fmt.Errorf("locking %s: %w", s.lockPath, err)
	}
	defer unlockFile(f)

	return fn()
}

func (s *Store) read() (*document, error) {
	doc := &document{Version: documentVersion, Counters: map[int]int{}}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	if len(data) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.path, err)
	}

	if doc.Counters == nil {
		doc.Counters = map[int]int{}
	}

	return doc, nil
}

// write replaces the document atomically: temp file, fsync, rename.
func (s *Store) write(doc *document) error {
	doc.Version = documentVersion

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	dir := filepath.Dir(s.path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}

	syncDir(dir)

	return nil
}

func (s *Store) fail(op string, err error) error {
	return &history.PersistenceError{Op: op, Backend: history.BackendFile, Err: err}
}
