// Package session picks the history backend once per process.
package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/factura/internal/database"
	"github.com/MrJamesThe3rd/factura/internal/history"
	"github.com/MrJamesThe3rd/factura/internal/history/filestore"
	"github.com/MrJamesThe3rd/factura/internal/history/store"
	"github.com/MrJamesThe3rd/factura/internal/metrics"
)

const defaultConnectTimeout = 5 * time.Second

type Options struct {
	DatabaseURL    string
	FallbackPath   string
	ConnectTimeout time.Duration
	// LockTimeout bounds the wait for the counter row lock; zero keeps the
	// store default.
	LockTimeout time.Duration
	// Seeds maps a year to the last number already used outside this system.
	Seeds   map[int]int
	Metrics *metrics.Metrics
}

// Session holds the backend chosen at startup. It never changes afterwards.
type Session struct {
	Store   history.Store
	Backend history.Backend
	// Warning is set when the primary backend was configured but unusable.
	Warning *history.BackendUnavailableError
}

func (s *Session) Close() error {
	return s.Store.Close()
}

// Open connects to the primary store when a DatabaseURL is given and falls
// back to the file store on any failure. Failing to open the fallback is fatal.
func Open(ctx context.Context, opts Options, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}

	sess := &Session{}

	if opts.DatabaseURL != "" {
		primary, err := openPrimary(ctx, opts)
		if err != nil {
			sess.Warning = &history.BackendUnavailableError{Backend: history.BackendPostgres, Err: err}

			log.Warn("primary history store unavailable, using file fallback",
				zap.Error(err),
				zap.String("fallback", opts.FallbackPath),
			)
			opts.Metrics.BackendFallback()
		} else {
			sess.Store = primary
			sess.Backend = history.BackendPostgres
		}
	}

	if sess.Store == nil {
		fallback, err := filestore.New(opts.FallbackPath)
		if err != nil {
			return nil, err
		}

		sess.Store = fallback
		sess.Backend = history.BackendFile
	}

	if err := applySeeds(ctx, sess.Store, opts.Seeds); err != nil {
		sess.Store.Close()
		return nil, err
	}

	log.Info("history backend selected",
		zap.String("backend", string(sess.Backend)),
		zap.Bool("degraded", sess.Warning != nil),
	)

	return sess, nil
}

func openPrimary(ctx context.Context, opts Options) (history.Store, error) {
	db, err := database.New(ctx, opts.DatabaseURL, opts.ConnectTimeout)
	if err != nil {
		return nil, err
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	var storeOpts []store.Option
	if opts.LockTimeout > 0 {
		storeOpts = append(storeOpts, store.WithLockTimeout(opts.LockTimeout))
	}

	return store.New(db, storeOpts...), nil
}

func applySeeds(ctx context.Context, s history.Store, seeds map[int]int) error {
	for _, year := range slices.Sorted(maps.Keys(seeds)) {
		if err := s.Seed(ctx, year, seeds[year]); err != nil {
			var perr *history.PersistenceError
			if errors.As(err, &perr) {
				return err
			}

			return fmt.Errorf("seeding %d: %w", year, err)
		}
	}

	return nil
}
