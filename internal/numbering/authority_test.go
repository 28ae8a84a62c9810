package numbering_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/factura/internal/history"
	"github.com/MrJamesThe3rd/factura/internal/history/filestore"
	"github.com/MrJamesThe3rd/factura/internal/invoice"
	"github.com/MrJamesThe3rd/factura/internal/numbering"
	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

var issueDay = time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)

func candidate() invoice.Candidate {
	return invoice.Candidate{
		Source: transaction.Transaction{
			Line:        3,
			Date:        time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
			Description: "TFI Wise",
			Amount:      30000,
		},
		Part:  1,
		Parts: 1,
		Gross: 30000,
		Base:  24793,
		Tax:   5207,
		Rate:  invoice.DefaultTaxRate,
	}
}

func request() numbering.IssueRequest {
	return numbering.IssueRequest{
		RunID:     uuid.New(),
		Candidate: candidate(),
		SourceKey: "k",
	}
}

func fileStore(t *testing.T) (*filestore.Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "history.json")

	s, err := filestore.New(path)
	require.NoError(t, err)

	return s, path
}

func clock() time.Time { return issueDay }

func TestAuthority_IssueSequential(t *testing.T) {
	ctx := context.Background()
	s, _ := fileStore(t)
	a := numbering.New(s, numbering.WithClock(clock))

	for _, want := range []string{"T260001", "T260002", "T260003"} {
		inv, err := a.Issue(ctx, request())
		require.NoError(t, err)
		assert.Equal(t, want, inv.Number())
		assert.Equal(t, invoice.StatusIssued, inv.Status)
		assert.Equal(t, issueDay, inv.IssueDate)
	}

	// A new authority on the same state continues the series.
	again := numbering.New(s, numbering.WithClock(clock))

	inv, err := again.Issue(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, "T260004", inv.Number())

	records, err := s.ListIssued(ctx, history.Filter{Year: 2026})
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "TFI Wise", records[0].Description)
	assert.Equal(t, candidate().Source.Date, records[0].TransactionDate)
}

func TestAuthority_YearsAreIndependent(t *testing.T) {
	ctx := context.Background()
	s, _ := fileStore(t)
	require.NoError(t, s.Seed(ctx, 2025, 263))

	a := numbering.New(s, numbering.WithClock(clock))

	req := request()
	req.IssueDate = time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	inv, err := a.Issue(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "T250264", inv.Number())

	inv, err = a.Issue(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, "T260001", inv.Number())
}

func TestAuthority_Preview(t *testing.T) {
	ctx := context.Background()
	s, _ := fileStore(t)
	a := numbering.New(s, numbering.WithClock(clock))

	next, err := a.Preview(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, "T260001", next.String())

	// Preview does not reserve.
	next, err = a.Preview(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, "T260001", next.String())

	_, err = a.Issue(ctx, request())
	require.NoError(t, err)

	next, err = a.Preview(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, "T260002", next.String())
}

func TestAuthority_ConcurrentIssuersNeverCollide(t *testing.T) {
	ctx := context.Background()
	_, path := fileStore(t)

	// Two authorities over two store handles stand in for two processes.
	var authorities []*numbering.Authority

	for range 2 {
		s, err := filestore.New(path)
		require.NoError(t, err)

		authorities = append(authorities, numbering.New(s,
			numbering.WithClock(clock),
			numbering.WithRetry(5, time.Millisecond),
		))
	}

	const perAuthority = 12

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]int)
		errs    []error
	)

	for _, a := range authorities {
		for range 3 {
			wg.Go(func() {
				for range perAuthority / 3 {
					inv, err := a.Issue(ctx, request())

					mu.Lock()
					if err != nil {
						errs = append(errs, err)
					} else {
						numbers[inv.Number()]++
					}
					mu.Unlock()
				}
			})
		}
	}

	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, numbers, 2*perAuthority)

	for seq := 1; seq <= 2*perAuthority; seq++ {
		id := invoice.Identifier{Year: 2026, Seq: seq}.String()
		assert.Equal(t, 1, numbers[id], "identifier %s", id)
	}
}

func TestAuthority_IssueWithMockStore(t *testing.T) {
	errDown := errors.New("connection reset")

	type testCase struct {
		name       string
		setupMock  func(m *history.MockStore)
		wantNumber string
		wantErr    func(t *testing.T, err error)
	}

	tests := []testCase{
		{
			name: "First of year",
			setupMock: func(m *history.MockStore) {
				m.EXPECT().LoadCounter(gomock.Any(), 2026).Return(0, nil)
				m.EXPECT().Commit(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, r *history.Record) error {
						assert.Equal(t, 1, r.Sequence)
						assert.Equal(t, "T260001", r.Number)
						assert.Equal(t, 2026, r.Year)
						assert.NotEqual(t, uuid.Nil, r.ID)
						return nil
					})
			},
			wantNumber: "T260001",
		},
		{
			name: "Conflict re-reads counter",
			setupMock: func(m *history.MockStore) {
				gomock.InOrder(
					m.EXPECT().LoadCounter(gomock.Any(), 2026).Return(4, nil),
					m.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(history.ErrSequenceConflict),
					m.EXPECT().LoadCounter(gomock.Any(), 2026).Return(5, nil),
					m.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(nil),
				)
			},
			wantNumber: "T260006",
		},
		{
			name: "Transient failure replays the same proposal",
			setupMock: func(m *history.MockStore) {
				var first *history.Record

				m.EXPECT().LoadCounter(gomock.Any(), 2026).Return(9, nil).Times(1)
				gomock.InOrder(
					m.EXPECT().Commit(gomock.Any(), gomock.Any()).
						DoAndReturn(func(_ context.Context, r *history.Record) error {
							snapshot := *r
							first = &snapshot
							return errDown
						}),
					m.EXPECT().Commit(gomock.Any(), gomock.Any()).
						DoAndReturn(func(_ context.Context, r *history.Record) error {
							// Same id and sequence: the store treats it as a replay.
							assert.Equal(t, first.ID, r.ID)
							assert.Equal(t, first.Sequence, r.Sequence)
							return nil
						}),
				)
			},
			wantNumber: "T260010",
		},
		{
			name: "Retries exhausted",
			setupMock: func(m *history.MockStore) {
				m.EXPECT().LoadCounter(gomock.Any(), 2026).Return(0, nil).Times(1)
				m.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(errDown).Times(3)
			},
			wantErr: func(t *testing.T, err error) {
				var perr *history.PersistenceError
				require.ErrorAs(t, err, &perr)
				assert.Equal(t, history.BackendFile, perr.Backend)
				assert.ErrorIs(t, err, errDown)
			},
		},
		{
			name: "Counter unreadable",
			setupMock: func(m *history.MockStore) {
				m.EXPECT().LoadCounter(gomock.Any(), 2026).Return(0, errDown).Times(3)
			},
			wantErr: func(t *testing.T, err error) {
				var perr *history.PersistenceError
				require.ErrorAs(t, err, &perr)
			},
		},
		{
			name: "Invalid record is not retried",
			setupMock: func(m *history.MockStore) {
				m.EXPECT().LoadCounter(gomock.Any(), 2026).Return(0, nil)
				m.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(history.ErrInvalidRecord)
			},
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, history.ErrInvalidRecord)

				var perr *history.PersistenceError
				assert.False(t, errors.As(err, &perr))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			store := history.NewMockStore(ctrl)
			store.EXPECT().Backend().Return(history.BackendFile).AnyTimes()
			tt.setupMock(store)

			a := numbering.New(store,
				numbering.WithClock(clock),
				numbering.WithRetry(3, time.Millisecond),
			)

			inv, err := a.Issue(context.Background(), request())

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Nil(t, inv)
				tt.wantErr(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantNumber, inv.Number())
		})
	}
}
