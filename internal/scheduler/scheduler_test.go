package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulso636-cyber/StudentFinanceBot/internal/ledger"
	"github.com/pulso636-cyber/StudentFinanceBot/internal/models"
	"github.com/pulso636-cyber/StudentFinanceBot/internal/storage"
)

// stubLedger scripts per-template outcomes for sweep tests.
type stubLedger struct {
	due     []models.Transaction
	listErr error
	results map[int64]stubResult
	calls   []int64
}

type stubResult struct {
	childID int64
	claimed bool
	err     error
}

func (s *stubLedger) ListDueRecurringTransactions(_ context.Context, _ time.Time, _ int) ([]models.Transaction, error) {
	return s.due, s.listErr
}

func (s *stubLedger) MaterializeOccurrence(_ context.Context, templateID int64, _ time.Time) (int64, bool, error) {
	s.calls = append(s.calls, templateID)
	r := s.results[templateID]
	return r.childID, r.claimed, r.err
}

func templates(ids ...int64) []models.Transaction {
	out := make([]models.Transaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Transaction{ID: id})
	}
	return out
}

func TestSweepEmpty(t *testing.T) {
	s := New(&stubLedger{}, zerolog.Nop(), 0, 0)
	report, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report)
}

func TestSweepListFailureAbortsPass(t *testing.T) {
	stub := &stubLedger{listErr: errors.New("db down")}
	s := New(stub, zerolog.Nop(), 0, 0)
	_, err := s.Sweep(context.Background())
	require.Error(t, err)
	assert.Empty(t, stub.calls)
}

func TestSweepIsolatesFailures(t *testing.T) {
	stub := &stubLedger{
		due: templates(1, 2, 3, 4),
		results: map[int64]stubResult{
			1: {childID: 11, claimed: true},
			2: {err: fmt.Errorf("wrapped: %w", ledger.ErrNoOp)},
			3: {err: errors.New("disk full")},
			4: {childID: 14, claimed: true},
		},
	}
	s := New(stub, zerolog.Nop(), 0, 0)

	report, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Due: 4, Materialized: 2, Skipped: 1, Failed: 1}, report)
	assert.Equal(t, []int64{1, 2, 3, 4}, stub.calls, "failure must not stop the pass")
}

func TestSweepCountsLostClaimsAsSkipped(t *testing.T) {
	stub := &stubLedger{
		due: templates(7),
		results: map[int64]stubResult{
			7: {claimed: false},
		},
	}
	s := New(stub, zerolog.Nop(), 0, 0)

	report, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Due: 1, Skipped: 1}, report)
}

// TestConcurrentSweepsMaterializeOnce runs two sweeps at once over one due
// monthly template and checks exactly one child is created and the schedule
// advances exactly one step.
func TestConcurrentSweepsMaterializeOnce(t *testing.T) {
	db, err := storage.NewDB(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer db.Close()

	facade := ledger.New(db, zerolog.Nop())
	ctx := context.Background()

	user, _, err := facade.RegisterUser(ctx, 88, ledger.UserProfile{})
	require.NoError(t, err)

	start := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	res, err := facade.AddTransaction(ctx, ledger.AddTransactionParams{
		UserID: user.ID, Amount: decimal.NewFromInt(450),
		Type: models.TypeExpense, Category: "subscription",
		Date: start, Recurring: true, Frequency: models.FrequencyMonthly,
	})
	require.NoError(t, err)

	s := New(facade, zerolog.Nop(), 0, 0)
	s.now = func() time.Time { return start.AddDate(0, 1, 0) }

	var wg sync.WaitGroup
	reports := make(chan SweepReport, 2)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := s.Sweep(ctx)
			errs <- err
			reports <- report
		}()
	}
	wg.Wait()
	close(reports)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	materialized := 0
	for report := range reports {
		materialized += report.Materialized
	}
	assert.Equal(t, 1, materialized, "concurrent sweeps created one child")

	tmpl, err := db.GetTransaction(ctx, res.TransactionID)
	require.NoError(t, err)
	require.NotNil(t, tmpl.NextOccurrenceAt)
	assert.True(t, tmpl.NextOccurrenceAt.Equal(start.AddDate(0, 2, 0)),
		"schedule advanced exactly one step")

	list, err := facade.ListRecentTransactions(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)

	b, err := facade.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "900", b.Expenses.String())
	assert.Equal(t, int64(2), b.Count)
}
