package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/pulso636-cyber/StudentFinanceBot/internal/models"
	"github.com/pulso636-cyber/StudentFinanceBot/internal/storage"
)

// FacadeTestSuite exercises the facade against a real store.
type FacadeTestSuite struct {
	suite.Suite
	db     *storage.DB
	facade *Facade
	ctx    context.Context
	user   *models.User
}

func (s *FacadeTestSuite) SetupTest() {
	db, err := storage.NewDB(":memory:")
	require.NoError(s.T(), err, "failed to create test database")
	s.db = db
	s.facade = New(db, zerolog.Nop())
	s.ctx = context.Background()

	user, created, err := s.facade.RegisterUser(s.ctx, 424242, UserProfile{
		Username: "student", Currency: "RUB",
	})
	require.NoError(s.T(), err)
	require.True(s.T(), created)
	s.user = user
}

func (s *FacadeTestSuite) TearDownTest() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *FacadeTestSuite) addTransaction(amount int64, ttype models.TransactionType, category string) *AddTransactionResult {
	res, err := s.facade.AddTransaction(s.ctx, AddTransactionParams{
		UserID:   s.user.ID,
		Amount:   decimal.NewFromInt(amount),
		Type:     ttype,
		Category: category,
	})
	require.NoError(s.T(), err)
	return res
}

func (s *FacadeTestSuite) TestRegisterUserIsIdempotent() {
	again, created, err := s.facade.RegisterUser(s.ctx, 424242, UserProfile{})
	require.NoError(s.T(), err)
	assert.False(s.T(), created)
	assert.Equal(s.T(), s.user.ID, again.ID)
	assert.NotNil(s.T(), again.LastActivityAt)
}

func (s *FacadeTestSuite) TestRegisterUserDefaults() {
	u, created, err := s.facade.RegisterUser(s.ctx, 555, UserProfile{})
	require.NoError(s.T(), err)
	require.True(s.T(), created)
	assert.Equal(s.T(), "RUB", u.DefaultCurrency)
	assert.Equal(s.T(), "UTC", u.Timezone)
	assert.True(s.T(), u.IsActive)
}

func (s *FacadeTestSuite) TestAddTransactionUpdatesBalance() {
	res := s.addTransaction(5000, models.TypeIncome, "salary")
	assert.Equal(s.T(), "5000", res.NewBalance.String())

	res = s.addTransaction(1200, models.TypeExpense, "rent")
	assert.Equal(s.T(), "3800", res.NewBalance.String())

	b, err := s.facade.GetBalance(s.ctx, s.user.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "3800", b.Balance.String())
	assert.Equal(s.T(), "5000", b.Income.String())
	assert.Equal(s.T(), "1200", b.Expenses.String())
	assert.Equal(s.T(), int64(2), b.Count)
}

func (s *FacadeTestSuite) TestAddTransactionValidation() {
	tests := []struct {
		name   string
		params AddTransactionParams
	}{
		{"zero amount", AddTransactionParams{
			UserID: s.user.ID, Amount: decimal.Zero,
			Type: models.TypeIncome, Category: "salary"}},
		{"negative amount", AddTransactionParams{
			UserID: s.user.ID, Amount: decimal.NewFromInt(-5),
			Type: models.TypeIncome, Category: "salary"}},
		{"bad type", AddTransactionParams{
			UserID: s.user.ID, Amount: decimal.NewFromInt(5),
			Type: "loan", Category: "misc"}},
		{"empty category", AddTransactionParams{
			UserID: s.user.ID, Amount: decimal.NewFromInt(5),
			Type: models.TypeIncome, Category: "  "}},
		{"bad currency", AddTransactionParams{
			UserID: s.user.ID, Amount: decimal.NewFromInt(5),
			Type: models.TypeIncome, Category: "salary", Currency: "XQZ"}},
		{"recurring without frequency", AddTransactionParams{
			UserID: s.user.ID, Amount: decimal.NewFromInt(5),
			Type: models.TypeExpense, Category: "rent", Recurring: true}},
		{"frequency without recurring", AddTransactionParams{
			UserID: s.user.ID, Amount: decimal.NewFromInt(5),
			Type: models.TypeExpense, Category: "rent",
			Frequency: models.FrequencyWeekly}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.facade.AddTransaction(s.ctx, tt.params)
			assert.ErrorIs(s.T(), err, ErrValidation)
		})
	}

	// Nothing was persisted by the rejected requests.
	b, err := s.facade.GetBalance(s.ctx, s.user.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(0), b.Count)
}

func (s *FacadeTestSuite) TestAddTransactionUnknownUser() {
	_, err := s.facade.AddTransaction(s.ctx, AddTransactionParams{
		UserID: 9999, Amount: decimal.NewFromInt(10),
		Type: models.TypeIncome, Category: "salary",
	})
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *FacadeTestSuite) TestAddRecurringSetsSchedule() {
	date := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	res, err := s.facade.AddTransaction(s.ctx, AddTransactionParams{
		UserID: s.user.ID, Amount: decimal.NewFromInt(450),
		Type: models.TypeExpense, Category: "subscription",
		Date: date, Recurring: true, Frequency: models.FrequencyMonthly,
	})
	require.NoError(s.T(), err)

	tr, err := s.db.GetTransaction(s.ctx, res.TransactionID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), tr.NextOccurrenceAt)
	assert.True(s.T(), tr.NextOccurrenceAt.Equal(date.AddDate(0, 1, 0)))
}

func (s *FacadeTestSuite) TestSoftDeleteRoundTrip() {
	s.addTransaction(5000, models.TypeIncome, "salary")
	rent := s.addTransaction(1200, models.TypeExpense, "rent")

	balance, err := s.facade.RemoveTransaction(s.ctx, rent.TransactionID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "5000", balance.String())

	balance, err = s.facade.RestoreTransaction(s.ctx, rent.TransactionID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "3800", balance.String())

	b, err := s.facade.GetBalance(s.ctx, s.user.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "3800", b.Balance.String())
	assert.Equal(s.T(), int64(2), b.Count)
}

func (s *FacadeTestSuite) TestToggleNoOpAndNotFound() {
	income := s.addTransaction(100, models.TypeIncome, "misc")

	_, err := s.facade.RestoreTransaction(s.ctx, income.TransactionID)
	assert.ErrorIs(s.T(), err, ErrNoOp, "restoring a live transaction")

	_, err = s.facade.RemoveTransaction(s.ctx, income.TransactionID)
	require.NoError(s.T(), err)
	_, err = s.facade.RemoveTransaction(s.ctx, income.TransactionID)
	assert.ErrorIs(s.T(), err, ErrNoOp, "removing twice")

	_, err = s.facade.RemoveTransaction(s.ctx, 9999)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *FacadeTestSuite) TestCreateGoalValidation() {
	past := time.Now().Add(-24 * time.Hour)
	tests := []struct {
		name   string
		params CreateGoalParams
	}{
		{"empty title", CreateGoalParams{
			UserID: s.user.ID, TargetAmount: decimal.NewFromInt(100)}},
		{"zero target", CreateGoalParams{
			UserID: s.user.ID, Title: "x", TargetAmount: decimal.Zero}},
		{"priority out of range", CreateGoalParams{
			UserID: s.user.ID, Title: "x",
			TargetAmount: decimal.NewFromInt(100), Priority: 7}},
		{"target date before start", CreateGoalParams{
			UserID: s.user.ID, Title: "x",
			TargetAmount: decimal.NewFromInt(100), TargetDate: &past}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.facade.CreateGoal(s.ctx, tt.params)
			assert.ErrorIs(s.T(), err, ErrValidation)
		})
	}
}

func (s *FacadeTestSuite) TestGoalLifecycle() {
	goalID, err := s.facade.CreateGoal(s.ctx, CreateGoalParams{
		UserID: s.user.ID, Title: "emergency fund",
		TargetAmount: decimal.NewFromInt(2000),
	})
	require.NoError(s.T(), err)

	res, err := s.facade.RecordGoalProgress(s.ctx, RecordProgressParams{
		GoalID: goalID, Amount: decimal.NewFromInt(500),
		Type: models.ProgressContribution,
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "0", res.AmountBefore.String())
	assert.Equal(s.T(), "500", res.AmountAfter.String())
	assert.Equal(s.T(), models.GoalActive, res.Goal.Status)

	res, err = s.facade.RecordGoalProgress(s.ctx, RecordProgressParams{
		GoalID: goalID, Amount: decimal.NewFromInt(1500),
		Type: models.ProgressContribution,
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.GoalCompleted, res.Goal.Status)
	assert.NotNil(s.T(), res.Goal.CompletedAt)

	summary, err := s.facade.GetGoalSummary(s.ctx, goalID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "2000", summary.Goal.CurrentAmount.String())
	assert.Equal(s.T(), "100", summary.ProgressPercent.String())
	assert.Equal(s.T(), "0", summary.Remaining.String())
	assert.Equal(s.T(), int64(2), summary.Contributions)
}

func (s *FacadeTestSuite) TestListGoals() {
	first, err := s.facade.CreateGoal(s.ctx, CreateGoalParams{
		UserID: s.user.ID, Title: "emergency fund",
		TargetAmount: decimal.NewFromInt(2000), Priority: 1,
	})
	require.NoError(s.T(), err)
	second, err := s.facade.CreateGoal(s.ctx, CreateGoalParams{
		UserID: s.user.ID, Title: "bike",
		TargetAmount: decimal.NewFromInt(500), Priority: 2,
	})
	require.NoError(s.T(), err)

	// Completing a goal pushes it behind the active ones.
	_, err = s.facade.RecordGoalProgress(s.ctx, RecordProgressParams{
		GoalID: first, Amount: decimal.NewFromInt(2000),
		Type: models.ProgressContribution,
	})
	require.NoError(s.T(), err)

	goals, err := s.facade.ListGoals(s.ctx, s.user.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), goals, 2)
	assert.Equal(s.T(), second, goals[0].ID)
	assert.Equal(s.T(), models.GoalActive, goals[0].Status)
	assert.Equal(s.T(), first, goals[1].ID)
	assert.Equal(s.T(), models.GoalCompleted, goals[1].Status)

	_, err = s.facade.ListGoals(s.ctx, 9999)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *FacadeTestSuite) TestGoalOverflowSurfaced() {
	goalID, err := s.facade.CreateGoal(s.ctx, CreateGoalParams{
		UserID: s.user.ID, Title: "bike",
		TargetAmount: decimal.NewFromInt(1000),
	})
	require.NoError(s.T(), err)

	_, err = s.facade.RecordGoalProgress(s.ctx, RecordProgressParams{
		GoalID: goalID, Amount: decimal.NewFromInt(1501),
		Type: models.ProgressContribution,
	})
	assert.ErrorIs(s.T(), err, ErrGoalOverflow)

	summary, err := s.facade.GetGoalSummary(s.ctx, goalID)
	require.NoError(s.T(), err)
	assert.True(s.T(), summary.Goal.CurrentAmount.IsZero(), "rejected event persisted nothing")
	assert.Equal(s.T(), int64(0), summary.Contributions)
}

func (s *FacadeTestSuite) TestGoalProgressNotFound() {
	_, err := s.facade.RecordGoalProgress(s.ctx, RecordProgressParams{
		GoalID: 404, Amount: decimal.NewFromInt(10),
		Type: models.ProgressContribution,
	})
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *FacadeTestSuite) TestListRecentTransactions() {
	s.addTransaction(100, models.TypeIncome, "misc")
	expense := s.addTransaction(50, models.TypeExpense, "food")
	_, err := s.facade.RemoveTransaction(s.ctx, expense.TransactionID)
	require.NoError(s.T(), err)

	list, err := s.facade.ListRecentTransactions(s.ctx, s.user.ID, 0)
	require.NoError(s.T(), err)
	require.Len(s.T(), list, 1, "soft-deleted transactions excluded")
	assert.Equal(s.T(), "misc", list[0].Category)
}

func (s *FacadeTestSuite) TestCategoryStats() {
	s.addTransaction(5000, models.TypeIncome, "salary")
	s.addTransaction(300, models.TypeExpense, "food")
	s.addTransaction(200, models.TypeExpense, "food")
	deleted := s.addTransaction(100, models.TypeExpense, "food")
	_, err := s.facade.RemoveTransaction(s.ctx, deleted.TransactionID)
	require.NoError(s.T(), err)

	now := time.Now()
	stats, err := s.facade.CategoryStats(s.ctx, s.user.ID, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(s.T(), err)
	require.Len(s.T(), stats, 2)
	assert.Equal(s.T(), "salary", stats[0].Category)
	assert.Equal(s.T(), "5000", stats[0].Total.String())
	assert.Equal(s.T(), "food", stats[1].Category)
	assert.Equal(s.T(), "500", stats[1].Total.String(), "deleted transactions excluded")
	assert.Equal(s.T(), int64(2), stats[1].Count)

	_, err = s.facade.CategoryStats(s.ctx, 9999, now.Add(-time.Hour), now)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *FacadeTestSuite) TestExpiredDeadlineIsTimeout() {
	ctx, cancel := context.WithDeadline(s.ctx, time.Now().Add(-time.Second))
	defer cancel()

	_, err := s.facade.AddTransaction(ctx, AddTransactionParams{
		UserID: s.user.ID, Amount: decimal.NewFromInt(10),
		Type: models.TypeIncome, Category: "salary",
	})
	assert.ErrorIs(s.T(), err, ErrTimeout)

	b, err := s.facade.GetBalance(s.ctx, s.user.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(0), b.Count, "aborted unit of work persisted nothing")
}

func TestFacadeTestSuite(t *testing.T) {
	suite.Run(t, new(FacadeTestSuite))
}

// TestConcurrentRegisterUser races first-contact registrations for one chat
// id and checks exactly one row is created, with every caller getting it.
func TestConcurrentRegisterUser(t *testing.T) {
	db, err := storage.NewDB(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer db.Close()

	facade := New(db, zerolog.Nop())
	ctx := context.Background()

	const n = 6
	type outcome struct {
		id      int64
		created bool
		err     error
	}
	var wg sync.WaitGroup
	outcomes := make(chan outcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, created, err := facade.RegisterUser(ctx, 300, UserProfile{})
			if err != nil {
				outcomes <- outcome{err: err}
				return
			}
			outcomes <- outcome{id: u.ID, created: created}
		}()
	}
	wg.Wait()
	close(outcomes)

	createdCount := 0
	ids := map[int64]bool{}
	for o := range outcomes {
		require.NoError(t, o.err)
		if o.created {
			createdCount++
		}
		ids[o.id] = true
	}
	assert.Equal(t, 1, createdCount, "exactly one caller creates the user")
	assert.Len(t, ids, 1, "every caller gets the same user")
}

// TestConcurrentInsertsLinearize runs N concurrent income inserts against a
// file-backed store and checks no update is lost or double-counted.
func TestConcurrentInsertsLinearize(t *testing.T) {
	db, err := storage.NewDB(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer db.Close()

	facade := New(db, zerolog.Nop())
	ctx := context.Background()
	user, _, err := facade.RegisterUser(ctx, 77, UserProfile{})
	require.NoError(t, err)

	const n = 8
	amount := decimal.NewFromInt(100)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := facade.AddTransaction(ctx, AddTransactionParams{
				UserID: user.ID, Amount: amount,
				Type: models.TypeIncome, Category: "salary",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	b, err := facade.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "800", b.Income.String())
	assert.Equal(t, "800", b.Balance.String())
	assert.Equal(t, int64(n), b.Count)
}
