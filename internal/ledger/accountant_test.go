package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulso636-cyber/StudentFinanceBot/internal/models"
)

func newUser() *models.User {
	return &models.User{ID: 1, IsActive: true}
}

func tx(amount int64, ttype models.TransactionType) *models.Transaction {
	return &models.Transaction{
		UserID: 1,
		Amount: decimal.NewFromInt(amount),
		Type:   ttype,
	}
}

// balanceInvariant asserts currentBalance == totalIncome - totalExpenses.
func balanceInvariant(t *testing.T, u *models.User) {
	t.Helper()
	assert.True(t, u.CurrentBalance.Equal(u.TotalIncome.Sub(u.TotalExpenses)),
		"balance %s != income %s - expenses %s",
		u.CurrentBalance, u.TotalIncome, u.TotalExpenses)
}

func TestAccountantInsert(t *testing.T) {
	var a Accountant
	u := newUser()
	now := time.Now()

	a.ApplyInsert(u, tx(5000, models.TypeIncome), now)
	assert.Equal(t, "5000", u.CurrentBalance.String())
	assert.Equal(t, int64(1), u.TxCount)
	require.NotNil(t, u.LastActivityAt)
	balanceInvariant(t, u)

	a.ApplyInsert(u, tx(1200, models.TypeExpense), now)
	assert.Equal(t, "3800", u.CurrentBalance.String())
	assert.Equal(t, "5000", u.TotalIncome.String())
	assert.Equal(t, "1200", u.TotalExpenses.String())
	assert.Equal(t, int64(2), u.TxCount)
	balanceInvariant(t, u)
}

func TestAccountantTransferOnlyCounts(t *testing.T) {
	var a Accountant
	u := newUser()

	a.ApplyInsert(u, tx(900, models.TypeTransfer), time.Now())
	assert.True(t, u.CurrentBalance.IsZero())
	assert.True(t, u.TotalIncome.IsZero())
	assert.True(t, u.TotalExpenses.IsZero())
	assert.Equal(t, int64(1), u.TxCount)

	a.ApplyRemoval(u, tx(900, models.TypeTransfer))
	assert.Equal(t, int64(0), u.TxCount)
	balanceInvariant(t, u)
}

func TestAccountantSoftDeleteRoundTrip(t *testing.T) {
	var a Accountant
	u := newUser()
	now := time.Now()

	a.ApplyInsert(u, tx(5000, models.TypeIncome), now)
	rent := tx(1200, models.TypeExpense)
	a.ApplyInsert(u, rent, now)
	afterInsert := *u

	a.ApplyRemoval(u, rent)
	assert.Equal(t, "5000", u.CurrentBalance.String())
	assert.Equal(t, int64(1), u.TxCount)
	balanceInvariant(t, u)

	a.ApplyRestore(u, rent, now)
	assert.True(t, u.CurrentBalance.Equal(afterInsert.CurrentBalance))
	assert.True(t, u.TotalIncome.Equal(afterInsert.TotalIncome))
	assert.True(t, u.TotalExpenses.Equal(afterInsert.TotalExpenses))
	assert.Equal(t, afterInsert.TxCount, u.TxCount)
	balanceInvariant(t, u)
}

func TestAccountantInvariantOverMixedSequence(t *testing.T) {
	var a Accountant
	u := newUser()
	now := time.Now()

	ops := []struct {
		amount int64
		ttype  models.TransactionType
	}{
		{5000, models.TypeIncome},
		{1200, models.TypeExpense},
		{300, models.TypeExpense},
		{150, models.TypeTransfer},
		{2500, models.TypeIncome},
	}
	var all []*models.Transaction
	for _, op := range ops {
		tr := tx(op.amount, op.ttype)
		a.ApplyInsert(u, tr, now)
		all = append(all, tr)
		balanceInvariant(t, u)
	}
	for _, tr := range all {
		a.ApplyRemoval(u, tr)
		balanceInvariant(t, u)
	}
	assert.True(t, u.CurrentBalance.IsZero())
	assert.Equal(t, int64(0), u.TxCount)
}
