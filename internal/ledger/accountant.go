package ledger

import (
	"time"

	"github.com/pulso636-cyber/StudentFinanceBot/internal/models"
)

// Accountant maintains a user's denormalized aggregates through transaction
// lifecycle transitions. It mutates the in-memory user only; the facade
// persists the result inside the same unit of work, so either both the
// transaction row and the aggregates land or neither does.
//
// The original system did this in storage-side triggers; keeping it as plain
// functions makes the arithmetic testable without a database.
type Accountant struct{}

// ApplyInsert accounts for a new live transaction: the count always grows,
// income and expense totals move by the transaction type's sign, transfers
// touch only the count.
func (Accountant) ApplyInsert(u *models.User, tr *models.Transaction, now time.Time) {
	u.TxCount++
	switch tr.Type {
	case models.TypeIncome:
		u.TotalIncome = u.TotalIncome.Add(tr.Amount)
	case models.TypeExpense:
		u.TotalExpenses = u.TotalExpenses.Add(tr.Amount)
	}
	u.CurrentBalance = u.TotalIncome.Sub(u.TotalExpenses)
	u.LastActivityAt = &now
}

// ApplyRemoval reverses ApplyInsert for a soft-deleted transaction, using
// the transaction's original amount and type.
func (Accountant) ApplyRemoval(u *models.User, tr *models.Transaction) {
	u.TxCount--
	switch tr.Type {
	case models.TypeIncome:
		u.TotalIncome = u.TotalIncome.Sub(tr.Amount)
	case models.TypeExpense:
		u.TotalExpenses = u.TotalExpenses.Sub(tr.Amount)
	}
	u.CurrentBalance = u.TotalIncome.Sub(u.TotalExpenses)
}

// ApplyRestore re-applies a previously soft-deleted transaction.
func (a Accountant) ApplyRestore(u *models.User, tr *models.Transaction, now time.Time) {
	a.ApplyInsert(u, tr, now)
}
