package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pulso636-cyber/StudentFinanceBot/internal/models"
)

// ProgressTracker applies contribution, withdrawal and adjustment events to
// a goal's accumulated amount. Like the Accountant it mutates in memory
// only; the facade persists the goal and the history record together.
type ProgressTracker struct{}

// Apply computes the goal's new accumulated amount and returns the
// before/after snapshot pair that must be written to the history record.
//
// Contributions add, withdrawals subtract (floored at zero, matching the
// source system), adjustments set the amount absolutely. Any event that
// would push the amount past the overshoot cap (1.5x target) is rejected
// with ErrGoalOverflow before the goal is touched. A contribution that
// reaches the target completes an active goal; completion is one-way, a
// later withdrawal does not reopen it.
func (ProgressTracker) Apply(g *models.Goal, amount decimal.Decimal, ptype models.ProgressType, now time.Time) (before, after decimal.Decimal, err error) {
	before = g.CurrentAmount

	switch ptype {
	case models.ProgressContribution:
		after = before.Add(amount)
	case models.ProgressWithdrawal:
		after = before.Sub(amount)
		if after.IsNegative() {
			after = decimal.Zero
		}
	case models.ProgressAdjustment:
		after = amount
	default:
		return decimal.Zero, decimal.Zero, validationf("unknown progress type %q", ptype)
	}

	ceiling := g.TargetAmount.Mul(models.OvershootCap)
	if after.GreaterThan(ceiling) {
		return decimal.Zero, decimal.Zero, ErrGoalOverflow
	}

	g.CurrentAmount = after
	if ptype == models.ProgressContribution &&
		g.Status == models.GoalActive &&
		after.GreaterThanOrEqual(g.TargetAmount) {
		g.Status = models.GoalCompleted
		g.CompletedAt = &now
	}
	return before, after, nil
}
