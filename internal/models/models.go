package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a transaction.
type TransactionType string

const (
	TypeIncome   TransactionType = "income"
	TypeExpense  TransactionType = "expense"
	TypeTransfer TransactionType = "transfer"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeTransfer:
		return true
	}
	return false
}

// Frequency is how often a recurring transaction repeats.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// Next returns the occurrence that follows from. Monthly and yearly steps
// move by calendar month/year; when the source day does not exist in the
// target month the date normalizes forward (Jan 31 -> Mar 3), which is the
// time.AddDate convention.
func (f Frequency) Next(from time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	case FrequencyYearly:
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 0, 1)
}

// GoalStatus is the lifecycle state of a savings goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalCancelled GoalStatus = "cancelled"
	GoalPaused    GoalStatus = "paused"
)

// ProgressType classifies a goal progress event.
type ProgressType string

const (
	ProgressContribution ProgressType = "contribution"
	ProgressWithdrawal   ProgressType = "withdrawal"
	ProgressAdjustment   ProgressType = "adjustment"
)

// Valid reports whether p is a known progress type.
func (p ProgressType) Valid() bool {
	switch p {
	case ProgressContribution, ProgressWithdrawal, ProgressAdjustment:
		return true
	}
	return false
}

// User is an account owner. The balance fields are denormalized aggregates
// maintained exclusively by the ledger; CurrentBalance always equals
// TotalIncome minus TotalExpenses over non-deleted transactions. Version
// increments on every aggregate write and backs optimistic concurrency.
type User struct {
	ID              int64           `json:"id"`
	ChatID          int64           `json:"chat_id"`
	Username        string          `json:"username,omitempty"`
	FirstName       string          `json:"first_name,omitempty"`
	LastName        string          `json:"last_name,omitempty"`
	LanguageCode    string          `json:"language_code,omitempty"`
	DefaultCurrency string          `json:"default_currency"`
	Timezone        string          `json:"timezone"`
	CurrentBalance  decimal.Decimal `json:"current_balance"`
	TotalIncome     decimal.Decimal `json:"total_income"`
	TotalExpenses   decimal.Decimal `json:"total_expenses"`
	TxCount         int64           `json:"transaction_count"`
	IsActive        bool            `json:"is_active"`
	IsPremium       bool            `json:"is_premium"`
	Version         int64           `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	LastActivityAt  *time.Time      `json:"last_activity_at,omitempty"`
}

// Transaction is a single ledger entry. Soft-deleted entries keep their row
// but stop counting toward the owner's aggregates. ParentID links a
// materialized occurrence back to its recurring template; it is a plain
// identifier, not an ownership edge.
type Transaction struct {
	ID               int64             `json:"id"`
	UserID           int64             `json:"user_id"`
	Amount           decimal.Decimal   `json:"amount"`
	Type             TransactionType   `json:"type"`
	Category         string            `json:"category"`
	Description      string            `json:"description,omitempty"`
	Currency         string            `json:"currency"`
	Account          string            `json:"account,omitempty"`
	TransactionDate  time.Time         `json:"transaction_date"`
	Tags             []string          `json:"tags,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	IsRecurring      bool              `json:"is_recurring"`
	Frequency        Frequency         `json:"frequency,omitempty"`
	NextOccurrenceAt *time.Time        `json:"next_occurrence_at,omitempty"`
	ParentID         *int64            `json:"parent_transaction_id,omitempty"`
	IsDeleted        bool              `json:"is_deleted"`
	DeletedAt        *time.Time        `json:"deleted_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Goal is a savings target. CurrentAmount is mutated only through progress
// events and may overshoot TargetAmount up to OvershootCap times.
type Goal struct {
	ID            int64             `json:"id"`
	UserID        int64             `json:"user_id"`
	Title         string            `json:"title"`
	Description   string            `json:"description,omitempty"`
	TargetAmount  decimal.Decimal   `json:"target_amount"`
	CurrentAmount decimal.Decimal   `json:"current_amount"`
	Currency      string            `json:"currency"`
	Category      string            `json:"category,omitempty"`
	Priority      int               `json:"priority,omitempty"`
	Status        GoalStatus        `json:"status"`
	StartDate     time.Time         `json:"start_date"`
	TargetDate    *time.Time        `json:"target_date,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	Icon          string            `json:"icon,omitempty"`
	Color         string            `json:"color,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Version       int64             `json:"-"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// OvershootCap caps CurrentAmount at 1.5x TargetAmount.
var OvershootCap = decimal.NewFromFloat(1.5)

// ProgressPercent is CurrentAmount over TargetAmount as a percentage.
func (g *Goal) ProgressPercent() decimal.Decimal {
	if g.TargetAmount.IsZero() {
		return decimal.Zero
	}
	return g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100))
}

// Remaining is the amount still missing to reach the target, never negative.
func (g *Goal) Remaining() decimal.Decimal {
	r := g.TargetAmount.Sub(g.CurrentAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// GoalProgress is one append-only goal history entry. AmountBefore and
// AmountAfter snapshot the goal's accumulated amount around this event and
// are never rewritten. TransactionID is a weak reference: the transaction
// that triggered the event may be deleted without touching this record.
type GoalProgress struct {
	ID            int64             `json:"id"`
	GoalID        int64             `json:"goal_id"`
	UserID        int64             `json:"user_id"`
	TransactionID *int64            `json:"transaction_id,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	Type          ProgressType      `json:"type"`
	Description   string            `json:"description,omitempty"`
	ProgressDate  time.Time         `json:"progress_date"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	AmountBefore  decimal.Decimal   `json:"goal_amount_before"`
	AmountAfter   decimal.Decimal   `json:"goal_amount_after"`
	CreatedAt     time.Time         `json:"created_at"`
}

// CategoryStat is an aggregated per-category total over live transactions.
type CategoryStat struct {
	Category string          `json:"category"`
	Type     TransactionType `json:"type"`
	Total    decimal.Decimal `json:"total"`
	Count    int64           `json:"count"`
}
