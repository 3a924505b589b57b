package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pulso636-cyber/StudentFinanceBot/internal/models"
	"github.com/pulso636-cyber/StudentFinanceBot/internal/storage"
)

const (
	// maxAttempts bounds optimistic and storage retries per call.
	maxAttempts = 4
	// retryDelay is the base backoff between attempts, doubled each time.
	retryDelay = 25 * time.Millisecond

	defaultCurrency = "RUB"
	defaultTimezone = "UTC"
	defaultPriority = 3
)

// Facade is the only entry point into the ledger. Each operation validates
// its input, then runs as one atomic unit of work with bounded retries on
// optimistic conflicts and transient storage failures.
type Facade struct {
	store      *storage.DB
	log        zerolog.Logger
	accountant Accountant
	tracker    ProgressTracker
	now        func() time.Time
}

// New creates a Facade over the given store.
func New(store *storage.DB, log zerolog.Logger) *Facade {
	return &Facade{
		store: store,
		log:   log.With().Str("component", "ledger").Logger(),
		now:   time.Now,
	}
}

// runUnit executes fn as one unit of work. Version conflicts and storage
// errors retry with backoff up to maxAttempts; business failures and context
// cancellation abort immediately.
func (f *Facade) runUnit(ctx context.Context, fn func(*storage.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return f.deadlineErr(ctx.Err())
			case <-time.After(retryDelay << (attempt - 1)):
			}
		}

		err := f.store.RunInTx(ctx, fn)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			return f.deadlineErr(err)
		case isBusinessFailure(err):
			return err
		case errors.Is(err, storage.ErrVersionConflict):
			lastErr = err
		default:
			lastErr = err
			f.log.Warn().Err(err).Int("attempt", attempt+1).Msg("unit of work failed, retrying")
		}
	}

	if errors.Is(lastErr, storage.ErrVersionConflict) {
		return fmt.Errorf("%w: %v", ErrConflict, lastErr)
	}
	return fmt.Errorf("%w: %v", ErrStorage, lastErr)
}

func (f *Facade) deadlineErr(err error) error {
	return fmt.Errorf("%w: %v", ErrTimeout, err)
}

// isBusinessFailure reports whether err is a typed failure that must not be
// retried.
func isBusinessFailure(err error) bool {
	for _, sentinel := range []error{ErrValidation, ErrNotFound, ErrNoOp, ErrGoalOverflow} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
	}
	return err
}

func validCurrency(code string) bool {
	return money.GetCurrency(strings.ToUpper(code)) != nil
}

// ---- users ----

// UserProfile carries the display attributes supplied by the front-end on
// first contact.
type UserProfile struct {
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
	Currency     string
	Timezone     string
}

// RegisterUser returns the user for the chat id, creating one on first
// contact, and touches last activity either way. The second result reports
// whether a new user was created.
func (f *Facade) RegisterUser(ctx context.Context, chatID int64, profile UserProfile) (*models.User, bool, error) {
	if profile.Currency != "" && !validCurrency(profile.Currency) {
		return nil, false, validationf("unknown currency %q", profile.Currency)
	}

	var user *models.User
	var created bool
	err := f.runUnit(ctx, func(tx *storage.Tx) error {
		user, created = nil, false
		now := f.now()

		existing, err := tx.GetUserByChatID(ctx, chatID)
		if err == nil {
			if err := tx.TouchUserActivity(ctx, existing.ID, now); err != nil {
				return err
			}
			existing.LastActivityAt = &now
			user = existing
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		u := &models.User{
			ChatID:          chatID,
			Username:        profile.Username,
			FirstName:       profile.FirstName,
			LastName:        profile.LastName,
			LanguageCode:    profile.LanguageCode,
			DefaultCurrency: strings.ToUpper(profile.Currency),
			Timezone:        profile.Timezone,
			IsActive:        true,
			CreatedAt:       now,
			UpdatedAt:       now,
			LastActivityAt:  &now,
		}
		if u.DefaultCurrency == "" {
			u.DefaultCurrency = defaultCurrency
		}
		if u.Timezone == "" {
			u.Timezone = defaultTimezone
		}
		id, err := tx.CreateUser(ctx, u)
		if storage.IsUniqueViolation(err) {
			// Lost a first-contact race; the winner's row is already there.
			existing, err := tx.GetUserByChatID(ctx, chatID)
			if err != nil {
				return err
			}
			if err := tx.TouchUserActivity(ctx, existing.ID, now); err != nil {
				return err
			}
			existing.LastActivityAt = &now
			user = existing
			return nil
		}
		if err != nil {
			return err
		}
		u.ID = id
		user, created = u, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		f.log.Info().Int64("user_id", user.ID).Int64("chat_id", chatID).Msg("user registered")
	}
	return user, created, nil
}

// ---- transactions ----

// AddTransactionParams is a validated "record transaction" request.
type AddTransactionParams struct {
	UserID      int64
	Amount      decimal.Decimal
	Type        models.TransactionType
	Category    string
	Description string
	Currency    string
	Account     string
	Date        time.Time
	Tags        []string
	Metadata    map[string]string
	Recurring   bool
	Frequency   models.Frequency
	ParentID    *int64
}

// AddTransactionResult confirms a recorded transaction.
type AddTransactionResult struct {
	TransactionID int64
	NewBalance    decimal.Decimal
}

func (p *AddTransactionParams) validate() error {
	if !p.Amount.IsPositive() {
		return validationf("amount must be positive, got %s", p.Amount)
	}
	if !p.Type.Valid() {
		return validationf("unknown transaction type %q", p.Type)
	}
	if strings.TrimSpace(p.Category) == "" {
		return validationf("category is required")
	}
	if p.Currency != "" && !validCurrency(p.Currency) {
		return validationf("unknown currency %q", p.Currency)
	}
	if p.Recurring && !p.Frequency.Valid() {
		return validationf("recurring transaction requires a frequency")
	}
	if !p.Recurring && p.Frequency != "" {
		return validationf("frequency %q given for a non-recurring transaction", p.Frequency)
	}
	return nil
}

// AddTransaction records a transaction for the user and returns the new
// balance. The transaction row and the aggregate update commit together.
func (f *Facade) AddTransaction(ctx context.Context, p AddTransactionParams) (*AddTransactionResult, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	var result AddTransactionResult
	err := f.runUnit(ctx, func(tx *storage.Tx) error {
		now := f.now()

		user, err := tx.GetUserByID(ctx, p.UserID)
		if err != nil {
			return notFound(err, "user", p.UserID)
		}
		if !user.IsActive {
			return fmt.Errorf("%w: user %d is inactive", ErrNotFound, p.UserID)
		}

		tr := &models.Transaction{
			UserID:          user.ID,
			Amount:          p.Amount,
			Type:            p.Type,
			Category:        strings.TrimSpace(p.Category),
			Description:     p.Description,
			Currency:        strings.ToUpper(p.Currency),
			Account:         p.Account,
			TransactionDate: p.Date,
			Tags:            p.Tags,
			Metadata:        p.Metadata,
			IsRecurring:     p.Recurring,
			Frequency:       p.Frequency,
			ParentID:        p.ParentID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if tr.Currency == "" {
			tr.Currency = user.DefaultCurrency
		}
		if tr.TransactionDate.IsZero() {
			tr.TransactionDate = now
		}
		if tr.IsRecurring {
			next := tr.Frequency.Next(tr.TransactionDate)
			tr.NextOccurrenceAt = &next
		}

		id, err := tx.InsertTransaction(ctx, tr)
		if err != nil {
			return err
		}

		f.accountant.ApplyInsert(user, tr, now)
		if err := tx.UpdateUserAggregates(ctx, user, now); err != nil {
			return err
		}

		result = AddTransactionResult{TransactionID: id, NewBalance: user.CurrentBalance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.log.Info().
		Int64("user_id", p.UserID).
		Int64("transaction_id", result.TransactionID).
		Str("type", string(p.Type)).
		Str("amount", p.Amount.String()).
		Str("category", p.Category).
		Msg("transaction recorded")
	return &result, nil
}

// RemoveTransaction soft-deletes a transaction and reverses its effect on
// the owner's aggregates, returning the new balance. Removing an already
// deleted transaction is ErrNoOp.
func (f *Facade) RemoveTransaction(ctx context.Context, id int64) (decimal.Decimal, error) {
	return f.toggleTransaction(ctx, id, true)
}

// RestoreTransaction undoes a soft delete and re-applies the transaction to
// the owner's aggregates, returning the new balance. Restoring a live
// transaction is ErrNoOp.
func (f *Facade) RestoreTransaction(ctx context.Context, id int64) (decimal.Decimal, error) {
	return f.toggleTransaction(ctx, id, false)
}

func (f *Facade) toggleTransaction(ctx context.Context, id int64, deleted bool) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := f.runUnit(ctx, func(tx *storage.Tx) error {
		now := f.now()

		tr, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return notFound(err, "transaction", id)
		}
		if tr.IsDeleted == deleted {
			return fmt.Errorf("%w: transaction %d", ErrNoOp, id)
		}

		user, err := tx.GetUserByID(ctx, tr.UserID)
		if err != nil {
			return notFound(err, "user", tr.UserID)
		}

		if err := tx.SetTransactionDeleted(ctx, id, deleted, now); err != nil {
			return err
		}
		if deleted {
			f.accountant.ApplyRemoval(user, tr)
		} else {
			f.accountant.ApplyRestore(user, tr, now)
		}
		if err := tx.UpdateUserAggregates(ctx, user, now); err != nil {
			return err
		}

		balance = user.CurrentBalance
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	f.log.Info().
		Int64("transaction_id", id).
		Bool("deleted", deleted).
		Str("new_balance", balance.String()).
		Msg("transaction toggled")
	return balance, nil
}

// ---- goals ----

// CreateGoalParams is a validated "create goal" request.
type CreateGoalParams struct {
	UserID       int64
	Title        string
	Description  string
	TargetAmount decimal.Decimal
	Currency     string
	Category     string
	Priority     int
	StartDate    time.Time
	TargetDate   *time.Time
	Icon         string
	Color        string
	Metadata     map[string]string
}

func (p *CreateGoalParams) validate(now time.Time) error {
	if strings.TrimSpace(p.Title) == "" {
		return validationf("title is required")
	}
	if !p.TargetAmount.IsPositive() {
		return validationf("target amount must be positive, got %s", p.TargetAmount)
	}
	if p.Currency != "" && !validCurrency(p.Currency) {
		return validationf("unknown currency %q", p.Currency)
	}
	if p.Priority != 0 && (p.Priority < 1 || p.Priority > 5) {
		return validationf("priority must be between 1 and 5, got %d", p.Priority)
	}
	start := p.StartDate
	if start.IsZero() {
		start = now
	}
	if p.TargetDate != nil && !p.TargetDate.After(start) {
		return validationf("target date must be after start date")
	}
	return nil
}

// CreateGoal creates an active goal with a zero accumulated amount.
func (f *Facade) CreateGoal(ctx context.Context, p CreateGoalParams) (int64, error) {
	if err := p.validate(f.now()); err != nil {
		return 0, err
	}

	var goalID int64
	err := f.runUnit(ctx, func(tx *storage.Tx) error {
		now := f.now()

		user, err := tx.GetUserByID(ctx, p.UserID)
		if err != nil {
			return notFound(err, "user", p.UserID)
		}
		if !user.IsActive {
			return fmt.Errorf("%w: user %d is inactive", ErrNotFound, p.UserID)
		}

		g := &models.Goal{
			UserID:        user.ID,
			Title:         strings.TrimSpace(p.Title),
			Description:   p.Description,
			TargetAmount:  p.TargetAmount,
			CurrentAmount: decimal.Zero,
			Currency:      strings.ToUpper(p.Currency),
			Category:      p.Category,
			Priority:      p.Priority,
			Status:        models.GoalActive,
			StartDate:     p.StartDate,
			TargetDate:    p.TargetDate,
			Icon:          p.Icon,
			Color:         p.Color,
			Metadata:      p.Metadata,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if g.Currency == "" {
			g.Currency = user.DefaultCurrency
		}
		if g.Priority == 0 {
			g.Priority = defaultPriority
		}
		if g.StartDate.IsZero() {
			g.StartDate = now
		}

		goalID, err = tx.InsertGoal(ctx, g)
		return err
	})
	if err != nil {
		return 0, err
	}

	f.log.Info().
		Int64("user_id", p.UserID).
		Int64("goal_id", goalID).
		Str("target", p.TargetAmount.String()).
		Msg("goal created")
	return goalID, nil
}

// RecordProgressParams is a validated goal progress request. TransactionID
// is a weak reference to the transaction that triggered the event, if any.
type RecordProgressParams struct {
	GoalID        int64
	Amount        decimal.Decimal
	Type          models.ProgressType
	TransactionID *int64
	Description   string
	Metadata      map[string]string
}

// ProgressResult confirms an applied goal progress event.
type ProgressResult struct {
	ProgressID   int64
	Goal         models.Goal
	AmountBefore decimal.Decimal
	AmountAfter  decimal.Decimal
}

// RecordGoalProgress applies one contribution, withdrawal or adjustment to a
// goal. The goal state and the history record commit together, so the
// recorded before/after snapshots always match what was persisted.
func (f *Facade) RecordGoalProgress(ctx context.Context, p RecordProgressParams) (*ProgressResult, error) {
	if !p.Amount.IsPositive() {
		return nil, validationf("amount must be positive, got %s", p.Amount)
	}
	if !p.Type.Valid() {
		return nil, validationf("unknown progress type %q", p.Type)
	}

	var result ProgressResult
	err := f.runUnit(ctx, func(tx *storage.Tx) error {
		now := f.now()

		g, err := tx.GetGoal(ctx, p.GoalID)
		if err != nil {
			return notFound(err, "goal", p.GoalID)
		}

		before, after, err := f.tracker.Apply(g, p.Amount, p.Type, now)
		if err != nil {
			return err
		}
		if err := tx.UpdateGoalState(ctx, g, now); err != nil {
			return err
		}

		record := &models.GoalProgress{
			GoalID:        g.ID,
			UserID:        g.UserID,
			TransactionID: p.TransactionID,
			Amount:        p.Amount,
			Type:          p.Type,
			Description:   p.Description,
			ProgressDate:  now,
			Metadata:      p.Metadata,
			AmountBefore:  before,
			AmountAfter:   after,
			CreatedAt:     now,
		}
		id, err := tx.InsertGoalProgress(ctx, record)
		if err != nil {
			return err
		}

		result = ProgressResult{ProgressID: id, Goal: *g, AmountBefore: before, AmountAfter: after}
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.log.Info().
		Int64("goal_id", p.GoalID).
		Str("type", string(p.Type)).
		Str("amount", p.Amount.String()).
		Str("goal_status", string(result.Goal.Status)).
		Msg("goal progress recorded")
	return &result, nil
}

// ---- recurrence ----

// MaterializeOccurrence turns one due occurrence of a recurring template
// into a real transaction and advances the template's schedule, atomically.
// The claim is a compare-and-swap on the due date: of any number of
// concurrent callers exactly one observes claimed=true and creates the
// child; the rest skip without side effects.
func (f *Facade) MaterializeOccurrence(ctx context.Context, templateID int64, now time.Time) (childID int64, claimed bool, err error) {
	err = f.runUnit(ctx, func(tx *storage.Tx) error {
		childID, claimed = 0, false
		tmpl, err := tx.GetTransaction(ctx, templateID)
		if err != nil {
			return notFound(err, "transaction", templateID)
		}
		if !tmpl.IsRecurring || tmpl.IsDeleted || tmpl.NextOccurrenceAt == nil {
			return fmt.Errorf("%w: transaction %d is not a live recurring template", ErrNoOp, templateID)
		}
		due := *tmpl.NextOccurrenceAt
		if due.After(now) {
			return fmt.Errorf("%w: transaction %d is not due", ErrNoOp, templateID)
		}

		user, err := tx.GetUserByID(ctx, tmpl.UserID)
		if err != nil {
			return notFound(err, "user", tmpl.UserID)
		}
		if !user.IsActive {
			return fmt.Errorf("%w: user %d is inactive", ErrNoOp, tmpl.UserID)
		}

		ok, err := tx.AdvanceNextOccurrence(ctx, templateID, due, tmpl.Frequency.Next(due))
		if err != nil {
			return err
		}
		if !ok {
			// Another scheduler pass already advanced the template.
			return nil
		}
		claimed = true

		// The materialized occurrence is a plain one-off child; the
		// template alone carries the schedule forward.
		child := &models.Transaction{
			UserID:          tmpl.UserID,
			Amount:          tmpl.Amount,
			Type:            tmpl.Type,
			Category:        tmpl.Category,
			Description:     tmpl.Description,
			Currency:        tmpl.Currency,
			Account:         tmpl.Account,
			TransactionDate: due,
			Tags:            tmpl.Tags,
			Metadata:        tmpl.Metadata,
			ParentID:        &tmpl.ID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		childID, err = tx.InsertTransaction(ctx, child)
		if err != nil {
			return err
		}

		f.accountant.ApplyInsert(user, child, now)
		return tx.UpdateUserAggregates(ctx, user, now)
	})
	if err != nil {
		return 0, false, err
	}
	if claimed {
		f.log.Info().
			Int64("template_id", templateID).
			Int64("transaction_id", childID).
			Msg("recurring occurrence materialized")
	}
	return childID, claimed, nil
}

// ListDueRecurringTransactions returns recurring templates due at or before
// now, oldest first.
func (f *Facade) ListDueRecurringTransactions(ctx context.Context, now time.Time, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	return f.store.ListDueRecurring(ctx, now, limit)
}

// ---- read queries ----

// Balance is a user's aggregate snapshot.
type Balance struct {
	Balance  decimal.Decimal
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Count    int64
	Currency string
}

// GetBalance returns the user's current aggregates.
func (f *Facade) GetBalance(ctx context.Context, userID int64) (*Balance, error) {
	u, err := f.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	return &Balance{
		Balance:  u.CurrentBalance,
		Income:   u.TotalIncome,
		Expenses: u.TotalExpenses,
		Count:    u.TxCount,
		Currency: u.DefaultCurrency,
	}, nil
}

// GoalSummary describes a goal's standing.
type GoalSummary struct {
	Goal            models.Goal
	ProgressPercent decimal.Decimal
	Remaining       decimal.Decimal
	Contributions   int64
	Withdrawals     int64
}

// GetGoalSummary returns a goal with derived progress figures and event
// counts.
func (f *Facade) GetGoalSummary(ctx context.Context, goalID int64) (*GoalSummary, error) {
	g, err := f.store.GetGoal(ctx, goalID)
	if err != nil {
		return nil, notFound(err, "goal", goalID)
	}
	contributions, withdrawals, err := f.store.CountGoalProgress(ctx, goalID)
	if err != nil {
		return nil, err
	}
	return &GoalSummary{
		Goal:            *g,
		ProgressPercent: g.ProgressPercent(),
		Remaining:       g.Remaining(),
		Contributions:   contributions,
		Withdrawals:     withdrawals,
	}, nil
}

// ListGoals returns all of the user's goals, active ones first.
func (f *Facade) ListGoals(ctx context.Context, userID int64) ([]models.Goal, error) {
	if _, err := f.store.GetUserByID(ctx, userID); err != nil {
		return nil, notFound(err, "user", userID)
	}
	return f.store.ListGoals(ctx, userID)
}

// ListRecentTransactions returns the user's latest live transactions.
func (f *Facade) ListRecentTransactions(ctx context.Context, userID int64, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	if _, err := f.store.GetUserByID(ctx, userID); err != nil {
		return nil, notFound(err, "user", userID)
	}
	return f.store.ListRecentTransactions(ctx, userID, limit)
}

// CategoryStats returns per-category totals over live transactions in the
// date range.
func (f *Facade) CategoryStats(ctx context.Context, userID int64, from, to time.Time) ([]models.CategoryStat, error) {
	if _, err := f.store.GetUserByID(ctx, userID); err != nil {
		return nil, notFound(err, "user", userID)
	}
	return f.store.CategoryStats(ctx, userID, from, to)
}
