package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pulso636-cyber/StudentFinanceBot/internal/models"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrVersionConflict is returned when an optimistic write matched no row
	// because another writer got there first. Callers retry the whole unit
	// of work.
	ErrVersionConflict = errors.New("storage: version conflict")
)

// IsUniqueViolation reports whether err is a unique-constraint failure,
// which is how the loser of a concurrent insert race on a unique column
// finds out the row already exists.
func IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// DB wraps a sql.DB connection to the ledger store.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		// BEGIN IMMEDIATE so concurrent units of work queue on the write
		// lock instead of failing mid-transaction.
		dsn += "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// An in-memory database exists per connection; keep the pool at one so
	// every caller sees the same data.
	if strings.Contains(path, ":memory:") {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, err
	}

	return db, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER UNIQUE NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			language_code TEXT NOT NULL DEFAULT '',
			default_currency TEXT NOT NULL DEFAULT 'RUB',
			timezone TEXT NOT NULL DEFAULT 'UTC',
			current_balance TEXT NOT NULL DEFAULT '0',
			total_income TEXT NOT NULL DEFAULT '0',
			total_expenses TEXT NOT NULL DEFAULT '0',
			transaction_count INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			is_premium INTEGER NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			last_activity_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount TEXT NOT NULL,
			type TEXT NOT NULL,
			category TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			currency TEXT NOT NULL,
			account TEXT NOT NULL DEFAULT '',
			transaction_date DATETIME NOT NULL,
			tags TEXT,
			metadata TEXT,
			is_recurring INTEGER NOT NULL DEFAULT 0,
			frequency TEXT NOT NULL DEFAULT '',
			next_occurrence_at DATETIME,
			parent_transaction_id INTEGER,
			is_deleted INTEGER NOT NULL DEFAULT 0,
			deleted_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			CHECK (amount > 0)
		)`,
		`CREATE TABLE IF NOT EXISTS goals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			target_amount TEXT NOT NULL,
			current_amount TEXT NOT NULL DEFAULT '0',
			currency TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL DEFAULT 3,
			status TEXT NOT NULL DEFAULT 'active',
			start_date DATETIME NOT NULL,
			target_date DATETIME,
			completed_at DATETIME,
			icon TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			metadata TEXT,
			version INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			CHECK (target_amount > 0)
		)`,
		`CREATE TABLE IF NOT EXISTS goal_progress (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			goal_id INTEGER NOT NULL REFERENCES goals(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL,
			transaction_id INTEGER,
			amount TEXT NOT NULL,
			type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			progress_date DATETIME NOT NULL,
			metadata TEXT,
			amount_before TEXT NOT NULL,
			amount_after TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			CHECK (amount > 0)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_date
			ON transactions(user_id, transaction_date)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_category
			ON transactions(user_id, category)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_due
			ON transactions(next_occurrence_at) WHERE is_recurring = 1 AND is_deleted = 0`,
		`CREATE INDEX IF NOT EXISTS idx_goals_user_status ON goals(user_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_goal_progress_goal
			ON goal_progress(goal_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Tx is one atomic unit of work. Every mutation of the ledger goes through
// a Tx so that no operation is observable as partially applied.
type Tx struct {
	tx *sql.Tx
}

// RunInTx runs fn inside a transaction, committing on nil and rolling back
// on error.
func (db *DB) RunInTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// querier is satisfied by both *sql.DB and *sql.Tx so reads can run inside
// or outside a unit of work.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ---- users ----

const userColumns = `id, chat_id, username, first_name, last_name, language_code,
	default_currency, timezone, current_balance, total_income, total_expenses,
	transaction_count, is_active, is_premium, version, created_at, updated_at,
	last_activity_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var lastActivity sql.NullTime
	err := row.Scan(
		&u.ID, &u.ChatID, &u.Username, &u.FirstName, &u.LastName, &u.LanguageCode,
		&u.DefaultCurrency, &u.Timezone, &u.CurrentBalance, &u.TotalIncome,
		&u.TotalExpenses, &u.TxCount, &u.IsActive, &u.IsPremium, &u.Version,
		&u.CreatedAt, &u.UpdatedAt, &lastActivity,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastActivity.Valid {
		u.LastActivityAt = &lastActivity.Time
	}
	return &u, nil
}

func getUserByID(ctx context.Context, q querier, id int64) (*models.User, error) {
	return scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetUserByID retrieves a user by internal id.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return getUserByID(ctx, db.conn, id)
}

// GetUserByID retrieves a user by internal id inside the unit of work.
func (t *Tx) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return getUserByID(ctx, t.tx, id)
}

// GetUserByChatID retrieves a user by the external chat identifier.
func (db *DB) GetUserByChatID(ctx context.Context, chatID int64) (*models.User, error) {
	return scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE chat_id = ?`, chatID))
}

// GetUserByChatID retrieves a user by chat id inside the unit of work.
func (t *Tx) GetUserByChatID(ctx context.Context, chatID int64) (*models.User, error) {
	return scanUser(t.tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE chat_id = ?`, chatID))
}

// CreateUser inserts a new user and returns its id.
func (t *Tx) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO users (chat_id, username, first_name, last_name, language_code,
			default_currency, timezone, current_balance, total_income, total_expenses,
			transaction_count, is_active, is_premium, version, created_at, updated_at,
			last_activity_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ChatID, u.Username, u.FirstName, u.LastName, u.LanguageCode,
		u.DefaultCurrency, u.Timezone, u.CurrentBalance, u.TotalIncome,
		u.TotalExpenses, u.TxCount, u.IsActive, u.IsPremium, u.Version,
		u.CreatedAt, u.UpdatedAt, nullTime(u.LastActivityAt),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// TouchUserActivity updates last_activity_at without bumping the version.
func (t *Tx) TouchUserActivity(ctx context.Context, id int64, now time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE users SET last_activity_at = ?, updated_at = ? WHERE id = ?`,
		now, now, id)
	return err
}

// UpdateUserAggregates writes the user's denormalized balance fields guarded
// by the version the caller read. On success the in-memory version is bumped
// to match the stored row; ErrVersionConflict means a concurrent writer won.
func (t *Tx) UpdateUserAggregates(ctx context.Context, u *models.User, now time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE users
		 SET current_balance = ?, total_income = ?, total_expenses = ?,
		     transaction_count = ?, last_activity_at = ?, updated_at = ?,
		     version = version + 1
		 WHERE id = ? AND version = ?`,
		u.CurrentBalance, u.TotalIncome, u.TotalExpenses,
		u.TxCount, nullTime(u.LastActivityAt), now,
		u.ID, u.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	u.Version++
	return nil
}

// ---- transactions ----

const txColumns = `id, user_id, amount, type, category, description, currency,
	account, transaction_date, tags, metadata, is_recurring, frequency,
	next_occurrence_at, parent_transaction_id, is_deleted, deleted_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var tr models.Transaction
	var tags, metadata sql.NullString
	var nextAt, deletedAt sql.NullTime
	var parentID sql.NullInt64
	err := row.Scan(
		&tr.ID, &tr.UserID, &tr.Amount, &tr.Type, &tr.Category, &tr.Description,
		&tr.Currency, &tr.Account, &tr.TransactionDate, &tags, &metadata,
		&tr.IsRecurring, &tr.Frequency, &nextAt, &parentID, &tr.IsDeleted,
		&deletedAt, &tr.CreatedAt, &tr.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if tags.Valid {
		if err := json.Unmarshal([]byte(tags.String), &tr.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &tr.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if nextAt.Valid {
		tr.NextOccurrenceAt = &nextAt.Time
	}
	if parentID.Valid {
		tr.ParentID = &parentID.Int64
	}
	if deletedAt.Valid {
		tr.DeletedAt = &deletedAt.Time
	}
	return &tr, nil
}

// InsertTransaction inserts a transaction row and returns its id.
func (t *Tx) InsertTransaction(ctx context.Context, tr *models.Transaction) (int64, error) {
	tags, err := encodeJSON(tr.Tags, len(tr.Tags) == 0)
	if err != nil {
		return 0, err
	}
	metadata, err := encodeJSON(tr.Metadata, len(tr.Metadata) == 0)
	if err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, amount, type, category, description,
			currency, account, transaction_date, tags, metadata, is_recurring,
			frequency, next_occurrence_at, parent_transaction_id, is_deleted,
			deleted_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.UserID, tr.Amount, tr.Type, tr.Category, tr.Description,
		tr.Currency, tr.Account, tr.TransactionDate, tags, metadata,
		tr.IsRecurring, tr.Frequency, nullTime(tr.NextOccurrenceAt),
		nullInt(tr.ParentID), tr.IsDeleted, nullTime(tr.DeletedAt),
		tr.CreatedAt, tr.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func getTransaction(ctx context.Context, q querier, id int64) (*models.Transaction, error) {
	return scanTransaction(q.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = ?`, id))
}

// GetTransaction retrieves a single transaction by id.
func (db *DB) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	return getTransaction(ctx, db.conn, id)
}

// GetTransaction retrieves a transaction inside the unit of work.
func (t *Tx) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	return getTransaction(ctx, t.tx, id)
}

// SetTransactionDeleted flips the soft-delete flag.
func (t *Tx) SetTransactionDeleted(ctx context.Context, id int64, deleted bool, now time.Time) error {
	var deletedAt any
	if deleted {
		deletedAt = now
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE transactions SET is_deleted = ?, deleted_at = ?, updated_at = ? WHERE id = ?`,
		deleted, deletedAt, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AdvanceNextOccurrence moves a recurring template's due date from expected
// to next. It reports false when the row had already advanced, which is how
// the loser of a concurrent scheduler race detects it must skip.
func (t *Tx) AdvanceNextOccurrence(ctx context.Context, id int64, expected, next time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE transactions
		 SET next_occurrence_at = ?, updated_at = ?
		 WHERE id = ? AND next_occurrence_at = ? AND is_recurring = 1 AND is_deleted = 0`,
		next, next, id, expected)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func listTransactions(ctx context.Context, q querier, query string, args ...any) ([]models.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tr)
	}
	return out, rows.Err()
}

// ListRecentTransactions returns the user's latest live transactions, newest
// first.
func (db *DB) ListRecentTransactions(ctx context.Context, userID int64, limit int) ([]models.Transaction, error) {
	return listTransactions(ctx, db.conn,
		`SELECT `+txColumns+` FROM transactions
		 WHERE user_id = ? AND is_deleted = 0
		 ORDER BY transaction_date DESC, id DESC LIMIT ?`,
		userID, limit)
}

// ListDueRecurring returns recurring live templates of active users whose
// next occurrence is at or before now, oldest due first.
func (db *DB) ListDueRecurring(ctx context.Context, now time.Time, limit int) ([]models.Transaction, error) {
	return listTransactions(ctx, db.conn,
		`SELECT t.id, t.user_id, t.amount, t.type, t.category, t.description,
			t.currency, t.account, t.transaction_date, t.tags, t.metadata,
			t.is_recurring, t.frequency, t.next_occurrence_at,
			t.parent_transaction_id, t.is_deleted, t.deleted_at,
			t.created_at, t.updated_at
		 FROM transactions t JOIN users u ON u.id = t.user_id
		 WHERE t.is_recurring = 1 AND t.is_deleted = 0 AND u.is_active = 1
		   AND t.next_occurrence_at IS NOT NULL AND t.next_occurrence_at <= ?
		 ORDER BY t.next_occurrence_at ASC LIMIT ?`,
		now, limit)
}

// CategoryStats aggregates live transactions by category and type over a
// date range, biggest totals first.
func (db *DB) CategoryStats(ctx context.Context, userID int64, from, to time.Time) ([]models.CategoryStat, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT category, type, CAST(SUM(amount) AS TEXT), COUNT(*)
		 FROM transactions
		 WHERE user_id = ? AND is_deleted = 0
		   AND transaction_date >= ? AND transaction_date <= ?
		 GROUP BY category, type
		 ORDER BY SUM(amount) DESC`,
		userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CategoryStat
	for rows.Next() {
		var s models.CategoryStat
		if err := rows.Scan(&s.Category, &s.Type, &s.Total, &s.Count); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ---- goals ----

const goalColumns = `id, user_id, title, description, target_amount, current_amount,
	currency, category, priority, status, start_date, target_date, completed_at,
	icon, color, metadata, version, created_at, updated_at`

func scanGoal(row rowScanner) (*models.Goal, error) {
	var g models.Goal
	var targetDate, completedAt sql.NullTime
	var metadata sql.NullString
	err := row.Scan(
		&g.ID, &g.UserID, &g.Title, &g.Description, &g.TargetAmount,
		&g.CurrentAmount, &g.Currency, &g.Category, &g.Priority, &g.Status,
		&g.StartDate, &targetDate, &completedAt, &g.Icon, &g.Color, &metadata,
		&g.Version, &g.CreatedAt, &g.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if targetDate.Valid {
		g.TargetDate = &targetDate.Time
	}
	if completedAt.Valid {
		g.CompletedAt = &completedAt.Time
	}
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &g.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &g, nil
}

// InsertGoal inserts a goal row and returns its id.
func (t *Tx) InsertGoal(ctx context.Context, g *models.Goal) (int64, error) {
	metadata, err := encodeJSON(g.Metadata, len(g.Metadata) == 0)
	if err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO goals (user_id, title, description, target_amount,
			current_amount, currency, category, priority, status, start_date,
			target_date, completed_at, icon, color, metadata, version,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.UserID, g.Title, g.Description, g.TargetAmount, g.CurrentAmount,
		g.Currency, g.Category, g.Priority, g.Status, g.StartDate,
		nullTime(g.TargetDate), nullTime(g.CompletedAt), g.Icon, g.Color,
		metadata, g.Version, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func getGoal(ctx context.Context, q querier, id int64) (*models.Goal, error) {
	return scanGoal(q.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = ?`, id))
}

// GetGoal retrieves a goal by id.
func (db *DB) GetGoal(ctx context.Context, id int64) (*models.Goal, error) {
	return getGoal(ctx, db.conn, id)
}

// GetGoal retrieves a goal inside the unit of work.
func (t *Tx) GetGoal(ctx context.Context, id int64) (*models.Goal, error) {
	return getGoal(ctx, t.tx, id)
}

// ListGoals returns all of the user's goals, active ones first, then by
// priority and recency.
func (db *DB) ListGoals(ctx context.Context, userID int64) ([]models.Goal, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+goalColumns+` FROM goals
		 WHERE user_id = ?
		 ORDER BY CASE status WHEN 'active' THEN 0 ELSE 1 END, priority ASC, created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// UpdateGoalState writes current_amount, status and completed_at guarded by
// the version the caller read, bumping it on success.
func (t *Tx) UpdateGoalState(ctx context.Context, g *models.Goal, now time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE goals
		 SET current_amount = ?, status = ?, completed_at = ?, updated_at = ?,
		     version = version + 1
		 WHERE id = ? AND version = ?`,
		g.CurrentAmount, g.Status, nullTime(g.CompletedAt), now,
		g.ID, g.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	g.Version++
	return nil
}

// InsertGoalProgress appends one immutable progress record.
func (t *Tx) InsertGoalProgress(ctx context.Context, p *models.GoalProgress) (int64, error) {
	metadata, err := encodeJSON(p.Metadata, len(p.Metadata) == 0)
	if err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO goal_progress (goal_id, user_id, transaction_id, amount,
			type, description, progress_date, metadata, amount_before,
			amount_after, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.GoalID, p.UserID, nullInt(p.TransactionID), p.Amount, p.Type,
		p.Description, p.ProgressDate, metadata, p.AmountBefore,
		p.AmountAfter, p.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// CountGoalProgress counts contribution and withdrawal events recorded for a
// goal.
func (db *DB) CountGoalProgress(ctx context.Context, goalID int64) (contributions, withdrawals int64, err error) {
	err = db.conn.QueryRowContext(ctx,
		`SELECT
			COUNT(CASE WHEN type = 'contribution' THEN 1 END),
			COUNT(CASE WHEN type = 'withdrawal' THEN 1 END)
		 FROM goal_progress WHERE goal_id = ?`,
		goalID).Scan(&contributions, &withdrawals)
	return contributions, withdrawals, err
}

// ---- helpers ----

func encodeJSON(v any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullInt(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}
