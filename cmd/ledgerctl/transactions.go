package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/pulso636-cyber/StudentFinanceBot/internal/ledger"
	"github.com/pulso636-cyber/StudentFinanceBot/internal/models"
)

const dateFormat = "2006-01-02"

type registerCmd struct {
	chatID    int64
	username  string
	firstName string
	currency  string
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "get or create the user for a chat id" }
func (*registerCmd) Usage() string {
	return "ledgerctl register -chat <id> [-username <name>] [-currency <code>]\n"
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.chatID, "chat", 0, "External chat identifier")
	f.StringVar(&c.username, "username", "", "Username")
	f.StringVar(&c.firstName, "first", "", "First name")
	f.StringVar(&c.currency, "currency", "", "Default currency code")
}

func (c *registerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	facade, db, err := openFacade()
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	user, created, err := facade.RegisterUser(ctx, c.chatID, ledger.UserProfile{
		Username:  c.username,
		FirstName: c.firstName,
		Currency:  c.currency,
	})
	if err != nil {
		return fail(err)
	}
	if created {
		fmt.Printf("User %d created for chat %d\n", user.ID, user.ChatID)
	} else {
		fmt.Printf("User %d already registered for chat %d\n", user.ID, user.ChatID)
	}
	return subcommands.ExitSuccess
}

type addCmd struct {
	userID   int64
	amount   string
	txType   string
	category string
	desc     string
	currency string
	date     string
	recur    string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a transaction and print the new balance" }
func (*addCmd) Usage() string {
	return "ledgerctl add -user <id> -amount <n> -type income|expense|transfer -category <c> [-recur daily|weekly|monthly|yearly]\n"
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.userID, "user", 0, "User id")
	f.StringVar(&c.amount, "amount", "", "Amount, must be positive")
	f.StringVar(&c.txType, "type", "expense", "Transaction type")
	f.StringVar(&c.category, "category", "", "Category label")
	f.StringVar(&c.desc, "desc", "", "Description")
	f.StringVar(&c.currency, "currency", "", "Currency code (defaults to the user's)")
	f.StringVar(&c.date, "date", "", "Transaction date, YYYY-MM-DD (defaults to now)")
	f.StringVar(&c.recur, "recur", "", "Recurring frequency, empty for one-off")
}

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, err := decimal.NewFromString(c.amount)
	if err != nil {
		return fail(fmt.Errorf("parse amount %q: %w", c.amount, err))
	}
	params := ledger.AddTransactionParams{
		UserID:      c.userID,
		Amount:      amount,
		Type:        models.TransactionType(c.txType),
		Category:    c.category,
		Description: c.desc,
		Currency:    c.currency,
		Recurring:   c.recur != "",
		Frequency:   models.Frequency(c.recur),
	}
	if c.date != "" {
		d, err := time.Parse(dateFormat, c.date)
		if err != nil {
			return fail(fmt.Errorf("parse date %q: %w", c.date, err))
		}
		params.Date = d
	}

	facade, db, err := openFacade()
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	res, err := facade.AddTransaction(ctx, params)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Transaction %d recorded, balance %s\n", res.TransactionID, res.NewBalance)
	return subcommands.ExitSuccess
}

type removeCmd struct {
	restore bool
	id      int64
}

func (c *removeCmd) Name() string {
	if c.restore {
		return "restore"
	}
	return "remove"
}

func (c *removeCmd) Synopsis() string {
	if c.restore {
		return "restore a soft-deleted transaction"
	}
	return "soft-delete a transaction"
}

func (c *removeCmd) Usage() string {
	return fmt.Sprintf("ledgerctl %s -id <transaction-id>\n", c.Name())
}

func (c *removeCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Transaction id")
}

func (c *removeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	facade, db, err := openFacade()
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	var balance decimal.Decimal
	if c.restore {
		balance, err = facade.RestoreTransaction(ctx, c.id)
	} else {
		balance, err = facade.RemoveTransaction(ctx, c.id)
	}
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Transaction %d %sd, balance %s\n", c.id, c.Name(), balance)
	return subcommands.ExitSuccess
}

type balanceCmd struct {
	userID int64
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "print a user's aggregates" }
func (*balanceCmd) Usage() string    { return "ledgerctl balance -user <id>\n" }

func (c *balanceCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.userID, "user", 0, "User id")
}

func (c *balanceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	facade, db, err := openFacade()
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	b, err := facade.GetBalance(ctx, c.userID)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Balance: %s %s (income %s, expenses %s, %d transactions)\n",
		b.Balance, b.Currency, b.Income, b.Expenses, b.Count)
	return subcommands.ExitSuccess
}

type statsCmd struct {
	userID int64
	from   string
	to     string
}

func (*statsCmd) Name() string     { return "stats" }
func (*statsCmd) Synopsis() string { return "print per-category totals over a date range" }
func (*statsCmd) Usage() string {
	return "ledgerctl stats -user <id> [-from YYYY-MM-DD] [-to YYYY-MM-DD]\n"
}

func (c *statsCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.userID, "user", 0, "User id")
	f.StringVar(&c.from, "from", "", "Range start, YYYY-MM-DD (default 30 days ago)")
	f.StringVar(&c.to, "to", "", "Range end, YYYY-MM-DD (default now)")
}

func (c *statsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	to := time.Now()
	from := to.AddDate(0, 0, -30)
	var err error
	if c.from != "" {
		if from, err = time.Parse(dateFormat, c.from); err != nil {
			return fail(fmt.Errorf("parse from %q: %w", c.from, err))
		}
	}
	if c.to != "" {
		if to, err = time.Parse(dateFormat, c.to); err != nil {
			return fail(fmt.Errorf("parse to %q: %w", c.to, err))
		}
	}

	facade, db, err := openFacade()
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	stats, err := facade.CategoryStats(ctx, c.userID, from, to)
	if err != nil {
		return fail(err)
	}
	for _, s := range stats {
		fmt.Printf("%-20s  %-8s  %10s  (%d)\n", s.Category, s.Type, s.Total, s.Count)
	}
	return subcommands.ExitSuccess
}

type recentCmd struct {
	userID int64
	limit  int
}

func (*recentCmd) Name() string     { return "recent" }
func (*recentCmd) Synopsis() string { return "list a user's latest transactions" }
func (*recentCmd) Usage() string    { return "ledgerctl recent -user <id> [-limit <n>]\n" }

func (c *recentCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.userID, "user", 0, "User id")
	f.IntVar(&c.limit, "limit", 10, "Number of transactions")
}

func (c *recentCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	facade, db, err := openFacade()
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	list, err := facade.ListRecentTransactions(ctx, c.userID, c.limit)
	if err != nil {
		return fail(err)
	}
	for _, t := range list {
		fmt.Printf("%d  %s  %-8s  %10s %s  %s\n",
			t.ID, t.TransactionDate.Format(dateFormat), t.Type, t.Amount, t.Currency, t.Category)
	}
	return subcommands.ExitSuccess
}
