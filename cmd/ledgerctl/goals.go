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

type goalCmd struct {
	userID     int64
	title      string
	target     string
	currency   string
	targetDate string
	priority   int
}

func (*goalCmd) Name() string     { return "goal" }
func (*goalCmd) Synopsis() string { return "create a savings goal" }
func (*goalCmd) Usage() string {
	return "ledgerctl goal -user <id> -title <t> -target <amount> [-date YYYY-MM-DD] [-priority 1..5]\n"
}

func (c *goalCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.userID, "user", 0, "User id")
	f.StringVar(&c.title, "title", "", "Goal title")
	f.StringVar(&c.target, "target", "", "Target amount, must be positive")
	f.StringVar(&c.currency, "currency", "", "Currency code (defaults to the user's)")
	f.StringVar(&c.targetDate, "date", "", "Target date, YYYY-MM-DD")
	f.IntVar(&c.priority, "priority", 0, "Priority 1 (highest) to 5")
}

func (c *goalCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	target, err := decimal.NewFromString(c.target)
	if err != nil {
		return fail(fmt.Errorf("parse target %q: %w", c.target, err))
	}
	params := ledger.CreateGoalParams{
		UserID:       c.userID,
		Title:        c.title,
		TargetAmount: target,
		Currency:     c.currency,
		Priority:     c.priority,
	}
	if c.targetDate != "" {
		d, err := time.Parse(dateFormat, c.targetDate)
		if err != nil {
			return fail(fmt.Errorf("parse date %q: %w", c.targetDate, err))
		}
		params.TargetDate = &d
	}

	facade, db, err := openFacade()
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	id, err := facade.CreateGoal(ctx, params)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Goal %d created\n", id)
	return subcommands.ExitSuccess
}

type progressCmd struct {
	goalID int64
	amount string
	ptype  string
	txID   int64
	desc   string
}

func (*progressCmd) Name() string     { return "progress" }
func (*progressCmd) Synopsis() string { return "apply a goal contribution, withdrawal or adjustment" }
func (*progressCmd) Usage() string {
	return "ledgerctl progress -goal <id> -amount <n> [-type contribution|withdrawal|adjustment] [-tx <transaction-id>]\n"
}

func (c *progressCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.goalID, "goal", 0, "Goal id")
	f.StringVar(&c.amount, "amount", "", "Amount, must be positive")
	f.StringVar(&c.ptype, "type", "contribution", "Progress type")
	f.Int64Var(&c.txID, "tx", 0, "Triggering transaction id, optional")
	f.StringVar(&c.desc, "desc", "", "Description")
}

func (c *progressCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, err := decimal.NewFromString(c.amount)
	if err != nil {
		return fail(fmt.Errorf("parse amount %q: %w", c.amount, err))
	}
	params := ledger.RecordProgressParams{
		GoalID:      c.goalID,
		Amount:      amount,
		Type:        models.ProgressType(c.ptype),
		Description: c.desc,
	}
	if c.txID != 0 {
		params.TransactionID = &c.txID
	}

	facade, db, err := openFacade()
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	res, err := facade.RecordGoalProgress(ctx, params)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Goal %d: %s -> %s (%s)\n",
		c.goalID, res.AmountBefore, res.AmountAfter, res.Goal.Status)
	return subcommands.ExitSuccess
}

type goalsCmd struct {
	userID int64
}

func (*goalsCmd) Name() string     { return "goals" }
func (*goalsCmd) Synopsis() string { return "list a user's goals" }
func (*goalsCmd) Usage() string    { return "ledgerctl goals -user <id>\n" }

func (c *goalsCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.userID, "user", 0, "User id")
}

func (c *goalsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	facade, db, err := openFacade()
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	goals, err := facade.ListGoals(ctx, c.userID)
	if err != nil {
		return fail(err)
	}
	for _, g := range goals {
		fmt.Printf("%d  %-20s  %s / %s %s  (%s%%) [%s]\n",
			g.ID, g.Title, g.CurrentAmount, g.TargetAmount, g.Currency,
			g.ProgressPercent().Round(1), g.Status)
	}
	return subcommands.ExitSuccess
}

type summaryCmd struct {
	goalID int64
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "print a goal's standing" }
func (*summaryCmd) Usage() string    { return "ledgerctl summary -goal <id>\n" }

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.goalID, "goal", 0, "Goal id")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	facade, db, err := openFacade()
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	s, err := facade.GetGoalSummary(ctx, c.goalID)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("%s: %s / %s %s (%s%%, %s remaining, %d contributions, %d withdrawals) [%s]\n",
		s.Goal.Title, s.Goal.CurrentAmount, s.Goal.TargetAmount, s.Goal.Currency,
		s.ProgressPercent.Round(1), s.Remaining, s.Contributions, s.Withdrawals, s.Goal.Status)
	return subcommands.ExitSuccess
}
