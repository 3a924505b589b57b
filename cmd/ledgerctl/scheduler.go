package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"

	"github.com/pulso636-cyber/StudentFinanceBot/internal/logger"
	"github.com/pulso636-cyber/StudentFinanceBot/internal/scheduler"
)

type dueCmd struct {
	limit int
}

func (*dueCmd) Name() string     { return "due" }
func (*dueCmd) Synopsis() string { return "list recurring templates that are due" }
func (*dueCmd) Usage() string    { return "ledgerctl due [-limit <n>]\n" }

func (c *dueCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "limit", 100, "Maximum templates to list")
}

func (c *dueCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	facade, db, err := openFacade()
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	due, err := facade.ListDueRecurringTransactions(ctx, time.Now(), c.limit)
	if err != nil {
		return fail(err)
	}
	for _, t := range due {
		fmt.Printf("%d  user %d  %s %s  %s  due %s\n",
			t.ID, t.UserID, t.Amount, t.Currency, t.Frequency,
			t.NextOccurrenceAt.Format(dateFormat))
	}
	return subcommands.ExitSuccess
}

type sweepCmd struct{}

func (*sweepCmd) Name() string             { return "sweep" }
func (*sweepCmd) Synopsis() string         { return "materialize all due recurring transactions once" }
func (*sweepCmd) Usage() string            { return "ledgerctl sweep\n" }
func (*sweepCmd) SetFlags(_ *flag.FlagSet) {}

func (c *sweepCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	facade, db, err := openFacade()
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	s := scheduler.New(facade, logger.New(), 0, 0)
	report, err := s.Sweep(ctx)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Sweep: %d due, %d materialized, %d skipped, %d failed\n",
		report.Due, report.Materialized, report.Skipped, report.Failed)
	return subcommands.ExitSuccess
}

type runCmd struct {
	interval time.Duration
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run the recurrence scheduler until interrupted" }
func (*runCmd) Usage() string    { return "ledgerctl run [-interval <duration>]\n" }

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.interval, "interval", 5*time.Minute, "Time between sweeps")
}

func (c *runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	facade, db, err := openFacade()
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	s := scheduler.New(facade, logger.New(), c.interval, 0)
	if err := s.Run(ctx); err != nil && ctx.Err() == nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}
