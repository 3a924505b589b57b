// ledgerctl drives the ledger from the command line: it registers users,
// records transactions and goal progress, and runs the recurrence scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"

	"github.com/pulso636-cyber/StudentFinanceBot/internal/ledger"
	"github.com/pulso636-cyber/StudentFinanceBot/internal/logger"
	"github.com/pulso636-cyber/StudentFinanceBot/internal/storage"
)

var dbPath = flag.String("db", "ledger.db", "Path to database file ($DB_PATH overrides the default)")

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")

	subcommands.Register(&registerCmd{}, "users")
	subcommands.Register(&balanceCmd{}, "users")

	subcommands.Register(&addCmd{}, "transactions")
	subcommands.Register(&removeCmd{restore: false}, "transactions")
	subcommands.Register(&removeCmd{restore: true}, "transactions")
	subcommands.Register(&recentCmd{}, "transactions")
	subcommands.Register(&statsCmd{}, "transactions")

	subcommands.Register(&goalCmd{}, "goals")
	subcommands.Register(&goalsCmd{}, "goals")
	subcommands.Register(&progressCmd{}, "goals")
	subcommands.Register(&summaryCmd{}, "goals")

	subcommands.Register(&dueCmd{}, "scheduler")
	subcommands.Register(&sweepCmd{}, "scheduler")
	subcommands.Register(&runCmd{}, "scheduler")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(int(subcommands.Execute(ctx)))
}

// openFacade opens the store and builds the facade over it. The caller
// closes the returned store.
func openFacade() (*ledger.Facade, *storage.DB, error) {
	path := *dbPath
	if env := os.Getenv("DB_PATH"); env != "" && path == "ledger.db" {
		path = env
	}
	db, err := storage.NewDB(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return ledger.New(db, logger.New()), db, nil
}

// fail prints err and returns the failure exit status.
func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, "Error:", err)
	return subcommands.ExitFailure
}
