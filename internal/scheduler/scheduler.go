// Package scheduler materializes due recurring transactions on a fixed
// interval. It is safe to run from several instances at once: the ledger's
// claim step guarantees each due occurrence materializes exactly once, and
// the instance that loses a race skips without side effects.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulso636-cyber/StudentFinanceBot/internal/ledger"
	"github.com/pulso636-cyber/StudentFinanceBot/internal/models"
)

// Ledger is the slice of the facade the scheduler drives.
type Ledger interface {
	ListDueRecurringTransactions(ctx context.Context, now time.Time, limit int) ([]models.Transaction, error)
	MaterializeOccurrence(ctx context.Context, templateID int64, now time.Time) (childID int64, claimed bool, err error)
}

// Scheduler sweeps for due recurring templates.
type Scheduler struct {
	ledger   Ledger
	log      zerolog.Logger
	interval time.Duration
	batch    int
	now      func() time.Time
}

// SweepReport summarizes one pass over the due templates.
type SweepReport struct {
	Due          int
	Materialized int
	Skipped      int
	Failed       int
}

// New creates a Scheduler that sweeps every interval, processing at most
// batch due templates per pass.
func New(l Ledger, log zerolog.Logger, interval time.Duration, batch int) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	return &Scheduler{
		ledger:   l,
		log:      log.With().Str("component", "scheduler").Logger(),
		interval: interval,
		batch:    batch,
		now:      time.Now,
	}
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil {
			s.log.Error().Err(err).Msg("sweep failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep processes every template due at the time of the call, oldest due
// first. A failure on one template is logged and does not stop the others;
// only a failure to list the due set aborts the pass.
func (s *Scheduler) Sweep(ctx context.Context) (SweepReport, error) {
	sweepID := uuid.NewString()
	now := s.now()
	log := s.log.With().Str("sweep_id", sweepID).Logger()

	due, err := s.ledger.ListDueRecurringTransactions(ctx, now, s.batch)
	if err != nil {
		return SweepReport{}, err
	}

	report := SweepReport{Due: len(due)}
	for _, tmpl := range due {
		childID, claimed, err := s.ledger.MaterializeOccurrence(ctx, tmpl.ID, now)
		switch {
		case err != nil && errors.Is(err, ledger.ErrNoOp):
			// Template changed under us (deleted, deactivated owner).
			report.Skipped++
		case err != nil:
			report.Failed++
			log.Error().Err(err).
				Int64("template_id", tmpl.ID).
				Msg("materialization failed")
		case !claimed:
			report.Skipped++
		default:
			report.Materialized++
			log.Info().
				Int64("template_id", tmpl.ID).
				Int64("transaction_id", childID).
				Msg("occurrence materialized")
		}
	}

	if report.Due > 0 {
		log.Info().
			Int("due", report.Due).
			Int("materialized", report.Materialized).
			Int("skipped", report.Skipped).
			Int("failed", report.Failed).
			Msg("sweep finished")
	}
	return report, nil
}
