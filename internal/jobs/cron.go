// Package jobs runs the background schedules: currently the hourly interview
// reminder sweep. It wraps robfig/cron so main owns a single Start/Stop pair
// and individual jobs stay plain functions.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Sweeper is the slice of ReminderService the scheduler needs.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Scheduler owns the cron runner and its registered jobs.
type Scheduler struct {
	cron *cron.Cron
}

// New builds a scheduler with the reminder sweep registered on spec
// (cron syntax, e.g. "0 * * * *" or "@hourly"). Each run is bounded by
// timeout so a wedged mail relay cannot pile up overlapping sweeps.
func New(spec string, sweeper Sweeper, timeout time.Duration) (*Scheduler, error) {
	if spec == "" {
		spec = "@hourly"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		n, err := sweeper.Sweep(ctx)
		if err != nil {
			log.Error().Err(err).Msg("reminder sweep failed")
			return
		}
		log.Info().
			Int("processed", n).
			Dur("took", time.Since(start)).
			Msg("reminder sweep complete")
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: c}, nil
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
