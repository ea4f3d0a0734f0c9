// Package sweeper periodically clears OTP challenges that can no longer be
// redeemed. Verification checks expiry on its own; this only keeps the
// users table tidy.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/notes-api/internal/metrics"
	"github.com/robfig/cron/v3"
)

type challengeStore interface {
	SweepExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}

type Sweeper struct {
	store    challengeStore
	logger   *slog.Logger
	schedule string
	now      func() time.Time
}

func New(store challengeStore, logger *slog.Logger, schedule string) *Sweeper {
	return &Sweeper{
		store:    store,
		logger:   logger.With("component", "sweeper"),
		schedule: schedule,
		now:      time.Now,
	}
}

// Start runs Sweep on the cron schedule until ctx is cancelled, then waits
// for an in-flight run to finish.
func (s *Sweeper) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, func() { _, _ = s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", s.schedule, err)
	}

	c.Start()
	s.logger.Info("sweeper started", "schedule", s.schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("sweeper shut down")
	return nil
}

// Sweep clears every challenge that has expired by now.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	n, err := s.store.SweepExpiredChallenges(ctx, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep expired challenges", "error", err)
		return 0, err
	}
	metrics.ChallengesSweptTotal.Add(float64(n))
	if n > 0 {
		s.logger.InfoContext(ctx, "swept expired challenges", "count", n)
	}
	return n, nil
}
