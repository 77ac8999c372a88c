package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Refresher is the periodic job run by the scheduler.
type Refresher interface {
	RefreshSubscriptions(ctx context.Context) error
}

type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

func NewScheduler(refresher Refresher, interval time.Duration, logger *slog.Logger) *Scheduler {
	timeout := interval
	if timeout <= 0 || timeout > 5*time.Minute {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		timeout:   timeout,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start refreshes once immediately and then on every tick until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler: invalid interval %s", s.interval)
	}

	s.logger.Info("scheduler started", "interval", s.interval)

	s.runRefresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runRefresh(ctx)
		}
	}
}

func (s *Scheduler) runRefresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.refresher.RefreshSubscriptions(refreshCtx); err != nil {
		s.logger.Error("refresh failed", "error", err)
		return
	}
	s.logger.Debug("refresh completed", "duration", time.Since(start))
}
