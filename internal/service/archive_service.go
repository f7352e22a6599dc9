package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// ArchiveService copies settled competitions to cold storage once they are
// older than minAge.
type ArchiveService struct {
	archiver domain.Archiver
	minAge   time.Duration
	clock    domain.Clock
	logger   *slog.Logger
}

// NewArchiveService creates an ArchiveService.
func NewArchiveService(archiver domain.Archiver, minAge time.Duration, clock domain.Clock, logger *slog.Logger) *ArchiveService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &ArchiveService{
		archiver: archiver,
		minAge:   minAge,
		clock:    clock,
		logger:   logger.With(slog.String("component", "archive_service")),
	}
}

// Run executes a single archive pass.
func (a *ArchiveService) Run(ctx context.Context) (int64, error) {
	cutoff := a.clock.Now().Add(-a.minAge)
	a.logger.InfoContext(ctx, "starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Duration("min_age", a.minAge),
	)

	n, err := a.archiver.ArchiveSettled(ctx, cutoff)
	if err != nil {
		return n, fmt.Errorf("archive: settled before %v: %w", cutoff, err)
	}

	a.logger.InfoContext(ctx, "archive run complete", slog.Int64("competitions_archived", n))
	return n, nil
}

// RunEvery runs the archiver on a fixed interval until ctx is cancelled.
func (a *ArchiveService) RunEvery(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.Run(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunCron runs the archiver on a 5-field cron schedule until ctx is
// cancelled, for example "0 3 * * *" for 03:00 UTC daily.
func (a *ArchiveService) RunCron(ctx context.Context, cronExpr string) error {
	sched, err := parseCron(cronExpr)
	if err != nil {
		return fmt.Errorf("archive: cron %q: %w", cronExpr, err)
	}
	a.logger.InfoContext(ctx, "archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := sched.next(a.clock.Now())
		if err != nil {
			return fmt.Errorf("archive: cron %q: %w", cronExpr, err)
		}
		wait := next.Sub(a.clock.Now())
		a.logger.DebugContext(ctx, "archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.InfoContext(ctx, "archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if _, err := a.Run(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
