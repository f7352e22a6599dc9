package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// sweepBatch bounds how many open competitions one sweep inspects per page.
const sweepBatch = 200

// StatusSyncer is the subset of BettingService the sweeper drives.
type StatusSyncer interface {
	SyncStatus(ctx context.Context, competitionID string) (domain.Competition, error)
}

// StatusSweeper periodically persists clock-driven status transitions so
// listings and notifications reflect them without waiting for a bet. The
// engine never depends on it: every operation derives the status itself.
type StatusSweeper struct {
	svc      StatusSyncer
	store    domain.Transactor
	clock    domain.Clock
	interval time.Duration
	logger   *slog.Logger
}

// NewStatusSweeper creates a StatusSweeper. The store is read directly so
// the stored status, not the derived one, decides what needs syncing.
func NewStatusSweeper(svc StatusSyncer, store domain.Transactor, clock domain.Clock, interval time.Duration, logger *slog.Logger) *StatusSweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &StatusSweeper{
		svc:      svc,
		store:    store,
		clock:    clock,
		interval: interval,
		logger:   logger.With(slog.String("component", "status_sweeper")),
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (w *StatusSweeper) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "status sweeper started", slog.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "status sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.SweepOnce(ctx)
			if err != nil {
				w.logger.ErrorContext(ctx, "status sweep failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				w.logger.InfoContext(ctx, "status sweep complete", slog.Int("transitions", n))
			}
		}
	}
}

// SweepOnce syncs every upcoming or active competition whose derived status
// has moved on. It returns the number of transitions persisted.
func (w *StatusSweeper) SweepOnce(ctx context.Context) (int, error) {
	filter := domain.CompetitionFilter{
		Statuses: []domain.CompetitionStatus{domain.CompetitionStatusUpcoming, domain.CompetitionStatusActive},
	}

	var stale []string
	now := w.clock.Now()
	for offset := 0; ; offset += sweepBatch {
		var page []domain.Competition
		err := w.store.View(ctx, func(ctx context.Context, tx domain.Tx) error {
			l, err := tx.Competitions().List(ctx, filter, domain.ListOpts{Limit: sweepBatch, Offset: offset})
			page = l
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("sweeper: list open competitions: %w", err)
		}
		for _, c := range page {
			if domain.StatusAt(c, now) != c.Status {
				stale = append(stale, c.ID)
			}
		}
		if len(page) < sweepBatch {
			break
		}
	}

	synced := 0
	for _, id := range stale {
		if _, err := w.svc.SyncStatus(ctx, id); err != nil {
			w.logger.WarnContext(ctx, "status sync failed",
				slog.String("competition_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		synced++
	}
	return synced, nil
}
