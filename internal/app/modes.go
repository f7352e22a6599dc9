package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/alanyoungcy/tokenbet/internal/blob/s3"
	"github.com/alanyoungcy/tokenbet/internal/crypto"
	"github.com/alanyoungcy/tokenbet/internal/server"
	"github.com/alanyoungcy/tokenbet/internal/server/handler"
	"github.com/alanyoungcy/tokenbet/internal/server/ws"
	"github.com/alanyoungcy/tokenbet/internal/service"
)

// ServerMode serves the HTTP API and the websocket event stream.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies, svc *service.BettingService) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, svc)
	return g.Wait()
}

// SweeperMode persists clock-driven status transitions.
func (a *App) SweeperMode(ctx context.Context, deps *Dependencies, svc *service.BettingService) error {
	a.logger.InfoContext(ctx, "starting sweeper mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startSweeper(ctx, g, deps, svc)
	return g.Wait()
}

// ArchiveMode copies settled competitions to object storage on a schedule.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startArchiver(ctx, g, deps); err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}
	return g.Wait()
}

// FullMode runs the API together with the enabled background workers.
func (a *App) FullMode(ctx context.Context, deps *Dependencies, svc *service.BettingService) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, svc)
	if a.cfg.RunsSweeper() {
		a.startSweeper(ctx, g, deps, svc)
	}
	if a.cfg.RunsArchiver() {
		if err := a.startArchiver(ctx, g, deps); err != nil {
			return fmt.Errorf("full mode: %w", err)
		}
	}
	return g.Wait()
}

func (a *App) startSweeper(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *service.BettingService) {
	sweeper := service.NewStatusSweeper(svc, deps.Store, nil, a.cfg.Sweeper.Interval.Duration, a.logger)
	g.Go(func() error {
		return sweeper.Run(ctx)
	})
}

func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("archiver not configured")
	}
	archiveSvc := service.NewArchiveService(deps.Archiver, a.cfg.Archive.MinAge.Duration, nil, a.logger)
	if expr := a.cfg.Archive.Cron; expr != "" {
		g.Go(func() error {
			return archiveSvc.RunCron(ctx, expr)
		})
		return nil
	}
	interval := a.cfg.Archive.Interval.Duration
	g.Go(func() error {
		return archiveSvc.RunEvery(ctx, interval)
	})
	return nil
}

// startHTTPServer registers the API on an errgroup together with the
// websocket hub and a shutdown watcher.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *service.BettingService) {
	hub := ws.NewHub(deps.Bus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:       handler.NewHealthHandler(deps.Health, a.logger),
		Platform:     handler.NewPlatformHandler(svc, a.logger),
		Ledger:       handler.NewLedgerHandler(svc, a.logger),
		Competitions: handler.NewCompetitionHandler(svc, a.logger),
		Bets:         handler.NewBetHandler(svc, a.logger),
		Audit:        handler.NewAuditHandler(deps.Audit, a.logger),
	}
	if deps.BlobReader != nil {
		handlers.Archive = handler.NewArchiveHandler(s3blob.NewArchiveReader(deps.BlobReader), svc, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, server.Deps{
		Verifier: crypto.NewVerifier(a.cfg.Server.AuthMaxSkew.Duration).WithNonceStore(deps.Nonces),
		Limiter:  deps.RateLimiter,
		Hub:      hub,
	}, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
