// Package app provides the top-level application lifecycle of the betting
// service. It wires the state backend, caches, event bus, archiver and
// notifications, and starts the goroutines of the configured mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/tokenbet/internal/config"
	"github.com/alanyoungcy/tokenbet/internal/domain"
	"github.com/alanyoungcy/tokenbet/internal/service"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, selects the
// operating mode, starts the corresponding goroutines, and blocks until the
// context is cancelled. On return it runs all registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("storage", a.cfg.Storage.Driver),
		slog.Bool("redis", a.cfg.Redis.Enabled),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	svc := a.newBettingService(deps)
	if err := a.bootstrap(ctx, svc); err != nil {
		return err
	}

	switch a.cfg.Mode {
	case "server":
		return a.ServerMode(ctx, deps, svc)
	case "sweeper":
		return a.SweeperMode(ctx, deps, svc)
	case "archive":
		return a.ArchiveMode(ctx, deps)
	case "full":
		return a.FullMode(ctx, deps, svc)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Policy derives the engine policy from the platform config.
func Policy(cfg config.PlatformConfig) service.Policy {
	p := service.DefaultPolicy()
	if cfg.StakeAmount > 0 {
		p.StakeAmount = cfg.StakeAmount
	}
	if cfg.FeeMode != "" {
		p.FeeMode = service.FeeMode(cfg.FeeMode)
	}
	if cfg.LockTTL.Duration > 0 {
		p.LockTTL = cfg.LockTTL.Duration
	}
	if cfg.LockRetries > 0 {
		p.LockRetries = cfg.LockRetries
	}
	return p
}

func (a *App) newBettingService(deps *Dependencies) *service.BettingService {
	svc := service.NewBettingService(deps.Store, domain.SystemClock{}, Policy(a.cfg.Platform), a.logger).
		WithAudit(deps.Audit).
		WithBus(deps.Bus)
	if deps.Locks != nil {
		svc.WithLocks(deps.Locks)
	}
	if deps.Cache != nil {
		svc.WithCache(deps.Cache)
	}
	if deps.Notifier != nil && deps.Notifier.Enabled() {
		svc.WithNotifier(deps.Notifier)
	}
	return svc
}

// bootstrap initializes the registry from config when asked to. An existing
// registry is left untouched.
func (a *App) bootstrap(ctx context.Context, svc *service.BettingService) error {
	if !a.cfg.Platform.Bootstrap {
		return nil
	}
	_, err := svc.Initialize(ctx, a.cfg.Platform.Authority, a.cfg.Platform.FeeRecipient, uint16(a.cfg.Platform.FeeRateBps))
	switch {
	case err == nil:
		a.logger.InfoContext(ctx, "platform registry bootstrapped",
			slog.String("authority", a.cfg.Platform.Authority),
		)
		return nil
	case errors.Is(err, domain.ErrAlreadyInitialized):
		return nil
	default:
		return fmt.Errorf("app: bootstrap registry: %w", err)
	}
}
