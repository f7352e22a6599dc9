package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tokenbet/internal/domain"
	"github.com/alanyoungcy/tokenbet/internal/server/handler"
	"github.com/alanyoungcy/tokenbet/internal/server/middleware"
	"github.com/alanyoungcy/tokenbet/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey guards operator endpoints. Empty closes them.
	APIKey string
	// RateLimit is the per-IP request budget per RateWindow. Zero disables
	// rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Archive may be nil when cold storage is not configured.
type Handlers struct {
	Health       *handler.HealthHandler
	Platform     *handler.PlatformHandler
	Ledger       *handler.LedgerHandler
	Competitions *handler.CompetitionHandler
	Bets         *handler.BetHandler
	Audit        *handler.AuditHandler
	Archive      *handler.ArchiveHandler
}

// Deps are the collaborators of the middleware chain. Limiter may be nil.
type Deps struct {
	Verifier middleware.RequestVerifier
	Limiter  domain.RateLimiter
	Hub      *ws.Hub
}

// Server is the HTTP + WebSocket API of the betting engine.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered.
func NewServer(cfg Config, h Handlers, deps Deps, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, h, deps, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed and wrapped http.Handler.
func NewHandler(cfg Config, h Handlers, deps Deps, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	signed := middleware.SignatureAuth(deps.Verifier, logger)
	sig := func(fn http.HandlerFunc) http.Handler { return signed(fn) }

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)

	mux.HandleFunc("GET /api/platform", h.Platform.GetRegistry)
	mux.Handle("POST /api/platform/initialize", sig(h.Platform.Initialize))
	mux.Handle("POST /api/platform/pause", sig(h.Platform.SetPaused))
	mux.Handle("POST /api/platform/fee", sig(h.Platform.UpdateFeeRate))

	mux.Handle("POST /api/ledger/deposit", sig(h.Ledger.Deposit))
	mux.HandleFunc("GET /api/ledger/{address}", h.Ledger.GetBalance)
	mux.HandleFunc("GET /api/ledger/{address}/entries", h.Ledger.ListEntries)

	mux.HandleFunc("GET /api/competitions", h.Competitions.ListCompetitions)
	mux.Handle("POST /api/competitions", sig(h.Competitions.CreateCompetition))
	mux.HandleFunc("GET /api/competitions/{id}", h.Competitions.GetCompetition)
	mux.HandleFunc("POST /api/competitions/{id}/sync", h.Competitions.SyncStatus)
	mux.Handle("POST /api/competitions/{id}/resolve", sig(h.Competitions.Resolve))
	mux.Handle("POST /api/competitions/{id}/pause", sig(h.Competitions.Pause))
	mux.Handle("POST /api/competitions/{id}/cancel", sig(h.Competitions.Cancel))

	mux.HandleFunc("GET /api/competitions/{id}/bets", h.Bets.ListBets)
	mux.Handle("POST /api/competitions/{id}/bets", sig(h.Bets.PlaceBet))
	mux.HandleFunc("GET /api/competitions/{id}/bets/{participant}", h.Bets.GetBet)
	mux.HandleFunc("GET /api/competitions/{id}/quote/{participant}", h.Bets.Quote)
	mux.Handle("POST /api/competitions/{id}/claim", sig(h.Bets.Claim))
	mux.Handle("POST /api/competitions/{id}/refund", sig(h.Bets.Refund))
	mux.HandleFunc("GET /api/participants/{address}/bets", h.Bets.ParticipantBets)

	if h.Archive != nil {
		mux.HandleFunc("GET /api/competitions/{id}/archive", h.Archive.GetArchive)
		mux.HandleFunc("GET /api/archive", h.Archive.ListMonth)
	}

	mux.Handle("GET /api/audit", middleware.APIKey(cfg.APIKey)(http.HandlerFunc(h.Audit.List)))

	if deps.Hub != nil {
		mux.HandleFunc("GET /ws", deps.Hub.HandleWS)
	}

	var out http.Handler = mux
	if deps.Limiter != nil && cfg.RateLimit > 0 {
		out = middleware.RateLimit(deps.Limiter, cfg.RateLimit, cfg.RateWindow, logger)(out)
	}
	out = middleware.Logging(logger)(out)
	out = middleware.CORS(cfg.CORSOrigins)(out)
	return out
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
