package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/tokenbet/internal/domain"
	"github.com/alanyoungcy/tokenbet/internal/service"
)

// CompetitionService is the competition lifecycle surface of the betting
// engine.
type CompetitionService interface {
	CreateCompetition(ctx context.Context, caller string, p service.CreateCompetitionParams) (domain.Competition, error)
	Competition(ctx context.Context, id string) (domain.Competition, error)
	ListCompetitions(ctx context.Context, filter domain.CompetitionFilter, opts domain.ListOpts) ([]domain.Competition, error)
	SyncStatus(ctx context.Context, id string) (domain.Competition, error)
	ResolveCompetition(ctx context.Context, caller, id string, p service.ResolveParams) (domain.Competition, error)
	PauseCompetition(ctx context.Context, caller, id string) (domain.Competition, error)
	CancelCompetition(ctx context.Context, caller, id string) (domain.Competition, error)
}

// CompetitionHandler serves the competition endpoints.
type CompetitionHandler struct {
	svc    CompetitionService
	logger *slog.Logger
}

// NewCompetitionHandler creates a CompetitionHandler.
func NewCompetitionHandler(svc CompetitionService, logger *slog.Logger) *CompetitionHandler {
	return &CompetitionHandler{svc: svc, logger: logger}
}

type listCompetitionsResponse struct {
	Competitions []domain.Competition `json:"competitions"`
	Limit        int                  `json:"limit"`
	Offset       int                  `json:"offset"`
}

// ListCompetitions returns competitions, optionally filtered by stored status.
// GET /api/competitions?status=active,closed&ended_before=...&limit=50&offset=0
func (h *CompetitionHandler) ListCompetitions(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "list competitions", err)
		return
	}
	filter, err := parseCompetitionFilter(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "list competitions", err)
		return
	}

	comps, err := h.svc.ListCompetitions(r.Context(), filter, opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "list competitions", err)
		return
	}
	if comps == nil {
		comps = []domain.Competition{}
	}
	writeJSON(w, http.StatusOK, listCompetitionsResponse{Competitions: comps, Limit: opts.Limit, Offset: opts.Offset})
}

func parseCompetitionFilter(r *http.Request) (domain.CompetitionFilter, error) {
	var f domain.CompetitionFilter
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			st := domain.CompetitionStatus(strings.TrimSpace(s))
			if !st.Valid() {
				return f, fmt.Errorf("%w: unknown status %q", errBadRequest, s)
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if v := q.Get("ended_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("%w: ended_before must be RFC 3339", errBadRequest)
		}
		f.EndedBefore = &t
	}
	return f, nil
}

// CreateCompetition registers a new competition. Only the authority may
// call it.
// POST /api/competitions
func (h *CompetitionHandler) CreateCompetition(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCompetitionParams
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, "create competition", err)
		return
	}
	c, err := h.svc.CreateCompetition(r.Context(), caller(r), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "create competition", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GetCompetition returns one competition with its effective status.
// GET /api/competitions/{id}
func (h *CompetitionHandler) GetCompetition(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Competition(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get competition", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// SyncStatus persists the time-driven status transitions of a competition.
// POST /api/competitions/{id}/sync
func (h *CompetitionHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.SyncStatus(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "sync status", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Resolve records the oracle outcome of a closed competition.
// POST /api/competitions/{id}/resolve
func (h *CompetitionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req service.ResolveParams
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, "resolve competition", err)
		return
	}
	c, err := h.svc.ResolveCompetition(r.Context(), caller(r), pathParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "resolve competition", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Pause halts a competition so its bets can be refunded.
// POST /api/competitions/{id}/pause
func (h *CompetitionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.PauseCompetition(r.Context(), caller(r), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "pause competition", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Cancel ends a competition without a winner.
// POST /api/competitions/{id}/cancel
func (h *CompetitionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.CancelCompetition(r.Context(), caller(r), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "cancel competition", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
