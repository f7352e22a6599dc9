package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	s3blob "github.com/alanyoungcy/tokenbet/internal/blob/s3"
	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// ArchiveReader loads archived competitions from cold storage.
type ArchiveReader interface {
	Load(ctx context.Context, c domain.Competition) (s3blob.Archive, error)
	ListMonth(ctx context.Context, month string) ([]s3blob.ArchivedCompetition, error)
}

// CompetitionLookup finds the competition an archive belongs to.
type CompetitionLookup interface {
	Competition(ctx context.Context, id string) (domain.Competition, error)
}

// ArchiveHandler serves archived competitions.
type ArchiveHandler struct {
	archives     ArchiveReader
	competitions CompetitionLookup
	logger       *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(archives ArchiveReader, competitions CompetitionLookup, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{archives: archives, competitions: competitions, logger: logger}
}

// GetArchive returns the archived snapshot of a settled competition.
// GET /api/competitions/{id}/archive
func (h *ArchiveHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	c, err := h.competitions.Competition(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get archive", err)
		return
	}
	arch, err := h.archives.Load(r.Context(), c)
	if err != nil {
		writeServiceError(w, r, h.logger, "get archive", err)
		return
	}
	writeJSON(w, http.StatusOK, arch)
}

type archiveListResponse struct {
	Month    string                       `json:"month"`
	Archives []s3blob.ArchivedCompetition `json:"archives"`
}

// ListMonth lists the archives of competitions that ended in a month.
// GET /api/archive?month=2026-01
func (h *ArchiveHandler) ListMonth(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		month = time.Now().UTC().Format("2006-01")
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		writeServiceError(w, r, h.logger, "list archives", fmt.Errorf("%w: month must be YYYY-MM", errBadRequest))
		return
	}
	list, err := h.archives.ListMonth(r.Context(), month)
	if err != nil {
		writeServiceError(w, r, h.logger, "list archives", err)
		return
	}
	if list == nil {
		list = []s3blob.ArchivedCompetition{}
	}
	writeJSON(w, http.StatusOK, archiveListResponse{Month: month, Archives: list})
}
