package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// PlatformService is the part of the betting engine that manages the
// platform registry.
type PlatformService interface {
	Initialize(ctx context.Context, authority, feeRecipient string, feeRateBps uint16) (domain.PlatformRegistry, error)
	SetPaused(ctx context.Context, caller string, paused bool) (domain.PlatformRegistry, error)
	UpdateFeeRate(ctx context.Context, caller string, feeRateBps uint16) (domain.PlatformRegistry, error)
	Registry(ctx context.Context) (domain.PlatformRegistry, error)
}

// PlatformHandler serves the platform registry endpoints.
type PlatformHandler struct {
	svc    PlatformService
	logger *slog.Logger
}

// NewPlatformHandler creates a PlatformHandler.
func NewPlatformHandler(svc PlatformService, logger *slog.Logger) *PlatformHandler {
	return &PlatformHandler{svc: svc, logger: logger}
}

// GetRegistry returns the platform registry.
// GET /api/platform
func (h *PlatformHandler) GetRegistry(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.Registry(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "get registry", err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

type initializeRequest struct {
	FeeRecipient string `json:"fee_recipient"`
	FeeRateBps   uint16 `json:"fee_rate_bps"`
}

// Initialize creates the registry with the signer as authority.
// POST /api/platform/initialize
func (h *PlatformHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, "initialize", err)
		return
	}
	reg, err := h.svc.Initialize(r.Context(), caller(r), req.FeeRecipient, req.FeeRateBps)
	if err != nil {
		writeServiceError(w, r, h.logger, "initialize", err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

// SetPaused toggles the platform-wide pause flag.
// POST /api/platform/pause
func (h *PlatformHandler) SetPaused(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, "set paused", err)
		return
	}
	reg, err := h.svc.SetPaused(r.Context(), caller(r), req.Paused)
	if err != nil {
		writeServiceError(w, r, h.logger, "set paused", err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

type feeRequest struct {
	FeeRateBps uint16 `json:"fee_rate_bps"`
}

// UpdateFeeRate changes the platform fee.
// POST /api/platform/fee
func (h *PlatformHandler) UpdateFeeRate(w http.ResponseWriter, r *http.Request) {
	var req feeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, "update fee rate", err)
		return
	}
	reg, err := h.svc.UpdateFeeRate(r.Context(), caller(r), req.FeeRateBps)
	if err != nil {
		writeServiceError(w, r, h.logger, "update fee rate", err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}
