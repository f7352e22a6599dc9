package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// BetService is the betting, claim and refund surface of the engine.
type BetService interface {
	PlaceBet(ctx context.Context, participant, competitionID, asset string, amount uint64) (domain.Bet, error)
	Bet(ctx context.Context, competitionID, participant string) (domain.Bet, error)
	ListBets(ctx context.Context, competitionID string, opts domain.ListOpts) ([]domain.Bet, error)
	ParticipantBets(ctx context.Context, participant string, opts domain.ListOpts) ([]domain.Bet, error)
	Quote(ctx context.Context, competitionID, participant string) (domain.Quote, error)
	ClaimWinnings(ctx context.Context, participant, competitionID string) (domain.Bet, error)
	EmergencyRefund(ctx context.Context, caller, competitionID, participant string) (domain.Bet, error)
}

// BetHandler serves the bet endpoints.
type BetHandler struct {
	svc    BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(svc BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{svc: svc, logger: logger}
}

type listBetsResponse struct {
	Bets   []domain.Bet `json:"bets"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func writeBets(w http.ResponseWriter, bets []domain.Bet, opts domain.ListOpts) {
	if bets == nil {
		bets = []domain.Bet{}
	}
	writeJSON(w, http.StatusOK, listBetsResponse{Bets: bets, Limit: opts.Limit, Offset: opts.Offset})
}

// ListBets returns the bets of a competition in placement order.
// GET /api/competitions/{id}/bets
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "list bets", err)
		return
	}
	bets, err := h.svc.ListBets(r.Context(), pathParam(r, "id"), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "list bets", err)
		return
	}
	writeBets(w, bets, opts)
}

// ParticipantBets returns every bet of one participant.
// GET /api/participants/{address}/bets
func (h *BetHandler) ParticipantBets(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "participant bets", err)
		return
	}
	bets, err := h.svc.ParticipantBets(r.Context(), pathParam(r, "address"), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "participant bets", err)
		return
	}
	writeBets(w, bets, opts)
}

type placeBetRequest struct {
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

// PlaceBet stakes the signer on one asset of the competition.
// POST /api/competitions/{id}/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, "place bet", err)
		return
	}
	bet, err := h.svc.PlaceBet(r.Context(), caller(r), pathParam(r, "id"), req.Asset, req.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, "place bet", err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

// GetBet returns one participant's bet.
// GET /api/competitions/{id}/bets/{participant}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	bet, err := h.svc.Bet(r.Context(), pathParam(r, "id"), pathParam(r, "participant"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get bet", err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// Quote previews the payout of a bet.
// GET /api/competitions/{id}/quote/{participant}
func (h *BetHandler) Quote(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Quote(r.Context(), pathParam(r, "id"), pathParam(r, "participant"))
	if err != nil {
		writeServiceError(w, r, h.logger, "quote", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// Claim pays out the signer's winning bet.
// POST /api/competitions/{id}/claim
func (h *BetHandler) Claim(w http.ResponseWriter, r *http.Request) {
	bet, err := h.svc.ClaimWinnings(r.Context(), caller(r), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "claim winnings", err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

type refundRequest struct {
	Participant string `json:"participant"`
}

// Refund returns a bet's stake from a paused or cancelled competition. The
// participant defaults to the signer.
// POST /api/competitions/{id}/refund
func (h *BetHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeServiceError(w, r, h.logger, "emergency refund", err)
		return
	}
	signer := caller(r)
	participant := req.Participant
	if participant == "" {
		participant = signer
	}
	bet, err := h.svc.EmergencyRefund(r.Context(), signer, pathParam(r, "id"), participant)
	if err != nil {
		writeServiceError(w, r, h.logger, "emergency refund", err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}
