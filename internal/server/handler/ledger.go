package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// LedgerService exposes account balances and custodian deposits.
type LedgerService interface {
	Deposit(ctx context.Context, caller, account string, amount uint64) (uint64, error)
	Balance(ctx context.Context, account string) (uint64, error)
	LedgerEntries(ctx context.Context, account string, opts domain.ListOpts) ([]domain.LedgerEntry, error)
}

// LedgerHandler serves the ledger endpoints.
type LedgerHandler struct {
	svc    LedgerService
	logger *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler.
func NewLedgerHandler(svc LedgerService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{svc: svc, logger: logger}
}

type balanceResponse struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

type depositRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

// Deposit credits an account. Only the authority may call it.
// POST /api/ledger/deposit
func (h *LedgerHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, "deposit", err)
		return
	}
	balance, err := h.svc.Deposit(r.Context(), caller(r), req.Account, req.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, "deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Account: canonical(req.Account), Balance: balance})
}

// GetBalance returns the balance of an account.
// GET /api/ledger/{address}
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account := pathParam(r, "address")
	balance, err := h.svc.Balance(r.Context(), account)
	if err != nil {
		writeServiceError(w, r, h.logger, "get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Account: canonical(account), Balance: balance})
}

type entriesResponse struct {
	Entries []domain.LedgerEntry `json:"entries"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// ListEntries returns the journal of an account, newest first.
// GET /api/ledger/{address}/entries?limit=50&offset=0
func (h *LedgerHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeServiceError(w, r, h.logger, "list entries", err)
		return
	}
	entries, err := h.svc.LedgerEntries(r.Context(), pathParam(r, "address"), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "list entries", err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entriesResponse{Entries: entries, Limit: opts.Limit, Offset: opts.Offset})
}
