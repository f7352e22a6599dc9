package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorTable maps domain errors to HTTP statuses and stable error codes.
// Order matters only for errors that wrap one another.
var errorTable = []errorMapping{
	{errBadRequest, http.StatusBadRequest, "bad_request"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{domain.ErrLockHeld, http.StatusConflict, "busy"},
	{domain.ErrAlreadyExists, http.StatusConflict, "already_exists"},

	{domain.ErrPlatformPaused, http.StatusLocked, "platform_paused"},
	{domain.ErrNotInitialized, http.StatusConflict, "not_initialized"},
	{domain.ErrAlreadyInitialized, http.StatusConflict, "already_initialized"},
	{domain.ErrInvalidFee, http.StatusBadRequest, "invalid_fee"},

	{domain.ErrInvalidStartTime, http.StatusBadRequest, "invalid_start_time"},
	{domain.ErrInvalidEndTime, http.StatusBadRequest, "invalid_end_time"},
	{domain.ErrDuplicateAssets, http.StatusBadRequest, "duplicate_assets"},
	{domain.ErrCompetitionIDTooLong, http.StatusBadRequest, "competition_id_too_long"},
	{domain.ErrInvalidCompetitionID, http.StatusBadRequest, "invalid_competition_id"},
	{domain.ErrInvalidAsset, http.StatusBadRequest, "invalid_asset"},
	{domain.ErrInvalidAddress, http.StatusBadRequest, "invalid_address"},

	{domain.ErrCompetitionNotStarted, http.StatusConflict, "competition_not_started"},
	{domain.ErrCompetitionEnded, http.StatusConflict, "competition_ended"},
	{domain.ErrCompetitionNotActive, http.StatusConflict, "competition_not_active"},
	{domain.ErrInvalidAssetChoice, http.StatusBadRequest, "invalid_asset_choice"},
	{domain.ErrInvalidBetAmount, http.StatusBadRequest, "invalid_bet_amount"},
	{domain.ErrAlreadyBet, http.StatusConflict, "already_bet"},

	{domain.ErrCompetitionNotEnded, http.StatusConflict, "competition_not_ended"},
	{domain.ErrInvalidCompetitionStatus, http.StatusConflict, "invalid_competition_status"},
	{domain.ErrInvalidWinner, http.StatusBadRequest, "invalid_winner"},
	{domain.ErrInvalidOracleData, http.StatusBadRequest, "invalid_oracle_data"},

	{domain.ErrCompetitionNotResolved, http.StatusConflict, "competition_not_resolved"},
	{domain.ErrNoWinner, http.StatusConflict, "no_winner"},
	{domain.ErrNotWinner, http.StatusConflict, "not_winner"},
	{domain.ErrAlreadyClaimed, http.StatusConflict, "already_claimed"},
	{domain.ErrNoWinnerPool, http.StatusConflict, "no_winner_pool"},
	{domain.ErrCompetitionNotPaused, http.StatusConflict, "competition_not_paused"},
	{domain.ErrAlreadyRefunded, http.StatusConflict, "already_refunded"},

	{domain.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{domain.ErrInsufficientEscrowBalance, http.StatusUnprocessableEntity, "insufficient_escrow_balance"},
	{domain.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{domain.ErrMathOverflow, http.StatusUnprocessableEntity, "math_overflow"},
}

// classify returns the HTTP status and error code for err.
func classify(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// writeServiceError maps err to an error response. Unclassified errors are
// logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("error", err.Error()),
		)
		writeError(w, status, code, "internal server error")
		return
	}
	writeError(w, status, code, err.Error())
}
