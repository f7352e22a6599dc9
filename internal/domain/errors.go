package domain

import "errors"

// Storage and infrastructure errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrLockHeld      = errors.New("lock already held")
)

// Authorization and platform errors.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrPlatformPaused     = errors.New("platform is paused")
	ErrNotInitialized     = errors.New("platform not initialized")
	ErrAlreadyInitialized = errors.New("platform already initialized")
	ErrInvalidFee         = errors.New("fee rate exceeds 10000 bps")
)

// Input validation errors for competition creation.
var (
	ErrInvalidStartTime     = errors.New("start time must be in the future")
	ErrInvalidEndTime       = errors.New("end time must be after start time")
	ErrDuplicateAssets      = errors.New("competing assets must differ")
	ErrCompetitionIDTooLong = errors.New("competition id too long")
	ErrInvalidCompetitionID = errors.New("competition id must not be empty")
	ErrInvalidAsset         = errors.New("invalid asset identifier")
	ErrInvalidAddress       = errors.New("invalid address")
)

// Betting errors.
var (
	ErrCompetitionNotStarted = errors.New("competition has not started")
	ErrCompetitionEnded      = errors.New("competition has ended")
	ErrCompetitionNotActive  = errors.New("competition is not active")
	ErrInvalidAssetChoice    = errors.New("chosen asset is not part of the competition")
	ErrInvalidBetAmount      = errors.New("bet amount must equal the fixed stake")
	ErrAlreadyBet            = errors.New("participant already placed a bet")
)

// Resolution errors.
var (
	ErrCompetitionNotEnded      = errors.New("competition has not ended")
	ErrInvalidCompetitionStatus = errors.New("invalid competition status for this operation")
	ErrInvalidWinner            = errors.New("winner is not part of the competition")
	ErrInvalidOracleData        = errors.New("invalid oracle data")
)

// Claim and refund errors.
var (
	ErrCompetitionNotResolved = errors.New("competition is not resolved")
	ErrNoWinner               = errors.New("competition has no winner")
	ErrNotWinner              = errors.New("bet is not on the winning asset")
	ErrAlreadyClaimed         = errors.New("winnings already claimed")
	ErrNoWinnerPool           = errors.New("winning pool is empty")
	ErrCompetitionNotPaused   = errors.New("competition is not paused or cancelled")
	ErrAlreadyRefunded        = errors.New("bet already refunded")
)

// Ledger and arithmetic errors.
var (
	ErrInsufficientBalance       = errors.New("insufficient balance")
	ErrInsufficientEscrowBalance = errors.New("insufficient escrow balance")
	ErrInvalidAmount             = errors.New("amount must be positive")
	ErrMathOverflow              = errors.New("math overflow")
)
