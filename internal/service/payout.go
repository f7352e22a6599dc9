package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

const bpsDenominator = 10000

// Payout is the result of the pari-mutuel share computation.
type Payout struct {
	Fee           uint64 `json:"fee"`
	Distributable uint64 `json:"distributable"`
	Amount        uint64 `json:"amount"`
}

// ComputePayout derives the fee and a winning bet's share of the pool:
//
//	fee           = floor(poolTotal * feeRateBps / 10000)
//	distributable = poolTotal - fee
//	payout        = floor(distributable * amount / winnerPool)
//
// Intermediates are 256 bits wide so no product can wrap.
func ComputePayout(poolTotal, winnerPool, amount uint64, feeRateBps uint16) (Payout, error) {
	if winnerPool == 0 {
		return Payout{}, domain.ErrNoWinnerPool
	}
	if !domain.ValidFeeRate(feeRateBps) {
		return Payout{}, domain.ErrInvalidFee
	}
	if amount > winnerPool || winnerPool > poolTotal {
		return Payout{}, domain.ErrMathOverflow
	}

	total := uint256.NewInt(poolTotal)

	fee, overflow := new(uint256.Int).MulOverflow(total, uint256.NewInt(uint64(feeRateBps)))
	if overflow {
		return Payout{}, domain.ErrMathOverflow
	}
	fee.Div(fee, uint256.NewInt(bpsDenominator))

	dist := new(uint256.Int).Sub(total, fee)

	share, overflow := new(uint256.Int).MulOverflow(dist, uint256.NewInt(amount))
	if overflow {
		return Payout{}, domain.ErrMathOverflow
	}
	share.Div(share, uint256.NewInt(winnerPool))

	if !fee.IsUint64() || !dist.IsUint64() || !share.IsUint64() {
		return Payout{}, domain.ErrMathOverflow
	}
	return Payout{
		Fee:           fee.Uint64(),
		Distributable: dist.Uint64(),
		Amount:        share.Uint64(),
	}, nil
}

// claimable runs the claim preconditions against a loaded competition and
// bet, in the order the claim operation applies them.
func claimable(c domain.Competition, bet *domain.Bet, now time.Time) error {
	if domain.StatusAt(c, now) != domain.CompetitionStatusResolved {
		return domain.ErrCompetitionNotResolved
	}
	if c.Winner == "" {
		return domain.ErrNoWinner
	}
	if bet == nil {
		return domain.ErrNotFound
	}
	if bet.ChosenAsset != c.Winner {
		return domain.ErrNotWinner
	}
	if bet.Claimed {
		return domain.ErrAlreadyClaimed
	}
	if c.Pool(c.Winner) == 0 {
		return domain.ErrNoWinnerPool
	}
	return nil
}

// feeDue reports whether a claim against c must also pay the platform fee.
func (s *BettingService) feeDue(c domain.Competition, fee uint64) bool {
	if fee == 0 {
		return false
	}
	return s.policy.FeeMode == FeeModePerClaim || !c.FeeCollected
}

// ClaimWinnings pays a winning bet its share of the pool and, depending on
// the fee mode, the platform fee to the fee recipient.
func (s *BettingService) ClaimWinnings(ctx context.Context, participant, competitionID string) (domain.Bet, error) {
	participant, err := normalizeCaller(participant)
	if err != nil {
		return domain.Bet{}, err
	}

	var (
		bet    domain.Bet
		payout Payout
		feeOut uint64
	)
	err = s.mutate(ctx, competitionKey(competitionID), func(ctx context.Context, tx domain.Tx, ev *events) error {
		reg, err := loadRegistry(ctx, tx)
		if err != nil {
			return err
		}
		comp, err := loadCompetition(ctx, tx, competitionID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if domain.StatusAt(comp, now) != domain.CompetitionStatusResolved {
			return domain.ErrCompetitionNotResolved
		}
		if comp.Winner == "" {
			return domain.ErrNoWinner
		}
		b, err := loadBet(ctx, tx, comp.ID, participant)
		if err != nil {
			return err
		}
		if err := claimable(comp, &b, now); err != nil {
			return err
		}

		payout, err = ComputePayout(comp.PoolTotal, comp.Pool(comp.Winner), b.Amount, comp.FeeRateBps)
		if err != nil {
			return err
		}

		feeOut = 0
		if s.feeDue(comp, payout.Fee) {
			feeOut = payout.Fee
		}
		need, err := checkedAdd(payout.Amount, feeOut)
		if err != nil {
			return err
		}
		escrow, err := tx.Ledger().Balance(ctx, comp.EscrowRef)
		if err != nil {
			return fmt.Errorf("betting: escrow balance %s: %w", comp.EscrowRef, err)
		}
		if escrow < need {
			return domain.ErrInsufficientEscrowBalance
		}

		if payout.Amount > 0 {
			if err := tx.Ledger().Transfer(ctx, comp.EscrowRef, participant, payout.Amount, "payout:"+comp.ID); err != nil {
				return fmt.Errorf("betting: payout transfer: %w", err)
			}
		}
		if feeOut > 0 {
			if err := tx.Ledger().Transfer(ctx, comp.EscrowRef, reg.FeeRecipient, feeOut, "fee:"+comp.ID); err != nil {
				return fmt.Errorf("betting: fee transfer: %w", err)
			}
			paid, err := checkedAdd(comp.FeePaid, feeOut)
			if err != nil {
				return err
			}
			comp.FeePaid = paid
			comp.FeeCollected = true
			if err := tx.Competitions().Update(ctx, comp); err != nil {
				return fmt.Errorf("betting: update competition %s: %w", comp.ID, err)
			}
		}

		b.Claimed = true
		b.PayoutAmount = payout.Amount
		b.ClaimedAt = &now
		if err := tx.Bets().Update(ctx, b); err != nil {
			return fmt.Errorf("betting: update bet: %w", err)
		}
		bet = b

		ev.add(s.newEvent(domain.EventWinningsClaimed, comp.ID, participant, map[string]any{
			"payout":        payout.Amount,
			"fee":           feeOut,
			"fee_recipient": reg.FeeRecipient,
		}))
		return nil
	})
	if err != nil {
		return domain.Bet{}, err
	}

	s.logger.InfoContext(ctx, "betting: winnings claimed",
		slog.String("competition_id", bet.CompetitionID),
		slog.String("participant", bet.Participant),
		slog.Uint64("payout", payout.Amount),
		slog.Uint64("fee", feeOut),
	)
	return bet, nil
}

// Quote previews a claim without moving funds. Ineligible bets are reported
// through Quote.Reason rather than an error.
func (s *BettingService) Quote(ctx context.Context, competitionID, participant string) (domain.Quote, error) {
	participant, err := normalizeParticipant(participant)
	if err != nil {
		return domain.Quote{}, err
	}

	q := domain.Quote{CompetitionID: competitionID, Participant: participant}
	err = s.tx.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := loadRegistry(ctx, tx); err != nil {
			return err
		}
		comp, err := loadCompetition(ctx, tx, competitionID)
		if err != nil {
			return err
		}

		var bet *domain.Bet
		b, err := tx.Bets().Get(ctx, comp.ID, participant)
		switch {
		case err == nil:
			bet = &b
		case !isNotFound(err):
			return fmt.Errorf("betting: bet %s/%s: %w", comp.ID, participant, err)
		}

		if err := claimable(comp, bet, s.clock.Now()); err != nil {
			q.Reason = err.Error()
			return nil
		}

		p, err := ComputePayout(comp.PoolTotal, comp.Pool(comp.Winner), bet.Amount, comp.FeeRateBps)
		if err != nil {
			q.Reason = err.Error()
			return nil
		}
		q.Eligible = true
		q.Fee = p.Fee
		q.FeeDue = s.feeDue(comp, p.Fee)
		q.Distributable = p.Distributable
		q.Payout = p.Amount
		return nil
	})
	if err != nil {
		return domain.Quote{}, err
	}
	return q, nil
}
