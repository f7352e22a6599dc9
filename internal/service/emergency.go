package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// PauseCompetition halts a competition so bets can be refunded. There is no
// resume; a paused competition can only be cancelled or refunded.
func (s *BettingService) PauseCompetition(ctx context.Context, caller, competitionID string) (domain.Competition, error) {
	return s.forceStatus(ctx, caller, competitionID, domain.CompetitionStatusPaused, domain.EventCompetitionPaused)
}

// CancelCompetition abandons a competition. Refunds stay available.
func (s *BettingService) CancelCompetition(ctx context.Context, caller, competitionID string) (domain.Competition, error) {
	return s.forceStatus(ctx, caller, competitionID, domain.CompetitionStatusCancelled, domain.EventCompetitionCancelled)
}

func (s *BettingService) forceStatus(ctx context.Context, caller, competitionID string, target domain.CompetitionStatus, typ domain.EventType) (domain.Competition, error) {
	caller, err := normalizeCaller(caller)
	if err != nil {
		return domain.Competition{}, err
	}

	var comp domain.Competition
	err = s.mutate(ctx, competitionKey(competitionID), func(ctx context.Context, tx domain.Tx, ev *events) error {
		if _, err := loadAuthorized(ctx, tx, caller); err != nil {
			return err
		}
		c, err := loadCompetition(ctx, tx, competitionID)
		if err != nil {
			return err
		}

		current := domain.StatusAt(c, s.clock.Now())
		switch current {
		case domain.CompetitionStatusResolved, domain.CompetitionStatusCancelled, target:
			return domain.ErrInvalidCompetitionStatus
		}

		c.Status = target
		if err := tx.Competitions().Update(ctx, c); err != nil {
			return fmt.Errorf("betting: update competition %s: %w", c.ID, err)
		}
		comp = c

		ev.add(s.newEvent(typ, c.ID, caller, map[string]any{
			"previous_status": string(current),
		}))
		return nil
	})
	if err != nil {
		return domain.Competition{}, err
	}

	s.logger.WarnContext(ctx, "betting: competition status forced",
		slog.String("competition_id", comp.ID),
		slog.String("status", string(target)),
	)
	return comp, nil
}

// EmergencyRefund returns a bet's full stake from escrow, bypassing fee and
// share computation. Either the authority or the bettor may trigger it; the
// funds always go to the bettor.
func (s *BettingService) EmergencyRefund(ctx context.Context, caller, competitionID, participant string) (domain.Bet, error) {
	caller, err := normalizeCaller(caller)
	if err != nil {
		return domain.Bet{}, err
	}
	participant, err = normalizeParticipant(participant)
	if err != nil {
		return domain.Bet{}, err
	}

	var bet domain.Bet
	err = s.mutate(ctx, competitionKey(competitionID), func(ctx context.Context, tx domain.Tx, ev *events) error {
		reg, err := loadRegistry(ctx, tx)
		if err != nil {
			return err
		}
		if caller != participant && !reg.IsAuthority(caller) {
			return domain.ErrUnauthorized
		}

		comp, err := loadCompetition(ctx, tx, competitionID)
		if err != nil {
			return err
		}
		switch domain.StatusAt(comp, s.clock.Now()) {
		case domain.CompetitionStatusPaused, domain.CompetitionStatusCancelled:
		default:
			return domain.ErrCompetitionNotPaused
		}

		b, err := loadBet(ctx, tx, comp.ID, participant)
		if err != nil {
			return err
		}
		if b.Claimed {
			return domain.ErrAlreadyRefunded
		}

		escrow, err := tx.Ledger().Balance(ctx, comp.EscrowRef)
		if err != nil {
			return fmt.Errorf("betting: escrow balance %s: %w", comp.EscrowRef, err)
		}
		if escrow < b.Amount {
			return domain.ErrInsufficientEscrowBalance
		}
		if err := tx.Ledger().Transfer(ctx, comp.EscrowRef, participant, b.Amount, "refund:"+comp.ID); err != nil {
			return fmt.Errorf("betting: refund transfer: %w", err)
		}

		now := s.clock.Now()
		b.Claimed = true
		b.PayoutAmount = b.Amount
		b.ClaimedAt = &now
		if err := tx.Bets().Update(ctx, b); err != nil {
			return fmt.Errorf("betting: update bet: %w", err)
		}
		bet = b

		ev.add(s.newEvent(domain.EventRefundIssued, comp.ID, caller, map[string]any{
			"participant": participant,
			"amount":      b.Amount,
		}))
		return nil
	})
	if err != nil {
		return domain.Bet{}, err
	}

	s.logger.InfoContext(ctx, "betting: refund issued",
		slog.String("competition_id", bet.CompetitionID),
		slog.String("participant", bet.Participant),
		slog.Uint64("amount", bet.Amount),
	)
	return bet, nil
}
