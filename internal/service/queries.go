package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// Competition returns a competition with its effective status. Reads go
// through the cache when one is configured.
func (s *BettingService) Competition(ctx context.Context, id string) (domain.Competition, error) {
	if s.cache != nil {
		if c, err := s.cache.Get(ctx, id); err == nil {
			c.Status = domain.StatusAt(c, s.clock.Now())
			return c, nil
		}
	}

	var comp domain.Competition
	err := s.tx.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		c, err := loadCompetition(ctx, tx, id)
		comp = c
		return err
	})
	if err != nil {
		return domain.Competition{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, comp); err != nil {
			s.logger.WarnContext(ctx, "betting: cache set failed",
				slog.String("competition_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	comp.Status = domain.StatusAt(comp, s.clock.Now())
	return comp, nil
}

// ListCompetitions returns competitions matching filter. The filter applies
// to stored statuses; the returned records carry effective statuses.
func (s *BettingService) ListCompetitions(ctx context.Context, filter domain.CompetitionFilter, opts domain.ListOpts) ([]domain.Competition, error) {
	var list []domain.Competition
	err := s.tx.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		l, err := tx.Competitions().List(ctx, filter, opts)
		if err != nil {
			return fmt.Errorf("betting: list competitions: %w", err)
		}
		list = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	for i := range list {
		list[i].Status = domain.StatusAt(list[i], now)
	}
	return list, nil
}

// Bet returns a participant's bet in a competition.
func (s *BettingService) Bet(ctx context.Context, competitionID, participant string) (domain.Bet, error) {
	participant, err := normalizeParticipant(participant)
	if err != nil {
		return domain.Bet{}, err
	}
	var bet domain.Bet
	err = s.tx.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		b, err := loadBet(ctx, tx, competitionID, participant)
		bet = b
		return err
	})
	return bet, err
}

// ListBets returns the bets placed in a competition.
func (s *BettingService) ListBets(ctx context.Context, competitionID string, opts domain.ListOpts) ([]domain.Bet, error) {
	var bets []domain.Bet
	err := s.tx.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := loadCompetition(ctx, tx, competitionID); err != nil {
			return err
		}
		b, err := tx.Bets().ListByCompetition(ctx, competitionID, opts)
		if err != nil {
			return fmt.Errorf("betting: list bets %s: %w", competitionID, err)
		}
		bets = b
		return nil
	})
	return bets, err
}

// ParticipantBets returns every bet placed by participant.
func (s *BettingService) ParticipantBets(ctx context.Context, participant string, opts domain.ListOpts) ([]domain.Bet, error) {
	participant, err := normalizeParticipant(participant)
	if err != nil {
		return nil, err
	}
	var bets []domain.Bet
	err = s.tx.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		b, err := tx.Bets().ListByParticipant(ctx, participant, opts)
		if err != nil {
			return fmt.Errorf("betting: list bets of %s: %w", participant, err)
		}
		bets = b
		return nil
	})
	return bets, err
}
