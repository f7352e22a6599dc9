package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/tokenbet/internal/crypto"
	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// minPerformance is the lowest attested performance figure, a 100% loss in
// percent * 100.
const minPerformance = -10000

// CreateCompetitionParams describes a new competition.
type CreateCompetitionParams struct {
	ID        string    `json:"id"`
	AssetA    string    `json:"asset_a"`
	AssetB    string    `json:"asset_b"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// ResolveParams carries the attested outcome of a competition.
type ResolveParams struct {
	Winner       string `json:"winner"`
	PerformanceA int64  `json:"performance_a"`
	PerformanceB int64  `json:"performance_b"`
}

// CreateCompetition registers a competition and reserves its escrow account.
func (s *BettingService) CreateCompetition(ctx context.Context, caller string, p CreateCompetitionParams) (domain.Competition, error) {
	caller, err := normalizeCaller(caller)
	if err != nil {
		return domain.Competition{}, err
	}
	p.AssetA = strings.TrimSpace(p.AssetA)
	p.AssetB = strings.TrimSpace(p.AssetB)

	var comp domain.Competition
	err = s.mutate(ctx, competitionKey(p.ID), func(ctx context.Context, tx domain.Tx, ev *events) error {
		reg, err := loadAuthorized(ctx, tx, caller)
		if err != nil {
			return err
		}
		if reg.Paused {
			return domain.ErrPlatformPaused
		}

		now := s.clock.Now()
		if !p.StartTime.After(now) {
			return domain.ErrInvalidStartTime
		}
		if !p.EndTime.After(p.StartTime) {
			return domain.ErrInvalidEndTime
		}
		if p.AssetA == p.AssetB {
			return domain.ErrDuplicateAssets
		}
		if p.AssetA == "" || p.AssetB == "" {
			return domain.ErrInvalidAsset
		}
		if p.ID == "" {
			return domain.ErrInvalidCompetitionID
		}
		if len(p.ID) > domain.MaxCompetitionIDLen {
			return domain.ErrCompetitionIDTooLong
		}

		if _, err := tx.Competitions().Get(ctx, p.ID); err == nil {
			return fmt.Errorf("betting: competition %s: %w", p.ID, domain.ErrAlreadyExists)
		} else if !isNotFound(err) {
			return fmt.Errorf("betting: competition %s: %w", p.ID, err)
		}

		comp = domain.Competition{
			ID:        p.ID,
			AssetA:    p.AssetA,
			AssetB:    p.AssetB,
			StartTime: p.StartTime.UTC(),
			EndTime:   p.EndTime.UTC(),
			Status:    domain.CompetitionStatusUpcoming,
			EscrowRef: crypto.EscrowAddress(p.ID),
			CreatedAt: now,
		}
		if err := tx.Competitions().Create(ctx, comp); err != nil {
			return fmt.Errorf("betting: create competition %s: %w", p.ID, err)
		}
		if err := tx.Ledger().Open(ctx, comp.EscrowRef); err != nil {
			return fmt.Errorf("betting: open escrow %s: %w", comp.EscrowRef, err)
		}

		reg.CompetitionCount++
		reg.UpdatedAt = now
		if err := tx.Registry().Update(ctx, reg); err != nil {
			return fmt.Errorf("betting: update registry: %w", err)
		}

		ev.add(s.newEvent(domain.EventCompetitionCreated, comp.ID, caller, map[string]any{
			"asset_a":    comp.AssetA,
			"asset_b":    comp.AssetB,
			"start_time": comp.StartTime,
			"end_time":   comp.EndTime,
			"escrow":     comp.EscrowRef,
		}))
		return nil
	})
	if err != nil {
		return domain.Competition{}, err
	}

	s.logger.InfoContext(ctx, "betting: competition created",
		slog.String("competition_id", comp.ID),
		slog.String("asset_a", comp.AssetA),
		slog.String("asset_b", comp.AssetB),
		slog.Time("start_time", comp.StartTime),
		slog.Time("end_time", comp.EndTime),
	)
	return comp, nil
}

// PlaceBet moves the fixed stake from participant into the competition
// escrow and records the bet.
func (s *BettingService) PlaceBet(ctx context.Context, participant, competitionID, asset string, amount uint64) (domain.Bet, error) {
	participant, err := normalizeCaller(participant)
	if err != nil {
		return domain.Bet{}, err
	}

	var bet domain.Bet
	err = s.mutate(ctx, competitionKey(competitionID), func(ctx context.Context, tx domain.Tx, ev *events) error {
		reg, err := loadRegistry(ctx, tx)
		if err != nil {
			return err
		}
		if reg.Paused {
			return domain.ErrPlatformPaused
		}

		comp, err := loadCompetition(ctx, tx, competitionID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if now.Before(comp.StartTime) {
			return domain.ErrCompetitionNotStarted
		}
		if !now.Before(comp.EndTime) {
			return domain.ErrCompetitionEnded
		}
		if domain.StatusAt(comp, now) != domain.CompetitionStatusActive {
			return domain.ErrCompetitionNotActive
		}
		if !comp.HasAsset(asset) {
			return domain.ErrInvalidAssetChoice
		}
		if amount != s.policy.StakeAmount {
			return domain.ErrInvalidBetAmount
		}
		if _, err := tx.Bets().Get(ctx, comp.ID, participant); err == nil {
			return domain.ErrAlreadyBet
		} else if !isNotFound(err) {
			return fmt.Errorf("betting: bet %s/%s: %w", comp.ID, participant, err)
		}

		total, err := checkedAdd(comp.PoolTotal, amount)
		if err != nil {
			return err
		}
		side, err := checkedAdd(comp.Pool(asset), amount)
		if err != nil {
			return err
		}

		if err := tx.Ledger().Transfer(ctx, participant, comp.EscrowRef, amount, "bet:"+comp.ID); err != nil {
			return fmt.Errorf("betting: stake transfer: %w", err)
		}

		bet = domain.Bet{
			CompetitionID: comp.ID,
			Participant:   participant,
			ChosenAsset:   asset,
			Amount:        amount,
			Timestamp:     now,
		}
		if err := tx.Bets().Create(ctx, bet); err != nil {
			return fmt.Errorf("betting: create bet: %w", err)
		}

		if comp.Status != domain.CompetitionStatusActive {
			comp.Status = domain.CompetitionStatusActive
			ev.add(s.newEvent(domain.EventCompetitionActivated, comp.ID, participant, nil))
		}
		comp.PoolTotal = total
		if asset == comp.AssetA {
			comp.PoolA = side
		} else {
			comp.PoolB = side
		}
		if err := tx.Competitions().Update(ctx, comp); err != nil {
			return fmt.Errorf("betting: update competition %s: %w", comp.ID, err)
		}

		ev.add(s.newEvent(domain.EventBetPlaced, comp.ID, participant, map[string]any{
			"asset":      asset,
			"amount":     amount,
			"pool_total": comp.PoolTotal,
			"pool_a":     comp.PoolA,
			"pool_b":     comp.PoolB,
		}))
		return nil
	})
	if err != nil {
		return domain.Bet{}, err
	}

	s.logger.InfoContext(ctx, "betting: bet placed",
		slog.String("competition_id", bet.CompetitionID),
		slog.String("participant", bet.Participant),
		slog.String("asset", bet.ChosenAsset),
	)
	return bet, nil
}

// ResolveCompetition records the attested winner. The performance figures
// are stored as given; only their lower bound is checked.
func (s *BettingService) ResolveCompetition(ctx context.Context, caller, competitionID string, p ResolveParams) (domain.Competition, error) {
	caller, err := normalizeCaller(caller)
	if err != nil {
		return domain.Competition{}, err
	}

	var comp domain.Competition
	err = s.mutate(ctx, competitionKey(competitionID), func(ctx context.Context, tx domain.Tx, ev *events) error {
		reg, err := loadAuthorized(ctx, tx, caller)
		if err != nil {
			return err
		}
		c, err := loadCompetition(ctx, tx, competitionID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if now.Before(c.EndTime) {
			return domain.ErrCompetitionNotEnded
		}
		switch domain.StatusAt(c, now) {
		case domain.CompetitionStatusActive, domain.CompetitionStatusClosed:
		default:
			return domain.ErrInvalidCompetitionStatus
		}
		if !c.HasAsset(p.Winner) {
			return domain.ErrInvalidWinner
		}
		if p.PerformanceA < minPerformance || p.PerformanceB < minPerformance {
			return domain.ErrInvalidOracleData
		}

		c.Winner = p.Winner
		c.FinalPerformanceA = p.PerformanceA
		c.FinalPerformanceB = p.PerformanceB
		c.FeeRateBps = reg.FeeRateBps
		c.Status = domain.CompetitionStatusResolved
		c.ResolvedAt = &now
		if err := tx.Competitions().Update(ctx, c); err != nil {
			return fmt.Errorf("betting: update competition %s: %w", c.ID, err)
		}
		comp = c

		ev.add(s.newEvent(domain.EventCompetitionResolved, c.ID, caller, map[string]any{
			"winner":        c.Winner,
			"performance_a": c.FinalPerformanceA,
			"performance_b": c.FinalPerformanceB,
			"pool_total":    c.PoolTotal,
			"winner_pool":   c.Pool(c.Winner),
			"fee_rate_bps":  c.FeeRateBps,
		}))
		return nil
	})
	if err != nil {
		return domain.Competition{}, err
	}

	s.logger.InfoContext(ctx, "betting: competition resolved",
		slog.String("competition_id", comp.ID),
		slog.String("winner", comp.Winner),
	)
	return comp, nil
}

// SyncStatus persists the clock-derived status of a competition. It moves
// no value and anyone may call it.
func (s *BettingService) SyncStatus(ctx context.Context, competitionID string) (domain.Competition, error) {
	var comp domain.Competition
	err := s.mutate(ctx, competitionKey(competitionID), func(ctx context.Context, tx domain.Tx, ev *events) error {
		c, err := loadCompetition(ctx, tx, competitionID)
		if err != nil {
			return err
		}

		effective := domain.StatusAt(c, s.clock.Now())
		if effective == c.Status {
			comp = c
			return nil
		}

		c.Status = effective
		if err := tx.Competitions().Update(ctx, c); err != nil {
			return fmt.Errorf("betting: update competition %s: %w", c.ID, err)
		}
		comp = c

		typ := domain.EventCompetitionActivated
		if effective == domain.CompetitionStatusClosed {
			typ = domain.EventCompetitionClosed
		}
		ev.add(s.newEvent(typ, c.ID, "", nil))
		return nil
	})
	return comp, err
}
