package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

var _ domain.BetRepo = (*BetStore)(nil)

// BetStore persists bets keyed by (competition_id, participant).
type BetStore struct {
	q         querier
	forUpdate bool
}

const betSelectCols = `competition_id, participant, chosen_asset, amount,
	placed_at, claimed, payout_amount, claimed_at`

func scanBet(row pgx.Row) (domain.Bet, error) {
	var (
		b              domain.Bet
		amount, payout int64
	)
	err := row.Scan(
		&b.CompetitionID, &b.Participant, &b.ChosenAsset, &amount,
		&b.Timestamp, &b.Claimed, &payout, &b.ClaimedAt,
	)
	if err != nil {
		return domain.Bet{}, err
	}
	b.Amount = fromBigint(amount)
	b.PayoutAmount = fromBigint(payout)
	return b, nil
}

// Get returns one bet.
func (s *BetStore) Get(ctx context.Context, competitionID, participant string) (domain.Bet, error) {
	query := `SELECT ` + betSelectCols + ` FROM bets
		WHERE competition_id = $1 AND participant = $2` + lockClause(s.forUpdate)

	b, err := scanBet(s.q.QueryRow(ctx, query, competitionID, participant))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Bet{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres: get bet %s/%s: %w", competitionID, participant, err)
	}
	return b, nil
}

// Create inserts a bet. The primary key rejects a second bet by the same
// participant.
func (s *BetStore) Create(ctx context.Context, b domain.Bet) error {
	const query = `
		INSERT INTO bets (
			competition_id, participant, chosen_asset, amount,
			placed_at, claimed, payout_amount, claimed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	amount, err := toBigint(b.Amount)
	if err != nil {
		return err
	}
	payout, err := toBigint(b.PayoutAmount)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, query,
		b.CompetitionID, b.Participant, b.ChosenAsset, amount,
		b.Timestamp, b.Claimed, payout, b.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create bet %s/%s: %w", b.CompetitionID, b.Participant, mapError(err))
	}
	return nil
}

// Update records the claim state of a bet.
func (s *BetStore) Update(ctx context.Context, b domain.Bet) error {
	const query = `
		UPDATE bets SET claimed = $3, payout_amount = $4, claimed_at = $5
		WHERE competition_id = $1 AND participant = $2`

	payout, err := toBigint(b.PayoutAmount)
	if err != nil {
		return err
	}
	tag, err := s.q.Exec(ctx, query, b.CompetitionID, b.Participant, b.Claimed, payout, b.ClaimedAt)
	if err != nil {
		return fmt.Errorf("postgres: update bet %s/%s: %w", b.CompetitionID, b.Participant, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByCompetition returns a competition's bets in placement order.
func (s *BetStore) ListByCompetition(ctx context.Context, competitionID string, opts domain.ListOpts) ([]domain.Bet, error) {
	query := `SELECT ` + betSelectCols + ` FROM bets WHERE competition_id = $1`
	query, args := appendWindow(query, []any{competitionID}, "placed_at", "placed_at ASC, participant", opts)
	return s.list(ctx, query, args)
}

// ListByParticipant returns a participant's bets, newest first.
func (s *BetStore) ListByParticipant(ctx context.Context, participant string, opts domain.ListOpts) ([]domain.Bet, error) {
	query := `SELECT ` + betSelectCols + ` FROM bets WHERE participant = $1`
	query, args := appendWindow(query, []any{participant}, "placed_at", "placed_at DESC, competition_id", opts)
	return s.list(ctx, query, args)
}

func (s *BetStore) list(ctx context.Context, query string, args []any) ([]domain.Bet, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets: %w", err)
	}
	defer rows.Close()

	var out []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bets rows: %w", err)
	}
	return out, nil
}
