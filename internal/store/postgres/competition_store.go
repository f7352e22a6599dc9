package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

var _ domain.CompetitionRepo = (*CompetitionStore)(nil)

// CompetitionStore persists competitions.
type CompetitionStore struct {
	q         querier
	forUpdate bool
}

const competitionSelectCols = `id, asset_a, asset_b, start_time, end_time, status,
	pool_total, pool_a, pool_b, winner, final_performance_a, final_performance_b,
	escrow_ref, fee_rate_bps, fee_paid, fee_collected, created_at, resolved_at`

func scanCompetition(row pgx.Row) (domain.Competition, error) {
	var (
		c                         domain.Competition
		status                    string
		winner                    *string
		total, poolA, poolB, paid int64
		feeRate                   int32
	)
	err := row.Scan(
		&c.ID, &c.AssetA, &c.AssetB, &c.StartTime, &c.EndTime, &status,
		&total, &poolA, &poolB, &winner, &c.FinalPerformanceA, &c.FinalPerformanceB,
		&c.EscrowRef, &feeRate, &paid, &c.FeeCollected, &c.CreatedAt, &c.ResolvedAt,
	)
	if err != nil {
		return domain.Competition{}, err
	}
	c.FeeRateBps = uint16(feeRate)
	c.Status = domain.CompetitionStatus(status)
	c.PoolTotal = fromBigint(total)
	c.PoolA = fromBigint(poolA)
	c.PoolB = fromBigint(poolB)
	c.FeePaid = fromBigint(paid)
	if winner != nil {
		c.Winner = *winner
	}
	return c, nil
}

// competitionArgs converts the amount fields for the write statements.
func competitionArgs(c domain.Competition) (total, poolA, poolB, paid int64, err error) {
	if total, err = toBigint(c.PoolTotal); err != nil {
		return
	}
	if poolA, err = toBigint(c.PoolA); err != nil {
		return
	}
	if poolB, err = toBigint(c.PoolB); err != nil {
		return
	}
	paid, err = toBigint(c.FeePaid)
	return
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Get returns a competition by ID.
func (s *CompetitionStore) Get(ctx context.Context, id string) (domain.Competition, error) {
	query := `SELECT ` + competitionSelectCols + ` FROM competitions WHERE id = $1` + lockClause(s.forUpdate)

	c, err := scanCompetition(s.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Competition{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Competition{}, fmt.Errorf("postgres: get competition %s: %w", id, err)
	}
	return c, nil
}

// Create inserts a new competition.
func (s *CompetitionStore) Create(ctx context.Context, c domain.Competition) error {
	const query = `
		INSERT INTO competitions (
			id, asset_a, asset_b, start_time, end_time, status,
			pool_total, pool_a, pool_b, winner, final_performance_a, final_performance_b,
			escrow_ref, fee_rate_bps, fee_paid, fee_collected, created_at, resolved_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, NOW()
		)`

	total, poolA, poolB, paid, err := competitionArgs(c)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, query,
		c.ID, c.AssetA, c.AssetB, c.StartTime, c.EndTime, string(c.Status),
		total, poolA, poolB, nullable(c.Winner), c.FinalPerformanceA, c.FinalPerformanceB,
		c.EscrowRef, int32(c.FeeRateBps), paid, c.FeeCollected, c.CreatedAt, c.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create competition %s: %w", c.ID, mapError(err))
	}
	return nil
}

// Update overwrites the mutable competition fields.
func (s *CompetitionStore) Update(ctx context.Context, c domain.Competition) error {
	const query = `
		UPDATE competitions SET
			status              = $2,
			pool_total          = $3,
			pool_a              = $4,
			pool_b              = $5,
			winner              = $6,
			final_performance_a = $7,
			final_performance_b = $8,
			fee_paid            = $9,
			fee_collected       = $10,
			resolved_at         = $11,
			fee_rate_bps        = $12,
			updated_at          = NOW()
		WHERE id = $1`

	total, poolA, poolB, paid, err := competitionArgs(c)
	if err != nil {
		return err
	}
	tag, err := s.q.Exec(ctx, query,
		c.ID, string(c.Status), total, poolA, poolB, nullable(c.Winner),
		c.FinalPerformanceA, c.FinalPerformanceB, paid, c.FeeCollected, c.ResolvedAt,
		int32(c.FeeRateBps),
	)
	if err != nil {
		return fmt.Errorf("postgres: update competition %s: %w", c.ID, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns competitions matching filter, newest first.
func (s *CompetitionStore) List(ctx context.Context, filter domain.CompetitionFilter, opts domain.ListOpts) ([]domain.Competition, error) {
	query := `SELECT ` + competitionSelectCols + ` FROM competitions WHERE 1=1`
	var args []any

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if filter.EndedBefore != nil {
		args = append(args, *filter.EndedBefore)
		query += fmt.Sprintf(" AND end_time < $%d", len(args))
	}
	query, args = appendWindow(query, args, "created_at", "created_at DESC, id", opts)

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list competitions: %w", err)
	}
	defer rows.Close()

	var out []domain.Competition
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan competition: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list competitions rows: %w", err)
	}
	return out, nil
}
