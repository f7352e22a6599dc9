package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

var _ domain.RegistryRepo = (*RegistryStore)(nil)

// RegistryStore persists the platform registry singleton row.
type RegistryStore struct {
	q         querier
	forUpdate bool
}

// Get returns the registry, locking the row inside write transactions.
func (s *RegistryStore) Get(ctx context.Context) (domain.PlatformRegistry, error) {
	query := `
		SELECT authority, fee_recipient, fee_rate_bps, paused,
		       competition_count, created_at, updated_at
		FROM platform_registry WHERE id = 1` + lockClause(s.forUpdate)

	var (
		r     domain.PlatformRegistry
		bps   int32
		count int64
	)
	err := s.q.QueryRow(ctx, query).Scan(
		&r.Authority, &r.FeeRecipient, &bps, &r.Paused,
		&count, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PlatformRegistry{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PlatformRegistry{}, fmt.Errorf("postgres: get registry: %w", err)
	}
	r.FeeRateBps = uint16(bps)
	r.CompetitionCount = fromBigint(count)
	return r, nil
}

// Create inserts the singleton row.
func (s *RegistryStore) Create(ctx context.Context, r domain.PlatformRegistry) error {
	const query = `
		INSERT INTO platform_registry (
			id, authority, fee_recipient, fee_rate_bps, paused,
			competition_count, created_at, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7)`

	count, err := toBigint(r.CompetitionCount)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, query,
		r.Authority, r.FeeRecipient, int32(r.FeeRateBps), r.Paused,
		count, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create registry: %w", mapError(err))
	}
	return nil
}

// Update overwrites the mutable registry fields.
func (s *RegistryStore) Update(ctx context.Context, r domain.PlatformRegistry) error {
	const query = `
		UPDATE platform_registry SET
			fee_recipient     = $1,
			fee_rate_bps      = $2,
			paused            = $3,
			competition_count = $4,
			updated_at        = $5
		WHERE id = 1`

	count, err := toBigint(r.CompetitionCount)
	if err != nil {
		return err
	}
	tag, err := s.q.Exec(ctx, query,
		r.FeeRecipient, int32(r.FeeRateBps), r.Paused, count, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update registry: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
