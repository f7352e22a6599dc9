package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

var _ domain.Transactor = (*Transactor)(nil)

// PostgreSQL error codes mapped to domain errors.
const (
	codeUniqueViolation  = "23505"
	codeCheckViolation   = "23514"
	codeNumericOverflow  = "22003"
	codeSerialization    = "40001"
	codeDeadlockDetected = "40P01"
)

// Transactor runs domain transactions on PostgreSQL. Rows read inside
// WithinTx are locked with SELECT ... FOR UPDATE so concurrent writers to the
// same competition serialize on the row lock.
type Transactor struct {
	pool *pgxpool.Pool
}

// NewTransactor creates a Transactor over pool.
func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

// WithinTx runs fn in a read-committed transaction and commits when fn
// returns nil.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	err := pgx.BeginTxFunc(ctx, t.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ptx pgx.Tx) error {
		return fn(ctx, &scope{q: ptx, forUpdate: true})
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

// View runs fn in a read-only transaction.
func (t *Transactor) View(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	err := pgx.BeginTxFunc(ctx, t.pool, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(ptx pgx.Tx) error {
		return fn(ctx, &scope{q: ptx})
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

// scope is the domain.Tx view of one pgx transaction.
type scope struct {
	q         querier
	forUpdate bool
}

func (s *scope) Registry() domain.RegistryRepo       { return &RegistryStore{q: s.q, forUpdate: s.forUpdate} }
func (s *scope) Competitions() domain.CompetitionRepo { return &CompetitionStore{q: s.q, forUpdate: s.forUpdate} }
func (s *scope) Bets() domain.BetRepo                 { return &BetStore{q: s.q, forUpdate: s.forUpdate} }
func (s *scope) Ledger() domain.Ledger                { return &LedgerStore{q: s.q} }

func lockClause(forUpdate bool) string {
	if forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

// mapError converts driver errors into domain errors while keeping the
// original in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %w", domain.ErrAlreadyExists, err)
	case codeNumericOverflow:
		return fmt.Errorf("%w: %w", domain.ErrMathOverflow, err)
	case codeSerialization, codeDeadlockDetected:
		return fmt.Errorf("%w: %w", domain.ErrLockHeld, err)
	}
	return err
}

// Amounts are uint64 in the domain and BIGINT in the schema.

func toBigint(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, domain.ErrMathOverflow
	}
	return int64(v), nil
}

func fromBigint(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// appendWindow adds created-at style bounds, ordering and pagination to a
// query built with positional arguments.
func appendWindow(query string, args []any, col, order string, opts domain.ListOpts) (string, []any) {
	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" AND %s >= $%d", col, len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" AND %s <= $%d", col, len(args))
	}

	query += " ORDER BY " + order

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}
