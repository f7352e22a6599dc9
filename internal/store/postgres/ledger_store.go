package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

var _ domain.Ledger = (*LedgerStore)(nil)

// LedgerStore is the custodial ledger: one balance row per account plus a
// journal entry per movement. The balance CHECK constraint backs up the
// conditional debit so no balance can go negative.
type LedgerStore struct {
	q querier
}

// Open creates a zero-balance account if missing.
func (s *LedgerStore) Open(ctx context.Context, account string) error {
	const query = `INSERT INTO accounts (address) VALUES ($1) ON CONFLICT (address) DO NOTHING`
	if _, err := s.q.Exec(ctx, query, account); err != nil {
		return fmt.Errorf("postgres: open account %s: %w", account, err)
	}
	return nil
}

// Balance returns the balance of account; unknown accounts hold zero.
func (s *LedgerStore) Balance(ctx context.Context, account string) (uint64, error) {
	var bal int64
	err := s.q.QueryRow(ctx, `SELECT balance FROM accounts WHERE address = $1`, account).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: balance %s: %w", account, err)
	}
	return fromBigint(bal), nil
}

// Transfer debits from and credits to in the caller's transaction.
func (s *LedgerStore) Transfer(ctx context.Context, from, to string, amount uint64, memo string) error {
	if amount == 0 {
		return nil
	}
	amt, err := toBigint(amount)
	if err != nil {
		return err
	}

	const debit = `
		UPDATE accounts SET balance = balance - $2, updated_at = NOW()
		WHERE address = $1 AND balance >= $2`
	tag, err := s.q.Exec(ctx, debit, from, amt)
	if err != nil {
		return fmt.Errorf("postgres: debit %s: %w", from, ledgerError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: debit %d from %s: %w", amount, from, domain.ErrInsufficientBalance)
	}

	if err := s.credit(ctx, to, amt); err != nil {
		return err
	}
	return s.journal(ctx, &from, to, amt, memo)
}

// Credit adds externally custodied funds to account.
func (s *LedgerStore) Credit(ctx context.Context, account string, amount uint64, memo string) error {
	if amount == 0 {
		return domain.ErrInvalidAmount
	}
	amt, err := toBigint(amount)
	if err != nil {
		return err
	}
	if err := s.credit(ctx, account, amt); err != nil {
		return err
	}
	return s.journal(ctx, nil, account, amt, memo)
}

func (s *LedgerStore) credit(ctx context.Context, account string, amt int64) error {
	const query = `
		INSERT INTO accounts (address, balance) VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE
		SET balance = accounts.balance + EXCLUDED.balance, updated_at = NOW()`
	if _, err := s.q.Exec(ctx, query, account, amt); err != nil {
		return fmt.Errorf("postgres: credit %s: %w", account, ledgerError(err))
	}
	return nil
}

func (s *LedgerStore) journal(ctx context.Context, from *string, to string, amt int64, memo string) error {
	const query = `INSERT INTO ledger_entries (from_account, to_account, amount, memo) VALUES ($1, $2, $3, $4)`
	if _, err := s.q.Exec(ctx, query, from, to, amt, memo); err != nil {
		return fmt.Errorf("postgres: journal entry: %w", err)
	}
	return nil
}

// Entries returns the journal of account, newest first.
func (s *LedgerStore) Entries(ctx context.Context, account string, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	query := `SELECT id, from_account, to_account, amount, memo, created_at
		FROM ledger_entries WHERE (from_account = $1 OR to_account = $1)`
	query, args := appendWindow(query, []any{account}, "created_at", "id DESC", opts)

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var (
			e    domain.LedgerEntry
			from *string
			amt  int64
		)
		if err := rows.Scan(&e.ID, &from, &e.To, &amt, &e.Memo, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan ledger entry: %w", err)
		}
		if from != nil {
			e.From = *from
		}
		e.Amount = fromBigint(amt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list ledger entries rows: %w", err)
	}
	return out, nil
}

func ledgerError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeCheckViolation {
		return fmt.Errorf("%w: %w", domain.ErrInsufficientBalance, err)
	}
	return mapError(err)
}
