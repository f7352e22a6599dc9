package memory

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

type ledger struct{ t *tx }

func (l ledger) Open(_ context.Context, account string) error {
	if err := l.t.writable(); err != nil {
		return err
	}
	if _, ok := l.t.st.balances[account]; !ok {
		l.t.st.balances[account] = 0
	}
	return nil
}

func (l ledger) Balance(_ context.Context, account string) (uint64, error) {
	return l.t.st.balances[account], nil
}

func (l ledger) Transfer(_ context.Context, from, to string, amount uint64, memo string) error {
	if err := l.t.writable(); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	bal := l.t.st.balances[from]
	if bal < amount {
		return fmt.Errorf("memory: transfer %d from %s: %w", amount, from, domain.ErrInsufficientBalance)
	}
	credited, carry := bits.Add64(l.t.st.balances[to], amount, 0)
	if carry != 0 {
		return fmt.Errorf("memory: credit %s: %w", to, domain.ErrMathOverflow)
	}
	l.t.st.balances[from] = bal - amount
	l.t.st.balances[to] = credited
	l.journal(from, to, amount, memo)
	return nil
}

func (l ledger) Credit(_ context.Context, account string, amount uint64, memo string) error {
	if err := l.t.writable(); err != nil {
		return err
	}
	if amount == 0 {
		return domain.ErrInvalidAmount
	}
	credited, carry := bits.Add64(l.t.st.balances[account], amount, 0)
	if carry != 0 {
		return fmt.Errorf("memory: credit %s: %w", account, domain.ErrMathOverflow)
	}
	l.t.st.balances[account] = credited
	l.journal("", account, amount, memo)
	return nil
}

func (l ledger) journal(from, to string, amount uint64, memo string) {
	l.t.st.nextEntryID++
	l.t.st.entries = append(l.t.st.entries, domain.LedgerEntry{
		ID:        l.t.st.nextEntryID,
		From:      from,
		To:        to,
		Amount:    amount,
		Memo:      memo,
		CreatedAt: l.t.now(),
	})
}

func (l ledger) Entries(_ context.Context, account string, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for i := len(l.t.st.entries) - 1; i >= 0; i-- {
		e := l.t.st.entries[i]
		if (e.From == account || e.To == account) && inWindow(e.CreatedAt, opts) {
			out = append(out, e)
		}
	}
	return page(out, opts), nil
}
