package domain

import (
	"context"
	"time"
)

// LedgerEntry is one journaled movement of funds. An empty From marks an
// external credit into the ledger.
type LedgerEntry struct {
	ID        int64     `json:"id"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	Amount    uint64    `json:"amount"`
	Memo      string    `json:"memo"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger is the custodian that holds balances and moves funds between
// accounts. Transfers are all-or-nothing and never drive a balance negative.
type Ledger interface {
	// Open creates a zero-balance account if it does not exist yet.
	Open(ctx context.Context, account string) error
	// Balance returns the account balance. Unknown accounts hold zero.
	Balance(ctx context.Context, account string) (uint64, error)
	// Transfer moves amount from one account to another. It returns
	// ErrInsufficientBalance when from cannot cover amount.
	Transfer(ctx context.Context, from, to string, amount uint64, memo string) error
	// Credit adds externally custodied funds to account.
	Credit(ctx context.Context, account string, amount uint64, memo string) error
	// Entries returns the journal entries touching account, newest first.
	Entries(ctx context.Context, account string, opts ListOpts) ([]LedgerEntry, error)
}
