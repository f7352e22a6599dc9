package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/tokenbet/internal/crypto"
	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// Initialize creates the platform registry. The authority is the identity
// that signed the call. It can only succeed once per deployment.
func (s *BettingService) Initialize(ctx context.Context, authority, feeRecipient string, feeRateBps uint16) (domain.PlatformRegistry, error) {
	authority, err := normalizeCaller(authority)
	if err != nil {
		return domain.PlatformRegistry{}, err
	}
	feeRecipient, err = crypto.NormalizeAddress(feeRecipient)
	if err != nil {
		return domain.PlatformRegistry{}, fmt.Errorf("betting: fee recipient: %w", err)
	}
	if !domain.ValidFeeRate(feeRateBps) {
		return domain.PlatformRegistry{}, domain.ErrInvalidFee
	}

	var reg domain.PlatformRegistry
	err = s.mutate(ctx, platformKey(), func(ctx context.Context, tx domain.Tx, ev *events) error {
		if _, err := tx.Registry().Get(ctx); err == nil {
			return domain.ErrAlreadyInitialized
		} else if !isNotFound(err) {
			return fmt.Errorf("betting: load registry: %w", err)
		}

		now := s.clock.Now()
		reg = domain.PlatformRegistry{
			Authority:    authority,
			FeeRecipient: feeRecipient,
			FeeRateBps:   feeRateBps,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Registry().Create(ctx, reg); err != nil {
			return fmt.Errorf("betting: create registry: %w", err)
		}
		if err := tx.Ledger().Open(ctx, feeRecipient); err != nil {
			return fmt.Errorf("betting: open fee account: %w", err)
		}

		ev.add(s.newEvent(domain.EventPlatformInitialized, "", authority, map[string]any{
			"fee_recipient": feeRecipient,
			"fee_rate_bps":  feeRateBps,
		}))
		return nil
	})
	if err != nil {
		return domain.PlatformRegistry{}, err
	}

	s.logger.InfoContext(ctx, "betting: platform initialized",
		slog.String("authority", authority),
		slog.String("fee_recipient", feeRecipient),
		slog.Int("fee_rate_bps", int(feeRateBps)),
	)
	return reg, nil
}

// SetPaused toggles the platform-wide pause flag that gates competition
// creation and betting.
func (s *BettingService) SetPaused(ctx context.Context, caller string, paused bool) (domain.PlatformRegistry, error) {
	caller, err := normalizeCaller(caller)
	if err != nil {
		return domain.PlatformRegistry{}, err
	}

	var reg domain.PlatformRegistry
	err = s.mutate(ctx, platformKey(), func(ctx context.Context, tx domain.Tx, ev *events) error {
		r, err := loadAuthorized(ctx, tx, caller)
		if err != nil {
			return err
		}
		r.Paused = paused
		r.UpdatedAt = s.clock.Now()
		if err := tx.Registry().Update(ctx, r); err != nil {
			return fmt.Errorf("betting: update registry: %w", err)
		}
		reg = r

		typ := domain.EventPlatformResumed
		if paused {
			typ = domain.EventPlatformPaused
		}
		ev.add(s.newEvent(typ, "", caller, nil))
		return nil
	})
	if err != nil {
		return domain.PlatformRegistry{}, err
	}

	s.logger.InfoContext(ctx, "betting: platform pause toggled",
		slog.Bool("paused", paused),
	)
	return reg, nil
}

// UpdateFeeRate changes the fee applied to future claims.
func (s *BettingService) UpdateFeeRate(ctx context.Context, caller string, feeRateBps uint16) (domain.PlatformRegistry, error) {
	caller, err := normalizeCaller(caller)
	if err != nil {
		return domain.PlatformRegistry{}, err
	}

	var (
		reg      domain.PlatformRegistry
		previous uint16
	)
	err = s.mutate(ctx, platformKey(), func(ctx context.Context, tx domain.Tx, ev *events) error {
		r, err := loadAuthorized(ctx, tx, caller)
		if err != nil {
			return err
		}
		if !domain.ValidFeeRate(feeRateBps) {
			return domain.ErrInvalidFee
		}
		previous = r.FeeRateBps
		r.FeeRateBps = feeRateBps
		r.UpdatedAt = s.clock.Now()
		if err := tx.Registry().Update(ctx, r); err != nil {
			return fmt.Errorf("betting: update registry: %w", err)
		}
		reg = r

		ev.add(s.newEvent(domain.EventFeeRateUpdated, "", caller, map[string]any{
			"previous_bps": previous,
			"fee_rate_bps": feeRateBps,
		}))
		return nil
	})
	if err != nil {
		return domain.PlatformRegistry{}, err
	}

	s.logger.InfoContext(ctx, "betting: fee rate updated",
		slog.Int("previous_bps", int(previous)),
		slog.Int("fee_rate_bps", int(feeRateBps)),
	)
	return reg, nil
}

// Deposit credits externally custodied funds to account. Only the authority
// acts as the custodian gateway.
func (s *BettingService) Deposit(ctx context.Context, caller, account string, amount uint64) (uint64, error) {
	caller, err := normalizeCaller(caller)
	if err != nil {
		return 0, err
	}

	var balance uint64
	err = s.mutate(ctx, "account:"+account, func(ctx context.Context, tx domain.Tx, ev *events) error {
		if _, err := loadAuthorized(ctx, tx, caller); err != nil {
			return err
		}
		acct, err := crypto.NormalizeAddress(account)
		if err != nil {
			return fmt.Errorf("betting: deposit account: %w", err)
		}
		if amount == 0 {
			return domain.ErrInvalidAmount
		}
		if err := tx.Ledger().Credit(ctx, acct, amount, "deposit"); err != nil {
			return fmt.Errorf("betting: credit %s: %w", acct, err)
		}
		balance, err = tx.Ledger().Balance(ctx, acct)
		if err != nil {
			return fmt.Errorf("betting: balance %s: %w", acct, err)
		}

		ev.add(s.newEvent(domain.EventDeposit, "", caller, map[string]any{
			"account": acct,
			"amount":  amount,
			"balance": balance,
		}))
		return nil
	})
	return balance, err
}

// Registry returns the platform registry.
func (s *BettingService) Registry(ctx context.Context) (domain.PlatformRegistry, error) {
	var reg domain.PlatformRegistry
	err := s.tx.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		r, err := loadRegistry(ctx, tx)
		reg = r
		return err
	})
	return reg, err
}

// Balance returns the ledger balance of account.
func (s *BettingService) Balance(ctx context.Context, account string) (uint64, error) {
	acct, err := crypto.NormalizeAddress(account)
	if err != nil {
		return 0, fmt.Errorf("betting: balance: %w", err)
	}
	var balance uint64
	err = s.tx.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		b, err := tx.Ledger().Balance(ctx, acct)
		if err != nil {
			return fmt.Errorf("betting: balance %s: %w", acct, err)
		}
		balance = b
		return nil
	})
	return balance, err
}

// LedgerEntries returns the journal of account, newest first.
func (s *BettingService) LedgerEntries(ctx context.Context, account string, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	acct, err := crypto.NormalizeAddress(account)
	if err != nil {
		return nil, fmt.Errorf("betting: ledger entries: %w", err)
	}
	var entries []domain.LedgerEntry
	err = s.tx.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		e, err := tx.Ledger().Entries(ctx, acct, opts)
		if err != nil {
			return fmt.Errorf("betting: ledger entries %s: %w", acct, err)
		}
		entries = e
		return nil
	})
	return entries, err
}
