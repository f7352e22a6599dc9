package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

const (
	alice = "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1"
	bob   = "0xFFcf8FDEE72ac11b5c542428B35EEF5769C409f0"
)

func TestStore_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		require.NoError(t, tx.Ledger().Credit(ctx, alice, 500, "deposit"))
		require.NoError(t, tx.Competitions().Create(ctx, domain.Competition{ID: "c1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		bal, err := tx.Ledger().Balance(ctx, alice)
		require.NoError(t, err)
		assert.Zero(t, bal)

		_, err = tx.Competitions().Get(ctx, "c1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		return nil
	}))
	assert.Empty(t, s.Entries())
}

func TestStore_ViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Ledger().Credit(ctx, alice, 1, "x")
	})
	assert.ErrorIs(t, err, errReadOnly)
}

func TestLedger_Transfer(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Ledger().Credit(ctx, alice, 100, "deposit")
	}))

	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Ledger().Transfer(ctx, alice, bob, 101, "too much")
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Ledger().Transfer(ctx, alice, bob, 40, "bet")
	}))

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		a, _ := tx.Ledger().Balance(ctx, alice)
		b, _ := tx.Ledger().Balance(ctx, bob)
		assert.Equal(t, uint64(60), a)
		assert.Equal(t, uint64(40), b)
		return nil
	}))

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "", entries[0].From)
	assert.Equal(t, alice, entries[1].From)
	assert.Equal(t, bob, entries[1].To)
}

func TestBets_UniquePerParticipant(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		require.NoError(t, tx.Bets().Create(ctx, domain.Bet{CompetitionID: "c1", Participant: alice}))
		return tx.Bets().Create(ctx, domain.Bet{CompetitionID: "c1", Participant: alice})
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestCompetitions_ListFilterAndPage(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		for i, id := range []string{"a", "b", "c"} {
			c := domain.Competition{
				ID:        id,
				Status:    domain.CompetitionStatusUpcoming,
				CreatedAt: base.Add(time.Duration(i) * time.Hour),
				EndTime:   base.Add(time.Duration(i+1) * 24 * time.Hour),
			}
			if id == "b" {
				c.Status = domain.CompetitionStatusResolved
			}
			if err := tx.Competitions().Create(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		all, err := tx.Competitions().List(ctx, domain.CompetitionFilter{}, domain.ListOpts{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "c", all[0].ID)

		upcoming, err := tx.Competitions().List(ctx, domain.CompetitionFilter{
			Statuses: []domain.CompetitionStatus{domain.CompetitionStatusUpcoming},
		}, domain.ListOpts{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, upcoming, 1)
		assert.Equal(t, "a", upcoming[0].ID)

		cutoff := base.Add(50 * time.Hour)
		ended, err := tx.Competitions().List(ctx, domain.CompetitionFilter{EndedBefore: &cutoff}, domain.ListOpts{})
		require.NoError(t, err)
		assert.Len(t, ended, 2)
		return nil
	}))
}

func TestAuditStore_NewestFirst(t *testing.T) {
	ctx := context.Background()
	a := NewAuditStore()
	require.NoError(t, a.Log(ctx, "first", nil))
	require.NoError(t, a.Log(ctx, "second", map[string]any{"k": "v"}))

	list, err := a.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Event)
}
