package postgres

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/bets?sslmode=disable",
		DSN(ClientConfig{User: "u", Password: "p", Host: "db", Database: "bets"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
}

func TestBigintConversion(t *testing.T) {
	v, err := toBigint(math.MaxInt64)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), v)

	_, err = toBigint(math.MaxInt64 + 1)
	assert.ErrorIs(t, err, domain.ErrMathOverflow)

	assert.Equal(t, uint64(0), fromBigint(-5))
}

func TestMapError(t *testing.T) {
	unique := &pgconn.PgError{Code: codeUniqueViolation}
	assert.ErrorIs(t, mapError(unique), domain.ErrAlreadyExists)

	overflow := &pgconn.PgError{Code: codeNumericOverflow}
	assert.ErrorIs(t, mapError(overflow), domain.ErrMathOverflow)

	check := &pgconn.PgError{Code: codeCheckViolation}
	assert.ErrorIs(t, ledgerError(check), domain.ErrInsufficientBalance)

	plain := errors.New("boom")
	assert.Equal(t, plain, mapError(plain))
	assert.Nil(t, mapError(nil))
}

func TestAppendWindow(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q, args := appendWindow("SELECT 1 FROM bets WHERE participant = $1", []any{"0xabc"},
		"placed_at", "placed_at DESC", domain.ListOpts{Since: &since, Limit: 10, Offset: 20})

	assert.Equal(t,
		"SELECT 1 FROM bets WHERE participant = $1 AND placed_at >= $2 ORDER BY placed_at DESC LIMIT $3 OFFSET $4", q)
	assert.Equal(t, []any{"0xabc", since, 10, 20}, args)
}

func TestMigrationsEmbedded(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS competitions")
	assert.Contains(t, string(data), "PRIMARY KEY (competition_id, participant)")

	data, err = migrationsFS.ReadFile("migrations/002_competition_fee_rate.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "ADD COLUMN IF NOT EXISTS fee_rate_bps")
}
