package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbet/internal/config"
	"github.com/alanyoungcy/tokenbet/internal/service"
	"github.com/alanyoungcy/tokenbet/internal/store/memory"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Storage.Driver = "memory"
	cfg.Redis.Enabled = false
	cfg.Platform.Bootstrap = true
	cfg.Platform.Authority = "0x00000000000000000000000000000000000000a0"
	cfg.Platform.FeeRecipient = "0x00000000000000000000000000000000000000fe"
	cfg.Platform.FeeRateBps = 250
	require.NoError(t, cfg.Validate())
	return &cfg
}

func TestPolicy(t *testing.T) {
	cfg := config.Defaults().Platform
	cfg.FeeMode = "per_claim"
	cfg.StakeAmount = 42
	cfg.LockRetries = 9

	p := Policy(cfg)
	assert.Equal(t, service.FeeModePerClaim, p.FeeMode)
	assert.Equal(t, uint64(42), p.StakeAmount)
	assert.Equal(t, 9, p.LockRetries)
	assert.Equal(t, 10*time.Second, p.LockTTL)
	assert.Equal(t, service.DefaultPolicy().LockBackoff, p.LockBackoff)
}

func TestWire_MemoryBootstrap(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps, cleanup, err := Wire(ctx, cfg, logger)
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &memory.Store{}, deps.Store)
	assert.IsType(t, &memory.Bus{}, deps.Bus)
	assert.Nil(t, deps.Locks)
	assert.Nil(t, deps.Nonces)
	assert.Nil(t, deps.Archiver)
	assert.False(t, deps.Notifier.Enabled())

	a := New(cfg, logger)
	svc := a.newBettingService(deps)
	require.NoError(t, a.bootstrap(ctx, svc))
	// A second start finds the registry in place.
	require.NoError(t, a.bootstrap(ctx, svc))

	reg, err := svc.Registry(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(250), reg.FeeRateBps)
	assert.Equal(t, common.HexToAddress(cfg.Platform.Authority).Hex(), reg.Authority)
}

func TestWire_UnknownDriver(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Driver = "sqlite"
	_, _, err := Wire(context.Background(), &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
