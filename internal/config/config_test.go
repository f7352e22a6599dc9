package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAuthority = "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1"
	testRecipient = "0xFFcf8FDEE72ac11b5c542428B35EEF5769C409f0"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.RunsServer())
	assert.True(t, cfg.RunsSweeper())
	assert.False(t, cfg.RunsArchiver())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
mode = "server"

[platform]
bootstrap = true
authority = "`+testAuthority+`"
fee_recipient = "`+testRecipient+`"
fee_rate_bps = 250
fee_mode = "per_claim"

[storage]
driver = "postgres"

[server]
port = 9000
auth_max_skew = "2m"

[archive]
cron = "0 3 * * *"
min_age = "72h"
`)
	t.Setenv("TOKENBET_SERVER_PORT", "9100")
	t.Setenv("TOKENBET_NOTIFY_EVENTS", "bet_placed, winnings_claimed,")
	t.Setenv("TOKENBET_PLATFORM_STAKE_AMOUNT", "5000")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, 250, cfg.Platform.FeeRateBps)
	assert.Equal(t, "per_claim", cfg.Platform.FeeMode)
	assert.Equal(t, uint64(5000), cfg.Platform.StakeAmount)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.AuthMaxSkew.Duration)
	assert.Equal(t, "0 3 * * *", cfg.Archive.Cron)
	assert.Equal(t, 72*time.Hour, cfg.Archive.MinAge.Duration)
	assert.Equal(t, []string{"bet_placed", "winnings_claimed"}, cfg.Notify.Events)
	// Untouched sections keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.Sweeper.Interval.Duration)
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, "[platform]\nfee_rate = 3\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "platform.fee_rate")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "full", cfg.Mode)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.LogLevel = "loud"
	cfg.Platform.FeeRateBps = 10001
	cfg.Platform.FeeMode = "sometimes"
	cfg.Platform.Bootstrap = true
	cfg.Platform.Authority = "nope"
	cfg.Storage.Driver = "sqlite"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown mode "trade"`,
		`unknown log_level "loud"`,
		"fee_rate_bps must be 0-10000",
		"fee_mode must be once or per_claim",
		"platform: authority",
		"platform: fee_recipient",
		`unknown driver "sqlite"`,
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_ModeSpecificSections(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "archive"
	cfg.S3.Bucket = ""
	cfg.Archive.Interval.Duration = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: bucket")
	assert.Contains(t, err.Error(), "archive: interval")

	cfg.Archive.Cron = "0 * * * *"
	cfg.S3.Bucket = "b"
	assert.NoError(t, cfg.Validate())

	mem := Defaults()
	mem.Storage.Driver = "memory"
	mem.Mode = "server"
	err = mem.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory driver")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "deadbeef"
	cfg.Database.Password = "pw"
	cfg.Server.APIKey = "key"
	cfg.Notify.TelegramToken = ""

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Wallet.PrivateKey)
	assert.Equal(t, "***", out.Database.Password)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Empty(t, out.Notify.TelegramToken)
	assert.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)

	out.Notify.Events[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Notify.Events[0])
}
