// Package config defines the top-level configuration of the betting service
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/tokenbet/internal/crypto"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TOKENBET_* environment variables.
type Config struct {
	Platform PlatformConfig `toml:"platform"`
	Storage  StorageConfig  `toml:"storage"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Sweeper  SweeperConfig  `toml:"sweeper"`
	Archive  ArchiveConfig  `toml:"archive"`
	Notify   NotifyConfig   `toml:"notify"`
	Wallet   WalletConfig   `toml:"wallet"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PlatformConfig holds the betting engine policy and the optional registry
// bootstrap.
type PlatformConfig struct {
	// Bootstrap initializes the registry at startup when it does not exist,
	// using Authority, FeeRecipient and FeeRateBps.
	Bootstrap    bool   `toml:"bootstrap"`
	Authority    string `toml:"authority"`
	FeeRecipient string `toml:"fee_recipient"`
	FeeRateBps   int    `toml:"fee_rate_bps"`
	// FeeMode is "once" or "per_claim".
	FeeMode     string   `toml:"fee_mode"`
	StakeAmount uint64   `toml:"stake_amount"`
	LockTTL     duration `toml:"lock_ttl"`
	LockRetries int      `toml:"lock_retries"`
}

// StorageConfig selects the state backend.
type StorageConfig struct {
	// Driver is "postgres" or "memory".
	Driver string `toml:"driver"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis is optional; when
// disabled the service runs without distributed locks, cache or event bus.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	CacheTTL   duration `toml:"cache_ttl"`
}

// S3Config holds S3-compatible object storage parameters used by the
// archiver.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	CreateBucket   bool   `toml:"create_bucket"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey guards the operator endpoints (audit log). Empty disables them.
	APIKey string `toml:"api_key"`
	// RateLimit requests per RateWindow per client IP; 0 disables limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
	// AuthMaxSkew bounds the age of a signed request timestamp.
	AuthMaxSkew duration `toml:"auth_max_skew"`
}

// SweeperConfig controls the background status sweeper.
type SweeperConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
}

// ArchiveConfig controls the S3 archiver of settled competitions. Cron wins
// over Interval when set.
type ArchiveConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
	Cron     string   `toml:"cron"`
	MinAge   duration `toml:"min_age"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// WalletConfig holds the signing key used by the betctl client.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	// APIURL is the base URL betctl sends requests to.
	APIURL string `toml:"api_url"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Platform: PlatformConfig{
			FeeRateBps:  300,
			FeeMode:     "once",
			StakeAmount: 100_000_000,
			LockTTL:     duration{10 * time.Second},
			LockRetries: 5,
		},
		Storage: StorageConfig{Driver: "postgres"},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tokenbet",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			CacheTTL:   duration{30 * time.Second},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tokenbet-archive",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
			AuthMaxSkew: duration{5 * time.Minute},
		},
		Sweeper: SweeperConfig{
			Enabled:  true,
			Interval: duration{15 * time.Second},
		},
		Archive: ArchiveConfig{
			Enabled:  false,
			Interval: duration{time.Hour},
			MinAge:   duration{7 * 24 * time.Hour},
		},
		Notify: NotifyConfig{
			Events: []string{"competition_created", "competition_resolved", "competition_cancelled", "refund_issued"},
		},
		Wallet: WalletConfig{
			APIURL: "http://localhost:8000",
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"sweeper": true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// RunsServer reports whether the mode serves the HTTP API.
func (c *Config) RunsServer() bool {
	return c.Mode == "server" || c.Mode == "full"
}

// RunsSweeper reports whether the mode runs the status sweeper.
func (c *Config) RunsSweeper() bool {
	return c.Mode == "sweeper" || (c.Mode == "full" && c.Sweeper.Enabled)
}

// RunsArchiver reports whether the mode runs the archiver.
func (c *Config) RunsArchiver() bool {
	return c.Mode == "archive" || (c.Mode == "full" && c.Archive.Enabled)
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if !validModes[c.Mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, sweeper, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Platform
	if c.Platform.FeeRateBps < 0 || c.Platform.FeeRateBps > 10000 {
		errs = append(errs, fmt.Sprintf("platform: fee_rate_bps must be 0-10000, got %d", c.Platform.FeeRateBps))
	}
	if c.Platform.FeeMode != "once" && c.Platform.FeeMode != "per_claim" {
		errs = append(errs, fmt.Sprintf("platform: fee_mode must be once or per_claim, got %q", c.Platform.FeeMode))
	}
	if c.Platform.StakeAmount == 0 {
		errs = append(errs, "platform: stake_amount must be > 0")
	}
	if c.Platform.LockRetries < 1 {
		errs = append(errs, "platform: lock_retries must be >= 1")
	}
	if c.Platform.Bootstrap {
		if _, err := crypto.NormalizeAddress(c.Platform.Authority); err != nil {
			errs = append(errs, fmt.Sprintf("platform: authority: %v", err))
		}
		if _, err := crypto.NormalizeAddress(c.Platform.FeeRecipient); err != nil {
			errs = append(errs, fmt.Sprintf("platform: fee_recipient: %v", err))
		}
	}

	// Storage
	switch c.Storage.Driver {
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			if c.Database.Host == "" {
				errs = append(errs, "database: host must not be empty (or set database.dsn)")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
			}
			if c.Database.Database == "" {
				errs = append(errs, "database: database must not be empty")
			}
		}
		if c.Database.PoolMaxConns < 1 {
			errs = append(errs, "database: pool_max_conns must be >= 1")
		}
		if c.Database.PoolMinConns < 0 {
			errs = append(errs, "database: pool_min_conns must be >= 0")
		}
		if c.Database.PoolMinConns > c.Database.PoolMaxConns {
			errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
		}
	case "memory":
		if c.Mode != "full" {
			errs = append(errs, "storage: the memory driver only works in mode full")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage: unknown driver %q (valid: postgres, memory)", c.Storage.Driver))
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3 / archive
	if c.RunsArchiver() {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when archiving")
		}
		if c.Archive.Cron == "" && c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0 (or set archive.cron)")
		}
		if c.Archive.MinAge.Duration < 0 {
			errs = append(errs, "archive: min_age must be >= 0")
		}
	}

	// Sweeper
	if c.RunsSweeper() && c.Sweeper.Interval.Duration <= 0 {
		errs = append(errs, "sweeper: interval must be > 0")
	}

	// Server
	if c.RunsServer() {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.AuthMaxSkew.Duration <= 0 {
			errs = append(errs, "server: auth_max_skew must be > 0")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	// Wallet
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
