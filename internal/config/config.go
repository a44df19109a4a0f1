// Package config defines the top-level configuration for the wager
// coordinator and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by WAGERBOT_* environment variables.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Market    MarketConfig    `toml:"market"`
	Archive   ArchiveConfig   `toml:"archive"`
	Economies []EconomyConfig `toml:"economies"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the archiver.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// MarketConfig holds the prediction-market lifecycle parameters.
type MarketConfig struct {
	// GraceWindow is the delay between the betting deadline and the
	// automatic refund of an unresolved market.
	GraceWindow   duration `toml:"grace_window"`
	LockTTL       duration `toml:"lock_ttl"`
	BetRateLimit  int      `toml:"bet_rate_limit"`
	BetRateWindow duration `toml:"bet_rate_window"`
	MaxOptions    int      `toml:"max_options"`
}

// ArchiveConfig holds parameters for archiving settled markets and terminal
// transfer records to object storage.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// EconomyConfig describes one registered economy. Kind "local" balances live
// in our own store; kind "points_api" economies are reached over HTTP.
type EconomyConfig struct {
	ID          string `toml:"id"`
	DisplayName string `toml:"display_name"`
	Kind        string `toml:"kind"`
	Debitable   bool   `toml:"debitable"`
	Creditable  bool   `toml:"creditable"`
	Local       bool   `toml:"local"`
	BaseURL     string `toml:"base_url"`
	APIKey      string `toml:"api_key"`
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
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "wagerbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "wagerbot-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Market: MarketConfig{
			GraceWindow:   duration{48 * time.Hour},
			LockTTL:       duration{10 * time.Second},
			BetRateLimit:  10,
			BetRateWindow: duration{time.Minute},
			MaxOptions:    10,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Economies: []EconomyConfig{
			{
				ID:          "house",
				DisplayName: "House Points",
				Kind:        "local",
				Debitable:   true,
				Creditable:  true,
				Local:       true,
			},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"betting_ended", "resolved", "auto_refunded", "unreconciled_transfer"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validEconomyKinds enumerates the accepted values for EconomyConfig.Kind.
var validEconomyKinds = map[string]bool{
	"local":      true,
	"points_api": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, monitor, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Database
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

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only required when archiving is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}

	// Market
	if c.Market.GraceWindow.Duration <= 0 {
		errs = append(errs, "market: grace_window must be > 0")
	}
	if c.Market.LockTTL.Duration <= 0 {
		errs = append(errs, "market: lock_ttl must be > 0")
	}
	if c.Market.BetRateLimit < 1 {
		errs = append(errs, "market: bet_rate_limit must be >= 1")
	}
	if c.Market.BetRateWindow.Duration <= 0 {
		errs = append(errs, "market: bet_rate_window must be > 0")
	}
	if c.Market.MaxOptions < 2 {
		errs = append(errs, "market: max_options must be >= 2")
	}

	// Economies
	if len(c.Economies) == 0 {
		errs = append(errs, "economies: at least one economy must be configured")
	}
	seen := make(map[string]bool, len(c.Economies))
	locals := 0
	for i, eco := range c.Economies {
		prefix := fmt.Sprintf("economies[%d]", i)
		if eco.ID == "" {
			errs = append(errs, prefix+": id must not be empty")
		} else if seen[eco.ID] {
			errs = append(errs, fmt.Sprintf("%s: duplicate id %q", prefix, eco.ID))
		}
		seen[eco.ID] = true
		if !validEconomyKinds[eco.Kind] {
			errs = append(errs, fmt.Sprintf("%s: unknown kind %q (valid: local, points_api)", prefix, eco.Kind))
		}
		if eco.Kind == "points_api" && eco.BaseURL == "" {
			errs = append(errs, prefix+": base_url is required for kind points_api")
		}
		if eco.Local {
			locals++
			if eco.Kind != "local" {
				errs = append(errs, prefix+": the local economy must have kind local")
			}
		}
	}
	if locals > 1 {
		errs = append(errs, "economies: at most one economy may be local")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
