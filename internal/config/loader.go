package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies WAGERBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known WAGERBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "WAGERBOT_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "WAGERBOT_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "WAGERBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "WAGERBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "WAGERBOT_DATABASE_NAME")
	setStr(&cfg.Database.User, "WAGERBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "WAGERBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "WAGERBOT_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "WAGERBOT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "WAGERBOT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "WAGERBOT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "WAGERBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "WAGERBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "WAGERBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "WAGERBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "WAGERBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "WAGERBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "WAGERBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "WAGERBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "WAGERBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "WAGERBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "WAGERBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "WAGERBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "WAGERBOT_S3_FORCE_PATH_STYLE")

	// ── Market ──
	setDuration(&cfg.Market.GraceWindow, "WAGERBOT_MARKET_GRACE_WINDOW")
	setDuration(&cfg.Market.LockTTL, "WAGERBOT_MARKET_LOCK_TTL")
	setInt(&cfg.Market.BetRateLimit, "WAGERBOT_MARKET_BET_RATE_LIMIT")
	setDuration(&cfg.Market.BetRateWindow, "WAGERBOT_MARKET_BET_RATE_WINDOW")
	setInt(&cfg.Market.MaxOptions, "WAGERBOT_MARKET_MAX_OPTIONS")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "WAGERBOT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "WAGERBOT_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "WAGERBOT_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "WAGERBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "WAGERBOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "WAGERBOT_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "WAGERBOT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "WAGERBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "WAGERBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "WAGERBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "WAGERBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "WAGERBOT_MODE")
	setStr(&cfg.LogLevel, "WAGERBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
