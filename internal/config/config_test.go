package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults failed validation: %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Redis.Addr = ""
	cfg.Market.GraceWindow = duration{0}
	cfg.Economies = append(cfg.Economies, EconomyConfig{
		ID:   "house", // duplicate
		Kind: "points_api",
	})

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"unknown mode", "unknown log_level", "redis: addr", "grace_window", "duplicate id", "base_url is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateRejectsSecondLocalEconomy(t *testing.T) {
	cfg := Defaults()
	cfg.Economies = append(cfg.Economies, EconomyConfig{
		ID:    "other",
		Kind:  "local",
		Local: true,
	})
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "at most one economy may be local") {
		t.Fatalf("error = %v, want single-local complaint", err)
	}
}

func TestLoadAppliesFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "server"
log_level = "debug"

[market]
grace_window = "24h"
bet_rate_limit = 5

[[economies]]
id = "house"
display_name = "House Points"
kind = "local"
debitable = true
creditable = true
local = true

[[economies]]
id = "drip"
display_name = "Drip Points"
kind = "points_api"
debitable = true
creditable = true
base_url = "https://points.example.com"
api_key = "from-file"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("WAGERBOT_REDIS_ADDR", "redis-prod:6379")
	t.Setenv("WAGERBOT_MARKET_GRACE_WINDOW", "72h")
	t.Setenv("WAGERBOT_SERVER_API_KEY", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if cfg.Mode != "server" {
		t.Fatalf("mode = %q, want server", cfg.Mode)
	}
	// Env beats file.
	if cfg.Market.GraceWindow.Duration != 72*time.Hour {
		t.Fatalf("grace window = %s, want 72h", cfg.Market.GraceWindow)
	}
	if cfg.Redis.Addr != "redis-prod:6379" {
		t.Fatalf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.Server.APIKey != "from-env" {
		t.Fatalf("api key = %q", cfg.Server.APIKey)
	}
	// File beats defaults.
	if cfg.Market.BetRateLimit != 5 {
		t.Fatalf("bet rate limit = %d, want 5", cfg.Market.BetRateLimit)
	}
	if len(cfg.Economies) != 2 || cfg.Economies[1].ID != "drip" {
		t.Fatalf("economies = %+v", cfg.Economies)
	}
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Password = "hunter2"
	cfg.Server.APIKey = "sk-live"
	cfg.Economies[0].APIKey = "eco-secret"

	red := RedactedConfig(&cfg)

	if red.Database.Password != redacted || red.Server.APIKey != redacted || red.Economies[0].APIKey != redacted {
		t.Fatalf("secrets leaked: %+v", red)
	}
	// The original is untouched.
	if cfg.Database.Password != "hunter2" || cfg.Economies[0].APIKey != "eco-secret" {
		t.Fatal("redaction mutated the original config")
	}
}
