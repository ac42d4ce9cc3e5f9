package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsSurvivePartialFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\nmarket:\n  ids: [bitcoin, solana]\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port not read: %d", cfg.Server.Port)
	}
	if len(cfg.Market.IDs) != 2 || cfg.Market.IDs[1] != "solana" {
		t.Errorf("ids not read: %v", cfg.Market.IDs)
	}
	if cfg.Market.CacheTTLSec != 60 || cfg.Market.Currency != "usd" {
		t.Errorf("market defaults lost: %+v", cfg.Market)
	}
	if cfg.Dashboard.HighlightMs != 1000 || !cfg.Dashboard.Enabled || cfg.Dashboard.Source != "local" {
		t.Errorf("dashboard defaults lost: %+v", cfg.Dashboard)
	}
	if cfg.Market.TimeoutMs != 0 {
		t.Errorf("upstream timeout should default to none, got %d", cfg.Market.TimeoutMs)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("COINGECKO_API_KEY", "cg-key")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "log:\n  level: info\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7000 || cfg.Market.APIKey != "cg-key" || cfg.Log.Level != "debug" {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.Market.Cache.Backend != "redis" || cfg.Market.Cache.Redis.Addr != "redis:6379" {
		t.Errorf("REDIS_ADDR should select redis: %+v", cfg.Market.Cache)
	}
}

func TestLoad_InvalidPortEnv(t *testing.T) {
	t.Setenv("PORT", "http")
	if _, err := Load(writeConfig(t, "")); err == nil {
		t.Fatalf("expected invalid PORT error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"cache backend", func(c *Config) { c.Market.Cache.Backend = "memcached" }},
		{"source", func(c *Config) { c.Dashboard.Source = "grpc" }},
		{"http source without url", func(c *Config) { c.Dashboard.Source = "http"; c.Dashboard.SourceURL = "" }},
		{"interval", func(c *Config) { c.Dashboard.IntervalMs = 0 }},
		{"highlight", func(c *Config) { c.Dashboard.HighlightMs = -1 }},
		{"ttl", func(c *Config) { c.Market.CacheTTLSec = 0 }},
		{"timeout", func(c *Config) { c.Market.TimeoutMs = -5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DASHBOARD_TEST_VALUE=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DASHBOARD_TEST_VALUE", "")
	os.Unsetenv("DASHBOARD_TEST_VALUE")

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("DASHBOARD_TEST_VALUE"); got != "from-file" {
		t.Errorf("dotenv not applied: %q", got)
	}
	if err := loadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored: %v", err)
	}
}

func TestShippedConfig_PollInterval(t *testing.T) {
	if got := Default().Dashboard.IntervalMs; got != 60000 {
		t.Errorf("default interval: want 60000 ms, got %d", got)
	}
	cfg, err := Load(filepath.Join("..", "..", "configs", "app.yaml"))
	if err != nil {
		t.Fatalf("load shipped config: %v", err)
	}
	if cfg.Dashboard.IntervalMs != 60000 {
		t.Errorf("shipped interval: want 60000 ms, got %d", cfg.Dashboard.IntervalMs)
	}
	if cfg.Dashboard.IntervalMs != cfg.Market.CacheTTLSec*1000 {
		t.Errorf("poll interval %d ms should match cache window %d s", cfg.Dashboard.IntervalMs, cfg.Market.CacheTTLSec)
	}
}

func TestLoad_SubSecondInterval(t *testing.T) {
	cfg, err := Load(writeConfig(t, "dashboard:\n  interval_ms: 250\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dashboard.IntervalMs != 250 {
		t.Errorf("interval_ms not read: %d", cfg.Dashboard.IntervalMs)
	}
}
