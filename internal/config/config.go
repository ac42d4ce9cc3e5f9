package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Market    MarketConfig    `yaml:"market"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Terminal  TerminalConfig  `yaml:"terminal"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type StoreConfig struct {
	Sqlite SqliteConfig `yaml:"sqlite"`
}

type SqliteConfig struct {
	Path string `yaml:"path"`
}

type MarketConfig struct {
	BaseURL     string      `yaml:"base_url"`
	APIKey      string      `yaml:"api_key"`
	Currency    string      `yaml:"currency"`
	IDs         []string    `yaml:"ids"`
	TimeoutMs   int         `yaml:"timeout_ms"`
	CacheTTLSec int         `yaml:"cache_ttl_sec"`
	Cache       CacheConfig `yaml:"cache"`
}

type CacheConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type DashboardConfig struct {
	Source        string `yaml:"source"`
	SourceURL     string `yaml:"source_url"`
	SourceTimeout int    `yaml:"source_timeout_ms"`
	IntervalMs    int    `yaml:"interval_ms"`
	Enabled       bool   `yaml:"enabled"`
	HighlightMs   int    `yaml:"highlight_ms"`
	DiscardStale  bool   `yaml:"discard_stale"`
}

type TerminalConfig struct {
	CadenceMs int            `yaml:"cadence_ms"`
	Narrator  NarratorConfig `yaml:"narrator"`
}

type NarratorConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	ByAzure    bool   `yaml:"by_azure"`
	APIVersion string `yaml:"api_version"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info"},
		Store: StoreConfig{
			Sqlite: SqliteConfig{Path: "data/dashboard.db"},
		},
		Market: MarketConfig{
			BaseURL:     "https://api.coingecko.com/api/v3",
			Currency:    "usd",
			CacheTTLSec: 60,
			Cache: CacheConfig{
				Backend: "memory",
				Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "crypto-dashboard:"},
			},
		},
		Dashboard: DashboardConfig{
			Source:        "local",
			SourceURL:     "http://localhost:8080/api/crypto",
			SourceTimeout: 10000,
			IntervalMs:    60000,
			Enabled:       true,
			HighlightMs:   1000,
		},
		Terminal: TerminalConfig{
			CadenceMs: 2000,
			Narrator: NarratorConfig{
				Enabled:   false,
				Model:     "gpt-4.1-mini",
				TimeoutMs: 10000,
			},
		},
	}
}

func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv never overrides variables already present in the environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		cfg.Market.APIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Market.Cache.Redis.Addr = v
		cfg.Market.Cache.Backend = "redis"
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Market.Cache.Redis.Password = v
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Market.CacheTTLSec <= 0 {
		return fmt.Errorf("market.cache_ttl_sec must be positive")
	}
	if c.Market.TimeoutMs < 0 {
		return fmt.Errorf("market.timeout_ms must not be negative")
	}
	switch c.Market.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown market.cache.backend: %q", c.Market.Cache.Backend)
	}
	switch c.Dashboard.Source {
	case "local":
	case "http":
		if c.Dashboard.SourceURL == "" {
			return fmt.Errorf("dashboard.source_url required for http source")
		}
	default:
		return fmt.Errorf("unknown dashboard.source: %q", c.Dashboard.Source)
	}
	if c.Dashboard.IntervalMs <= 0 {
		return fmt.Errorf("dashboard.interval_ms must be positive")
	}
	if c.Dashboard.HighlightMs <= 0 {
		return fmt.Errorf("dashboard.highlight_ms must be positive")
	}
	return nil
}
