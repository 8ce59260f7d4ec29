package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tradingflow/server/pkg/logger"
)

// Config is the server configuration loaded from a yaml file, with
// environment-variable overrides applied on top.
type Config struct {
	Listen   string        `yaml:"listen"`
	DBPath   string        `yaml:"db_path"`
	CacheDir string        `yaml:"cache_dir"`
	Log      logger.Config `yaml:"log"`
	Binance  BinanceConfig `yaml:"binance"`
}

// BinanceConfig carries the REST base URLs so tests and regional deployments
// can point the clients elsewhere.
type BinanceConfig struct {
	SpotBaseURL    string `yaml:"spot_base_url"`
	FuturesBaseURL string `yaml:"futures_base_url"`
}

func Default() Config {
	return Config{
		Listen:   ":4000",
		DBPath:   "data/brokerage.db",
		CacheDir: "data/statecache",
		Log: logger.Config{
			Level:      "info",
			OutputFile: "logs/server.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		Binance: BinanceConfig{
			SpotBaseURL:    "https://api.binance.com",
			FuturesBaseURL: "https://fapi.binance.com",
		},
	}
}

// Load reads the yaml file at path (optional) and applies env overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TRADINGFLOW_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("TRADINGFLOW_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TRADINGFLOW_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("TRADINGFLOW_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TRADINGFLOW_BINANCE_SPOT_URL"); v != "" {
		cfg.Binance.SpotBaseURL = v
	}
	if v := os.Getenv("TRADINGFLOW_BINANCE_FUTURES_URL"); v != "" {
		cfg.Binance.FuturesBaseURL = v
	}
}
