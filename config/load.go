package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env    string       `yaml:"env"`
	Log    LogConfig    `yaml:"log"`
	Quotes QuotesConfig `yaml:"quotes"`
	Cache  CacheConfig  `yaml:"cache"`
	Server ServerConfig `yaml:"server"`
	Risk   RiskParams   `yaml:"risk"`
}

type LogConfig struct {
	Level   string   `yaml:"level"`
	Format  string   `yaml:"format"`
	Outputs []string `yaml:"outputs"`
}

type QuotesConfig struct {
	TWSource           string   `yaml:"twSource"` // yahoo | twse | tpex
	USSource           string   `yaml:"usSource"` // yahoo | finnhub
	FinnhubKey         string   `yaml:"finnhubKey"`
	AutoFetch          bool     `yaml:"autoFetch"`
	RefreshIntervalSec int      `yaml:"refreshIntervalSec"` // 0 → 不自动刷新
	Indices            []string `yaml:"indices"`
	DefaultMarket      string   `yaml:"defaultMarket"`
	Proxies            []string `yaml:"proxies"` // 前缀式中继，依序尝试
	DirectTimeoutMs    int      `yaml:"directTimeoutMs"`
	ProxyTimeoutMs     int      `yaml:"proxyTimeoutMs"`
	RateLimit          float64  `yaml:"rateLimit"` // 每秒请求数
	RateBurst          int      `yaml:"rateBurst"`
}

type CacheConfig struct {
	Path           string `yaml:"path"`
	TTLFallbackMin int    `yaml:"ttlFallbackMin"` // 无自动刷新时的 TTL
}

type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	RelayAllowHosts []string `yaml:"relayAllowHosts"`
}

// RiskParams 计算器可调参数；留 0 用内建近似值。
type RiskParams struct {
	StockFuturesIMRate float64 `yaml:"stockFuturesIMRate"`
	StockFuturesMMRate float64 `yaml:"stockFuturesMMRate"`
	SellerRiskRatio    float64 `yaml:"sellerRiskRatio"`
	SellerMinRatio     float64 `yaml:"sellerMinRatio"`
}

// Default returns the configuration used when no file is given.
func Default() AppConfig {
	return AppConfig{
		Env: "dev",
		Log: LogConfig{Level: "info", Format: "console", Outputs: []string{"stdout"}},
		Quotes: QuotesConfig{
			TWSource:           "twse",
			USSource:           "yahoo",
			AutoFetch:          true,
			RefreshIntervalSec: 60,
			Indices:            []string{"taiex", "sp500", "nasdaq", "dow", "sox"},
			DefaultMarket:      "tw",
			Proxies: []string{
				"https://api.allorigins.win/raw?url=",
				"https://corsproxy.io/?",
			},
			RateLimit: 5,
			RateBurst: 10,
		},
		Cache: CacheConfig{Path: "data/quotes.json", TTLFallbackMin: 30},
		Server: ServerConfig{
			Addr: ":8787",
			RelayAllowHosts: []string{
				"mis.twse.com.tw",
				"mis.taifex.com.tw",
				"query1.finance.yahoo.com",
				"query2.finance.yahoo.com",
				"finnhub.io",
				"www.taifex.com.tw",
				"openapi.taifex.com.tw",
			},
		},
	}
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("TG_FINNHUB_KEY"); v != "" {
		cfg.Quotes.FinnhubKey = v
	}
	return cfg, Validate(cfg)
}

var validSources = map[string]bool{"": true, "yahoo": true, "twse": true, "tpex": true, "finnhub": true}

// Validate ensures required fields are present and consistent.
func Validate(cfg AppConfig) error {
	if !validSources[cfg.Quotes.TWSource] {
		return fmt.Errorf("quotes.twSource %q unknown", cfg.Quotes.TWSource)
	}
	if !validSources[cfg.Quotes.USSource] {
		return fmt.Errorf("quotes.usSource %q unknown", cfg.Quotes.USSource)
	}
	if cfg.Quotes.USSource == "finnhub" && cfg.Quotes.FinnhubKey == "" && os.Getenv("TG_FINNHUB_KEY") == "" {
		return fmt.Errorf("quotes.usSource finnhub requires finnhubKey (or TG_FINNHUB_KEY)")
	}
	if cfg.Quotes.RefreshIntervalSec < 0 {
		return fmt.Errorf("quotes.refreshIntervalSec must be >= 0")
	}
	if cfg.Quotes.RefreshIntervalSec > 0 && cfg.Quotes.RefreshIntervalSec < 5 {
		return fmt.Errorf("quotes.refreshIntervalSec must be >= 5 to stay friendly to upstreams")
	}
	if cfg.Cache.TTLFallbackMin <= 0 {
		return fmt.Errorf("cache.ttlFallbackMin must be > 0")
	}
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if cfg.Risk.StockFuturesIMRate < 0 || cfg.Risk.StockFuturesMMRate < 0 {
		return fmt.Errorf("risk stock futures rates must be >= 0")
	}
	if cfg.Risk.SellerRiskRatio < 0 || cfg.Risk.SellerMinRatio < 0 {
		return fmt.Errorf("risk seller ratios must be >= 0")
	}
	return nil
}
