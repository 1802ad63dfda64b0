package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rustyeddy/llmtrader/market"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TRADER_VENUE_API_KEY.
const EnvPrefix = "TRADER"

type Config struct {
	App      AppConfig      `mapstructure:"app" yaml:"app" json:"app"`
	Log      LogConfig      `mapstructure:"log" yaml:"log" json:"log"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Journal  JournalConfig  `mapstructure:"journal" yaml:"journal" json:"journal"`
	Venue    VenueConfig    `mapstructure:"venue" yaml:"venue" json:"venue"`
	Reasoner ReasonerConfig `mapstructure:"reasoner" yaml:"reasoner" json:"reasoner"`
	Trading  TradingConfig  `mapstructure:"trading" yaml:"trading" json:"trading"`
	Risk     RiskConfig     `mapstructure:"risk" yaml:"risk" json:"risk"`
	Lock     LockConfig     `mapstructure:"lock" yaml:"lock" json:"lock"`
}

type AppConfig struct {
	Env string `mapstructure:"env" yaml:"env" json:"env"`
}

type LogConfig struct {
	Level             string `mapstructure:"level" yaml:"level" json:"level"`
	Encoding          string `mapstructure:"encoding" yaml:"encoding" json:"encoding"`
	Development       bool   `mapstructure:"development" yaml:"development" json:"development"`
	Sampling          bool   `mapstructure:"sampling" yaml:"sampling" json:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller" yaml:"disable_caller" json:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace" yaml:"disable_stacktrace" json:"disable_stacktrace"`
}

type ServerConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	HTTPAddr string `mapstructure:"http_addr" yaml:"http_addr" json:"http_addr"`
}

type JournalConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path" json:"db_path"`
}

// VenueConfig selects the exchange. Kind "paper" runs against the in-memory
// venue; Network picks the Bybit environment when BaseURL is empty.
type VenueConfig struct {
	Kind          string        `mapstructure:"kind" yaml:"kind" json:"kind"`
	Network       string        `mapstructure:"network" yaml:"network" json:"network"`
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKey        string        `mapstructure:"api_key" yaml:"api_key,omitempty" json:"api_key,omitempty"`
	APISecret     string        `mapstructure:"api_secret" yaml:"api_secret,omitempty" json:"api_secret,omitempty"`
	RecvWindow    time.Duration `mapstructure:"recv_window" yaml:"recv_window" json:"recv_window"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	AccountType   string        `mapstructure:"account_type" yaml:"account_type" json:"account_type"`
	KlineInterval string        `mapstructure:"kline_interval" yaml:"kline_interval" json:"kline_interval"`
	KlineLimit    int           `mapstructure:"kline_limit" yaml:"kline_limit" json:"kline_limit"`
	Paper         PaperConfig   `mapstructure:"paper" yaml:"paper" json:"paper"`
}

type PaperConfig struct {
	QuoteCoin     string  `mapstructure:"quote_coin" yaml:"quote_coin" json:"quote_coin"`
	StartingQuote float64 `mapstructure:"starting_quote" yaml:"starting_quote" json:"starting_quote"`
	FeeRate       float64 `mapstructure:"fee_rate" yaml:"fee_rate" json:"fee_rate"`
}

// ReasonerConfig points at an OpenAI-compatible chat completions endpoint.
type ReasonerConfig struct {
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Model       string        `mapstructure:"model" yaml:"model" json:"model"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens" json:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

type TradingConfig struct {
	Mode            string        `mapstructure:"mode" yaml:"mode" json:"mode"`
	Symbols         []string      `mapstructure:"symbols" yaml:"symbols" json:"symbols"`
	Schedule        string        `mapstructure:"schedule" yaml:"schedule" json:"schedule"`
	BalanceSchedule string        `mapstructure:"balance_schedule" yaml:"balance_schedule" json:"balance_schedule"`
	CycleTimeout    time.Duration `mapstructure:"cycle_timeout" yaml:"cycle_timeout" json:"cycle_timeout"`
	StepTimeout     time.Duration `mapstructure:"step_timeout" yaml:"step_timeout" json:"step_timeout"`
	Reconcile       bool          `mapstructure:"reconcile" yaml:"reconcile" json:"reconcile"`
}

type RiskConfig struct {
	TargetLossUSD   float64 `mapstructure:"target_loss_usd" yaml:"target_loss_usd" json:"target_loss_usd"`
	TargetProfitUSD float64 `mapstructure:"target_profit_usd" yaml:"target_profit_usd" json:"target_profit_usd"`
	MarginUSD       float64 `mapstructure:"margin_usd" yaml:"margin_usd" json:"margin_usd"`
	Leverage        float64 `mapstructure:"leverage" yaml:"leverage" json:"leverage"`
}

// LockConfig picks the per-symbol cycle lock. "local" serialises cycles within
// one process, "redis" across processes sharing the venue account.
type LockConfig struct {
	Backend       string        `mapstructure:"backend" yaml:"backend" json:"backend"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr,omitempty" json:"redis_addr,omitempty"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password,omitempty" json:"redis_password,omitempty"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db" json:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
}

// Load reads path (yaml) with TRADER_* environment overrides. An empty path
// loads defaults and environment only. A .env file in the working directory is
// applied first so secrets can stay out of the yaml.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if ext := strings.ToLower(filepath.Ext(path)); ext == ".json" {
			v.SetConfigType("json")
		} else {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.http_addr", ":8080")

	v.SetDefault("journal.db_path", "./trader.db")

	v.SetDefault("venue.kind", "bybit")
	v.SetDefault("venue.network", "testnet")
	v.SetDefault("venue.base_url", "")
	v.SetDefault("venue.api_key", "")
	v.SetDefault("venue.api_secret", "")
	v.SetDefault("venue.recv_window", "5s")
	v.SetDefault("venue.timeout", "15s")
	v.SetDefault("venue.account_type", "UNIFIED")
	v.SetDefault("venue.kline_interval", "60")
	v.SetDefault("venue.kline_limit", 100)
	v.SetDefault("venue.paper.quote_coin", "USDT")
	v.SetDefault("venue.paper.starting_quote", 10000)
	v.SetDefault("venue.paper.fee_rate", 0.001)

	v.SetDefault("reasoner.base_url", "https://api.openai.com/v1")
	v.SetDefault("reasoner.api_key", "")
	v.SetDefault("reasoner.model", "gpt-4o-mini")
	v.SetDefault("reasoner.temperature", 0.2)
	v.SetDefault("reasoner.max_tokens", 800)
	v.SetDefault("reasoner.timeout", "60s")

	v.SetDefault("trading.mode", "spot")
	v.SetDefault("trading.symbols", []string{"BTCUSDT"})
	v.SetDefault("trading.schedule", "0 * * * * *")
	v.SetDefault("trading.balance_schedule", "30 * * * * *")
	v.SetDefault("trading.cycle_timeout", "2m")
	v.SetDefault("trading.step_timeout", "30s")
	v.SetDefault("trading.reconcile", true)

	v.SetDefault("risk.target_loss_usd", 0.5)
	v.SetDefault("risk.target_profit_usd", 1.0)
	v.SetDefault("risk.margin_usd", 50)
	v.SetDefault("risk.leverage", 10)

	v.SetDefault("lock.backend", "local")
	v.SetDefault("lock.redis_addr", "")
	v.SetDefault("lock.redis_password", "")
	v.SetDefault("lock.redis_db", 0)
	v.SetDefault("lock.ttl", "5m")
}

// SaveToFile writes the configuration as JSON when path ends in .json and as
// YAML otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := market.ParseMode(c.Trading.Mode); err != nil {
		return fmt.Errorf("trading.mode: %w", err)
	}
	if len(c.Trading.Symbols) == 0 {
		return errors.New("trading.symbols must list at least one symbol")
	}
	for _, s := range c.Trading.Symbols {
		if strings.TrimSpace(s) == "" {
			return errors.New("trading.symbols contains an empty symbol")
		}
	}
	if c.Trading.Schedule == "" {
		return errors.New("trading.schedule is required")
	}
	if c.Trading.StepTimeout <= 0 {
		return errors.New("trading.step_timeout must be positive")
	}
	switch c.Venue.Kind {
	case "bybit", "paper":
	default:
		return fmt.Errorf("venue.kind must be 'bybit' or 'paper', got %q", c.Venue.Kind)
	}
	switch c.Venue.Network {
	case "mainnet", "testnet", "demo":
	default:
		return fmt.Errorf("venue.network must be 'mainnet', 'testnet' or 'demo', got %q", c.Venue.Network)
	}
	if _, err := market.IntervalDuration(c.Venue.KlineInterval); err != nil {
		return fmt.Errorf("venue.kline_interval: %w", err)
	}
	if c.Venue.KlineLimit <= 0 || c.Venue.KlineLimit > 1000 {
		return errors.New("venue.kline_limit must be between 1 and 1000")
	}
	if c.Risk.TargetLossUSD <= 0 || c.Risk.TargetProfitUSD <= 0 {
		return errors.New("risk targets must be positive")
	}
	if c.Risk.MarginUSD <= 0 {
		return errors.New("risk.margin_usd must be positive")
	}
	if c.Risk.Leverage < 1 {
		return errors.New("risk.leverage must be at least 1")
	}
	if c.Journal.DBPath == "" {
		return errors.New("journal.db_path is required")
	}
	switch c.Lock.Backend {
	case "local":
	case "redis":
		if c.Lock.RedisAddr == "" {
			return errors.New("lock.redis_addr required for redis backend")
		}
	default:
		return fmt.Errorf("lock.backend must be 'local' or 'redis', got %q", c.Lock.Backend)
	}
	return nil
}

// Live reports whether orders reach a real venue.
func (c *Config) Live() bool {
	return c.Venue.Kind == "bybit"
}

// Mode returns the parsed trading mode. Validate guarantees it parses.
func (c *Config) Mode() market.Mode {
	m, _ := market.ParseMode(c.Trading.Mode)
	return m
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		App: AppConfig{Env: "dev"},
		Log: LogConfig{
			Level:       "info",
			Encoding:    "console",
			Development: true,
		},
		Server:  ServerConfig{HTTPAddr: ":8080"},
		Journal: JournalConfig{DBPath: "./trader.db"},
		Venue: VenueConfig{
			Kind:          "bybit",
			Network:       "testnet",
			RecvWindow:    5 * time.Second,
			Timeout:       15 * time.Second,
			AccountType:   "UNIFIED",
			KlineInterval: "60",
			KlineLimit:    100,
			Paper: PaperConfig{
				QuoteCoin:     "USDT",
				StartingQuote: 10000,
				FeeRate:       0.001,
			},
		},
		Reasoner: ReasonerConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			MaxTokens:   800,
			Timeout:     60 * time.Second,
		},
		Trading: TradingConfig{
			Mode:            "spot",
			Symbols:         []string{"BTCUSDT"},
			Schedule:        "0 * * * * *",
			BalanceSchedule: "30 * * * * *",
			CycleTimeout:    2 * time.Minute,
			StepTimeout:     30 * time.Second,
			Reconcile:       true,
		},
		Risk: RiskConfig{
			TargetLossUSD:   0.5,
			TargetProfitUSD: 1.0,
			MarginUSD:       50,
			Leverage:        10,
		},
		Lock: LockConfig{Backend: "local", TTL: 5 * time.Minute},
	}
}
