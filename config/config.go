package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Risk     RiskConfig     `yaml:"risk"`
	Kalshi   KalshiConfig   `yaml:"kalshi"`
	Coinbase CoinbaseConfig `yaml:"coinbase"`
	Storage  StorageConfig  `yaml:"storage"`
	Notify   NotifyConfig   `yaml:"notify"`
	Log      LogConfig      `yaml:"log"`
}

// EngineConfig controls the cycle loop and sizing bounds.
type EngineConfig struct {
	IntervalSeconds     int     `yaml:"interval_seconds"`
	InitialBankrollUSD  float64 `yaml:"initial_bankroll_usd"`
	GlobalMinEdge       float64 `yaml:"global_min_edge"`
	MaxExposureFraction float64 `yaml:"max_exposure_fraction"` // per-stake cap vs bankroll
	CycleBudgetFraction float64 `yaml:"cycle_budget_fraction"` // per-cycle cap vs bankroll
	ModelTilt           float64 `yaml:"model_tilt"`
	ModelConfidence     float64 `yaml:"model_confidence"`
}

// RiskConfig points at the per-category policy file.
type RiskConfig struct {
	PoliciesPath string `yaml:"policies_path"`
}

// KalshiConfig holds Kalshi API settings. Credentials come from the
// environment, never from YAML.
type KalshiConfig struct {
	BaseURL        string `yaml:"base_url"`
	Enabled        bool   `yaml:"enabled"`
	APIKeyID       string `yaml:"-"`
	PrivateKeyPEM  string `yaml:"-"`
	PrivateKeyPath string `yaml:"-"`
}

// CoinbaseConfig holds Coinbase API settings; same credential rule.
type CoinbaseConfig struct {
	BaseURL   string `yaml:"base_url"`
	Enabled   bool   `yaml:"enabled"`
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
}

// StorageConfig controls journal persistence.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// NotifyConfig controls outbound notifications.
type NotifyConfig struct {
	WebhookURL   string `yaml:"-"` // env only
	ConsoleTable bool   `yaml:"console_table"`
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML file and overlays .env / environment values.
// Environment wins over YAML for the keys it covers.
func Load(path string) (*Config, error) {
	// Load .env when present; missing file is fine.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// CycleInterval returns the cycle cadence as a time.Duration.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Engine.IntervalSeconds) * time.Second
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KALSHI_API_KEY_ID"); v != "" {
		cfg.Kalshi.APIKeyID = v
	}
	if v := os.Getenv("KALSHI_PRIVATE_KEY"); v != "" {
		cfg.Kalshi.PrivateKeyPEM = v
	}
	if v := os.Getenv("KALSHI_PRIVATE_KEY_PATH"); v != "" {
		cfg.Kalshi.PrivateKeyPath = v
	}
	if v := os.Getenv("COINBASE_API_KEY"); v != "" {
		cfg.Coinbase.APIKey = v
	}
	if v := os.Getenv("COINBASE_API_SECRET"); v != "" {
		cfg.Coinbase.APISecret = v
	}
	if v := os.Getenv("NOTIFY_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Engine.IntervalSeconds <= 0 {
		cfg.Engine.IntervalSeconds = 60
	}
	if cfg.Engine.InitialBankrollUSD <= 0 {
		cfg.Engine.InitialBankrollUSD = 1000
	}
	if cfg.Engine.GlobalMinEdge <= 0 {
		cfg.Engine.GlobalMinEdge = 0.05
	}
	if cfg.Engine.MaxExposureFraction <= 0 {
		cfg.Engine.MaxExposureFraction = 0.05
	}
	if cfg.Engine.CycleBudgetFraction <= 0 {
		cfg.Engine.CycleBudgetFraction = 0.20
	}
	if cfg.Engine.ModelConfidence <= 0 {
		cfg.Engine.ModelConfidence = 70
	}
	if cfg.Risk.PoliciesPath == "" {
		cfg.Risk.PoliciesPath = "config/policies.yaml"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "alphaengine.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func validate(cfg *Config) error {
	if !cfg.Kalshi.Enabled && !cfg.Coinbase.Enabled {
		return fmt.Errorf("no venue enabled")
	}
	if cfg.Kalshi.Enabled && cfg.Kalshi.APIKeyID == "" {
		return fmt.Errorf("kalshi enabled but KALSHI_API_KEY_ID not set")
	}
	if cfg.Kalshi.Enabled && cfg.Kalshi.PrivateKeyPEM == "" && cfg.Kalshi.PrivateKeyPath == "" {
		return fmt.Errorf("kalshi enabled but no private key configured")
	}
	if cfg.Coinbase.Enabled && (cfg.Coinbase.APIKey == "" || cfg.Coinbase.APISecret == "") {
		return fmt.Errorf("coinbase enabled but COINBASE_API_KEY or COINBASE_API_SECRET not set")
	}
	if cfg.Engine.MaxExposureFraction > 1 || cfg.Engine.CycleBudgetFraction > 1 {
		return fmt.Errorf("exposure fractions must be <= 1")
	}
	return nil
}
