package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stockdash/pkg/marketdata"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for stockdash.
type Config struct {
	Service   Service   `yaml:"service"`
	Dashboard Dashboard `yaml:"dashboard"`
	Backtest  Backtest  `yaml:"backtest"`
	Storage   Storage   `yaml:"storage"`
	Alpaca    Alpaca    `yaml:"alpaca"`
	Logging   Logging   `yaml:"logging"`
}

// Service locates the market-data/analysis service.
type Service struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	BacktestTimeout time.Duration `yaml:"backtest_timeout"`
	RequestsPerSec  float64       `yaml:"requests_per_sec"`
	Burst           int           `yaml:"burst"`
	StartupWait     time.Duration `yaml:"startup_wait"`
}

// Dashboard holds the interactive defaults and timers.
type Dashboard struct {
	DefaultSymbol   string        `yaml:"default_symbol"`
	DefaultPeriod   string        `yaml:"default_period"`
	SearchDebounce  time.Duration `yaml:"search_debounce"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	WatchlistPeriod string        `yaml:"watchlist_period"`
	Watchlist       []string      `yaml:"watchlist"`
}

// Backtest configures the backtest panel.
type Backtest struct {
	InitialCapital float64 `yaml:"initial_capital"`
	// EquitySource is "synthetic" (curve rebuilt from total return) or
	// "service" (the service's equity_curve when present).
	EquitySource string `yaml:"equity_source"`
	Currency     string `yaml:"currency"`
}

// Storage holds paths for local persistence.
type Storage struct {
	SQLitePath string `yaml:"sqlite_path"`
	ExportDir  string `yaml:"export_dir"`
}

// Alpaca holds credentials for syncing the watchlist to an Alpaca account.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	Watchlist string `yaml:"watchlist"`
}

// Logging configures the application logger.
type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

const (
	EquitySynthetic = "synthetic"
	EquityService   = "service"
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Service: Service{
			BaseURL:         marketdata.DefaultBaseURL,
			Timeout:         15 * time.Second,
			BacktestTimeout: 2 * time.Minute,
			RequestsPerSec:  10,
			Burst:           5,
			StartupWait:     5 * time.Second,
		},
		Dashboard: Dashboard{
			DefaultSymbol:   "AAPL",
			DefaultPeriod:   string(marketdata.PeriodYear),
			SearchDebounce:  300 * time.Millisecond,
			PollInterval:    10 * time.Second,
			WatchlistPeriod: string(marketdata.PeriodIntraday),
		},
		Backtest: Backtest{
			InitialCapital: 10000,
			EquitySource:   EquitySynthetic,
			Currency:       "USD",
		},
		Storage: Storage{
			ExportDir: ".",
		},
		Alpaca: Alpaca{
			Watchlist: "stockdash",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at path over the defaults, then
// applies .env and environment variable overrides and validates the result.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	// A missing .env is normal.
	_ = godotenv.Load()

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path resolves the config file location: the flag value if set, else
// STOCKDASH_CONFIG, else "config.yaml".
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("STOCKDASH_CONFIG"); v != "" {
		return v
	}
	return "config.yaml"
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STOCKDASH_BASE_URL"); v != "" {
		cfg.Service.BaseURL = v
	}
	if v := os.Getenv("STOCKDASH_DEFAULT_SYMBOL"); v != "" {
		cfg.Dashboard.DefaultSymbol = v
	}
	if v := os.Getenv("STOCKDASH_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Dashboard.PollInterval = d
		}
	}
	if v := os.Getenv("STOCKDASH_WATCHLIST"); v != "" {
		cfg.Dashboard.Watchlist = strings.Split(v, ",")
	}
	if v := os.Getenv("STOCKDASH_INITIAL_CAPITAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Backtest.InitialCapital = f
		}
	}
	if v := os.Getenv("STOCKDASH_EQUITY_SOURCE"); v != "" {
		cfg.Backtest.EquitySource = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("STOCKDASH_EXPORT_DIR"); v != "" {
		cfg.Storage.ExportDir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("STOCKDASH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("STOCKDASH_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("APCA_API_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
}

// Validate checks the values the dashboard relies on and normalizes
// symbols.
func (c *Config) Validate() error {
	var errs []error

	if c.Service.BaseURL == "" {
		errs = append(errs, errors.New("service.base_url is empty"))
	}
	if c.Service.Timeout <= 0 {
		errs = append(errs, errors.New("service.timeout must be positive"))
	}
	if c.Service.BacktestTimeout <= 0 {
		errs = append(errs, errors.New("service.backtest_timeout must be positive"))
	}
	if c.Service.RequestsPerSec < 0 {
		errs = append(errs, errors.New("service.requests_per_sec must not be negative"))
	}

	c.Dashboard.DefaultSymbol = marketdata.NormalizeSymbol(c.Dashboard.DefaultSymbol)
	if c.Dashboard.DefaultSymbol == "" {
		errs = append(errs, errors.New("dashboard.default_symbol is empty"))
	}
	if !marketdata.Period(c.Dashboard.DefaultPeriod).Valid() {
		errs = append(errs, fmt.Errorf("dashboard.default_period %q is not a valid period", c.Dashboard.DefaultPeriod))
	}
	if !marketdata.Period(c.Dashboard.WatchlistPeriod).Valid() {
		errs = append(errs, fmt.Errorf("dashboard.watchlist_period %q is not a valid period", c.Dashboard.WatchlistPeriod))
	}
	if c.Dashboard.SearchDebounce <= 0 {
		errs = append(errs, errors.New("dashboard.search_debounce must be positive"))
	}
	if c.Dashboard.PollInterval < time.Second {
		errs = append(errs, errors.New("dashboard.poll_interval must be at least 1s"))
	}
	seen := make(map[string]bool)
	watch := c.Dashboard.Watchlist[:0]
	for _, s := range c.Dashboard.Watchlist {
		s = marketdata.NormalizeSymbol(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		watch = append(watch, s)
	}
	c.Dashboard.Watchlist = watch

	if err := marketdata.ValidateCapital(c.Backtest.InitialCapital); err != nil {
		errs = append(errs, fmt.Errorf("backtest.initial_capital: %w", err))
	}
	switch c.Backtest.EquitySource {
	case EquitySynthetic, EquityService:
	default:
		errs = append(errs, fmt.Errorf("backtest.equity_source %q must be %q or %q",
			c.Backtest.EquitySource, EquitySynthetic, EquityService))
	}
	if c.Backtest.Currency == "" {
		c.Backtest.Currency = "USD"
	}

	return errors.Join(errs...)
}

// AlpacaEnabled reports whether Alpaca credentials are configured.
func (c *Config) AlpacaEnabled() bool {
	return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
}
