// Package config loads the bot's runtime configuration: a YAML file for
// everything declarative, with credentials merged in from the environment
// (optionally a .env file) so secrets never live next to the strategy list.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/spotbot/market"
	"github.com/rustyeddy/spotbot/strategy"
)

// Config is the complete bot configuration.
type Config struct {
	DBPath     string           `yaml:"db_path"`
	LogLevel   string           `yaml:"log_level"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Strategies []StrategyConfig `yaml:"strategies"`
}

// ScheduleConfig mirrors market.Schedule in YAML form.
type ScheduleConfig struct {
	ZoneOffsetHours int   `yaml:"zone_offset_hours"`
	Hours           []int `yaml:"hours"`
	LagHours        int   `yaml:"lag_hours"`
}

// ExchangeConfig contains exchange connection parameters. The API
// credentials come from the environment, never from the YAML file.
type ExchangeConfig struct {
	APIKey          string `yaml:"-"`
	APISecret       string `yaml:"-"`
	Interval        string `yaml:"interval"`
	ExceptionSymbol string `yaml:"exception_symbol"`
}

// SMTPConfig contains outbound mail parameters. The auth token comes from
// the environment.
type SMTPConfig struct {
	Addr     string `yaml:"addr"`
	Sender   string `yaml:"sender"`
	Receiver string `yaml:"receiver"`
	Token    string `yaml:"-"`
}

// Enabled reports whether outbound mail is configured at all.
func (s SMTPConfig) Enabled() bool { return s.Addr != "" }

// StrategyConfig is one master-table row: a traded pair with its EMA
// parameters and the exchange's minimum order size for the pair.
type StrategyConfig struct {
	Pair         string  `yaml:"pair"`
	Span         int     `yaml:"span"`
	CutLoss      float64 `yaml:"cut_loss"`
	MinOrderSize float64 `yaml:"min_order_size"`
}

// Params converts the row to strategy parameters.
func (s StrategyConfig) Params() strategy.Params {
	return strategy.Params{Span: s.Span, CutLoss: s.CutLoss}
}

// ParameterError marks a configuration failure. The driver treats it as
// fatal before any exchange I/O: alert mail, then abort.
type ParameterError struct {
	Param string
	Err   error
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameter %s: %v", e.Param, e.Err)
}

func (e *ParameterError) Unwrap() error { return e.Err }

// LoadFromFile reads and validates the YAML config, then merges
// credentials from the environment. A .env file beside the process is
// honored when present; real environment variables win.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParameterError{Param: "config", Err: err}
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ParameterError{Param: "config", Err: err}
	}

	// Missing .env is fine; the variables may already be in the
	// environment.
	_ = godotenv.Load()
	cfg.Exchange.APIKey = os.Getenv("BINANCE_API_KEY")
	cfg.Exchange.APISecret = os.Getenv("BINANCE_API_SECRET")
	cfg.SMTP.Token = os.Getenv("SMTP_TOKEN")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration. Every failure is a ParameterError so
// the driver can tell config trouble from runtime trouble.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return &ParameterError{Param: "db_path", Err: fmt.Errorf("required")}
	}
	if err := c.MarketSchedule().Validate(); err != nil {
		return &ParameterError{Param: "schedule", Err: err}
	}
	if len(c.Strategies) == 0 {
		return &ParameterError{Param: "strategies", Err: fmt.Errorf("at least one required")}
	}
	seen := map[string]bool{}
	for _, s := range c.Strategies {
		if s.Pair == "" {
			return &ParameterError{Param: "strategies.pair", Err: fmt.Errorf("required")}
		}
		if err := s.Params().Validate(); err != nil {
			return &ParameterError{Param: "strategies." + s.Pair, Err: err}
		}
		if s.MinOrderSize <= 0 {
			return &ParameterError{
				Param: "strategies." + s.Pair + ".min_order_size",
				Err:   fmt.Errorf("must be positive"),
			}
		}
		key := s.Pair + "/" + s.Params().Key()
		if seen[key] {
			return &ParameterError{Param: "strategies", Err: fmt.Errorf("duplicate %s", key)}
		}
		seen[key] = true
	}
	if c.SMTP.Enabled() {
		if c.SMTP.Sender == "" || c.SMTP.Receiver == "" {
			return &ParameterError{Param: "smtp", Err: fmt.Errorf("sender and receiver required")}
		}
	}
	return nil
}

// MarketSchedule converts the YAML schedule block.
func (c *Config) MarketSchedule() market.Schedule {
	return market.Schedule{
		ZoneOffsetHours: c.Schedule.ZoneOffsetHours,
		Hours:           c.Schedule.Hours,
		Lag:             time.Duration(c.Schedule.LagHours) * time.Hour,
	}
}

// Default returns a configuration with sensible defaults. Strategies must
// still be supplied by the file.
func Default() *Config {
	s := market.DefaultSchedule()
	return &Config{
		DBPath:   "./spotbot.db",
		LogLevel: "info",
		Schedule: ScheduleConfig{
			ZoneOffsetHours: s.ZoneOffsetHours,
			Hours:           s.Hours,
			LagHours:        int(s.Lag.Hours()),
		},
		Exchange: ExchangeConfig{
			Interval:        "8h",
			ExceptionSymbol: "BNBUSDT",
		},
	}
}
