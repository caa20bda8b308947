package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
db_path: /var/lib/spotbot/bot.db
log_level: debug
schedule:
  zone_offset_hours: 7
  hours: [7, 15, 23]
  lag_hours: 8
exchange:
  interval: 8h
  exception_symbol: BNBUSDT
smtp:
  addr: smtp.example.com:587
  sender: bot@example.com
  receiver: ops@example.com
strategies:
  - pair: BTCUSDT
    span: 20
    cut_loss: 0.1
    min_order_size: 0.001
  - pair: ETHUSDT
    span: 15
    cut_loss: 0.05
    min_order_size: 0.01
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spotbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "key-123")
	t.Setenv("BINANCE_API_SECRET", "secret-456")
	t.Setenv("SMTP_TOKEN", "tok-789")

	cfg, err := LoadFromFile(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/spotbot/bot.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "key-123", cfg.Exchange.APIKey)
	assert.Equal(t, "secret-456", cfg.Exchange.APISecret)
	assert.Equal(t, "tok-789", cfg.SMTP.Token)
	assert.True(t, cfg.SMTP.Enabled())

	require.Len(t, cfg.Strategies, 2)
	assert.Equal(t, "200.1", cfg.Strategies[0].Params().Key())

	sched := cfg.MarketSchedule()
	assert.Equal(t, 7, sched.ZoneOffsetHours)
	assert.Equal(t, 8*time.Hour, sched.Lag)
}

func TestLoadMissingFileIsParameterError(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile("/nonexistent/spotbot.yaml")
	var perr *ParameterError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "config", perr.Param)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		cfg := Default()
		cfg.Strategies = []StrategyConfig{
			{Pair: "BTCUSDT", Span: 20, CutLoss: 0.1, MinOrderSize: 0.001},
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"missing db path", func(c *Config) { c.DBPath = "" }, "db_path"},
		{"no strategies", func(c *Config) { c.Strategies = nil }, "strategies"},
		{"bad schedule", func(c *Config) { c.Schedule.Hours = nil }, "schedule"},
		{"bad span", func(c *Config) { c.Strategies[0].Span = 0 }, "strategies.BTCUSDT"},
		{"bad min order size", func(c *Config) { c.Strategies[0].MinOrderSize = 0 },
			"strategies.BTCUSDT.min_order_size"},
		{"smtp missing receiver", func(c *Config) {
			c.SMTP = SMTPConfig{Addr: "smtp.example.com:587", Sender: "bot@example.com"}
		}, "smtp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			var perr *ParameterError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.param, perr.Param)
		})
	}
}

func TestValidateRejectsDuplicateStrategy(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Strategies = []StrategyConfig{
		{Pair: "BTCUSDT", Span: 20, CutLoss: 0.1, MinOrderSize: 0.001},
		{Pair: "BTCUSDT", Span: 20, CutLoss: 0.1, MinOrderSize: 0.001},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.As(err, new(*ParameterError)))
	assert.Contains(t, err.Error(), "duplicate")
}

func TestDefaultIsIncompleteWithoutStrategies(t *testing.T) {
	t.Parallel()

	err := Default().Validate()
	var perr *ParameterError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "strategies", perr.Param)
}
