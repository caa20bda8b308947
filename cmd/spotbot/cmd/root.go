package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/spotbot/config"
	"github.com/rustyeddy/spotbot/report"
	"github.com/rustyeddy/spotbot/store"
)

var rootCmd = &cobra.Command{
	Use:   "spotbot",
	Short: "An EMA-crossover spot trading bot for Binance",
	Long: `Spotbot trades spot pairs on Binance with an EMA-crossover strategy.

It runs in discrete batches aligned to candle boundaries:
  - Pull completed klines into a local SQLite store
  - Simulate each configured strategy and persist new signals
  - Reconcile signals against the ledger and place market orders
  - Mail a summary of the batch, annotated with a data-quality score

All state lives in one SQLite file, so a batch can be re-run safely.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

var cfgPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "f",
		"spotbot.yaml", "path to the YAML config file")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

// openStore opens the database and bootstraps the schema-dependent bits:
// one price table per configured pair and the master strategy table.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	rows := make([]store.StrategyRow, 0, len(cfg.Strategies))
	for _, s := range cfg.Strategies {
		if err := st.EnsurePair(s.Pair); err != nil {
			st.Close()
			return nil, fmt.Errorf("ensure pair %s: %w", s.Pair, err)
		}
		rows = append(rows, store.StrategyRow{
			Pair:         s.Pair,
			Params:       s.Params(),
			MinOrderSize: s.MinOrderSize,
		})
	}
	if err := st.SeedMaster(rows); err != nil {
		st.Close()
		return nil, fmt.Errorf("seed master table: %w", err)
	}
	return st, nil
}

// newMailer returns the configured SMTP mailer, or a no-op one when SMTP
// is not configured.
func newMailer(cfg *config.Config) report.Mailer {
	if !cfg.SMTP.Enabled() {
		return nopMailer{}
	}
	return &report.SMTPMailer{
		Addr:     cfg.SMTP.Addr,
		Sender:   cfg.SMTP.Sender,
		Token:    cfg.SMTP.Token,
		Receiver: cfg.SMTP.Receiver,
	}
}

func newReporter(cfg *config.Config, st *store.Store, log *zap.Logger) *report.Reporter {
	return report.New(st, newMailer(cfg), cfg.MarketSchedule().Location(), log)
}

type nopMailer struct{}

func (nopMailer) Send(subject, text, html string) error { return nil }
