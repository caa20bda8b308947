package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/spotbot/fetch"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Re-send the mail report for a batch",
	Long: `Rebuild and re-send the summary mail for one batch from stored data.

By default the latest batch boundary is reported. Pass --batch to report an
older one, in book time.

Example:
  spotbot report --batch "2024-03-05 07:00:00"`,
	RunE: runReport,
}

var reportBatch string

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportBatch, "batch", "",
		`batch boundary to report, "2006-01-02 15:04:05" in book time (default latest)`)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sched := cfg.MarketSchedule()
	batch := sched.LatestBatch(time.Now())
	if reportBatch != "" {
		batch, err = time.ParseInLocation("2006-01-02 15:04:05", reportBatch, sched.Location())
		if err != nil {
			return fmt.Errorf("parse --batch: %w", err)
		}
	}

	pairs := make([]string, 0, len(cfg.Strategies))
	seen := map[string]bool{}
	for _, s := range cfg.Strategies {
		if !seen[s.Pair] {
			pairs = append(pairs, s.Pair)
			seen[s.Pair] = true
		}
	}
	quality, err := fetch.Completeness(st, pairs, batch)
	if err != nil {
		return fmt.Errorf("completeness: %w", err)
	}

	return newReporter(cfg, st, log).Batch(batch, quality)
}
