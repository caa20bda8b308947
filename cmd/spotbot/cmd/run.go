package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/spotbot/engine"
	"github.com/rustyeddy/spotbot/exchange"
	"github.com/rustyeddy/spotbot/fetch"
	"github.com/rustyeddy/spotbot/retry"
	"github.com/rustyeddy/spotbot/signal"
)

// The completeness poll keeps re-fetching until every pair has a bar at
// the batch boundary, warning every third attempt. On exhaustion the run
// proceeds with whatever arrived; the report subject carries the score.
const completenessWarnEvery = 3

var completenessPolicy = retry.Policy{
	MaxAttempts: 30,
	Backoff:     20 * time.Second,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full trading batch",
	Long: `Run one full trading batch: fetch market data, generate signals,
reconcile them into transactions and mail the batch report.

The batch boundary is derived from the configured schedule and the current
time, so re-running within the same window repeats the same (idempotent)
batch.

Example:
  spotbot run -f spotbot.yaml`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		// No config means no SMTP endpoint either; the error can only go
		// to the operator's terminal.
		return err
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	mailer := newMailer(cfg)
	fatal := func(stage string, err error) error {
		err = fmt.Errorf("%s: %w", stage, err)
		log.Error("batch aborted", zap.Error(err))
		if merr := mailer.Send("PARAMETERS - ERROR", err.Error(), ""); merr != nil {
			log.Error("alert mail", zap.Error(merr))
		}
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fatal("bootstrap", err)
	}
	defer st.Close()

	reporter := newReporter(cfg, st, log)
	sched := cfg.MarketSchedule()
	batch := sched.LatestBatch(time.Now())
	log.Info("batch start", zap.Time("batch", batch))

	ctx := cmd.Context()
	ex := exchange.NewBinance(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.Interval)
	fetcher := fetch.New(ex, st, log)

	pairs := make([]string, 0, len(cfg.Strategies))
	seen := map[string]bool{}
	for _, s := range cfg.Strategies {
		if !seen[s.Pair] {
			pairs = append(pairs, s.Pair)
			seen[s.Pair] = true
		}
	}

	// Data acquisition. Completeness counts the pairs holding a bar at
	// the batch boundary; anything short of all of them gets re-fetched.
	quality := 0
	err = completenessPolicy.Do(ctx, func(attempt int) error {
		if err := fetcher.Run(ctx, pairs); err != nil {
			log.Warn("fetch", zap.Int("attempt", attempt), zap.Error(err))
		}
		n, err := fetch.Completeness(st, pairs, batch)
		if err != nil {
			return err
		}
		quality = n
		if n != len(pairs) {
			if attempt%completenessWarnEvery == 0 {
				log.Warn("completeness",
					zap.Int("complete", n), zap.Int("pairs", len(pairs)))
			}
			return fmt.Errorf("completeness %d/%d", n, len(pairs))
		}
		return nil
	})
	if err != nil {
		log.Warn("proceeding with incomplete data",
			zap.Int("quality", quality), zap.Error(err))
	}

	start := time.Now()
	n, err := signal.New(st, log).Run()
	if err != nil {
		if aerr := reporter.Alert(batch, err); aerr != nil {
			log.Error("alert mail", zap.Error(aerr))
		}
		return fmt.Errorf("generate signals: %w", err)
	}
	log.Info("signals generated",
		zap.Int("new", n), zap.Duration("took", time.Since(start)))

	start = time.Now()
	eng := engine.New(st, ex, engine.Config{
		QuoteAsset:      engine.DefaultConfig().QuoteAsset,
		ExceptionSymbol: cfg.Exchange.ExceptionSymbol,
	}, log)
	res, err := eng.GenerateTransactions(ctx, batch)
	if err != nil {
		if aerr := reporter.Alert(batch, err); aerr != nil {
			log.Error("alert mail", zap.Error(aerr))
		}
		return fmt.Errorf("generate transactions: %w", err)
	}
	log.Info("transactions done",
		zap.Int("signals", res.Signals),
		zap.Int("sells", res.Sells),
		zap.Int("buys", res.Buys),
		zap.Int("errors", res.Errors),
		zap.Duration("took", time.Since(start)))

	if err := reporter.Batch(batch, quality); err != nil {
		log.Error("batch report", zap.Error(err))
	}
	return nil
}
