package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/spotbot/store"
	"github.com/rustyeddy/spotbot/strategy"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate one strategy offline from stored prices",
	Long: `Replay stored prices for one pair through the EMA-crossover strategy
and print every simulated trade plus the final balance.

Nothing is written: no signals, no orders. The same simulation drives live
signal generation, so this shows exactly what the bot would have decided.

Example:
  spotbot simulate --pair BTCUSDT --span 20 --cut-loss 0.1 --days 365`,
	RunE: runSimulate,
}

var (
	simPair    string
	simSpan    int
	simCutLoss float64
	simDays    int
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVar(&simPair, "pair", "", "pair to simulate (required)")
	simulateCmd.Flags().IntVar(&simSpan, "span", 20, "EMA span")
	simulateCmd.Flags().Float64Var(&simCutLoss, "cut-loss", 0.1, "cut-loss fraction in (0,1)")
	simulateCmd.Flags().IntVar(&simDays, "days", 365, "how many days of history to replay")
	simulateCmd.MarkFlagRequired("pair")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	params := strategy.Params{Span: simSpan, CutLoss: simCutLoss}
	if err := params.Validate(); err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	since := time.Now().UTC().AddDate(0, 0, -simDays)
	bars, err := st.Bars(simPair, since)
	if err != nil {
		return fmt.Errorf("load prices for %s: %w", simPair, err)
	}
	if len(bars) == 0 {
		return fmt.Errorf("no stored prices for %s since %s", simPair, since.Format("2006-01-02"))
	}

	balance, events := strategy.Simulate(bars, params)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "time\taction\tbuy_price\tsell_price\tbalance")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%.6g\t%.6g\t%.2f\n",
			ev.Time.Format("2006-01-02 15:04"), ev.Action, ev.BuyPrice, ev.SellPrice, ev.Balance)
	}
	w.Flush()

	fmt.Printf("\n%s %s over %d bars: %d events, final balance %.2f\n",
		simPair, params.Key(), len(bars), len(events), balance)
	return nil
}
