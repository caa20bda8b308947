package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/spotbot/signal"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Generate signals from stored prices without trading",
	Long: `Run only the signal-generation phase against already-stored prices.

No market data is fetched and no orders are placed. Useful after restoring
a database or for checking what a batch would have produced.`,
	RunE: runSignals,
}

func init() {
	rootCmd.AddCommand(signalsCmd)
}

func runSignals(cmd *cobra.Command, args []string) error {
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

	n, err := signal.New(st, log).Run()
	if err != nil {
		return fmt.Errorf("generate signals: %w", err)
	}
	fmt.Printf("%d new signals\n", n)
	return nil
}
