package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the spotbot CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("spotbot version %s\n", version)
		fmt.Println("An EMA-crossover spot trading bot for Binance")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
