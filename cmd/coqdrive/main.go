package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coqdrive",
	Short: "Drive a Coq prover over coq-lsp",
	Long: `coqdrive maintains a Coq session through a coq-lsp subprocess:
statements are submitted one at a time, the proof state is queried after
each, and failed statements are rolled back so the session stays usable.`,
}

func main() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("config", "coqdrive.toml", "configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
