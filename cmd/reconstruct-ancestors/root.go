package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/BurntSushi/profalign/internal/xlog"
)

var flagConfigPath string
var flagLogLevel string

var rootCmd = &cobra.Command{
	Use:   "reconstruct-ancestors",
	Short: "Reconstruct ancestral sequences and alignments on a phylogenetic tree",
	Long: `reconstruct-ancestors runs Pair-HMM progressive profile alignment
over a rooted binary tree: Forward/Backward dynamic programming within a
banded diagonal envelope, combined bottom-up into a root profile and
alignment.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		xlog.Init(flagLogLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to a TOML config file (defaults applied when unset)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "notice", "debug, info, notice, warning, error, or critical")

	rootCmd.AddCommand(alignCmd, batchCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		xlog.Criticalf("%s", err)
		os.Exit(1)
	}
}
