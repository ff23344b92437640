package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stockflow",
		Short: "Structural analysis of system-dynamics models",
		Long: `stockflow reads a sectored system-dynamics model and answers structural
questions about it: which variables are stocks, which flows fill and drain
them, what each auxiliary depends on and what depends on it.

It can also solve the model with a reference Euler solver, keep the runs,
and extract variable trajectories from them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("model", "", "Model file (overrides model.path from config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		// Structure queries
		newStocksCmd(),
		newFlowsCmd(),
		newAuxCmd(),
		newResolveCmd(),
		newDecomposeCmd(),
		newValidateCmd(),
		newGraphCmd(),
		// Solving and trajectories
		newRunCmd(),
		newRunsCmd(),
		newVarsCmd(),
		newSeriesCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}
