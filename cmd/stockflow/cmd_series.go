package main

import (
	"fmt"

	"github.com/nvandessel/stockflow/internal/trajectory"
	"github.com/spf13/cobra"
)

func newVarsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vars",
		Short: "List the variables recorded in a run",
		Long: `List every state and observed variable recorded in a run, sorted by name,
with descriptions taken from the model.

Reads the latest run unless --run or --file is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run")
			file, _ := cmd.Flags().GetString("file")

			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			reg, err := ws.registry()
			if err != nil {
				return err
			}
			sol, source, err := openSolution(cmd.Context(), ws, runID, file)
			if err != nil {
				return err
			}

			vars := trajectory.VariableList(sol, ws.naming(reg), trajectory.Describer(reg))
			if vars == nil {
				vars = []trajectory.VariableInfo{}
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]interface{}{
					"source":    source,
					"variables": vars,
					"count":     len(vars),
				})
			}
			out := cmd.OutOrStdout()
			for _, v := range vars {
				fmt.Fprintf(out, "%-20s %s\n", v.Name, v.Description)
			}
			fmt.Fprintf(out, "\n%d variables in %s\n", len(vars), source)
			return nil
		},
	}

	cmd.Flags().String("run", "", "Run id or unique prefix (default: latest run)")
	cmd.Flags().String("file", "", "Read a trajectory file instead of a stored run")

	return cmd
}

func newSeriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series <name>",
		Short: "Print the trajectory of one variable",
		Long: `Print the value of one variable at every recorded time point.

The name may be short or full; a short name shared by several sectors is
reported as ambiguous. Reads the latest run unless --run or --file is given.

Examples:
  stockflow series POP
  stockflow series pop₊P1 --run 3f2a --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run")
			file, _ := cmd.Flags().GetString("file")

			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			reg, err := ws.registry()
			if err != nil {
				return err
			}
			sol, source, err := openSolution(cmd.Context(), ws, runID, file)
			if err != nil {
				return err
			}

			series, err := trajectory.Timeseries(sol, args[0], ws.naming(reg))
			if err != nil {
				return lookupFailed(cmd, err)
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]interface{}{
					"source": source,
					"name":   series.Name,
					"t":      series.T,
					"values": series.Values,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s (%s)\n", series.Name, source)
			for i, t := range series.T {
				if i >= len(series.Values) {
					break
				}
				fmt.Fprintf(out, "%g\t%g\n", t, series.Values[i])
			}
			return nil
		},
	}

	cmd.Flags().String("run", "", "Run id or unique prefix (default: latest run)")
	cmd.Flags().String("file", "", "Read a trajectory file instead of a stored run")

	return cmd
}
