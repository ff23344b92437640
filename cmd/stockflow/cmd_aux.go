package main

import (
	"fmt"

	"github.com/nvandessel/stockflow/internal/analysis"
	"github.com/spf13/cobra"
)

func newAuxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aux [name]",
		Short: "List auxiliaries, or show what one depends on",
		Long: `Without an argument, list every auxiliary variable.

With a name, show the variables and sector parameters its equation reads.
With --effects, show instead every variable whose equation reads it.

Examples:
  stockflow aux
  stockflow aux LE
  stockflow aux pol₊PPOLX --effects`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			effects, _ := cmd.Flags().GetBool("effects")
			if effects && len(args) == 0 {
				return fmt.Errorf("--effects requires an auxiliary name")
			}

			return withAnalyzer(cmd, func(a *analysis.Analyzer) error {
				out := cmd.OutOrStdout()
				switch {
				case len(args) == 0:
					aux := a.ListAuxiliaries()
					if jsonOutput(cmd) {
						return writeJSON(cmd, map[string]interface{}{"auxiliaries": aux, "count": len(aux)})
					}
					for _, v := range aux {
						fmt.Fprintf(out, "%-16s %-12s %s\n", v.Name, v.Sector, v.Description)
					}
					fmt.Fprintf(out, "\n%d auxiliaries\n", len(aux))

				case effects:
					res, err := a.AuxiliaryEffects(args[0])
					if err != nil {
						return lookupFailed(cmd, err)
					}
					if jsonOutput(cmd) {
						return writeJSON(cmd, res)
					}
					fmt.Fprintf(out, "%s (%s)\n", res.Name, res.Sector)
					fmt.Fprintf(out, "  read by:\n")
					printRefs(cmd, res.Effects)

				default:
					res, err := a.AuxiliaryInputs(args[0])
					if err != nil {
						return lookupFailed(cmd, err)
					}
					if jsonOutput(cmd) {
						return writeJSON(cmd, res)
					}
					fmt.Fprintf(out, "%s (%s)\n", res.Name, res.Sector)
					if res.Equation != "" {
						fmt.Fprintf(out, "  = %s\n", res.Equation)
					}
					fmt.Fprintf(out, "  reads:\n")
					printRefs(cmd, res.Inputs)
					if len(res.Parameters) > 0 {
						fmt.Fprintf(out, "  parameters:\n")
						for _, p := range res.Parameters {
							fmt.Fprintf(out, "    %-14s %g\n", p.Name, p.Value)
						}
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().Bool("effects", false, "Show the variables that read this auxiliary")
	return cmd
}

func printRefs(cmd *cobra.Command, refs []analysis.VariableRef) {
	out := cmd.OutOrStdout()
	if len(refs) == 0 {
		fmt.Fprintf(out, "    (none)\n")
		return
	}
	for _, r := range refs {
		fmt.Fprintf(out, "    %-14s %s\n", r.Name, r.Description)
	}
}
