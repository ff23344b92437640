package main

import (
	"fmt"
	"strings"

	"github.com/nvandessel/stockflow/internal/analysis"
	"github.com/spf13/cobra"
)

func newStocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stocks [name]",
		Short: "List stocks, or show the flows of one stock",
		Long: `Without an argument, list every stock with its sector and rate equation.

With a name, decompose that stock's rate equation into inflow and outflow
terms. The name may be short (P1) or full (pop₊P1).

Examples:
  stockflow stocks
  stockflow stocks P1
  stockflow stocks pop₊P1 --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAnalyzer(cmd, func(a *analysis.Analyzer) error {
				out := cmd.OutOrStdout()
				if len(args) == 0 {
					stocks := a.ListStocks()
					if jsonOutput(cmd) {
						return writeJSON(cmd, map[string]interface{}{"stocks": stocks, "count": len(stocks)})
					}
					for _, s := range stocks {
						fmt.Fprintf(out, "%-16s %-12s %s\n", s.Name, s.Sector, s.Description)
					}
					fmt.Fprintf(out, "\n%d stocks\n", len(stocks))
					return nil
				}

				detail, err := a.StockFlows(args[0])
				if err != nil {
					return lookupFailed(cmd, err)
				}
				if jsonOutput(cmd) {
					return writeJSON(cmd, detail)
				}
				fmt.Fprintf(out, "%s (%s)\n", detail.Name, detail.Sector)
				if detail.Description != "" {
					fmt.Fprintf(out, "  %s\n", detail.Description)
				}
				fmt.Fprintf(out, "  d/dt = %s\n", detail.Equation)
				fmt.Fprintf(out, "  inflows:  %s\n", listOrNone(detail.Inflows))
				fmt.Fprintf(out, "  outflows: %s\n", listOrNone(detail.Outflows))
				return nil
			})
		},
	}
}

func newFlowsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flows [term]",
		Short: "List flow terms, or show the stocks one term connects",
		Long: `Without an argument, list every distinct inflow or outflow term found in
the stock equations, with the stocks it feeds and drains.

With a term, show only that term. Terms are matched by their exact text.

Examples:
  stockflow flows
  stockflow flows PASS20`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAnalyzer(cmd, func(a *analysis.Analyzer) error {
				out := cmd.OutOrStdout()
				if len(args) == 0 {
					flows := a.ListFlows()
					if jsonOutput(cmd) {
						return writeJSON(cmd, map[string]interface{}{"flows": flows, "count": len(flows)})
					}
					for _, f := range flows {
						printFlow(cmd, f)
					}
					fmt.Fprintf(out, "\n%d flow terms\n", len(flows))
					return nil
				}

				flow, err := a.FlowStocks(args[0])
				if err != nil {
					return lookupFailed(cmd, err)
				}
				if jsonOutput(cmd) {
					return writeJSON(cmd, flow)
				}
				printFlow(cmd, flow)
				return nil
			})
		},
	}
}

func printFlow(cmd *cobra.Command, f analysis.FlowSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", f.Name)
	if len(f.AsInflowOf) > 0 {
		fmt.Fprintf(out, "  -> %s\n", strings.Join(f.AsInflowOf, ", "))
	}
	if len(f.AsOutflowOf) > 0 {
		fmt.Fprintf(out, "  <- %s\n", strings.Join(f.AsOutflowOf, ", "))
	}
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
