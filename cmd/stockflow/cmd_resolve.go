package main

import (
	"fmt"

	"github.com/nvandessel/stockflow/internal/analysis"
	"github.com/nvandessel/stockflow/internal/expr"
	"github.com/spf13/cobra"
)

// resolveResult mirrors the stockflow_resolve MCP tool output.
type resolveResult struct {
	Query      string                `json:"query"`
	Status     string                `json:"status"`
	Match      *analysis.VariableRef `json:"match,omitempty"`
	Kind       string                `json:"kind,omitempty"`
	Candidates []string              `json:"candidates"`
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <name>",
		Short: "Resolve a short or full name to a catalog variable",
		Long: `Look a name up among stocks and auxiliaries.

A full name always resolves to itself. A short name resolves when exactly
one sector owns a variable of that name; otherwise every candidate is listed.
An unresolved name is reported, not treated as a failure.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAnalyzer(cmd, func(a *analysis.Analyzer) error {
				r := a.Resolve(args[0])
				res := resolveResult{
					Query:      r.Query,
					Status:     r.Status.String(),
					Candidates: nonNil(r.Candidates),
				}
				if r.Status == analysis.Resolved {
					res.Match = &analysis.VariableRef{Name: r.Match.FullName, Description: r.Match.Description, Sector: r.Match.Sector}
					res.Kind = string(r.Match.Kind)
				}
				if jsonOutput(cmd) {
					return writeJSON(cmd, res)
				}

				out := cmd.OutOrStdout()
				switch r.Status {
				case analysis.Resolved:
					fmt.Fprintf(out, "%s -> %s (%s, %s)\n", r.Query, r.Match.FullName, r.Match.Kind, r.Match.Sector)
				case analysis.Ambiguous:
					fmt.Fprintf(out, "%s is ambiguous:\n", r.Query)
					for _, c := range r.Candidates {
						fmt.Fprintf(out, "  %s\n", c)
					}
				default:
					fmt.Fprintf(out, "%s not found\n", r.Query)
				}
				return nil
			})
		},
	}
}

func newDecomposeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decompose <expr>",
		Short: "Split a rate expression into inflow and outflow terms",
		Long: `Split an expression at its top-level + and - operators.

Terms are trimmed and kept in textual order. An expression without a
top-level + or - comes back whole as a single inflow.

Example:
  stockflow decompose "BIRTHS - (DEATHS + PASS20)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inflows, outflows := expr.Decompose(args[0])
			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]interface{}{
					"expression": args[0],
					"inflows":    nonNil(inflows),
					"outflows":   nonNil(outflows),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "inflows:  %s\n", listOrNone(inflows))
			fmt.Fprintf(out, "outflows: %s\n", listOrNone(outflows))
			return nil
		},
	}
}
