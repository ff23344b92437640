package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nvandessel/stockflow/internal/analysis"
	"github.com/nvandessel/stockflow/internal/visualization"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the stock/flow or dependency graph",
		Long: `Output a model graph in DOT (Graphviz) or JSON format.

Kinds:
  flows  stocks and the flow terms that fill and drain them
  deps   stocks and auxiliaries linked by direct references

Examples:
  stockflow graph --format dot | dot -Tsvg > flows.svg
  stockflow graph --kind deps --format json -o deps.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kindFlag, _ := cmd.Flags().GetString("kind")
			formatFlag, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")

			kind, err := visualization.ParseKind(kindFlag)
			if err != nil {
				return err
			}
			format, err := visualization.ParseFormat(formatFlag)
			if err != nil {
				return err
			}

			return withAnalyzer(cmd, func(a *analysis.Analyzer) error {
				var w io.Writer = cmd.OutOrStdout()
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("create output: %w", err)
					}
					defer f.Close()
					w = f
				}

				switch format {
				case visualization.FormatDOT:
					dot, err := visualization.RenderDOT(a, kind)
					if err != nil {
						return fmt.Errorf("render DOT: %w", err)
					}
					fmt.Fprint(w, dot)
				case visualization.FormatJSON:
					result, err := visualization.RenderJSON(a, kind)
					if err != nil {
						return fmt.Errorf("render JSON: %w", err)
					}
					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")
					if err := enc.Encode(result); err != nil {
						return fmt.Errorf("encode JSON: %w", err)
					}
				}

				if output != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s graph to %s\n", kind, output)
				}
				return nil
			})
		},
	}

	cmd.Flags().String("kind", string(visualization.KindFlows), "Graph kind: flows or deps")
	cmd.Flags().String("format", string(visualization.FormatDOT), "Output format: dot or json")
	cmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")

	return cmd
}
