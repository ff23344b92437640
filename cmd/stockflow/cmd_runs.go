package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nvandessel/stockflow/internal/store"
	"github.com/nvandessel/stockflow/internal/trajectory"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage stored runs",
		Long: `List, inspect, delete, import and export stored runs.

Run ids may be abbreviated to any unique prefix.

Examples:
  stockflow runs list
  stockflow runs show 3f2a
  stockflow runs import external.json --note "from another solver"
  stockflow runs export 3f2a run.json`,
	}

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsDeleteCmd(),
		newRunsImportCmd(),
		newRunsExportCmd(),
	)

	return cmd
}

// withRuns opens the workspace run store and runs fn.
func withRuns(cmd *cobra.Command, fn func(ws *workspace, runs *store.RunStore) error) error {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	runs, err := ws.openRuns()
	if err != nil {
		return err
	}
	defer runs.Close()

	return fn(ws, runs)
}

func newRunsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuns(cmd, func(ws *workspace, runs *store.RunStore) error {
				metas, err := runs.ListRuns(cmd.Context())
				if err != nil {
					return err
				}
				if metas == nil {
					metas = []store.RunMeta{}
				}
				if jsonOutput(cmd) {
					return writeJSON(cmd, map[string]interface{}{"runs": metas, "count": len(metas)})
				}

				out := cmd.OutOrStdout()
				if len(metas) == 0 {
					fmt.Fprintln(out, "No runs stored. Run 'stockflow run' to create one.")
					return nil
				}
				for _, m := range metas {
					fmt.Fprintf(out, "%s  %s  %-14s %-7s %6d pts  %s\n",
						shortID(m.ID), m.CreatedAt.Local().Format("2006-01-02 15:04:05"), m.Model, m.Source, m.Points, m.Note)
				}
				return nil
			})
		},
	}
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuns(cmd, func(ws *workspace, runs *store.RunStore) error {
				run, err := runs.LoadRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				naming := trajectory.Naming{Separator: ws.settings.Model.Separator, Markers: ws.settings.Markers()}
				states, observed := naming.Public(run.States()), naming.Public(run.Observed())
				if jsonOutput(cmd) {
					return writeJSON(cmd, map[string]interface{}{
						"run":      run.RunMeta,
						"states":   states,
						"observed": observed,
					})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s\n", run.ID)
				fmt.Fprintf(out, "  model:    %s\n", run.Model)
				fmt.Fprintf(out, "  source:   %s\n", run.Source)
				fmt.Fprintf(out, "  span:     %g to %g (step %g)\n", run.Span.Start, run.Span.Stop, run.Span.Step)
				fmt.Fprintf(out, "  points:   %d\n", run.Points)
				fmt.Fprintf(out, "  created:  %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
				if run.Note != "" {
					fmt.Fprintf(out, "  note:     %s\n", run.Note)
				}
				fmt.Fprintf(out, "  states:   %s\n", listOrNone(states))
				fmt.Fprintf(out, "  observed: %s\n", listOrNone(observed))
				return nil
			})
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuns(cmd, func(ws *workspace, runs *store.RunStore) error {
				if err := runs.DeleteRun(cmd.Context(), args[0]); err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return writeJSON(cmd, map[string]string{"status": "deleted", "id": args[0]})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
				return nil
			})
		},
	}
}

func newRunsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Store a trajectory file produced by another solver",
		Long: `Store a trajectory file as a run.

The file is JSON of the form {"t": [...], "states": {...}, "observed": {...}},
with one array per variable keyed by full name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			note, _ := cmd.Flags().GetString("note")
			sol, err := trajectory.ReadFile(args[0])
			if err != nil {
				return err
			}

			return withRuns(cmd, func(ws *workspace, runs *store.RunStore) error {
				modelName := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
				if reg, err := ws.registry(); err == nil {
					modelName = reg.Name()
				}

				meta := store.RunMeta{Model: modelName, Source: "import", Note: note}
				if times := sol.Times(); len(times) > 0 {
					meta.Span.Start, meta.Span.Stop = times[0], times[len(times)-1]
				}
				id, err := runs.SaveRun(cmd.Context(), meta, sol)
				if err != nil {
					return fmt.Errorf("failed to save run: %w", err)
				}

				if jsonOutput(cmd) {
					return writeJSON(cmd, map[string]interface{}{
						"status": "imported",
						"id":     id,
						"points": len(sol.Times()),
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as run %s (%d points)\n", args[0], id, len(sol.Times()))
				return nil
			})
		},
	}

	cmd.Flags().String("note", "", "Short note stored with the run")

	return cmd
}

func newRunsExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <id> <file>",
		Short: "Write a stored run to a trajectory file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuns(cmd, func(ws *workspace, runs *store.RunStore) error {
				run, err := runs.LoadRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := trajectory.WriteFile(args[1], run); err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return writeJSON(cmd, map[string]string{"status": "exported", "id": run.ID, "file": args[1]})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported run %s to %s\n", run.ID, args[1])
				return nil
			})
		},
	}
}

// openSolution returns the trajectory named by --run or --file, or the
// latest stored run when neither is set. source describes where it came from.
func openSolution(ctx context.Context, ws *workspace, runID, file string) (sol trajectory.Solution, source string, err error) {
	if runID != "" && file != "" {
		return nil, "", fmt.Errorf("--run and --file are mutually exclusive")
	}
	if file != "" {
		mem, err := trajectory.ReadFile(file)
		if err != nil {
			return nil, "", err
		}
		return mem, file, nil
	}

	runs, err := ws.openRuns()
	if err != nil {
		return nil, "", err
	}
	defer runs.Close()

	var run *store.Run
	if runID != "" {
		run, err = runs.LoadRun(ctx, runID)
	} else {
		run, err = runs.LatestRun(ctx)
		if errors.Is(err, store.ErrRunNotFound) {
			return nil, "", fmt.Errorf("no runs stored; run 'stockflow run' first")
		}
	}
	if err != nil {
		return nil, "", err
	}
	return run, run.ID, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
