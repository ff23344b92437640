package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nvandessel/stockflow/internal/model"
	"github.com/nvandessel/stockflow/internal/solver"
	"github.com/nvandessel/stockflow/internal/store"
	"github.com/nvandessel/stockflow/internal/trajectory"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Solve the model with the reference Euler solver",
		Long: `Compose the sectors into one system, solve it with the fixed-step Euler
solver and store the run.

The time span comes from the model file, falling back to solver.start,
solver.stop and solver.step from config. Flags override both.

Examples:
  stockflow run
  stockflow run --stop 2000 --step 0.25 --note "short horizon"
  stockflow run --no-save --out run.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			reg, err := ws.registry()
			if err != nil {
				return err
			}

			span := ws.settings.Span()
			if declared, ok := reg.Span(); ok {
				span = declared
			}
			if cmd.Flags().Changed("start") {
				span.Start, _ = cmd.Flags().GetFloat64("start")
			}
			if cmd.Flags().Changed("stop") {
				span.Stop, _ = cmd.Flags().GetFloat64("stop")
			}
			if cmd.Flags().Changed("step") {
				span.Step, _ = cmd.Flags().GetFloat64("step")
			}
			saveEvery := ws.settings.Solver.SaveEvery
			if cmd.Flags().Changed("save-every") {
				saveEvery, _ = cmd.Flags().GetInt("save-every")
			}
			timeout := ws.settings.Solver.Timeout
			if cmd.Flags().Changed("timeout") {
				timeout, _ = cmd.Flags().GetDuration("timeout")
			}
			note, _ := cmd.Flags().GetString("note")
			noSave, _ := cmd.Flags().GetBool("no-save")
			outFile, _ := cmd.Flags().GetString("out")

			sys, err := model.Compose(reg)
			if err != nil {
				return fmt.Errorf("failed to compose model: %w", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if timeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			sigChan := make(chan os.Signal, 1)
			notifySignals(sigChan)
			go func() {
				select {
				case <-sigChan:
					cancel()
				case <-ctx.Done():
				}
			}()

			began := time.Now()
			euler := solver.NewEuler(solver.Options{
				SaveEvery: saveEvery,
				Logger:    ws.logger,
				Decisions: ws.decisions,
			})
			sol, err := euler.Solve(ctx, sys, span)
			if err != nil {
				return fmt.Errorf("solve failed: %w", err)
			}
			elapsed := time.Since(began)

			result := map[string]interface{}{
				"model":      reg.Name(),
				"span":       span,
				"points":     len(sol.Times()),
				"states":     len(sol.States()),
				"observed":   len(sol.Observed()),
				"elapsed_ms": elapsed.Milliseconds(),
			}

			if !noSave {
				runs, err := ws.openRuns()
				if err != nil {
					return err
				}
				defer runs.Close()

				id, err := runs.SaveRun(ctx, store.RunMeta{
					Model:  reg.Name(),
					Source: "euler",
					Span:   span,
					Note:   note,
				}, sol)
				if err != nil {
					return fmt.Errorf("failed to save run: %w", err)
				}
				result["id"] = id
			}
			if outFile != "" {
				if err := trajectory.WriteFile(outFile, sol); err != nil {
					return err
				}
				result["file"] = outFile
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Solved %s from %g to %g (step %g) in %v\n", reg.Name(), span.Start, span.Stop, span.Step, elapsed.Round(time.Millisecond))
			fmt.Fprintf(out, "  %d points, %d states, %d observed\n", len(sol.Times()), len(sol.States()), len(sol.Observed()))
			if id, ok := result["id"]; ok {
				fmt.Fprintf(out, "  run: %s\n", id)
			}
			if outFile != "" {
				fmt.Fprintf(out, "  file: %s\n", outFile)
			}
			return nil
		},
	}

	cmd.Flags().Float64("start", 0, "Start time (overrides model and config)")
	cmd.Flags().Float64("stop", 0, "Stop time (overrides model and config)")
	cmd.Flags().Float64("step", 0, "Integration step (overrides model and config)")
	cmd.Flags().Int("save-every", 1, "Record every n-th step")
	cmd.Flags().Duration("timeout", 0, "Abort the solve after this long (0 = no limit)")
	cmd.Flags().String("note", "", "Short note stored with the run")
	cmd.Flags().Bool("no-save", false, "Do not store the run")
	cmd.Flags().String("out", "", "Also write the trajectory to this JSON file")

	return cmd
}
