package main

import (
	"fmt"

	"github.com/nvandessel/stockflow/internal/model"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the model for structural problems",
		Long: `Check the model for structural problems.

This command reports:
  - Equations whose left-hand side cannot be interpreted
  - Equations for variables the sector does not declare
  - Coupling copies whose home sector cannot be determined
  - References to names that are neither variables, parameters nor functions
  - Described variables without an equation (warning)
  - Algebraic loops among auxiliaries

The command fails when any issue has error severity.`,
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

			issues := model.Validate(reg)
			if issues == nil {
				issues = []model.Issue{}
			}
			errorCount := 0
			for _, i := range issues {
				if i.Severity == "error" {
					errorCount++
				}
			}

			if jsonOutput(cmd) {
				if err := writeJSON(cmd, map[string]interface{}{
					"model":       reg.Name(),
					"valid":       errorCount == 0,
					"error_count": errorCount,
					"issues":      issues,
				}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				for _, i := range issues {
					fmt.Fprintln(out, i.String())
				}
				if len(issues) == 0 {
					fmt.Fprintf(out, "Model %s is valid\n", reg.Name())
				} else {
					fmt.Fprintf(out, "\n%d issue(s), %d error(s)\n", len(issues), errorCount)
				}
			}

			if model.HasErrors(issues) {
				return fmt.Errorf("model %s has %d error(s)", reg.Name(), errorCount)
			}
			return nil
		},
	}
}
