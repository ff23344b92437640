package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/stockflow/internal/config"
	"github.com/nvandessel/stockflow/internal/constants"
	"github.com/nvandessel/stockflow/internal/seed"
	"github.com/nvandessel/stockflow/internal/store"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize stockflow in the current project",
		Long: `Create the .stockflow directory, write the sample model into it and a
project config that points at it. Existing files are never overwritten.

With --global, create ~/.stockflow and a global config instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			globalInit, _ := cmd.Flags().GetBool("global")

			result := map[string]interface{}{"status": "initialized"}
			var dir, configPath string
			if globalInit {
				if err := store.EnsureGlobalStockflowDir(); err != nil {
					return fmt.Errorf("failed to initialize global directory: %w", err)
				}
				var err error
				if dir, err = store.GlobalStockflowPath(); err != nil {
					return err
				}
				if configPath, err = config.GlobalPath(); err != nil {
					return err
				}
				result["scope"] = constants.ScopeGlobal.String()
			} else {
				dir = store.LocalStockflowPath(root)
				configPath = config.ProjectPath(root)
				result["scope"] = constants.ScopeProject.String()
			}
			result["path"] = dir

			cfg := config.Default()
			if !globalInit {
				written, err := seed.WriteSample(dir)
				if err != nil {
					return fmt.Errorf("failed to write sample model: %w", err)
				}
				result["model"] = written.Path
				result["model_written"] = written.Written
				cfg.Model.Path = filepath.Join(constants.StoreDirName, seed.SampleName)
			}

			configWritten := false
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				if err := cfg.Save(configPath); err != nil {
					return err
				}
				configWritten = true
			}
			result["config"] = configPath
			result["config_written"] = configWritten

			if jsonOutput(cmd) {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Initialized %s\n", dir)
			if m, ok := result["model"]; ok {
				fmt.Fprintf(out, "  model:  %s\n", m)
			}
			fmt.Fprintf(out, "  config: %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().Bool("global", false, "Initialize ~/.stockflow instead of the project directory")

	return cmd
}
