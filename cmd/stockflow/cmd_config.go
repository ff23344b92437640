package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/stockflow/internal/config"
	"github.com/nvandessel/stockflow/internal/constants"
	"github.com/spf13/cobra"
)

// configKeys lists the settable keys in display order.
var configKeys = []string{
	"model.path",
	"model.separator",
	"model.buffer_markers",
	"solver.start",
	"solver.stop",
	"solver.step",
	"solver.save_every",
	"solver.timeout",
	"store.dir",
	"logging.level",
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage stockflow configuration",
		Long: `View and modify stockflow configuration settings.

Settings are layered: defaults, then ~/.stockflow/config.yaml, then the
project's .stockflow/config.yaml, then STOCKFLOW_* environment variables.
list and get show the effective value; set edits the global file unless
--scope project is given.

Examples:
  stockflow config list                              # Show all settings
  stockflow config get solver.step                   # Get a specific setting
  stockflow config set solver.step 0.25              # Set it globally
  stockflow config set model.path world.yaml --scope project`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			cfg, err := config.Load(root)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, cfg)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration (effective):")
			fmt.Fprintln(out)
			for _, key := range configKeys {
				value, _ := getConfigValue(cfg, key)
				fmt.Fprintf(out, "  %-22s %v\n", key+":", displayValue(key, value))
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			key := args[0]

			cfg, err := config.Load(root)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				if jsonOutput(cmd) {
					writeJSON(cmd, map[string]interface{}{
						"error": "key not found",
						"key":   key,
					})
				}
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, displayValue(key, value))
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			scopeFlag, _ := cmd.Flags().GetString("scope")
			key, value := args[0], args[1]

			scope := constants.Scope(scopeFlag)
			if !scope.Valid() {
				return fmt.Errorf("invalid scope: %s (must be project or global)", scopeFlag)
			}

			// Only the target file is loaded, so other layers never leak into it.
			var (
				cfg  *config.StockflowConfig
				path string
				err  error
			)
			switch scope {
			case constants.ScopeGlobal:
				if path, err = config.GlobalPath(); err != nil {
					return err
				}
				cfg, err = config.LoadGlobal()
			case constants.ScopeProject:
				path = config.ProjectPath(root)
				cfg = config.Default()
				if _, statErr := os.Stat(path); statErr == nil {
					cfg, err = config.LoadFromFile(path)
				}
			}
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				if jsonOutput(cmd) {
					writeJSON(cmd, map[string]interface{}{
						"error": err.Error(),
						"key":   key,
					})
				}
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
					"scope":  scope.String(),
					"path":   path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s (%s)\n", key, value, scope)
			return nil
		},
	}

	cmd.Flags().String("scope", constants.ScopeGlobal.String(), "Config file to edit: global or project")

	return cmd
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.StockflowConfig, key string) (interface{}, bool) {
	switch key {
	case "model.path":
		return cfg.Model.Path, true
	case "model.separator":
		return cfg.Model.Separator, true
	case "model.buffer_markers":
		return cfg.Model.BufferMarkers, true
	case "solver.start":
		return cfg.Solver.Start, true
	case "solver.stop":
		return cfg.Solver.Stop, true
	case "solver.step":
		return cfg.Solver.Step, true
	case "solver.save_every":
		return cfg.Solver.SaveEvery, true
	case "solver.timeout":
		return cfg.Solver.Timeout.String(), true
	case "store.dir":
		return cfg.Store.Dir, true
	case "logging.level":
		return cfg.Logging.Level, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.StockflowConfig, key, value string) error {
	parseFloat := func() (float64, error) {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %s", key, value)
		}
		return f, nil
	}

	switch key {
	case "model.path":
		cfg.Model.Path = value
	case "model.separator":
		cfg.Model.Separator = value
	case "model.buffer_markers":
		var markers []string
		for _, m := range strings.Split(value, ",") {
			if m = strings.TrimSpace(m); m != "" {
				markers = append(markers, m)
			}
		}
		if markers == nil {
			markers = []string{}
		}
		cfg.Model.BufferMarkers = markers
	case "solver.start":
		f, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.Solver.Start = f
	case "solver.stop":
		f, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.Solver.Stop = f
	case "solver.step":
		f, err := parseFloat()
		if err != nil {
			return err
		}
		cfg.Solver.Step = f
	case "solver.save_every":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %s", key, value)
		}
		cfg.Solver.SaveEvery = n
	case "solver.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %s", value)
		}
		cfg.Solver.Timeout = d
	case "store.dir":
		cfg.Store.Dir = value
	case "logging.level":
		cfg.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func displayValue(key string, value interface{}) interface{} {
	if key == "model.path" && value == "" {
		return "(built-in sample)"
	}
	if markers, ok := value.([]string); ok {
		return strings.Join(markers, ", ")
	}
	return value
}
