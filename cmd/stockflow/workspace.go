package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/nvandessel/stockflow/internal/analysis"
	"github.com/nvandessel/stockflow/internal/config"
	"github.com/nvandessel/stockflow/internal/logging"
	"github.com/nvandessel/stockflow/internal/model"
	"github.com/nvandessel/stockflow/internal/seed"
	"github.com/nvandessel/stockflow/internal/store"
	"github.com/nvandessel/stockflow/internal/trajectory"
	"github.com/spf13/cobra"
)

// workspace is the project a command runs against: its root, the layered
// configuration and the loggers built from it.
type workspace struct {
	root      string
	settings  *config.StockflowConfig
	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// openWorkspace loads configuration for the --root project and applies the
// --model override. Callers must Close the result.
func openWorkspace(cmd *cobra.Command) (*workspace, error) {
	root, _ := cmd.Flags().GetString("root")
	modelFlag, _ := cmd.Flags().GetString("model")

	settings, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if modelFlag != "" {
		// The flag is relative to the working directory, not the project root.
		abs, err := filepath.Abs(modelFlag)
		if err != nil {
			return nil, fmt.Errorf("resolve model path: %w", err)
		}
		settings.Model.Path = abs
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &workspace{
		root:      root,
		settings:  settings,
		logger:    logging.NewLogger(settings.Logging.Level, cmd.ErrOrStderr()),
		decisions: logging.NewDecisionLogger(settings.StoreDir(root), settings.Logging.Level),
	}, nil
}

func (w *workspace) Close() {
	w.decisions.Close()
}

// registry loads the configured model, or the built-in sample.
func (w *workspace) registry() (*model.Registry, error) {
	reg, err := seed.LoadRegistry(w.settings.ModelPath(w.root), w.settings.Model.Separator)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	return reg, nil
}

func (w *workspace) analyzer() (*analysis.Analyzer, error) {
	reg, err := w.registry()
	if err != nil {
		return nil, err
	}
	return analysis.New(reg, analysis.Options{
		BufferMarkers: w.settings.Markers(),
		Logger:        w.logger,
		Decisions:     w.decisions,
	}), nil
}

// naming reads recorded variable names with the model's separator and the
// configured buffer markers.
func (w *workspace) naming(reg *model.Registry) trajectory.Naming {
	return trajectory.Naming{Separator: reg.Separator(), Markers: w.settings.Markers()}
}

func (w *workspace) openRuns() (*store.RunStore, error) {
	runs, err := store.OpenRunStore(w.settings.StoreDir(w.root), w.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return runs, nil
}

// withAnalyzer opens the workspace, builds its analyzer and runs fn.
func withAnalyzer(cmd *cobra.Command, fn func(a *analysis.Analyzer) error) error {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	a, err := ws.analyzer()
	if err != nil {
		return err
	}
	return fn(a)
}

func jsonOutput(cmd *cobra.Command) bool {
	jsonOut, _ := cmd.Flags().GetBool("json")
	return jsonOut
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	if err := json.NewEncoder(cmd.OutOrStdout()).Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// lookupFailed reports a not-found or ambiguous name. In JSON mode the
// structured error is also written to stdout so agents can read the
// suggestions or candidates. The error is always returned for the exit code.
func lookupFailed(cmd *cobra.Command, err error) error {
	if !jsonOutput(cmd) {
		return err
	}

	out := map[string]interface{}{"error": err.Error()}
	var nf *analysis.NotFoundError
	var amb *analysis.AmbiguousError
	switch {
	case errors.As(err, &nf):
		out["status"] = analysis.NotFound.String()
		out["kind"] = nf.Kind
		out["name"] = nf.Name
		out["suggestions"] = nonNil(nf.Suggestions)
	case errors.As(err, &amb):
		out["status"] = analysis.Ambiguous.String()
		out["name"] = amb.Name
		out["candidates"] = nonNil(amb.Candidates)
	}
	if jerr := writeJSON(cmd, out); jerr != nil {
		return jerr
	}
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
