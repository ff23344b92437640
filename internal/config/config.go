// Package config provides unified configuration loading for stockflow.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/stockflow/internal/constants"
	"github.com/nvandessel/stockflow/internal/expr"
	"github.com/nvandessel/stockflow/internal/model"
	"gopkg.in/yaml.v3"
)

// FileName is the config file name inside a .stockflow directory.
const FileName = "config.yaml"

// StockflowConfig contains all stockflow configuration settings.
type StockflowConfig struct {
	// Model selects the model file and how its names are read.
	Model ModelConfig `json:"model" yaml:"model"`

	// Solver contains settings for the reference solver.
	Solver SolverConfig `json:"solver" yaml:"solver"`

	// Store contains settings for the run store.
	Store StoreConfig `json:"store" yaml:"store"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ModelConfig configures model loading and classification.
type ModelConfig struct {
	// Path is the model YAML file. Empty selects the built-in sample.
	// Relative paths are resolved against the project root.
	// Supports ${VAR} syntax for env vars.
	Path string `json:"path" yaml:"path"`

	// Separator joins sector prefixes and short names. A separator declared
	// in the model file takes precedence.
	Separator string `json:"separator" yaml:"separator"`

	// BufferMarkers are name fragments of internal delay-line variables,
	// which are hidden from every listing.
	BufferMarkers []string `json:"buffer_markers" yaml:"buffer_markers"`
}

// SolverConfig configures the reference solver. The span applies when the
// model file declares none.
type SolverConfig struct {
	Start float64 `json:"start" yaml:"start"`
	Stop  float64 `json:"stop" yaml:"stop"`
	Step  float64 `json:"step" yaml:"step"`

	// SaveEvery records every n-th step; the final point is always recorded.
	SaveEvery int `json:"save_every" yaml:"save_every"`

	// Timeout bounds a solve. Zero means no limit.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// StoreConfig configures where runs and logs are kept.
type StoreConfig struct {
	// Dir is the store directory. Relative paths are resolved against the
	// project root.
	Dir string `json:"dir" yaml:"dir"`
}

// LoggingConfig configures stockflow's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to .stockflow/decisions.jsonl.
	// "trace" additionally logs generated solver source.
	Level string `json:"level" yaml:"level"`
}

// Default returns a StockflowConfig with sensible defaults.
func Default() *StockflowConfig {
	return &StockflowConfig{
		Model: ModelConfig{
			Separator:     constants.DefaultSeparator,
			BufferMarkers: append([]string(nil), constants.DefaultBufferMarkers...),
		},
		Solver: SolverConfig{
			Start:     constants.DefaultStartTime,
			Stop:      constants.DefaultStopTime,
			Step:      constants.DefaultStep,
			SaveEvery: constants.DefaultSaveEvery,
		},
		Store: StoreConfig{
			Dir: constants.StoreDirName,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GlobalPath returns ~/.stockflow/config.yaml.
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.StoreDirName, FileName), nil
}

// ProjectPath returns the project config file under projectRoot.
func ProjectPath(projectRoot string) string {
	return filepath.Join(projectRoot, constants.StoreDirName, FileName)
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.stockflow/config.yaml -> <projectRoot>/.stockflow/config.yaml
// -> environment variables. An empty projectRoot skips the project file.
func Load(projectRoot string) (*StockflowConfig, error) {
	config := Default()

	if globalPath, err := GlobalPath(); err == nil {
		if err := mergeFile(config, globalPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}
	if projectRoot != "" {
		if err := mergeFile(config, ProjectPath(projectRoot)); err != nil {
			return nil, fmt.Errorf("loading project config file: %w", err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// LoadGlobal loads defaults overlaid with the global config file only. It is
// what "config set" edits, so project and environment overrides never leak
// into the saved file.
func LoadGlobal() (*StockflowConfig, error) {
	config := Default()
	globalPath, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	if err := mergeFile(config, globalPath); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file over defaults.
func LoadFromFile(path string) (*StockflowConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	config.Model.Path = expandEnvVars(config.Model.Path)
	return config, nil
}

// mergeFile overlays the YAML file at path onto config. A missing file is
// not an error.
func mergeFile(config *StockflowConfig, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	config.Model.Path = expandEnvVars(config.Model.Path)
	return nil
}

// Save writes the configuration to path, creating its directory.
func (c *StockflowConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *StockflowConfig) Validate() error {
	if err := expr.ValidSeparator(c.Model.Separator); err != nil {
		return fmt.Errorf("model.separator: %w", err)
	}
	for _, m := range c.Model.BufferMarkers {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("model.buffer_markers must not contain empty markers")
		}
	}

	if c.Solver.Step <= 0 {
		return fmt.Errorf("solver.step must be positive, got %g", c.Solver.Step)
	}
	if c.Solver.Stop < c.Solver.Start {
		return fmt.Errorf("solver.stop (%g) must not be before solver.start (%g)", c.Solver.Stop, c.Solver.Start)
	}
	if c.Solver.SaveEvery < 1 {
		return fmt.Errorf("solver.save_every must be at least 1, got %d", c.Solver.SaveEvery)
	}
	if c.Solver.Timeout < 0 {
		return fmt.Errorf("solver.timeout must be non-negative, got %v", c.Solver.Timeout)
	}

	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir must not be empty")
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}
	return nil
}

// Span returns the configured solver span.
func (c *StockflowConfig) Span() model.Span {
	return model.Span{Start: c.Solver.Start, Stop: c.Solver.Stop, Step: c.Solver.Step}
}

// Markers returns the configured buffer markers.
func (c *StockflowConfig) Markers() model.BufferMarkers {
	return model.BufferMarkers(c.Model.BufferMarkers)
}

// ModelPath returns the model file path resolved against projectRoot, or ""
// for the built-in sample.
func (c *StockflowConfig) ModelPath(projectRoot string) string {
	return resolve(projectRoot, c.Model.Path)
}

// StoreDir returns the store directory resolved against projectRoot.
func (c *StockflowConfig) StoreDir(projectRoot string) string {
	return resolve(projectRoot, c.Store.Dir)
}

func resolve(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *StockflowConfig) {
	if v := os.Getenv("STOCKFLOW_MODEL"); v != "" {
		config.Model.Path = v
	}
	if v := os.Getenv("STOCKFLOW_SEPARATOR"); v != "" {
		config.Model.Separator = v
	}
	if v, ok := os.LookupEnv("STOCKFLOW_BUFFER_MARKERS"); ok {
		config.Model.BufferMarkers = splitList(v)
	}

	if v := os.Getenv("STOCKFLOW_SOLVER_START"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Solver.Start = f
		}
	}
	if v := os.Getenv("STOCKFLOW_SOLVER_STOP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Solver.Stop = f
		}
	}
	if v := os.Getenv("STOCKFLOW_SOLVER_STEP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Solver.Step = f
		}
	}

	if v := os.Getenv("STOCKFLOW_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
