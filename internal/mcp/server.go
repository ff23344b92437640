// Package mcp provides an MCP (Model Context Protocol) server for stockflow.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/stockflow/internal/analysis"
	"github.com/nvandessel/stockflow/internal/config"
	"github.com/nvandessel/stockflow/internal/logging"
	"github.com/nvandessel/stockflow/internal/model"
	"github.com/nvandessel/stockflow/internal/ratelimit"
	"github.com/nvandessel/stockflow/internal/seed"
	"github.com/nvandessel/stockflow/internal/store"
)

// Server wraps the MCP SDK server and provides stockflow-specific functionality.
type Server struct {
	server    *sdk.Server
	root      string
	settings  *config.StockflowConfig
	modelPath string
	storeDir  string

	// analyzer is swapped whole when the model file changes, so handlers
	// never see a half-built index.
	analyzer atomic.Pointer[analysis.Analyzer]

	runs         *store.RunStore
	watcher      *model.Watcher
	logger       *slog.Logger
	decisions    *logging.DecisionLogger
	auditLogger  *AuditLogger
	toolLimiters ratelimit.ToolLimiters

	closeOnce sync.Once
	closeErr  error
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "stockflow")
	Version string // Server version
	Root    string // Project root directory

	// Settings overrides config.Load(Root) when set.
	Settings *config.StockflowConfig
	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger
}

// NewServer creates a new MCP server with stockflow tools.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		loaded, err := config.Load(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		settings = loaded
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.OrDiscard(cfg.Logger)
	storeDir := settings.StoreDir(cfg.Root)
	modelPath := settings.ModelPath(cfg.Root)

	runs, err := store.OpenRunStore(storeDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	// Create MCP server
	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		root:         cfg.Root,
		settings:     settings,
		modelPath:    modelPath,
		storeDir:     storeDir,
		runs:         runs,
		logger:       logger,
		decisions:    logging.NewDecisionLogger(storeDir, settings.Logging.Level),
		auditLogger:  NewAuditLogger(storeDir),
		toolLimiters: ratelimit.NewToolLimiters(),
	}

	if err := s.reload(); err != nil {
		s.Close()
		return nil, err
	}

	if modelPath != "" {
		w, err := model.NewWatcher(modelPath, s.onModelChange, logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to watch model: %w", err)
		}
		w.SetSeparator(settings.Model.Separator)
		s.watcher = w
	}

	// Register tools
	if err := s.registerTools(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// reload loads the configured model and installs a fresh analyzer.
func (s *Server) reload() error {
	reg, err := seed.LoadRegistry(s.modelPath, s.settings.Model.Separator)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	s.install(reg)
	return nil
}

func (s *Server) install(reg *model.Registry) {
	s.analyzer.Store(analysis.New(reg, analysis.Options{
		BufferMarkers: s.settings.Markers(),
		Logger:        s.logger,
		Decisions:     s.decisions,
	}))
}

// onModelChange keeps serving the previous analyzer when the edited file
// does not load.
func (s *Server) onModelChange(reg *model.Registry, err error) {
	if err != nil {
		s.logger.Warn("model reload failed, keeping previous model", "path", s.modelPath, "error", err)
		return
	}
	s.install(reg)
	s.logger.Info("model reloaded", "path", s.modelPath, "model", reg.Name())
}

// current returns the analyzer in effect for one tool call.
func (s *Server) current() *analysis.Analyzer {
	return s.analyzer.Load()
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle OS signals
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if s.watcher != nil {
		go func() {
			if err := s.watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("model watcher stopped", "error", err)
			}
		}()
	}

	// Run server (blocks)
	err := s.server.Run(ctx, &sdk.StdioTransport{})

	// Clean up
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close closes the server and releases resources. It is safe to call more
// than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.runs.Close()
		if err := s.auditLogger.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
		if s.watcher != nil {
			s.watcher.Close()
		}
		s.decisions.Close()
	})
	return s.closeErr
}
