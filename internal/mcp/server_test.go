package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/stockflow/internal/config"
	"github.com/nvandessel/stockflow/internal/model"
)

const tinyModel = `name: tiny
sectors:
  - name: Alpha
    prefix: a
    parameters: {R: 0.1}
    variables:
      - {name: X, description: level, initial: 1}
      - {name: G, description: growth}
    equations:
      - eq: "D(X) ~ G(t)"
      - eq: "G(t) ~ R * X(t)"
`

// isolateHome sets HOME to a temp directory to avoid touching real ~/.stockflow/
func isolateHome(t *testing.T, tmpDir string) {
	t.Helper()
	tmpHome := filepath.Join(tmpDir, "home")
	if err := os.MkdirAll(tmpHome, 0755); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", tmpHome)
	t.Setenv("USERPROFILE", tmpHome)
}

// setupTestServer starts a server on the built-in sample model.
func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	server, err := NewServer(&Config{
		Name:     "test-server",
		Version:  "v1.0.0",
		Root:     tmpDir,
		Settings: config.Default(),
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server, tmpDir
}

// setupFileServer starts a server on a model file inside the project root.
func setupFileServer(t *testing.T) (*Server, string) {
	t.Helper()
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, "model.yaml"), []byte(tinyModel), 0644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	settings := config.Default()
	settings.Model.Path = "model.yaml"

	server, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0", Root: tmpDir, Settings: settings})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server, tmpDir
}

func TestNewServer(t *testing.T) {
	server, tmpDir := setupTestServer(t)

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.runs == nil {
		t.Error("Server.runs is nil")
	}
	if server.root != tmpDir {
		t.Errorf("Server.root = %q, want %q", server.root, tmpDir)
	}
	if a := server.current(); a == nil || a.Registry().Name() != "world-sample" {
		t.Error("expected the sample model to be loaded")
	}
	if server.watcher != nil {
		t.Error("the built-in sample must not be watched")
	}
	if len(server.toolLimiters) == 0 {
		t.Error("expected tool rate limiters")
	}
}

func TestNewServer_CreatesStoreDir(t *testing.T) {
	_, tmpDir := setupTestServer(t)

	storeDir := filepath.Join(tmpDir, ".stockflow")
	for _, name := range []string{"runs.db", AuditFile} {
		if _, err := os.Stat(filepath.Join(storeDir, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestNewServer_Errors(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	missing := config.Default()
	missing.Model.Path = "missing.yaml"
	if _, err := NewServer(&Config{Root: tmpDir, Settings: missing}); err == nil {
		t.Error("expected error for a missing model file")
	}

	invalid := config.Default()
	invalid.Solver.Step = 0
	if _, err := NewServer(&Config{Root: tmpDir, Settings: invalid}); err == nil {
		t.Error("expected error for invalid settings")
	}
}

func TestNewServer_LoadsConfigFromRoot(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	if err := os.WriteFile(filepath.Join(tmpDir, "model.yaml"), []byte(tinyModel), 0644); err != nil {
		t.Fatal(err)
	}
	cfgPath := config.ProjectPath(tmpDir)
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfgPath, []byte("model:\n  path: model.yaml\n"), 0644); err != nil {
		t.Fatal(err)
	}

	server, err := NewServer(&Config{Name: "test", Version: "dev", Root: tmpDir})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if got := server.current().Registry().Name(); got != "tiny" {
		t.Errorf("model = %q, want tiny", got)
	}
}

func TestClose(t *testing.T) {
	server, _ := setupTestServer(t)

	// Close should not error
	if err := server.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	// Multiple closes should be safe
	if err := server.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}
}

func TestOnModelChange(t *testing.T) {
	server, _ := setupFileServer(t)
	before := server.current()

	server.onModelChange(nil, os.ErrNotExist)
	if server.current() != before {
		t.Error("a failed reload must keep the previous analyzer")
	}

	reg, err := model.Parse([]byte(tinyModel + "\n# edited\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	server.onModelChange(reg, nil)
	if server.current() == before {
		t.Error("expected a fresh analyzer after reload")
	}
	if server.current().Registry() != reg {
		t.Error("analyzer should wrap the reloaded registry")
	}
}

func TestWatcher_SwapsAnalyzer(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file watcher test in short mode")
	}
	server, tmpDir := setupFileServer(t)
	if server.watcher == nil {
		t.Fatal("expected a watcher for a model file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		server.watcher.Run(ctx)
		close(done)
	}()

	// Give the watcher a moment to start consuming events.
	time.Sleep(50 * time.Millisecond)
	edited := []byte("name: edited\n" + tinyModel[len("name: tiny\n"):])
	if err := os.WriteFile(filepath.Join(tmpDir, "model.yaml"), edited, 0644); err != nil {
		t.Fatalf("rewrite model: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for server.current().Registry().Name() != "edited" {
		if time.Now().After(deadline) {
			t.Fatal("analyzer was not swapped after the model changed")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	<-done
}
