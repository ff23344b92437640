package mcp

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/stockflow/internal/analysis"
	"github.com/nvandessel/stockflow/internal/model"
	"github.com/nvandessel/stockflow/internal/store"
	"github.com/nvandessel/stockflow/internal/trajectory"
)

func refNames(refs []analysis.VariableRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Name
	}
	return out
}

func sampleRun() *trajectory.Memory {
	m := trajectory.NewMemory([]string{"pop₊P1", "pop₊P2", "pol₊LV_PPAPR1"}, []string{"pop₊POP"})
	m.Append(1900, []float64{6.5e8, 1.0e9, 0.1}, []float64{1.65e9})
	m.Append(1900.5, []float64{6.6e8, 1.01e9, 0.2}, []float64{1.67e9})
	return m
}

func saveRun(t *testing.T, s *Server) string {
	t.Helper()
	id, err := s.runs.SaveRun(context.Background(), store.RunMeta{Model: "world-sample", Source: "test"}, sampleRun())
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	return id
}

func TestHandleStocks(t *testing.T) {
	server, _ := setupTestServer(t)

	result, output, err := server.handleStocks(context.Background(), &sdk.CallToolRequest{}, EmptyInput{})
	if err != nil {
		t.Fatalf("handleStocks failed: %v", err)
	}
	if result != nil {
		t.Error("Expected nil result (SDK auto-populates)")
	}
	if output.Count != 5 || len(output.Stocks) != 5 {
		t.Errorf("Count = %d, len = %d, want 5", output.Count, len(output.Stocks))
	}
	if output.Stocks[0].Name != "ag₊AL" {
		t.Errorf("first stock = %q, want ag₊AL", output.Stocks[0].Name)
	}
}

func TestHandleStockFlows(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, output, err := server.handleStockFlows(ctx, nil, NameInput{Name: "P1"})
	if err != nil {
		t.Fatalf("handleStockFlows failed: %v", err)
	}
	if output.Name != "pop₊P1" {
		t.Errorf("Name = %q, want pop₊P1", output.Name)
	}
	if diff := cmp.Diff([]string{"BIRTHS"}, output.Inflows); diff != "" {
		t.Errorf("inflows mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"PASS20"}, output.Outflows); diff != "" {
		t.Errorf("outflows mismatch (-want +got):\n%s", diff)
	}

	_, _, err = server.handleStockFlows(ctx, nil, NameInput{Name: "BIRTHS"})
	if !errors.Is(err, analysis.ErrNotFound) {
		t.Errorf("auxiliary as stock: err = %v, want ErrNotFound", err)
	}
}

func TestHandleFlows(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, flows, err := server.handleFlows(ctx, nil, EmptyInput{})
	if err != nil {
		t.Fatalf("handleFlows failed: %v", err)
	}
	if flows.Count != 8 {
		t.Errorf("Count = %d, want 8", flows.Count)
	}

	_, births, err := server.handleFlowStocks(ctx, nil, FlowStocksInput{Term: "BIRTHS"})
	if err != nil {
		t.Fatalf("handleFlowStocks failed: %v", err)
	}
	if diff := cmp.Diff([]string{"pop₊P1"}, births.AsInflowOf); diff != "" {
		t.Errorf("as_inflow_of mismatch (-want +got):\n%s", diff)
	}

	_, _, err = server.handleFlowStocks(ctx, nil, FlowStocksInput{Term: "BIRTH"})
	var nf *analysis.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *NotFoundError", err)
	}
	if len(nf.Suggestions) == 0 || nf.Suggestions[0] != "BIRTHS" {
		t.Errorf("suggestions = %v, want BIRTHS first", nf.Suggestions)
	}
}

func TestHandleAuxiliaries(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, aux, err := server.handleAuxiliaries(ctx, nil, EmptyInput{})
	if err != nil {
		t.Fatalf("handleAuxiliaries failed: %v", err)
	}
	if aux.Count != 15 {
		t.Errorf("Count = %d, want 15", aux.Count)
	}

	_, inputs, err := server.handleAuxInputs(ctx, nil, NameInput{Name: "LE"})
	if err != nil {
		t.Fatalf("handleAuxInputs failed: %v", err)
	}
	if diff := cmp.Diff([]string{"ag₊FPC", "pol₊PPOLX"}, refNames(inputs.Inputs)); diff != "" {
		t.Errorf("inputs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]analysis.ParameterRef{{Name: "pop₊LEN", Value: 28}}, inputs.Parameters); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}

	_, effects, err := server.handleAuxEffects(ctx, nil, NameInput{Name: "pop₊POP"})
	if err != nil {
		t.Fatalf("handleAuxEffects failed: %v", err)
	}
	if diff := cmp.Diff([]string{"ag₊AWBI", "ag₊FPC", "pol₊PPGR"}, refNames(effects.Effects)); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}

	_, _, err = server.handleAuxInputs(ctx, nil, NameInput{Name: "POP"})
	if !errors.Is(err, analysis.ErrAmbiguous) {
		t.Errorf("POP: err = %v, want ErrAmbiguous", err)
	}
}

func TestHandleResolve(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		query      string
		wantStatus string
		wantMatch  string
		wantKind   string
		wantCands  []string
	}{
		{"unique short name", "AL", "resolved", "ag₊AL", string(model.KindStock), []string{}},
		{"full name", "pop₊POP", "resolved", "pop₊POP", string(model.KindAuxiliary), []string{}},
		{"ambiguous", "POP", "ambiguous", "", "", []string{"ag₊POP", "pop₊POP"}},
		{"unknown", "NOPE", "not-found", "", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := server.handleResolve(ctx, nil, NameInput{Name: tt.query})
			if err != nil {
				t.Fatalf("handleResolve failed: %v", err)
			}
			if out.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", out.Status, tt.wantStatus)
			}
			gotMatch := ""
			if out.Match != nil {
				gotMatch = out.Match.Name
			}
			if gotMatch != tt.wantMatch || out.Kind != tt.wantKind {
				t.Errorf("match = %q (%q), want %q (%q)", gotMatch, out.Kind, tt.wantMatch, tt.wantKind)
			}
			if diff := cmp.Diff(tt.wantCands, out.Candidates); diff != "" {
				t.Errorf("candidates mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandleVariables_NoRuns(t *testing.T) {
	server, _ := setupTestServer(t)

	_, _, err := server.handleVariables(context.Background(), nil, TrajectoryInput{})
	if err == nil || !strings.Contains(err.Error(), "no runs stored") {
		t.Errorf("err = %v, want 'no runs stored'", err)
	}
}

func TestHandleVariables_LatestRun(t *testing.T) {
	server, _ := setupTestServer(t)
	id := saveRun(t, server)

	_, out, err := server.handleVariables(context.Background(), nil, TrajectoryInput{})
	if err != nil {
		t.Fatalf("handleVariables failed: %v", err)
	}
	if out.Source != id {
		t.Errorf("Source = %q, want %q", out.Source, id)
	}
	if out.Count != 3 {
		t.Fatalf("Count = %d, want 3 without the buffer", out.Count)
	}
	if out.Variables[0].Name != "pop₊P1" || out.Variables[0].Description == "" {
		t.Errorf("first variable = %+v, want described pop₊P1", out.Variables[0])
	}
}

func TestHandleTimeseries(t *testing.T) {
	server, tmpDir := setupTestServer(t)
	ctx := context.Background()
	id := saveRun(t, server)

	t.Run("run prefix", func(t *testing.T) {
		_, out, err := server.handleTimeseries(ctx, nil, TimeseriesInput{Name: "P1", Run: id[:8]})
		if err != nil {
			t.Fatalf("handleTimeseries failed: %v", err)
		}
		if out.Name != "pop₊P1" || out.Source != id {
			t.Errorf("out = %+v", out)
		}
		if diff := cmp.Diff([]float64{6.5e8, 6.6e8}, out.Values); diff != "" {
			t.Errorf("values mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("file inside project", func(t *testing.T) {
		path := filepath.Join(tmpDir, "exported.json")
		if err := trajectory.WriteFile(path, sampleRun()); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		_, out, err := server.handleTimeseries(ctx, nil, TimeseriesInput{Name: "POP", File: path})
		if err != nil {
			t.Fatalf("handleTimeseries failed: %v", err)
		}
		if diff := cmp.Diff([]float64{1900, 1900.5}, out.T); diff != "" {
			t.Errorf("t mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("file outside project", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "elsewhere.json")
		if err := trajectory.WriteFile(path, sampleRun()); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		_, _, err := server.handleTimeseries(ctx, nil, TimeseriesInput{Name: "POP", File: path})
		if err == nil || !strings.Contains(err.Error(), "outside allowed directories") {
			t.Errorf("err = %v, want path validation error", err)
		}
	})

	t.Run("run and file", func(t *testing.T) {
		_, _, err := server.handleTimeseries(ctx, nil, TimeseriesInput{Name: "POP", Run: id, File: "x.json"})
		if err == nil {
			t.Error("expected error when both run and file are given")
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		_, _, err := server.handleTimeseries(ctx, nil, TimeseriesInput{Name: "POP", Run: "zzzz"})
		if !errors.Is(err, store.ErrRunNotFound) {
			t.Errorf("err = %v, want ErrRunNotFound", err)
		}
	})

	t.Run("internal buffer", func(t *testing.T) {
		for _, name := range []string{"LV_PPAPR1", "pol₊LV_PPAPR1"} {
			_, _, err := server.handleTimeseries(ctx, nil, TimeseriesInput{Name: name})
			if !errors.Is(err, analysis.ErrNotFound) {
				t.Errorf("%s: err = %v, want ErrNotFound", name, err)
			}
		}
	})

	t.Run("unknown variable", func(t *testing.T) {
		_, _, err := server.handleTimeseries(ctx, nil, TimeseriesInput{Name: "LE"})
		if !errors.Is(err, analysis.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestHandleGraph(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleGraph(ctx, nil, GraphInput{})
	if err != nil {
		t.Fatalf("handleGraph failed: %v", err)
	}
	if out.Kind != "flows" || out.Format != "json" {
		t.Errorf("defaults = %s/%s, want flows/json", out.Kind, out.Format)
	}
	if out.NodeCount != 13 {
		t.Errorf("NodeCount = %d, want 13 (5 stocks + 8 flow terms)", out.NodeCount)
	}

	_, dot, err := server.handleGraph(ctx, nil, GraphInput{Kind: "deps", Format: "dot"})
	if err != nil {
		t.Fatalf("handleGraph(dot) failed: %v", err)
	}
	src, ok := dot.Graph.(string)
	if !ok || !strings.Contains(src, "digraph") {
		t.Errorf("expected DOT source, got %T", dot.Graph)
	}
	if dot.NodeCount != 20 {
		t.Errorf("NodeCount = %d, want 20", dot.NodeCount)
	}

	if _, _, err := server.handleGraph(ctx, nil, GraphInput{Format: "html"}); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, _, err := server.handleGraph(ctx, nil, GraphInput{Kind: "loops"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestHandleRuns(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, empty, err := server.handleRuns(ctx, nil, EmptyInput{})
	if err != nil {
		t.Fatalf("handleRuns failed: %v", err)
	}
	if empty.Runs == nil || empty.Count != 0 {
		t.Errorf("empty store: runs = %v, count = %d", empty.Runs, empty.Count)
	}

	id := saveRun(t, server)
	_, out, err := server.handleRuns(ctx, nil, EmptyInput{})
	if err != nil {
		t.Fatalf("handleRuns failed: %v", err)
	}
	if out.Count != 1 || out.Runs[0].ID != id {
		t.Errorf("runs = %+v", out.Runs)
	}
}

func TestRateLimit(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, _, err := server.handleGraph(ctx, nil, GraphInput{}); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	_, _, err := server.handleGraph(ctx, nil, GraphInput{})
	if err == nil || !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("err = %v, want rate limit error", err)
	}
}

func TestAuditTool_Integration(t *testing.T) {
	server, tmpDir := setupTestServer(t)
	ctx := context.Background()

	server.handleStocks(ctx, nil, EmptyInput{})
	server.handleAuxInputs(ctx, nil, NameInput{Name: "POP"})
	server.auditLogger.Close()

	entries := readAuditEntries(t, filepath.Join(tmpDir, ".stockflow", AuditFile))
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Tool != "stockflow_stocks" || entries[0].Status != "success" || entries[0].Model != "world-sample" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Status != "error" || entries[1].Params["name"] != "POP" {
		t.Errorf("second entry = %+v", entries[1])
	}
}
