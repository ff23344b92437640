package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/stockflow/internal/analysis"
	"github.com/nvandessel/stockflow/internal/store"
	"github.com/nvandessel/stockflow/internal/trajectory"
)

type runResult struct {
	ID     string `json:"id"`
	Points int    `json:"points"`
	States int    `json:"states"`
	File   string `json:"file"`
}

func solve(t *testing.T, root string, args ...string) runResult {
	t.Helper()
	out, err := execute(t, root, append([]string{"run", "--stop", "1901", "--json"}, args...)...)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var got runResult
	decode(t, out, &got)
	return got
}

func TestRunCmd(t *testing.T) {
	root := newProject(t)

	got := solve(t, root, "--note", "short horizon")
	if got.ID == "" {
		t.Fatal("run was not stored")
	}
	// 1900 to 1901 at the sample step of 0.5.
	if got.Points != 3 {
		t.Errorf("points = %d, want 3", got.Points)
	}
	if got.States != 8 {
		t.Errorf("states = %d, want 8 (5 stocks + 3 delay levels)", got.States)
	}

	out, err := execute(t, root, "runs", "list", "--json")
	if err != nil {
		t.Fatalf("runs list failed: %v", err)
	}
	var list struct {
		Runs  []store.RunMeta `json:"runs"`
		Count int             `json:"count"`
	}
	decode(t, out, &list)
	if list.Count != 1 || list.Runs[0].ID != got.ID {
		t.Fatalf("runs = %+v, want the stored run", list)
	}
	if list.Runs[0].Note != "short horizon" || list.Runs[0].Source != "euler" || list.Runs[0].Model != "world-sample" {
		t.Errorf("meta = %+v", list.Runs[0])
	}
}

func TestRunCmd_NoSaveWithFile(t *testing.T) {
	root := newProject(t)
	path := filepath.Join(root, "out.json")

	got := solve(t, root, "--no-save", "--out", path, "--save-every", "2")
	if got.ID != "" {
		t.Errorf("id = %q, want no stored run", got.ID)
	}
	// Steps 0 and 2 are recorded; the final step always is.
	if got.Points != 2 {
		t.Errorf("points = %d, want 2", got.Points)
	}
	sol, err := trajectory.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(sol.Times()) != 2 {
		t.Errorf("file holds %d points, want 2", len(sol.Times()))
	}
}

func TestRunCmd_InvalidSpan(t *testing.T) {
	root := newProject(t)

	_, err := execute(t, root, "run", "--start", "2000", "--stop", "1990")
	if err == nil || !strings.Contains(err.Error(), "invalid time span") {
		t.Errorf("err = %v, want invalid span", err)
	}
}

func TestSeriesCmd(t *testing.T) {
	root := newProject(t)
	first := solve(t, root)

	t.Run("latest run", func(t *testing.T) {
		out, err := execute(t, root, "series", "P1", "--json")
		if err != nil {
			t.Fatalf("series failed: %v", err)
		}
		var got struct {
			Source string    `json:"source"`
			Name   string    `json:"name"`
			T      []float64 `json:"t"`
			Values []float64 `json:"values"`
		}
		decode(t, out, &got)
		if got.Source != first.ID || got.Name != "pop₊P1" {
			t.Errorf("got %s from %s, want pop₊P1 from %s", got.Name, got.Source, first.ID)
		}
		if len(got.T) != 3 || len(got.Values) != 3 {
			t.Fatalf("lengths = %d/%d, want 3", len(got.T), len(got.Values))
		}
		if got.T[0] != 1900 || got.Values[0] != 6.5e8 {
			t.Errorf("first point = (%g, %g), want (1900, 6.5e8)", got.T[0], got.Values[0])
		}
	})

	t.Run("run prefix", func(t *testing.T) {
		out, err := execute(t, root, "series", "pop₊P2", "--run", first.ID[:8])
		if err != nil {
			t.Fatalf("series failed: %v", err)
		}
		if !strings.HasPrefix(out, "# pop₊P2 ("+first.ID+")") {
			t.Errorf("output header wrong:\n%s", out)
		}
	})

	t.Run("unknown variable", func(t *testing.T) {
		_, err := execute(t, root, "series", "NOPE")
		if !errors.Is(err, analysis.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		_, err := execute(t, root, "series", "P1", "--run", "zzzz")
		if !errors.Is(err, store.ErrRunNotFound) {
			t.Errorf("err = %v, want ErrRunNotFound", err)
		}
	})

	t.Run("run and file", func(t *testing.T) {
		if _, err := execute(t, root, "series", "P1", "--run", first.ID, "--file", "x.json"); err == nil {
			t.Error("expected error when both --run and --file are given")
		}
	})
}

func TestSeriesCmd_NoRuns(t *testing.T) {
	root := newProject(t)

	_, err := execute(t, root, "vars")
	if err == nil || !strings.Contains(err.Error(), "no runs stored") {
		t.Errorf("err = %v, want 'no runs stored'", err)
	}
}

func TestVarsCmd(t *testing.T) {
	root := newProject(t)
	solve(t, root)

	out, err := execute(t, root, "vars", "--json")
	if err != nil {
		t.Fatalf("vars failed: %v", err)
	}
	var got struct {
		Variables []trajectory.VariableInfo `json:"variables"`
		Count     int                       `json:"count"`
	}
	decode(t, out, &got)
	if got.Count != len(got.Variables) || got.Count == 0 {
		t.Fatalf("count = %d with %d entries", got.Count, len(got.Variables))
	}
	found := false
	for i, v := range got.Variables {
		if i > 0 && got.Variables[i-1].Name >= v.Name {
			t.Errorf("variables not sorted at %d: %q >= %q", i, got.Variables[i-1].Name, v.Name)
		}
		if strings.Contains(v.Name, "LV_") || strings.Contains(v.Name, "RT_") {
			t.Errorf("buffer %s listed", v.Name)
		}
		if v.Name == "pop₊P1" {
			found = true
			if v.Description != "Population aged 0 to 19" {
				t.Errorf("pop₊P1 description = %q", v.Description)
			}
		}
	}
	if !found {
		t.Error("pop₊P1 not listed")
	}

	if _, err := execute(t, root, "series", "LV_PPAPR1"); err == nil {
		t.Error("series of an internal buffer should fail")
	}
}

func TestRunsCmd_Lifecycle(t *testing.T) {
	root := newProject(t)
	first := solve(t, root)

	out, err := execute(t, root, "runs", "show", first.ID[:6], "--json")
	if err != nil {
		t.Fatalf("runs show failed: %v", err)
	}
	var shown struct {
		Run    store.RunMeta `json:"run"`
		States []string      `json:"states"`
	}
	decode(t, out, &shown)
	if shown.Run.ID != first.ID || len(shown.States) != 5 {
		t.Errorf("shown = %+v, want the 5 stocks without buffers", shown)
	}

	path := filepath.Join(root, "export.json")
	if _, err := execute(t, root, "runs", "export", first.ID, path); err != nil {
		t.Fatalf("runs export failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("export not written: %v", err)
	}

	out, err = execute(t, root, "runs", "import", path, "--note", "round trip", "--json")
	if err != nil {
		t.Fatalf("runs import failed: %v", err)
	}
	var imported struct {
		ID     string `json:"id"`
		Points int    `json:"points"`
	}
	decode(t, out, &imported)
	if imported.ID == "" || imported.ID == first.ID || imported.Points != 3 {
		t.Errorf("imported = %+v", imported)
	}

	// The imported run is now the latest one.
	out, err = execute(t, root, "series", "P1", "--json")
	if err != nil {
		t.Fatalf("series failed: %v", err)
	}
	if !strings.Contains(out, imported.ID) {
		t.Errorf("series did not read the imported run:\n%s", out)
	}

	if _, err := execute(t, root, "runs", "delete", first.ID); err != nil {
		t.Fatalf("runs delete failed: %v", err)
	}
	if _, err := execute(t, root, "runs", "show", first.ID); !errors.Is(err, store.ErrRunNotFound) {
		t.Errorf("show after delete: err = %v, want ErrRunNotFound", err)
	}

	out, err = execute(t, root, "runs", "list")
	if err != nil {
		t.Fatalf("runs list failed: %v", err)
	}
	if !strings.Contains(out, "round trip") {
		t.Errorf("list missing imported run:\n%s", out)
	}
}
