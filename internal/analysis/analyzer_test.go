package analysis

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nvandessel/stockflow/internal/logging"
	"github.com/nvandessel/stockflow/internal/model"
	"github.com/nvandessel/stockflow/internal/seed"
)

func sampleAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	reg, err := seed.SampleRegistry()
	if err != nil {
		t.Fatalf("SampleRegistry() error = %v", err)
	}
	return New(reg, Options{})
}

func names(vs []model.Variable) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.FullName
	}
	return out
}

func TestClassify_Sample(t *testing.T) {
	a := sampleAnalyzer(t)
	cat := a.Catalog()

	wantStocks := []string{"ag₊AL", "ag₊PAL", "pol₊PPOL", "pop₊P1", "pop₊P2"}
	if diff := cmp.Diff(wantStocks, names(cat.Stocks)); diff != "" {
		t.Errorf("stocks mismatch (-want +got):\n%s", diff)
	}

	wantAux := []string{
		"ag₊AWBI", "ag₊F", "ag₊FPC", "ag₊LDR", "ag₊LER", "ag₊POP",
		"pol₊PPAPR", "pol₊PPASR", "pol₊PPGR", "pol₊PPOLX",
		"pop₊BIRTHS", "pop₊DEATHS", "pop₊LE", "pop₊PASS20", "pop₊POP",
	}
	if diff := cmp.Diff(wantAux, names(cat.Auxiliaries)); diff != "" {
		t.Errorf("auxiliaries mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_Partition(t *testing.T) {
	reg, err := seed.SampleRegistry()
	if err != nil {
		t.Fatalf("SampleRegistry() error = %v", err)
	}
	markers := model.BufferMarkers{"RT_", "LV_"}
	cat := Classify(reg, markers)

	described := make(map[string]bool)
	for _, s := range reg.Sectors() {
		for _, d := range s.Variables {
			if d.Description != "" && !markers.Match(d.Name) {
				described[reg.FullName(s.Prefix, d.Name)] = true
			}
		}
	}

	seen := make(map[string]bool)
	for _, v := range cat.All() {
		if seen[v.FullName] {
			t.Errorf("%s appears twice across catalogs", v.FullName)
		}
		seen[v.FullName] = true
		if !described[v.FullName] {
			t.Errorf("%s is cataloged but is not a described non-buffer variable", v.FullName)
		}
		if v.FullName != v.Prefix+reg.Separator()+v.ShortName {
			t.Errorf("FullName %q != prefix+separator+short", v.FullName)
		}
	}
	if len(seen) != len(described) {
		t.Errorf("catalog holds %d variables, want %d", len(seen), len(described))
	}
}

func TestClassify_BufferMarkersAreConfigurable(t *testing.T) {
	reg, err := seed.SampleRegistry()
	if err != nil {
		t.Fatalf("SampleRegistry() error = %v", err)
	}

	withBuffers := New(reg, Options{BufferMarkers: model.BufferMarkers{}})
	found := false
	for _, s := range withBuffers.ListStocks() {
		if s.Name == "pol₊LV_PPAPR1" {
			found = true
		}
	}
	if !found {
		t.Error("with no markers LV_PPAPR1 should be listed as a stock")
	}

	hidden := New(reg, Options{})
	for _, v := range hidden.Catalog().All() {
		if strings.Contains(v.ShortName, "RT_") || strings.Contains(v.ShortName, "LV_") {
			t.Errorf("buffer %s leaked into the catalog", v.FullName)
		}
	}
}

func TestStockFlows(t *testing.T) {
	a := sampleAnalyzer(t)

	tests := []struct {
		name     string
		query    string
		wantName string
		inflows  []string
		outflows []string
	}{
		{"short name", "P1", "pop₊P1", []string{"BIRTHS"}, []string{"PASS20"}},
		{"full name", "ag₊AL", "ag₊AL", []string{"LDR"}, []string{"LER"}},
		{"unary minus falls back", "PAL", "ag₊PAL", []string{"-LDR"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.StockFlows(tt.query)
			if err != nil {
				t.Fatalf("StockFlows(%q) error = %v", tt.query, err)
			}
			if got.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", got.Name, tt.wantName)
			}
			if diff := cmp.Diff(tt.inflows, got.Inflows); diff != "" {
				t.Errorf("inflows mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.outflows, got.Outflows); diff != "" {
				t.Errorf("outflows mismatch (-want +got):\n%s", diff)
			}
		})
	}

	p1, _ := a.StockFlows("P1")
	if p1.Equation != "BIRTHS - PASS20" {
		t.Errorf("Equation = %q, want time notation stripped", p1.Equation)
	}

	_, err := a.StockFlows("BIRTHS")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "stock" {
		t.Fatalf("StockFlows(BIRTHS) error = %v, want stock NotFoundError", err)
	}
	if !strings.Contains(nf.Hint, "stockflow stocks") {
		t.Errorf("Hint = %q, want a pointer to the stock listing", nf.Hint)
	}
}

func TestListFlows(t *testing.T) {
	a := sampleAnalyzer(t)
	flows := a.ListFlows()

	var got []string
	for _, f := range flows {
		got = append(got, f.Name)
	}
	want := []string{"-LDR", "BIRTHS", "DEATHS", "LDR", "LER", "PASS20", "PPAPR", "PPASR"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("flow names mismatch (-want +got):\n%s", diff)
	}

	for _, f := range flows {
		if f.Name != "PASS20" {
			continue
		}
		if diff := cmp.Diff([]string{"pop₊P2"}, f.AsInflowOf); diff != "" {
			t.Errorf("PASS20 as_inflow_of mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"pop₊P1"}, f.AsOutflowOf); diff != "" {
			t.Errorf("PASS20 as_outflow_of mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestListFlows_MatchesFlowStocks(t *testing.T) {
	a := sampleAnalyzer(t)
	for _, listed := range a.ListFlows() {
		got, err := a.FlowStocks(listed.Name)
		if err != nil {
			t.Fatalf("FlowStocks(%q) error = %v", listed.Name, err)
		}
		if diff := cmp.Diff(listed, got); diff != "" {
			t.Errorf("FlowStocks(%q) differs from listing (-list +get):\n%s", listed.Name, diff)
		}
	}
}

func TestFlowStocks_NotFound(t *testing.T) {
	a := sampleAnalyzer(t)

	_, err := a.FlowStocks("PP")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("FlowStocks(PP) error = %v, want NotFoundError", err)
	}
	if diff := cmp.Diff([]string{"PPAPR", "PPASR"}, nf.Suggestions); diff != "" {
		t.Errorf("suggestions mismatch (-want +got):\n%s", diff)
	}

	_, err = a.FlowStocks("NOTHING_LIKE_IT")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if !errors.As(err, &nf) || len(nf.Suggestions) != 0 {
		t.Errorf("suggestions = %v, want none", nf.Suggestions)
	}
}

func TestBuildFlowGraph_MergesAndCapsSuggestions(t *testing.T) {
	stocks := []model.Variable{
		{FullName: "s₊A", Equation: "F1 + F2 + F3 - F4"},
		{FullName: "s₊B", Equation: "F4 + F5 + F6 - F1"},
	}
	g := BuildFlowGraph(stocks)
	if len(g.Terms()) != 6 {
		t.Fatalf("terms = %d, want 6", len(g.Terms()))
	}
	f1, err := g.FlowOf("F1")
	if err != nil {
		t.Fatalf("FlowOf(F1) error = %v", err)
	}
	want := FlowTerm{Text: "F1", InflowOf: []string{"s₊A"}, OutflowOf: []string{"s₊B"}}
	if diff := cmp.Diff(want, f1); diff != "" {
		t.Errorf("F1 mismatch (-want +got):\n%s", diff)
	}

	_, err = g.FlowOf("F")
	var nf *NotFoundError
	if !errors.As(err, &nf) || len(nf.Suggestions) != 5 {
		t.Errorf("FlowOf(F) = %v, want 5 suggestions", err)
	}
}

func TestResolve(t *testing.T) {
	a := sampleAnalyzer(t)

	pop := a.Resolve("POP")
	if pop.Status != Ambiguous {
		t.Fatalf("Resolve(POP).Status = %v, want ambiguous", pop.Status)
	}
	if diff := cmp.Diff([]string{"ag₊POP", "pop₊POP"}, pop.Candidates); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}

	short := a.Resolve("AWBI")
	full := a.Resolve("ag₊AWBI")
	if short.Status != Resolved || full.Status != Resolved {
		t.Fatalf("AWBI statuses = %v, %v", short.Status, full.Status)
	}
	if diff := cmp.Diff(full.Match, short.Match); diff != "" {
		t.Errorf("short and full resolution differ (-full +short):\n%s", diff)
	}

	if r := a.Resolve("NOPE"); r.Status != NotFound {
		t.Errorf("Resolve(NOPE).Status = %v, want not-found", r.Status)
	}
}

func TestResolve_FullNameNeverAmbiguous(t *testing.T) {
	a := sampleAnalyzer(t)
	for _, v := range a.Catalog().All() {
		r := a.Resolve(v.FullName)
		if r.Status != Resolved || r.Match.FullName != v.FullName {
			t.Errorf("Resolve(%q) = %v %q", v.FullName, r.Status, r.Match.FullName)
		}
	}
}

func TestResolution_Err(t *testing.T) {
	a := sampleAnalyzer(t)

	_, err := a.AuxiliaryInputs("POP")
	var amb *AmbiguousError
	if !errors.As(err, &amb) {
		t.Fatalf("AuxiliaryInputs(POP) error = %v, want AmbiguousError", err)
	}
	if !errors.Is(err, ErrAmbiguous) || errors.Is(err, ErrNotFound) {
		t.Errorf("sentinel matching wrong for %v", err)
	}
	if !strings.Contains(err.Error(), "pop₊POP") {
		t.Errorf("error %q should list the candidates", err)
	}

	_, err = a.AuxiliaryEffects("P1")
	var nf *NotFoundError
	if !errors.As(err, &nf) || !strings.Contains(nf.Hint, "stockflow aux") {
		t.Errorf("AuxiliaryEffects(P1) error = %v, want hint to list auxiliaries", err)
	}

	if _, err := a.Lookup("P1"); err != nil {
		t.Errorf("Lookup(P1) error = %v", err)
	}
}

func TestAuxiliaryInputs(t *testing.T) {
	a := sampleAnalyzer(t)

	got, err := a.AuxiliaryInputs("LE")
	if err != nil {
		t.Fatalf("AuxiliaryInputs(LE) error = %v", err)
	}
	wantInputs := []VariableRef{
		{Name: "ag₊FPC", Description: "Food per capita", Sector: "Agriculture"},
		{Name: "pol₊PPOLX", Description: "Index of persistent pollution", Sector: "Pollution"},
	}
	if diff := cmp.Diff(wantInputs, got.Inputs); diff != "" {
		t.Errorf("inputs mismatch (-want +got):\n%s", diff)
	}
	wantParams := []ParameterRef{{Name: "pop₊LEN", Value: 28}}
	if diff := cmp.Diff(wantParams, got.Parameters); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}

	awbi, err := a.AuxiliaryInputs("AWBI")
	if err != nil {
		t.Fatalf("AuxiliaryInputs(AWBI) error = %v", err)
	}
	var inputNames []string
	for _, in := range awbi.Inputs {
		inputNames = append(inputNames, in.Name)
	}
	// POP used inside agriculture resolves to its home sector.
	if diff := cmp.Diff([]string{"ag₊AL", "pop₊POP"}, inputNames); diff != "" {
		t.Errorf("AWBI inputs mismatch (-want +got):\n%s", diff)
	}

	ppapr, err := a.AuxiliaryInputs("PPAPR")
	if err != nil {
		t.Fatalf("AuxiliaryInputs(PPAPR) error = %v", err)
	}
	if len(ppapr.Inputs) != 0 {
		t.Errorf("PPAPR inputs = %v, buffers must not appear", ppapr.Inputs)
	}
}

func TestAuxiliaryEffects(t *testing.T) {
	a := sampleAnalyzer(t)

	got, err := a.AuxiliaryEffects("pop₊POP")
	if err != nil {
		t.Fatalf("AuxiliaryEffects(pop₊POP) error = %v", err)
	}
	var effects []string
	for _, e := range got.Effects {
		effects = append(effects, e.Name)
	}
	want := []string{"ag₊AWBI", "ag₊FPC", "pol₊PPGR"}
	if diff := cmp.Diff(want, effects); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}

	copyEffects, err := a.AuxiliaryEffects("ag₊POP")
	if err != nil {
		t.Fatalf("AuxiliaryEffects(ag₊POP) error = %v", err)
	}
	if len(copyEffects.Effects) != 0 {
		t.Errorf("coupling copy has effects %v, references must point at the home", copyEffects.Effects)
	}
}

func TestEffectsInverseOfInputs(t *testing.T) {
	a := sampleAnalyzer(t)
	deps := a.Dependencies()
	all := a.Catalog().All()

	for _, x := range all {
		for _, y := range all {
			inInputs := contains(names(deps.InputsOf(x.FullName)), y.FullName)
			inEffects := contains(names(deps.EffectsOf(y.FullName)), x.FullName)
			if inInputs != inEffects {
				t.Errorf("%s in inputs(%s) = %v but %s in effects(%s) = %v",
					y.FullName, x.FullName, inInputs, x.FullName, y.FullName, inEffects)
			}
		}
	}
}

func TestDependencies_Edges(t *testing.T) {
	a := sampleAnalyzer(t)
	edges := a.Dependencies().Edges()
	if len(edges) == 0 {
		t.Fatal("expected dependency edges")
	}
	for _, e := range edges {
		if e.From == e.To {
			t.Errorf("self edge %v", e)
		}
		if !contains(names(a.Dependencies().InputsOf(e.To)), e.From) {
			t.Errorf("edge %v not backed by InputsOf", e)
		}
	}
}

func TestListings_Idempotent(t *testing.T) {
	reg, err := seed.SampleRegistry()
	if err != nil {
		t.Fatalf("SampleRegistry() error = %v", err)
	}

	render := func() string {
		a := New(reg, Options{})
		data, err := json.Marshal(map[string]any{
			"stocks":      a.ListStocks(),
			"flows":       a.ListFlows(),
			"auxiliaries": a.ListAuxiliaries(),
		})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return string(data)
	}
	if first, second := render(), render(); first != second {
		t.Error("listings differ between runs")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestAnalyzer_DecisionTrace(t *testing.T) {
	reg, err := seed.SampleRegistry()
	if err != nil {
		t.Fatalf("SampleRegistry() error = %v", err)
	}
	dir := t.TempDir()
	dl := logging.NewDecisionLogger(dir, "debug")
	a := New(reg, Options{Decisions: dl})
	a.Resolve("POP")
	if _, err := a.StockFlows("P1"); err != nil {
		t.Fatalf("StockFlows(P1) error = %v", err)
	}
	dl.Close()

	data, err := os.ReadFile(filepath.Join(dir, logging.DecisionsFile))
	if err != nil {
		t.Fatalf("read decisions: %v", err)
	}
	var got []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry struct {
			Event  string `json:"event"`
			Scope  string `json:"scope"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
		got = append(got, strings.TrimSpace(entry.Event+" "+entry.Scope+" "+entry.Status))
	}
	want := []string{"classify", "resolve variable ambiguous", "resolve stock resolved"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decision trace mismatch (-want +got):\n%s", diff)
	}
}
