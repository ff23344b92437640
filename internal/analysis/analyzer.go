// Package analysis answers structural questions about a stock/flow model:
// which variables are stocks or auxiliaries, which terms flow into which
// stocks, and how auxiliaries depend on each other across sectors.
//
// An Analyzer is built once per registry and is read-only afterwards, so it
// is safe for concurrent use. A changed model needs a new Analyzer.
package analysis

import (
	"log/slog"

	"github.com/nvandessel/stockflow/internal/constants"
	"github.com/nvandessel/stockflow/internal/expr"
	"github.com/nvandessel/stockflow/internal/logging"
	"github.com/nvandessel/stockflow/internal/model"
)

const (
	stocksHint      = "run 'stockflow stocks' to list stocks"
	auxiliariesHint = "run 'stockflow aux' to list auxiliaries"
	variablesHint   = "run 'stockflow stocks' or 'stockflow aux' to list variables"
)

// Options configures an Analyzer.
type Options struct {
	// BufferMarkers identify internal delay-line variables. Nil selects
	// constants.DefaultBufferMarkers; an empty non-nil slice disables
	// buffer detection.
	BufferMarkers model.BufferMarkers
	Logger        *slog.Logger
	Decisions     *logging.DecisionLogger
}

// Analyzer holds the derived catalog, flow graph and dependency index of
// one registry.
type Analyzer struct {
	reg       *model.Registry
	markers   model.BufferMarkers
	catalog   Catalog
	all       []model.Variable
	flows     *FlowGraph
	deps      *Dependencies
	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// New classifies reg and builds its flow graph and dependency index.
func New(reg *model.Registry, opts Options) *Analyzer {
	markers := opts.BufferMarkers
	if markers == nil {
		markers = model.BufferMarkers(constants.DefaultBufferMarkers)
	}

	cat := Classify(reg, markers)
	a := &Analyzer{
		reg:       reg,
		markers:   markers,
		catalog:   cat,
		all:       cat.All(),
		flows:     BuildFlowGraph(cat.Stocks),
		deps:      BuildDependencies(reg, cat),
		logger:    logging.OrDiscard(opts.Logger),
		decisions: opts.Decisions,
	}

	a.logger.Debug("model classified",
		"model", reg.Name(),
		"stocks", len(cat.Stocks),
		"auxiliaries", len(cat.Auxiliaries),
		"flows", len(a.flows.Terms()))
	a.decisions.Classified(logging.ClassifyEvent{
		Model:       reg.Name(),
		Markers:     markers,
		Stocks:      len(cat.Stocks),
		Auxiliaries: len(cat.Auxiliaries),
		Flows:       len(a.flows.Terms()),
	})
	return a
}

// Registry returns the registry the analyzer was built from.
func (a *Analyzer) Registry() *model.Registry { return a.reg }

// Markers returns the buffer markers the catalog was classified with.
func (a *Analyzer) Markers() model.BufferMarkers { return a.markers }

// Catalog returns the classified variables.
func (a *Analyzer) Catalog() Catalog { return a.catalog }

// Flows returns the flow graph.
func (a *Analyzer) Flows() *FlowGraph { return a.flows }

// Dependencies returns the dependency index.
func (a *Analyzer) Dependencies() *Dependencies { return a.deps }

// Resolve looks a name up among all stocks and auxiliaries.
func (a *Analyzer) Resolve(query string) Resolution {
	return a.resolve("variable", a.all, query)
}

func (a *Analyzer) resolve(scope string, vars []model.Variable, query string) Resolution {
	r := Resolve(vars, query)
	a.decisions.Resolved(logging.ResolveEvent{
		Scope:      scope,
		Query:      query,
		Status:     r.Status.String(),
		Match:      r.Match.FullName,
		Candidates: r.Candidates,
	})
	return r
}

// StockSummary is one entry of ListStocks.
type StockSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Sector      string `json:"sector"`
	Equation    string `json:"equation"`
}

// StockDetail is a stock with its decomposed rate equation.
type StockDetail struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Sector      string   `json:"sector"`
	Equation    string   `json:"equation"`
	Inflows     []string `json:"inflows"`
	Outflows    []string `json:"outflows"`
}

// FlowSummary is a flow term with the stocks it feeds and drains.
type FlowSummary struct {
	Name        string   `json:"name"`
	AsInflowOf  []string `json:"as_inflow_of"`
	AsOutflowOf []string `json:"as_outflow_of"`
}

// VariableRef identifies a catalog variable in dependency listings.
type VariableRef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Sector      string `json:"sector"`
}

// AuxiliaryInputs is an auxiliary with everything its equation references.
type AuxiliaryInputs struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Sector      string         `json:"sector"`
	Equation    string         `json:"equation"`
	Inputs      []VariableRef  `json:"inputs"`
	Parameters  []ParameterRef `json:"parameters"`
}

// AuxiliaryEffects is an auxiliary with every variable that references it.
type AuxiliaryEffects struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Sector      string        `json:"sector"`
	Effects     []VariableRef `json:"effects"`
}

// ListStocks returns every stock sorted by full name.
func (a *Analyzer) ListStocks() []StockSummary {
	out := make([]StockSummary, len(a.catalog.Stocks))
	for i, s := range a.catalog.Stocks {
		out[i] = StockSummary{Name: s.FullName, Description: s.Description, Sector: s.Sector, Equation: s.Equation}
	}
	return out
}

// StockFlows resolves name among stocks and decomposes its rate equation.
func (a *Analyzer) StockFlows(name string) (StockDetail, error) {
	r := a.resolve(constants.KindStock, a.catalog.Stocks, name)
	if err := r.Err(constants.KindStock, stocksHint); err != nil {
		return StockDetail{}, err
	}
	s := r.Match
	inflows, outflows := expr.Decompose(s.Equation)
	return StockDetail{
		Name:        s.FullName,
		Description: s.Description,
		Sector:      s.Sector,
		Equation:    s.Equation,
		Inflows:     inflows,
		Outflows:    outflows,
	}, nil
}

// ListFlows returns every flow term sorted by text.
func (a *Analyzer) ListFlows() []FlowSummary {
	terms := a.flows.Terms()
	out := make([]FlowSummary, len(terms))
	for i, t := range terms {
		out[i] = flowSummary(t)
	}
	return out
}

// FlowStocks returns the stocks a flow term feeds and drains. The term must
// match exactly.
func (a *Analyzer) FlowStocks(term string) (FlowSummary, error) {
	t, err := a.flows.FlowOf(term)
	if err != nil {
		return FlowSummary{}, err
	}
	return flowSummary(t), nil
}

func flowSummary(t FlowTerm) FlowSummary {
	return FlowSummary{Name: t.Text, AsInflowOf: t.InflowOf, AsOutflowOf: t.OutflowOf}
}

// ListAuxiliaries returns every auxiliary sorted by full name.
func (a *Analyzer) ListAuxiliaries() []VariableRef {
	return refs(a.catalog.Auxiliaries)
}

// AuxiliaryInputs resolves name among auxiliaries and lists its inputs.
func (a *Analyzer) AuxiliaryInputs(name string) (AuxiliaryInputs, error) {
	r := a.resolve(constants.KindAuxiliary, a.catalog.Auxiliaries, name)
	if err := r.Err(constants.KindAuxiliary, auxiliariesHint); err != nil {
		return AuxiliaryInputs{}, err
	}
	v := r.Match
	params := a.deps.ParametersOf(v.FullName)
	if params == nil {
		params = []ParameterRef{}
	}
	return AuxiliaryInputs{
		Name:        v.FullName,
		Description: v.Description,
		Sector:      v.Sector,
		Equation:    v.Equation,
		Inputs:      refs(a.deps.InputsOf(v.FullName)),
		Parameters:  params,
	}, nil
}

// AuxiliaryEffects resolves name among auxiliaries and lists the variables
// its value feeds into.
func (a *Analyzer) AuxiliaryEffects(name string) (AuxiliaryEffects, error) {
	r := a.resolve(constants.KindAuxiliary, a.catalog.Auxiliaries, name)
	if err := r.Err(constants.KindAuxiliary, auxiliariesHint); err != nil {
		return AuxiliaryEffects{}, err
	}
	v := r.Match
	return AuxiliaryEffects{
		Name:        v.FullName,
		Description: v.Description,
		Sector:      v.Sector,
		Effects:     refs(a.deps.EffectsOf(v.FullName)),
	}, nil
}

// Lookup resolves name among all catalog variables and returns it, or a
// *NotFoundError / *AmbiguousError.
func (a *Analyzer) Lookup(name string) (model.Variable, error) {
	r := a.Resolve(name)
	if err := r.Err("variable", variablesHint); err != nil {
		return model.Variable{}, err
	}
	return r.Match, nil
}

func refs(vs []model.Variable) []VariableRef {
	out := make([]VariableRef, len(vs))
	for i, v := range vs {
		out[i] = VariableRef{Name: v.FullName, Description: v.Description, Sector: v.Sector}
	}
	return out
}
