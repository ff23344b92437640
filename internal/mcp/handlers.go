package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/stockflow/internal/analysis"
	"github.com/nvandessel/stockflow/internal/pathutil"
	"github.com/nvandessel/stockflow/internal/ratelimit"
	"github.com/nvandessel/stockflow/internal/store"
	"github.com/nvandessel/stockflow/internal/trajectory"
	"github.com/nvandessel/stockflow/internal/visualization"
)

// registerTools registers all stockflow MCP tools with the server.
func (s *Server) registerTools() error {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "stockflow_stocks",
		Description: "List every stock (state variable) with its description, sector and rate equation",
	}, s.handleStocks)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "stockflow_stock_flows",
		Description: "Decompose the rate equation of a stock into inflow and outflow terms",
	}, s.handleStockFlows)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "stockflow_flows",
		Description: "List every flow term with the stocks it feeds and drains",
	}, s.handleFlows)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "stockflow_flow_stocks",
		Description: "Show which stocks a flow term feeds and drains (exact term text)",
	}, s.handleFlowStocks)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "stockflow_auxiliaries",
		Description: "List every auxiliary (derived) variable",
	}, s.handleAuxiliaries)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "stockflow_aux_inputs",
		Description: "Show the equation of an auxiliary and the variables and parameters it reads",
	}, s.handleAuxInputs)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "stockflow_aux_effects",
		Description: "Show which variables read an auxiliary",
	}, s.handleAuxEffects)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "stockflow_resolve",
		Description: "Resolve a short or full variable name, reporting ambiguity across sectors",
	}, s.handleResolve)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "stockflow_variables",
		Description: "List the variables recorded in a stored run or trajectory file",
	}, s.handleVariables)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "stockflow_timeseries",
		Description: "Get the time series of one recorded variable from a stored run or trajectory file",
	}, s.handleTimeseries)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "stockflow_graph",
		Description: "Render the stock/flow graph or the dependency graph in DOT (Graphviz) or JSON format",
	}, s.handleGraph)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "stockflow_runs",
		Description: "List stored solver runs, newest first",
	}, s.handleRuns)

	return nil
}

// handleStocks implements the stockflow_stocks tool.
func (s *Server) handleStocks(ctx context.Context, req *sdk.CallToolRequest, args EmptyInput) (_ *sdk.CallToolResult, _ StocksOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("stockflow_stocks", start, retErr, sanitizeToolParams(map[string]interface{}{}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "stockflow_stocks"); err != nil {
		return nil, StocksOutput{}, err
	}

	stocks := s.current().ListStocks()
	return nil, StocksOutput{Stocks: stocks, Count: len(stocks)}, nil
}

// handleStockFlows implements the stockflow_stock_flows tool.
func (s *Server) handleStockFlows(ctx context.Context, req *sdk.CallToolRequest, args NameInput) (_ *sdk.CallToolResult, _ analysis.StockDetail, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("stockflow_stock_flows", start, retErr, sanitizeToolParams(map[string]interface{}{"name": args.Name}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "stockflow_stock_flows"); err != nil {
		return nil, analysis.StockDetail{}, err
	}

	detail, err := s.current().StockFlows(args.Name)
	if err != nil {
		return nil, analysis.StockDetail{}, err
	}
	return nil, detail, nil
}

// handleFlows implements the stockflow_flows tool.
func (s *Server) handleFlows(ctx context.Context, req *sdk.CallToolRequest, args EmptyInput) (_ *sdk.CallToolResult, _ FlowsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("stockflow_flows", start, retErr, sanitizeToolParams(map[string]interface{}{}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "stockflow_flows"); err != nil {
		return nil, FlowsOutput{}, err
	}

	flows := s.current().ListFlows()
	return nil, FlowsOutput{Flows: flows, Count: len(flows)}, nil
}

// handleFlowStocks implements the stockflow_flow_stocks tool.
func (s *Server) handleFlowStocks(ctx context.Context, req *sdk.CallToolRequest, args FlowStocksInput) (_ *sdk.CallToolResult, _ analysis.FlowSummary, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("stockflow_flow_stocks", start, retErr, sanitizeToolParams(map[string]interface{}{"term": args.Term}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "stockflow_flow_stocks"); err != nil {
		return nil, analysis.FlowSummary{}, err
	}

	flow, err := s.current().FlowStocks(args.Term)
	if err != nil {
		return nil, analysis.FlowSummary{}, err
	}
	return nil, flow, nil
}

// handleAuxiliaries implements the stockflow_auxiliaries tool.
func (s *Server) handleAuxiliaries(ctx context.Context, req *sdk.CallToolRequest, args EmptyInput) (_ *sdk.CallToolResult, _ AuxiliariesOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("stockflow_auxiliaries", start, retErr, sanitizeToolParams(map[string]interface{}{}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "stockflow_auxiliaries"); err != nil {
		return nil, AuxiliariesOutput{}, err
	}

	aux := s.current().ListAuxiliaries()
	return nil, AuxiliariesOutput{Auxiliaries: aux, Count: len(aux)}, nil
}

// handleAuxInputs implements the stockflow_aux_inputs tool.
func (s *Server) handleAuxInputs(ctx context.Context, req *sdk.CallToolRequest, args NameInput) (_ *sdk.CallToolResult, _ analysis.AuxiliaryInputs, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("stockflow_aux_inputs", start, retErr, sanitizeToolParams(map[string]interface{}{"name": args.Name}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "stockflow_aux_inputs"); err != nil {
		return nil, analysis.AuxiliaryInputs{}, err
	}

	inputs, err := s.current().AuxiliaryInputs(args.Name)
	if err != nil {
		return nil, analysis.AuxiliaryInputs{}, err
	}
	return nil, inputs, nil
}

// handleAuxEffects implements the stockflow_aux_effects tool.
func (s *Server) handleAuxEffects(ctx context.Context, req *sdk.CallToolRequest, args NameInput) (_ *sdk.CallToolResult, _ analysis.AuxiliaryEffects, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("stockflow_aux_effects", start, retErr, sanitizeToolParams(map[string]interface{}{"name": args.Name}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "stockflow_aux_effects"); err != nil {
		return nil, analysis.AuxiliaryEffects{}, err
	}

	effects, err := s.current().AuxiliaryEffects(args.Name)
	if err != nil {
		return nil, analysis.AuxiliaryEffects{}, err
	}
	return nil, effects, nil
}

// handleResolve implements the stockflow_resolve tool. Not-found and
// ambiguous outcomes are results, not errors.
func (s *Server) handleResolve(ctx context.Context, req *sdk.CallToolRequest, args NameInput) (_ *sdk.CallToolResult, _ ResolveOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("stockflow_resolve", start, retErr, sanitizeToolParams(map[string]interface{}{"name": args.Name}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "stockflow_resolve"); err != nil {
		return nil, ResolveOutput{}, err
	}

	r := s.current().Resolve(args.Name)
	out := ResolveOutput{
		Query:      r.Query,
		Status:     r.Status.String(),
		Candidates: r.Candidates,
	}
	if out.Candidates == nil {
		out.Candidates = []string{}
	}
	if r.Status == analysis.Resolved {
		out.Match = &analysis.VariableRef{Name: r.Match.FullName, Description: r.Match.Description, Sector: r.Match.Sector}
		out.Kind = string(r.Match.Kind)
	}
	return nil, out, nil
}

// handleVariables implements the stockflow_variables tool.
func (s *Server) handleVariables(ctx context.Context, req *sdk.CallToolRequest, args TrajectoryInput) (_ *sdk.CallToolResult, _ VariablesOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("stockflow_variables", start, retErr, sanitizeToolParams(map[string]interface{}{
			"run": args.Run, "file": args.File,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "stockflow_variables"); err != nil {
		return nil, VariablesOutput{}, err
	}

	sol, source, err := s.openTrajectory(ctx, args.Run, args.File)
	if err != nil {
		return nil, VariablesOutput{}, err
	}

	a := s.current()
	vars := trajectory.VariableList(sol, naming(a), trajectory.Describer(a.Registry()))
	if vars == nil {
		vars = []trajectory.VariableInfo{}
	}
	return nil, VariablesOutput{Source: source, Variables: vars, Count: len(vars)}, nil
}

// handleTimeseries implements the stockflow_timeseries tool.
func (s *Server) handleTimeseries(ctx context.Context, req *sdk.CallToolRequest, args TimeseriesInput) (_ *sdk.CallToolResult, _ TimeseriesOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("stockflow_timeseries", start, retErr, sanitizeToolParams(map[string]interface{}{
			"name": args.Name, "run": args.Run, "file": args.File,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "stockflow_timeseries"); err != nil {
		return nil, TimeseriesOutput{}, err
	}

	sol, source, err := s.openTrajectory(ctx, args.Run, args.File)
	if err != nil {
		return nil, TimeseriesOutput{}, err
	}

	series, err := trajectory.Timeseries(sol, args.Name, naming(s.current()))
	if err != nil {
		return nil, TimeseriesOutput{}, err
	}
	values := series.Values
	if values == nil {
		values = []float64{}
	}
	return nil, TimeseriesOutput{Source: source, Name: series.Name, T: series.T, Values: values}, nil
}

// naming reads recorded names the way a reads the model.
func naming(a *analysis.Analyzer) trajectory.Naming {
	return trajectory.Naming{Separator: a.Registry().Separator(), Markers: a.Markers()}
}

// openTrajectory loads the run or file a trajectory tool refers to. With
// neither given the latest run is used. Files must lie inside the project,
// the store directory or ~/.stockflow/trajectories.
func (s *Server) openTrajectory(ctx context.Context, runID, file string) (trajectory.Solution, string, error) {
	if runID != "" && file != "" {
		return nil, "", fmt.Errorf("specify either run or file, not both")
	}

	if file != "" {
		allowed, err := pathutil.AllowedTrajectoryDirs(s.root, s.storeDir)
		if err != nil {
			return nil, "", err
		}
		if err := pathutil.ValidatePath(file, allowed); err != nil {
			return nil, "", err
		}
		mem, err := trajectory.ReadFile(file)
		if err != nil {
			return nil, "", fmt.Errorf("read trajectory %s: %w", pathutil.RedactPath(file), err)
		}
		return mem, pathutil.RedactPath(file), nil
	}

	var (
		run *store.Run
		err error
	)
	if runID != "" {
		run, err = s.runs.LoadRun(ctx, runID)
	} else {
		run, err = s.runs.LatestRun(ctx)
	}
	if errors.Is(err, store.ErrRunNotFound) && runID == "" {
		return nil, "", fmt.Errorf("no runs stored; run 'stockflow run' first")
	}
	if err != nil {
		return nil, "", err
	}
	return run, run.ID, nil
}

// handleGraph implements the stockflow_graph tool.
func (s *Server) handleGraph(ctx context.Context, req *sdk.CallToolRequest, args GraphInput) (_ *sdk.CallToolResult, _ GraphOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("stockflow_graph", start, retErr, sanitizeToolParams(map[string]interface{}{
			"kind": args.Kind, "format": args.Format,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "stockflow_graph"); err != nil {
		return nil, GraphOutput{}, err
	}

	kindName := args.Kind
	if kindName == "" {
		kindName = string(visualization.KindFlows)
	}
	kind, err := visualization.ParseKind(kindName)
	if err != nil {
		return nil, GraphOutput{}, err
	}

	format := args.Format
	if format == "" {
		format = string(visualization.FormatJSON)
	}

	a := s.current()
	switch visualization.Format(format) {
	case visualization.FormatDOT:
		g, err := visualization.Build(a, kind)
		if err != nil {
			return nil, GraphOutput{}, err
		}
		dot, err := visualization.RenderDOT(a, kind)
		if err != nil {
			return nil, GraphOutput{}, fmt.Errorf("render DOT: %w", err)
		}
		return nil, GraphOutput{
			Kind:      string(kind),
			Format:    "dot",
			Graph:     dot,
			NodeCount: len(g.Nodes),
			EdgeCount: len(g.Edges),
		}, nil

	case visualization.FormatJSON:
		result, err := visualization.RenderJSON(a, kind)
		if err != nil {
			return nil, GraphOutput{}, fmt.Errorf("render JSON: %w", err)
		}
		nodeCount, _ := result["node_count"].(int)
		edgeCount, _ := result["edge_count"].(int)
		return nil, GraphOutput{
			Kind:      string(kind),
			Format:    "json",
			Graph:     result,
			NodeCount: nodeCount,
			EdgeCount: edgeCount,
		}, nil

	default:
		return nil, GraphOutput{}, fmt.Errorf("unsupported format %q (use 'dot' or 'json')", format)
	}
}

// handleRuns implements the stockflow_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args EmptyInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("stockflow_runs", start, retErr, sanitizeToolParams(map[string]interface{}{}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "stockflow_runs"); err != nil {
		return nil, RunsOutput{}, err
	}

	runs, err := s.runs.ListRuns(ctx)
	if err != nil {
		return nil, RunsOutput{}, err
	}
	if runs == nil {
		runs = []store.RunMeta{}
	}
	return nil, RunsOutput{Runs: runs, Count: len(runs)}, nil
}
