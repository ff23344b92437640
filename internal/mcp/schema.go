package mcp

import (
	"github.com/nvandessel/stockflow/internal/analysis"
	"github.com/nvandessel/stockflow/internal/store"
	"github.com/nvandessel/stockflow/internal/trajectory"
)

// EmptyInput is the input of tools that take no arguments.
type EmptyInput struct{}

// NameInput names a stock or auxiliary, short (POP) or full (pop₊POP).
type NameInput struct {
	Name string `json:"name" jsonschema:"Variable name: a short name like POP or a full name like pop₊POP"`
}

// StocksOutput defines the output for stockflow_stocks tool.
type StocksOutput struct {
	Stocks []analysis.StockSummary `json:"stocks" jsonschema:"Every stock sorted by full name"`
	Count  int                     `json:"count" jsonschema:"Number of stocks"`
}

// FlowsOutput defines the output for stockflow_flows tool.
type FlowsOutput struct {
	Flows []analysis.FlowSummary `json:"flows" jsonschema:"Every flow term sorted by text"`
	Count int                    `json:"count" jsonschema:"Number of flow terms"`
}

// FlowStocksInput defines the input for stockflow_flow_stocks tool.
type FlowStocksInput struct {
	Term string `json:"term" jsonschema:"Exact flow term text as listed by stockflow_flows"`
}

// AuxiliariesOutput defines the output for stockflow_auxiliaries tool.
type AuxiliariesOutput struct {
	Auxiliaries []analysis.VariableRef `json:"auxiliaries" jsonschema:"Every auxiliary sorted by full name"`
	Count       int                    `json:"count" jsonschema:"Number of auxiliaries"`
}

// ResolveOutput defines the output for stockflow_resolve tool.
type ResolveOutput struct {
	Query      string                `json:"query"`
	Status     string                `json:"status" jsonschema:"One of resolved, not-found or ambiguous"`
	Match      *analysis.VariableRef `json:"match,omitempty" jsonschema:"The matched variable when resolved"`
	Kind       string                `json:"kind,omitempty" jsonschema:"Kind of the matched variable: stock or auxiliary"`
	Candidates []string              `json:"candidates" jsonschema:"Full names sharing the short name when ambiguous"`
}

// TrajectoryInput selects a stored run or a trajectory file. With neither
// set the latest run is used.
type TrajectoryInput struct {
	Run  string `json:"run,omitempty" jsonschema:"Run id or unique id prefix (default: latest run)"`
	File string `json:"file,omitempty" jsonschema:"Trajectory JSON file inside the project or store directory"`
}

// VariablesOutput defines the output for stockflow_variables tool.
type VariablesOutput struct {
	Source    string                    `json:"source" jsonschema:"Run id or file the variables were read from"`
	Variables []trajectory.VariableInfo `json:"variables" jsonschema:"Recorded variables sorted by full name"`
	Count     int                       `json:"count" jsonschema:"Number of variables"`
}

// TimeseriesInput defines the input for stockflow_timeseries tool.
type TimeseriesInput struct {
	Name string `json:"name" jsonschema:"Recorded variable name, short or full"`
	Run  string `json:"run,omitempty" jsonschema:"Run id or unique id prefix (default: latest run)"`
	File string `json:"file,omitempty" jsonschema:"Trajectory JSON file inside the project or store directory"`
}

// TimeseriesOutput defines the output for stockflow_timeseries tool.
type TimeseriesOutput struct {
	Source string    `json:"source" jsonschema:"Run id or file the series was read from"`
	Name   string    `json:"name" jsonschema:"Full name of the resolved variable"`
	T      []float64 `json:"t" jsonschema:"Recorded time points"`
	Values []float64 `json:"values" jsonschema:"Values at each time point; shorter than t if the solve stopped early"`
}

// GraphInput defines the input for stockflow_graph tool.
type GraphInput struct {
	Kind   string `json:"kind,omitempty" jsonschema:"Graph to render: flows or deps (default: flows)"`
	Format string `json:"format,omitempty" jsonschema:"Output format: dot or json (default: json)"`
}

// GraphOutput defines the output for stockflow_graph tool.
type GraphOutput struct {
	Kind      string      `json:"kind"`
	Format    string      `json:"format"`
	Graph     interface{} `json:"graph" jsonschema:"DOT source or a JSON object with nodes and edges"`
	NodeCount int         `json:"node_count"`
	EdgeCount int         `json:"edge_count"`
}

// RunsOutput defines the output for stockflow_runs tool.
type RunsOutput struct {
	Runs  []store.RunMeta `json:"runs" jsonschema:"Stored runs, newest first"`
	Count int             `json:"count"`
}
