// Package visualization renders the structure of a model in various output formats.
package visualization

import (
	"fmt"
	"strings"

	"github.com/nvandessel/stockflow/internal/analysis"
	"github.com/nvandessel/stockflow/internal/constants"
	"github.com/nvandessel/stockflow/internal/model"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// Kind selects which graph to render.
type Kind string

const (
	// KindFlows is the stock/flow incidence graph.
	KindFlows Kind = "flows"
	// KindDeps is the direct dependency graph between catalog variables.
	KindDeps Kind = "deps"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatDOT, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("invalid format %q (valid: dot, json)", s)
}

// ParseKind validates a graph kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindFlows, KindDeps:
		return k, nil
	}
	return "", fmt.Errorf("invalid graph kind %q (valid: flows, deps)", s)
}

// nodeColors maps node kinds to DOT colors.
var nodeColors = map[string]string{
	string(model.KindStock):     "steelblue",
	string(model.KindAuxiliary): "goldenrod",
	"flow":                      "mediumseagreen",
}

// nodeShapes maps node kinds to DOT shapes.
var nodeShapes = map[string]string{
	string(model.KindStock):     "box",
	string(model.KindAuxiliary): "ellipse",
	"flow":                      "ellipse",
}

// edgeStyles maps edge kinds to DOT styles.
var edgeStyles = map[string]string{
	"inflow":  "solid",
	"outflow": "dashed",
	"input":   "solid",
}

// Node is a rendered graph node.
type Node struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Kind        string `json:"kind"`
	Sector      string `json:"sector,omitempty"`
	Description string `json:"description,omitempty"`
}

// Link is a rendered graph edge.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

// Graph is the renderer-neutral form of a model graph.
type Graph struct {
	Kind  Kind   `json:"kind"`
	Nodes []Node `json:"nodes"`
	Edges []Link `json:"edges"`
}

// flowID keeps flow term nodes apart from variable nodes.
func flowID(text string) string { return "flow:" + text }

// Build assembles the graph of the given kind.
func Build(a *analysis.Analyzer, kind Kind) (*Graph, error) {
	switch kind {
	case KindFlows:
		return buildFlows(a), nil
	case KindDeps:
		return buildDeps(a), nil
	}
	return nil, fmt.Errorf("invalid graph kind %q (valid: flows, deps)", kind)
}

// buildFlows links each flow term into the stocks it feeds and out of the
// stocks it drains.
func buildFlows(a *analysis.Analyzer) *Graph {
	g := &Graph{Kind: KindFlows, Nodes: []Node{}, Edges: []Link{}}
	for _, s := range a.Catalog().Stocks {
		g.Nodes = append(g.Nodes, variableNode(s))
	}
	for _, term := range a.Flows().Terms() {
		id := flowID(term.Text)
		g.Nodes = append(g.Nodes, Node{ID: id, Label: term.Text, Kind: "flow"})
		for _, stock := range term.InflowOf {
			g.Edges = append(g.Edges, Link{Source: id, Target: stock, Kind: "inflow"})
		}
		for _, stock := range term.OutflowOf {
			g.Edges = append(g.Edges, Link{Source: stock, Target: id, Kind: "outflow"})
		}
	}
	return g
}

func buildDeps(a *analysis.Analyzer) *Graph {
	g := &Graph{Kind: KindDeps, Nodes: []Node{}, Edges: []Link{}}
	for _, v := range a.Catalog().All() {
		g.Nodes = append(g.Nodes, variableNode(v))
	}
	for _, e := range a.Dependencies().Edges() {
		g.Edges = append(g.Edges, Link{Source: e.From, Target: e.To, Kind: "input"})
	}
	return g
}

func variableNode(v model.Variable) Node {
	return Node{
		ID:          v.FullName,
		Label:       v.FullName,
		Kind:        string(v.Kind),
		Sector:      v.Sector,
		Description: v.Description,
	}
}

// RenderDOT produces a Graphviz DOT representation of the requested graph.
func RenderDOT(a *analysis.Analyzer, kind Kind) (string, error) {
	g, err := Build(a, kind)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("digraph %q {\n", "stockflow_"+string(kind)))
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [style=filled, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n\n")

	for _, n := range g.Nodes {
		color := nodeColors[n.Kind]
		if color == "" {
			color = "lightgray"
		}
		shape := nodeShapes[n.Kind]
		if shape == "" {
			shape = "ellipse"
		}
		b.WriteString(fmt.Sprintf("  %q [label=%q, shape=%s, fillcolor=%q, tooltip=%q];\n",
			n.ID, truncate(n.Label, constants.MaxLabelLen), shape, color, n.Description))
	}
	b.WriteString("\n")

	for _, e := range g.Edges {
		style := edgeStyles[e.Kind]
		if style == "" {
			style = "solid"
		}
		b.WriteString(fmt.Sprintf("  %q -> %q [style=%s];\n", e.Source, e.Target, style))
	}

	b.WriteString("}\n")
	return b.String(), nil
}

// RenderJSON produces a JSON graph representation with nodes and edges arrays.
func RenderJSON(a *analysis.Analyzer, kind Kind) (map[string]interface{}, error) {
	g, err := Build(a, kind)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"kind":       g.Kind,
		"nodes":      g.Nodes,
		"edges":      g.Edges,
		"node_count": len(g.Nodes),
		"edge_count": len(g.Edges),
	}, nil
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
