package analysis

import (
	"sort"
	"strings"

	"github.com/nvandessel/stockflow/internal/constants"
	"github.com/nvandessel/stockflow/internal/expr"
	"github.com/nvandessel/stockflow/internal/model"
)

// FlowTerm is an additive term of one or more stock equations, keyed by its
// literal text. InflowOf and OutflowOf hold stock full names, sorted.
type FlowTerm struct {
	Text      string
	InflowOf  []string
	OutflowOf []string
}

// FlowGraph is the flow/stock incidence structure of a model.
type FlowGraph struct {
	terms []FlowTerm
	index map[string]int
}

// BuildFlowGraph decomposes the equation of every stock and merges terms
// with identical text. Terms come back sorted by text.
func BuildFlowGraph(stocks []model.Variable) *FlowGraph {
	in := make(map[string]map[string]bool)
	out := make(map[string]map[string]bool)
	add := func(m map[string]map[string]bool, term, stock string) {
		if m[term] == nil {
			m[term] = make(map[string]bool)
		}
		m[term][stock] = true
	}

	for _, s := range stocks {
		inflows, outflows := expr.Decompose(s.Equation)
		for _, term := range inflows {
			add(in, term, s.FullName)
		}
		for _, term := range outflows {
			add(out, term, s.FullName)
		}
	}

	texts := make(map[string]bool, len(in)+len(out))
	for t := range in {
		texts[t] = true
	}
	for t := range out {
		texts[t] = true
	}

	g := &FlowGraph{index: make(map[string]int, len(texts))}
	for t := range texts {
		g.terms = append(g.terms, FlowTerm{
			Text:      t,
			InflowOf:  sortedKeys(in[t]),
			OutflowOf: sortedKeys(out[t]),
		})
	}
	sort.Slice(g.terms, func(i, j int) bool { return g.terms[i].Text < g.terms[j].Text })
	for i, t := range g.terms {
		g.index[t.Text] = i
	}
	return g
}

// Terms returns all flow terms sorted by text. Callers must not modify them.
func (g *FlowGraph) Terms() []FlowTerm { return g.terms }

// FlowOf returns the term with exactly the given text. On a miss the
// *NotFoundError suggests terms containing text.
func (g *FlowGraph) FlowOf(text string) (FlowTerm, error) {
	if i, ok := g.index[text]; ok {
		return g.terms[i], nil
	}
	var suggestions []string
	if text != "" {
		for _, t := range g.terms {
			if strings.Contains(t.Text, text) {
				suggestions = append(suggestions, t.Text)
				if len(suggestions) == constants.MaxSuggestions {
					break
				}
			}
		}
	}
	return FlowTerm{}, &NotFoundError{Kind: "flow", Name: text, Suggestions: suggestions}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
