package analysis

import (
	"github.com/nvandessel/stockflow/internal/model"
)

// ParameterRef is a sector parameter referenced by an equation.
type ParameterRef struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Edge says that From is a direct input of To. Both are full names.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Dependencies indexes the direct references between catalog variables.
// References are resolved to home sectors first, so a coupling copy never
// shows up as an input or effect; the variable it aliases does.
type Dependencies struct {
	order   []string
	inputs  map[string][]model.Variable
	params  map[string][]ParameterRef
	effects map[string][]model.Variable
}

// BuildDependencies scans the equation of every catalog variable. Inputs
// and effects are listed in catalog order, not textual order, and never
// include the variable itself.
func BuildDependencies(reg *model.Registry, cat Catalog) *Dependencies {
	all := cat.All()
	d := &Dependencies{
		order:   make([]string, 0, len(all)),
		inputs:  make(map[string][]model.Variable, len(all)),
		params:  make(map[string][]ParameterRef),
		effects: make(map[string][]model.Variable),
	}

	for _, v := range all {
		d.order = append(d.order, v.FullName)
		if v.Equation == "" {
			continue
		}
		refs := reg.References(v.Prefix, v.Equation)

		referenced := make(map[string]bool, len(refs.Variables))
		for _, ref := range refs.Variables {
			referenced[reg.FullName(ref.Prefix, ref.Name)] = true
		}
		for _, candidate := range all {
			if candidate.FullName != v.FullName && referenced[candidate.FullName] {
				d.inputs[v.FullName] = append(d.inputs[v.FullName], candidate)
				d.effects[candidate.FullName] = append(d.effects[candidate.FullName], v)
			}
		}

		for _, ref := range refs.Parameters {
			s, _ := reg.Sector(ref.Prefix)
			d.params[v.FullName] = append(d.params[v.FullName], ParameterRef{
				Name:  reg.FullName(ref.Prefix, ref.Name),
				Value: s.Parameters[ref.Name],
			})
		}
	}
	return d
}

// InputsOf returns the catalog variables the equation of full references.
func (d *Dependencies) InputsOf(full string) []model.Variable { return d.inputs[full] }

// ParametersOf returns the parameters the equation of full references, in
// order of first appearance.
func (d *Dependencies) ParametersOf(full string) []ParameterRef { return d.params[full] }

// EffectsOf returns the catalog variables whose equations reference full.
func (d *Dependencies) EffectsOf(full string) []model.Variable { return d.effects[full] }

// Edges returns every input edge, grouped by consumer in catalog order.
func (d *Dependencies) Edges() []Edge {
	var edges []Edge
	for _, to := range d.order {
		for _, from := range d.inputs[to] {
			edges = append(edges, Edge{From: from.FullName, To: to})
		}
	}
	return edges
}
