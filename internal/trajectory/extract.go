package trajectory

import (
	"sort"
	"strings"

	"github.com/nvandessel/stockflow/internal/analysis"
	"github.com/nvandessel/stockflow/internal/constants"
	"github.com/nvandessel/stockflow/internal/model"
)

const variablesHint = "run 'stockflow vars' to list recorded variables"

// Series is the trajectory of one variable.
type Series struct {
	Name   string    `json:"name"`
	T      []float64 `json:"t"`
	Values []float64 `json:"values"`
}

// VariableInfo is one entry of VariableList.
type VariableInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Naming tells how recorded names are read. Separator joins a sector prefix
// and a short name. Variables whose short name matches Markers are internal
// buffers: they stay in the solution but out of every listing and lookup.
// Nil Markers selects constants.DefaultBufferMarkers; an empty non-nil slice
// hides nothing.
type Naming struct {
	Separator string
	Markers   model.BufferMarkers
}

func (n Naming) split(full string) (prefix, short string, ok bool) {
	sep := n.Separator
	if sep == "" {
		sep = constants.DefaultSeparator
	}
	return strings.Cut(full, sep)
}

func (n Naming) hidden(full string) bool {
	markers := n.Markers
	if markers == nil {
		markers = model.BufferMarkers(constants.DefaultBufferMarkers)
	}
	short := full
	if _, s, ok := n.split(full); ok {
		short = s
	}
	return markers.Match(short)
}

// Public returns names without the internal buffers, in the same order.
func (n Naming) Public(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !n.hidden(name) {
			out = append(out, name)
		}
	}
	return out
}

// Variables returns the public state and observed variables of sol as
// catalog entries, so names can be resolved the same way catalog lookups
// are. Names without the separator are kept whole as their own short name.
func Variables(sol Solution, naming Naming) []model.Variable {
	var vars []model.Variable
	add := func(names []string, kind model.Kind) {
		for _, full := range names {
			if naming.hidden(full) {
				continue
			}
			v := model.Variable{FullName: full, ShortName: full, Kind: kind}
			if prefix, short, ok := naming.split(full); ok {
				v.Prefix, v.ShortName = prefix, short
			}
			vars = append(vars, v)
		}
	}
	add(sol.States(), model.KindStock)
	add(sol.Observed(), model.KindAuxiliary)
	sort.Slice(vars, func(i, j int) bool { return vars[i].FullName < vars[j].FullName })
	return vars
}

// Timeseries resolves name against the public variables recorded in sol and
// returns its values at every recorded time point. Resolution failures come
// back as *analysis.NotFoundError or *analysis.AmbiguousError. Whatever the
// solver recorded is returned as is; a solve that stopped early yields short
// arrays.
func Timeseries(sol Solution, name string, naming Naming) (Series, error) {
	r := analysis.Resolve(Variables(sol, naming), name)
	if err := r.Err("variable", variablesHint); err != nil {
		return Series{}, err
	}
	values, _ := sol.Series(r.Match.FullName)
	return Series{Name: r.Match.FullName, T: sol.Times(), Values: values}, nil
}

// VariableList returns every public recorded variable with its description,
// sorted by name. describe may be nil.
func VariableList(sol Solution, naming Naming, describe func(fullName string) string) []VariableInfo {
	var out []VariableInfo
	for _, v := range Variables(sol, naming) {
		info := VariableInfo{Name: v.FullName}
		if describe != nil {
			info.Description = describe(v.FullName)
		}
		out = append(out, info)
	}
	return out
}

// Describer returns a describe function for VariableList that reads
// descriptions from the sector declarations of reg.
func Describer(reg *model.Registry) func(string) string {
	return func(full string) string {
		prefix, short, ok := reg.Split(full)
		if !ok {
			return ""
		}
		s, ok := reg.Sector(prefix)
		if !ok {
			return ""
		}
		decl, _ := s.Declaration(short)
		return decl.Description
	}
}
