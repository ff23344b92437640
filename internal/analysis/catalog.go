package analysis

import (
	"sort"

	"github.com/nvandessel/stockflow/internal/model"
)

// Catalog is the public vocabulary of a model: described variables split
// into stocks and auxiliaries, each sorted by full name. Placeholders and
// internal buffers are never part of it.
type Catalog struct {
	Stocks      []model.Variable
	Auxiliaries []model.Variable
}

// All returns stocks and auxiliaries merged and sorted by full name.
func (c Catalog) All() []model.Variable {
	all := make([]model.Variable, 0, len(c.Stocks)+len(c.Auxiliaries))
	all = append(all, c.Stocks...)
	all = append(all, c.Auxiliaries...)
	sortVariables(all)
	return all
}

// Classify partitions every described variable of reg. A variable is a
// stock when its own sector defines it with a derivative equation; every
// other described variable is an auxiliary. Names matching markers are
// internal buffers and are dropped.
func Classify(reg *model.Registry, markers model.BufferMarkers) Catalog {
	var c Catalog
	for _, s := range reg.Sectors() {
		for _, decl := range s.Variables {
			if decl.Description == "" || markers.Match(decl.Name) {
				continue
			}
			v := model.Variable{
				FullName:    reg.FullName(s.Prefix, decl.Name),
				ShortName:   decl.Name,
				Sector:      s.Name,
				Prefix:      s.Prefix,
				Description: decl.Description,
				Kind:        model.KindAuxiliary,
			}
			if def, ok := reg.Definition(s.Prefix, decl.Name); ok {
				v.Equation = def.RHS
				if def.Differential {
					v.Kind = model.KindStock
					c.Stocks = append(c.Stocks, v)
					continue
				}
			}
			c.Auxiliaries = append(c.Auxiliaries, v)
		}
	}
	sortVariables(c.Stocks)
	sortVariables(c.Auxiliaries)
	return c
}

func sortVariables(vs []model.Variable) {
	sort.Slice(vs, func(i, j int) bool { return vs[i].FullName < vs[j].FullName })
}
