package model

import (
	"fmt"
	"sort"
	"strings"
)

// Refs groups the identifiers of an equation text by what they resolve to.
// Each list is in order of first appearance and free of duplicates.
type Refs struct {
	Variables  []Ref
	Parameters []Ref
	Unresolved []Ref
	Unknown    []string
	UsesTime   bool
}

// References resolves every identifier of text as seen from the sector with
// the given prefix.
func (r *Registry) References(prefix, text string) Refs {
	var out Refs
	seen := make(map[string]bool)
	for _, ident := range r.lexer.Identifiers(text) {
		ref, kind := r.LookupIdent(prefix, ident)
		key := fmt.Sprintf("%d|%s|%s|%s", kind, ref.Prefix, ref.Name, ident)
		if kind != IdentUnknown {
			key = fmt.Sprintf("%d|%s|%s", kind, ref.Prefix, ref.Name)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		switch kind {
		case IdentVariable:
			out.Variables = append(out.Variables, ref)
		case IdentParameter:
			out.Parameters = append(out.Parameters, ref)
		case IdentUnresolved:
			out.Unresolved = append(out.Unresolved, ref)
		case IdentTime:
			out.UsesTime = true
		default:
			out.Unknown = append(out.Unknown, ident)
		}
	}
	return out
}

// Symbol is a state or observed variable of a composed system.
type Symbol struct {
	FullName    string
	Description string
	Initial     float64
}

// System is the composition of all sectors into one coupled model, the
// input handed to a solver. Sectors are not merged: every equation keeps
// its sector, and couplings are explicit connections to the home variable.
type System struct {
	Name      string
	Separator string
	// States are the targets of differential equations, buffers included.
	States []Symbol
	// Observed are the targets of algebraic equations.
	Observed []Symbol
	// Parameters maps parameter full names to values.
	Parameters map[string]float64
	// Equations are all definitions in registry order.
	Equations []Definition
	// Connections maps a consumer's full name to its home full name.
	Connections map[string]string
	// Span is the time range declared by the model, if any.
	Span *Span

	registry *Registry
}

// Registry returns the registry the system was composed from.
func (s *System) Registry() *Registry { return s.registry }

// Compose wires all sectors of reg into one system. It fails on equations
// it cannot interpret or that define undeclared variables.
func Compose(reg *Registry) (*System, error) {
	if bad := reg.Malformed(); len(bad) > 0 {
		return nil, fmt.Errorf("sector %q: cannot interpret equation %q ~ %q",
			bad[0].Prefix, bad[0].Equation.LHS, bad[0].Equation.RHS)
	}

	sys := &System{
		Name:        reg.Name(),
		Separator:   reg.Separator(),
		Parameters:  make(map[string]float64),
		Connections: make(map[string]string),
		registry:    reg,
	}
	if span, ok := reg.Span(); ok {
		sys.Span = &span
	}

	for _, def := range reg.Definitions() {
		s, _ := reg.Sector(def.Prefix)
		decl, ok := s.Declaration(def.Target)
		if !ok {
			return nil, fmt.Errorf("sector %q: equation defines undeclared variable %q", def.Prefix, def.Target)
		}
		sym := Symbol{
			FullName:    reg.FullName(def.Prefix, def.Target),
			Description: decl.Description,
		}
		if def.Differential {
			if decl.Initial != nil {
				sym.Initial = *decl.Initial
			}
			sys.States = append(sys.States, sym)
		} else {
			sys.Observed = append(sys.Observed, sym)
		}
		sys.Equations = append(sys.Equations, def)
	}

	for _, s := range reg.Sectors() {
		for _, name := range s.ParameterNames() {
			sys.Parameters[reg.FullName(s.Prefix, name)] = s.Parameters[name]
		}
		for _, decl := range s.Variables {
			home, ok := reg.Home(s.Prefix, decl.Name)
			if !ok || home.Prefix == s.Prefix {
				continue
			}
			sys.Connections[reg.FullName(s.Prefix, decl.Name)] = reg.FullName(home.Prefix, home.Name)
		}
	}

	sort.Slice(sys.States, func(i, j int) bool { return sys.States[i].FullName < sys.States[j].FullName })
	sort.Slice(sys.Observed, func(i, j int) bool { return sys.Observed[i].FullName < sys.Observed[j].FullName })
	return sys, nil
}

// AlgebraicLoopError reports algebraic equations that depend on each other.
type AlgebraicLoopError struct {
	Members []string
}

func (e *AlgebraicLoopError) Error() string {
	return fmt.Sprintf("algebraic loop among %s", strings.Join(e.Members, ", "))
}

// AlgebraicOrder returns the algebraic definitions of the system ordered so
// that each comes after every algebraic definition it references. The order
// is deterministic for a given registry. A cycle yields an
// *AlgebraicLoopError.
func (s *System) AlgebraicOrder() ([]Definition, error) {
	reg := s.registry
	var defs []Definition
	index := make(map[Ref]int)
	for _, def := range s.Equations {
		if def.Differential {
			continue
		}
		index[Ref{Prefix: def.Prefix, Name: def.Target}] = len(defs)
		defs = append(defs, def)
	}

	indegree := make([]int, len(defs))
	dependents := make([][]int, len(defs))
	for i, def := range defs {
		for _, ref := range reg.References(def.Prefix, def.RHS).Variables {
			j, ok := index[ref]
			if !ok {
				continue
			}
			if j == i {
				return nil, &AlgebraicLoopError{Members: []string{reg.FullName(def.Prefix, def.Target)}}
			}
			dependents[j] = append(dependents[j], i)
			indegree[i]++
		}
	}

	ordered := make([]Definition, 0, len(defs))
	done := make([]bool, len(defs))
	for len(ordered) < len(defs) {
		progressed := false
		for i := range defs {
			if done[i] || indegree[i] > 0 {
				continue
			}
			done[i] = true
			progressed = true
			ordered = append(ordered, defs[i])
			for _, k := range dependents[i] {
				indegree[k]--
			}
		}
		if !progressed {
			var members []string
			for i, def := range defs {
				if !done[i] {
					members = append(members, reg.FullName(def.Prefix, def.Target))
				}
			}
			sort.Strings(members)
			return nil, &AlgebraicLoopError{Members: members}
		}
	}
	return ordered, nil
}
