package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nvandessel/stockflow/internal/constants"
	"github.com/nvandessel/stockflow/internal/expr"
)

// Ref points at a variable by sector prefix and short name.
type Ref struct {
	Prefix string
	Name   string
}

// IdentKind classifies an identifier found in an equation of some sector.
type IdentKind int

const (
	// IdentUnknown is neither a variable, a parameter nor time (e.g. a function name).
	IdentUnknown IdentKind = iota
	IdentVariable
	IdentParameter
	IdentTime
	// IdentUnresolved is a declared coupling whose home sector cannot be found.
	IdentUnresolved
)

// Definition is an equation of a sector after its left-hand side was parsed.
type Definition struct {
	Prefix       string
	Target       string
	RHS          string
	Differential bool
}

// Registry exclusively owns the sector definitions of one model. It is
// immutable after construction and safe for concurrent readers.
type Registry struct {
	name      string
	separator string
	lexer     expr.Lexer
	span      *Span
	sectors   []Sector
	byPrefix  map[string]int
	defs      map[Ref]Definition
	malformed []Malformed
}

// Malformed is an equation whose left-hand side could not be parsed.
type Malformed struct {
	Prefix   string
	Equation Equation
}

// NewRegistry builds a registry. Prefixes must be non-empty and unique, and
// variable names unique within a sector. Equations whose left-hand side is
// neither a derivative nor a single identifier are kept aside and reported by
// Validate rather than rejected here.
func NewRegistry(name, separator string, span *Span, sectors []Sector) (*Registry, error) {
	if separator == "" {
		separator = constants.DefaultSeparator
	}
	if err := expr.ValidSeparator(separator); err != nil {
		return nil, err
	}
	r := &Registry{
		name:      name,
		separator: separator,
		lexer:     expr.Lexer{Separator: separator},
		span:      span,
		sectors:   sectors,
		byPrefix:  make(map[string]int, len(sectors)),
		defs:      make(map[Ref]Definition),
	}

	for i, s := range sectors {
		if s.Prefix == "" {
			return nil, fmt.Errorf("sector %q: prefix is required", s.Name)
		}
		if strings.Contains(s.Prefix, separator) {
			return nil, fmt.Errorf("sector %q: prefix %q contains the separator", s.Name, s.Prefix)
		}
		if _, dup := r.byPrefix[s.Prefix]; dup {
			return nil, fmt.Errorf("duplicate sector prefix %q", s.Prefix)
		}
		r.byPrefix[s.Prefix] = i

		seen := make(map[string]bool, len(s.Variables))
		for _, d := range s.Variables {
			if d.Name == "" {
				return nil, fmt.Errorf("sector %q: variable with empty name", s.Prefix)
			}
			if seen[d.Name] {
				return nil, fmt.Errorf("sector %q: duplicate variable %q", s.Prefix, d.Name)
			}
			seen[d.Name] = true
		}

		for _, eq := range s.Equations {
			def, ok := r.parseDefinition(s.Prefix, eq)
			if !ok {
				r.malformed = append(r.malformed, Malformed{Prefix: s.Prefix, Equation: eq})
				continue
			}
			ref := Ref{Prefix: s.Prefix, Name: def.Target}
			if _, dup := r.defs[ref]; dup {
				return nil, fmt.Errorf("sector %q: %q is defined by more than one equation", s.Prefix, def.Target)
			}
			r.defs[ref] = def
		}
	}
	return r, nil
}

func (r *Registry) parseDefinition(prefix string, eq Equation) (Definition, bool) {
	rhs := strings.TrimSpace(r.lexer.StripTime(eq.RHS))
	if target, ok := r.lexer.DerivativeOf(eq.LHS); ok {
		return Definition{Prefix: prefix, Target: target, RHS: rhs, Differential: true}, true
	}
	if target, ok := r.lexer.AlgebraicTarget(eq.LHS); ok {
		return Definition{Prefix: prefix, Target: target, RHS: rhs}, true
	}
	return Definition{}, false
}

// Name returns the model name.
func (r *Registry) Name() string { return r.name }

// Separator returns the namespace separator used in full names.
func (r *Registry) Separator() string { return r.separator }

// Lexer returns the lexer that reads this model's equations.
func (r *Registry) Lexer() expr.Lexer { return r.lexer }

// Span returns the time range declared by the model file, if any.
func (r *Registry) Span() (Span, bool) {
	if r.span == nil {
		return Span{}, false
	}
	return *r.span, true
}

// Sectors returns the sectors in declaration order. Callers must not modify them.
func (r *Registry) Sectors() []Sector { return r.sectors }

// Sector returns the sector with the given prefix.
func (r *Registry) Sector(prefix string) (*Sector, bool) {
	i, ok := r.byPrefix[prefix]
	if !ok {
		return nil, false
	}
	return &r.sectors[i], true
}

// FullName joins a prefix and a short name.
func (r *Registry) FullName(prefix, short string) string {
	return prefix + r.separator + short
}

// Split breaks a full name into prefix and short name.
func (r *Registry) Split(full string) (prefix, short string, ok bool) {
	prefix, short, ok = strings.Cut(full, r.separator)
	if !ok || prefix == "" || short == "" {
		return "", "", false
	}
	return prefix, short, true
}

// Malformed returns the equations whose left-hand side was not understood.
func (r *Registry) Malformed() []Malformed { return r.malformed }

// Definition returns the equation defining name in the given sector.
func (r *Registry) Definition(prefix, name string) (Definition, bool) {
	def, ok := r.defs[Ref{Prefix: prefix, Name: name}]
	return def, ok
}

// Definitions returns all parsed equations ordered by sector declaration
// order, then equation order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, s := range r.sectors {
		for _, eq := range s.Equations {
			def, ok := r.parseDefinition(s.Prefix, eq)
			if !ok {
				continue
			}
			out = append(out, r.defs[Ref{Prefix: s.Prefix, Name: def.Target}])
		}
	}
	return out
}

// Home resolves a variable as seen from a sector to its home sector: the
// sector whose equation defines it. A sector's own definition wins, then an
// explicit From, then the single other sector defining the name. A described
// variable with no definition anywhere is its own home (an exogenous input).
// Placeholders with no home are unresolved.
func (r *Registry) Home(prefix, name string) (Ref, bool) {
	return r.home(prefix, name, len(r.sectors))
}

func (r *Registry) home(prefix, name string, hops int) (Ref, bool) {
	s, ok := r.Sector(prefix)
	if !ok {
		return Ref{}, false
	}
	decl, declared := s.Declaration(name)
	if _, defined := r.defs[Ref{Prefix: prefix, Name: name}]; defined {
		return Ref{Prefix: prefix, Name: name}, true
	}
	if !declared {
		return Ref{}, false
	}
	if decl.From != "" && decl.From != prefix && hops > 0 {
		return r.home(decl.From, name, hops-1)
	}

	var found []Ref
	for _, other := range r.sectors {
		if other.Prefix == prefix {
			continue
		}
		if _, defined := r.defs[Ref{Prefix: other.Prefix, Name: name}]; defined {
			found = append(found, Ref{Prefix: other.Prefix, Name: name})
		}
	}
	if len(found) == 1 {
		return found[0], true
	}
	if decl.Description != "" {
		return Ref{Prefix: prefix, Name: name}, true
	}
	return Ref{}, false
}

// LookupIdent classifies an identifier used in an equation of the sector
// with the given prefix. Variables come back resolved to their home.
// Namespaced identifiers ("ag₊AL") are looked up in the named sector.
func (r *Registry) LookupIdent(prefix, ident string) (Ref, IdentKind) {
	if p, short, ok := r.Split(ident); ok {
		if _, exists := r.Sector(p); exists {
			prefix, ident = p, short
		}
	}
	s, ok := r.Sector(prefix)
	if !ok {
		return Ref{}, IdentUnknown
	}
	if _, declared := s.Declaration(ident); declared {
		if home, ok := r.Home(prefix, ident); ok {
			return home, IdentVariable
		}
		return Ref{Prefix: prefix, Name: ident}, IdentUnresolved
	}
	if s.HasParameter(ident) {
		return Ref{Prefix: prefix, Name: ident}, IdentParameter
	}
	if ident == constants.TimeVariable {
		return Ref{}, IdentTime
	}
	return Ref{}, IdentUnknown
}

// ParameterNames returns a sector's parameter names sorted.
func (s *Sector) ParameterNames() []string {
	names := make([]string, 0, len(s.Parameters))
	for name := range s.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
