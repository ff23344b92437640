package model

import (
	"errors"
	"fmt"
	"sort"
)

// Functions are the function names an equation may call. Solvers must
// provide each of them.
var Functions = []string{"abs", "clip", "exp", "ifelse", "ln", "log", "max", "min", "pow", "sqrt", "step"}

// IsFunction reports whether name is one of Functions.
func IsFunction(name string) bool {
	i := sort.SearchStrings(Functions, name)
	return i < len(Functions) && Functions[i] == name
}

// Issue describes a model consistency problem.
type Issue struct {
	Sector   string `json:"sector"`
	Variable string `json:"variable,omitempty"`
	Kind     string `json:"kind"`     // "malformed", "undeclared", "unresolved-coupling", "unknown-identifier", "undefined", "algebraic-loop"
	Severity string `json:"severity"` // "error" or "warning"
	Detail   string `json:"detail"`
}

// String returns a human-readable description of the issue.
func (i Issue) String() string {
	if i.Variable == "" {
		return fmt.Sprintf("%s: %s in %s: %s", i.Severity, i.Kind, i.Sector, i.Detail)
	}
	return fmt.Sprintf("%s: %s %s in %s: %s", i.Severity, i.Kind, i.Variable, i.Sector, i.Detail)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == "error" {
			return true
		}
	}
	return false
}

// Validate checks the registry for problems that would break composition or
// make structural queries misleading. Issues come back in sector order.
func Validate(reg *Registry) []Issue {
	var issues []Issue

	for _, m := range reg.Malformed() {
		issues = append(issues, Issue{
			Sector:   m.Prefix,
			Kind:     "malformed",
			Severity: "error",
			Detail:   fmt.Sprintf("cannot interpret left-hand side %q", m.Equation.LHS),
		})
	}

	for _, s := range reg.Sectors() {
		for _, def := range reg.Definitions() {
			if def.Prefix != s.Prefix {
				continue
			}
			if _, ok := s.Declaration(def.Target); !ok {
				issues = append(issues, Issue{
					Sector:   s.Prefix,
					Variable: def.Target,
					Kind:     "undeclared",
					Severity: "error",
					Detail:   "equation defines a variable the sector does not declare",
				})
			}
			for _, name := range reg.References(def.Prefix, def.RHS).Unknown {
				if IsFunction(name) {
					continue
				}
				issues = append(issues, Issue{
					Sector:   s.Prefix,
					Variable: def.Target,
					Kind:     "unknown-identifier",
					Severity: "error",
					Detail:   fmt.Sprintf("%q is not a variable, parameter or function", name),
				})
			}
		}

		for _, decl := range s.Variables {
			home, ok := reg.Home(s.Prefix, decl.Name)
			switch {
			case !ok:
				issues = append(issues, Issue{
					Sector:   s.Prefix,
					Variable: decl.Name,
					Kind:     "unresolved-coupling",
					Severity: "error",
					Detail:   "no single sector defines this variable",
				})
			case home.Prefix == s.Prefix:
				if _, defined := reg.Definition(s.Prefix, decl.Name); !defined {
					issues = append(issues, Issue{
						Sector:   s.Prefix,
						Variable: decl.Name,
						Kind:     "undefined",
						Severity: "warning",
						Detail:   "described variable has no defining equation",
					})
				}
			}
		}
	}

	if sys, err := Compose(reg); err == nil {
		if _, err := sys.AlgebraicOrder(); err != nil {
			var loop *AlgebraicLoopError
			if errors.As(err, &loop) {
				issues = append(issues, Issue{
					Sector:   "*",
					Kind:     "algebraic-loop",
					Severity: "error",
					Detail:   loop.Error(),
				})
			}
		}
	}

	return issues
}
