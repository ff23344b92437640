package solver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nvandessel/stockflow/internal/expr"
	"github.com/nvandessel/stockflow/internal/model"
)

// RateFunc evaluates a composed system at time t. x holds the states and p
// the parameters, in program order. It fills dx with the derivatives and obs
// with the observed values.
type RateFunc func(t float64, x, p, dx, obs []float64)

// Program is generated Go source for the rate function of a system, together
// with the layout of its argument slices.
type Program struct {
	Source     string
	States     []string
	Observed   []string
	Parameters []string
	Initial    []float64
	Values     []float64
}

const helpers = `
func fn_abs(x float64) float64       { return math.Abs(x) }
func fn_exp(x float64) float64       { return math.Exp(x) }
func fn_ln(x float64) float64        { return math.Log(x) }
func fn_log(x float64) float64       { return math.Log(x) }
func fn_sqrt(x float64) float64      { return math.Sqrt(x) }
func fn_pow(x, y float64) float64    { return math.Pow(x, y) }
func fn_min(x, y float64) float64    { return math.Min(x, y) }
func fn_max(x, y float64) float64    { return math.Max(x, y) }
func fn_clip(x, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, x)) }
func fn_ifelse(c bool, a, b float64) float64 {
	if c {
		return a
	}
	return b
}
func fn_step(t, height, start float64) float64 {
	if t >= start {
		return height
	}
	return 0
}
`

// Generate writes the rate function of sys as a Go program for the
// interpreter. Observed variables are computed in dependency order, and
// every coupling reference reads the home variable directly.
func Generate(sys *model.System) (*Program, error) {
	reg := sys.Registry()
	order, err := sys.AlgebraicOrder()
	if err != nil {
		return nil, err
	}

	prog := &Program{}
	for _, s := range sys.States {
		prog.States = append(prog.States, s.FullName)
		prog.Initial = append(prog.Initial, s.Initial)
	}
	for name := range sys.Parameters {
		prog.Parameters = append(prog.Parameters, name)
	}
	sort.Strings(prog.Parameters)
	paramIndex := make(map[string]int, len(prog.Parameters))
	for i, name := range prog.Parameters {
		paramIndex[name] = i
		prog.Values = append(prog.Values, sys.Parameters[name])
	}

	defined := make(map[model.Ref]bool, len(sys.Equations))
	for _, def := range sys.Equations {
		defined[model.Ref{Prefix: def.Prefix, Name: def.Target}] = true
	}

	rewrite := func(prefix string) expr.RewriteFunc {
		return func(ident string) (string, error) {
			ref, kind := reg.LookupIdent(prefix, ident)
			switch kind {
			case model.IdentVariable:
				if !defined[ref] {
					return "", fmt.Errorf("%s has no equation", reg.FullName(ref.Prefix, ref.Name))
				}
				return local(ref), nil
			case model.IdentParameter:
				return fmt.Sprintf("p[%d]", paramIndex[reg.FullName(ref.Prefix, ref.Name)]), nil
			case model.IdentTime:
				return "t", nil
			case model.IdentUnresolved:
				return "", fmt.Errorf("%s refers to %q but no sector defines it", prefix, ident)
			}
			if model.IsFunction(ident) {
				return "fn_" + ident, nil
			}
			return "", fmt.Errorf("unknown identifier %q in sector %s", ident, prefix)
		}
	}

	var b strings.Builder
	b.WriteString("package main\n\nimport \"math\"\n")
	b.WriteString(helpers)
	b.WriteString("\nfunc Rates(t float64, x, p, dx, obs []float64) {\n")
	b.WriteString("\t_ = p\n")

	for i, def := range statesInOrder(sys) {
		fmt.Fprintf(&b, "\t%s := x[%d]\n\t_ = %[1]s\n", local(model.Ref{Prefix: def.Prefix, Name: def.Target}), i)
	}

	obsIndex := make(map[string]int, len(sys.Observed))
	for i, s := range sys.Observed {
		prog.Observed = append(prog.Observed, s.FullName)
		obsIndex[s.FullName] = i
	}
	for _, def := range order {
		rhs, err := reg.Lexer().Rewrite(def.RHS, rewrite(def.Prefix))
		if err != nil {
			return nil, fmt.Errorf("equation for %s: %w", reg.FullName(def.Prefix, def.Target), err)
		}
		name := local(model.Ref{Prefix: def.Prefix, Name: def.Target})
		fmt.Fprintf(&b, "\t%s := %s\n\tobs[%d] = %[1]s\n", name, rhs, obsIndex[reg.FullName(def.Prefix, def.Target)])
	}

	for i, def := range statesInOrder(sys) {
		rhs, err := reg.Lexer().Rewrite(def.RHS, rewrite(def.Prefix))
		if err != nil {
			return nil, fmt.Errorf("equation for %s: %w", reg.FullName(def.Prefix, def.Target), err)
		}
		fmt.Fprintf(&b, "\tdx[%d] = %s\n", i, rhs)
	}
	b.WriteString("}\n")

	prog.Source = b.String()
	return prog, nil
}

// statesInOrder returns the differential definitions aligned with sys.States.
func statesInOrder(sys *model.System) []model.Definition {
	reg := sys.Registry()
	byName := make(map[string]model.Definition, len(sys.States))
	for _, def := range sys.Equations {
		if def.Differential {
			byName[reg.FullName(def.Prefix, def.Target)] = def
		}
	}
	out := make([]model.Definition, len(sys.States))
	for i, s := range sys.States {
		out[i] = byName[s.FullName]
	}
	return out
}

// local is the Go identifier of a variable inside the generated function.
func local(ref model.Ref) string {
	return "v_" + ref.Prefix + "_" + ref.Name
}
