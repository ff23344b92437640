// Package solver integrates composed models. Euler is the reference solver:
// it generates the rate function of a system as Go source, runs it in an
// embedded interpreter and steps it forward with a fixed step.
package solver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/nvandessel/stockflow/internal/logging"
	"github.com/nvandessel/stockflow/internal/model"
	"github.com/nvandessel/stockflow/internal/trajectory"
)

// Solver turns a composed system and a time span into a solved trajectory.
type Solver interface {
	Solve(ctx context.Context, sys *model.System, span model.Span) (trajectory.Solution, error)
}

// ErrInvalidSpan is returned for spans that cannot be integrated.
var ErrInvalidSpan = errors.New("invalid time span")

// Options configures an Euler solver.
type Options struct {
	// SaveEvery records every n-th step. Values below 1 record every step.
	// The final time point is always recorded.
	SaveEvery int
	Logger    *slog.Logger
	Decisions *logging.DecisionLogger
}

// Euler is a fixed-step explicit Euler integrator.
type Euler struct {
	saveEvery int
	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// NewEuler creates an Euler solver.
func NewEuler(opts Options) *Euler {
	if opts.SaveEvery < 1 {
		opts.SaveEvery = 1
	}
	return &Euler{
		saveEvery: opts.SaveEvery,
		logger:    logging.OrDiscard(opts.Logger),
		decisions: opts.Decisions,
	}
}

// Compile generates and interprets the rate function of sys.
func (e *Euler) Compile(sys *model.System) (RateFunc, *Program, error) {
	prog, err := Generate(sys)
	if err != nil {
		return nil, nil, fmt.Errorf("generating rate function: %w", err)
	}
	e.logger.Log(context.Background(), logging.LevelTrace, "generated rate function", "model", sys.Name, "source", prog.Source)

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, nil, fmt.Errorf("loading interpreter stdlib: %w", err)
	}
	if _, err := i.Eval(prog.Source); err != nil {
		return nil, nil, fmt.Errorf("compiling rate function: %w", err)
	}
	v, err := i.Eval("main.Rates")
	if err != nil {
		return nil, nil, fmt.Errorf("rate function not found: %w", err)
	}
	fn, ok := v.Interface().(func(float64, []float64, []float64, []float64, []float64))
	if !ok {
		return nil, nil, fmt.Errorf("rate function has unexpected type %T", v.Interface())
	}
	return RateFunc(fn), prog, nil
}

// Solve integrates sys from span.Start to span.Stop inclusive. Time points
// are span.Start + i*span.Step except the last, which is always exactly
// span.Stop; when the span is not a whole number of steps the final step is
// shortened to land on it. Cancellation is checked every step.
func (e *Euler) Solve(ctx context.Context, sys *model.System, span model.Span) (trajectory.Solution, error) {
	if span.Step <= 0 || span.Stop < span.Start || math.IsNaN(span.Start) || math.IsInf(span.Stop, 0) {
		return nil, fmt.Errorf("%w: start=%g stop=%g step=%g", ErrInvalidSpan, span.Start, span.Stop, span.Step)
	}

	rates, prog, err := e.Compile(sys)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	steps := stepCount(span)
	timeAt := func(i int) float64 {
		if i >= steps {
			return span.Stop
		}
		return span.Start + float64(i)*span.Step
	}
	x := append([]float64(nil), prog.Initial...)
	dx := make([]float64, len(x))
	obs := make([]float64, len(prog.Observed))
	sol := trajectory.NewMemory(prog.States, prog.Observed)
	warned := false

	event := logging.SolveEvent{
		Model:    sys.Name,
		Start:    span.Start,
		Stop:     span.Stop,
		Step:     span.Step,
		Steps:    steps,
		States:   len(prog.States),
		Observed: len(prog.Observed),
	}
	fail := func(err error) (trajectory.Solution, error) {
		event.Recorded, event.Elapsed, event.Error = len(sol.Times()), time.Since(began), err.Error()
		e.decisions.Solved(event)
		return nil, err
	}

	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("solve cancelled at t=%g: %w", timeAt(i), err))
		}
		t := timeAt(i)
		if err := call(rates, t, x, prog.Values, dx, obs); err != nil {
			return fail(fmt.Errorf("evaluating rates at t=%g: %w", t, err))
		}
		if i%e.saveEvery == 0 || i == steps {
			sol.Append(t, x, obs)
		}
		if !warned && !finite(dx) {
			e.logger.Warn("non-finite derivative", "model", sys.Name, "t", t)
			warned = true
		}
		if i == steps {
			break
		}
		h := timeAt(i+1) - t
		for j := range x {
			x[j] += h * dx[j]
		}
	}

	event.Recorded, event.Elapsed = len(sol.Times()), time.Since(began)
	e.logger.Debug("solve finished", "model", sys.Name, "steps", steps, "recorded", event.Recorded, "elapsed", event.Elapsed)
	e.decisions.Solved(event)
	return sol, nil
}

// stepCount returns the number of steps from span.Start to span.Stop. A
// span within rounding error of a whole number of steps takes that number;
// otherwise a shorter final step is added.
func stepCount(span model.Span) int {
	n := (span.Stop - span.Start) / span.Step
	if whole := math.Round(n); math.Abs(n-whole) <= 1e-9*math.Max(1, whole) {
		return int(whole)
	}
	return int(math.Ceil(n))
}

// call runs the interpreted rate function, turning interpreter panics into
// errors.
func call(fn RateFunc, t float64, x, p, dx, obs []float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rate function panicked: %v", r)
		}
	}()
	fn(t, x, p, dx, obs)
	return nil
}

func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
