// Package trajectory reads solved model trajectories: recorded time points
// plus one value array per state or observed variable, addressed by full
// name.
package trajectory

import (
	"sort"
)

// Solution is a solved trajectory. Implementations are read-only.
type Solution interface {
	// Times returns the recorded time points in increasing order.
	Times() []float64
	// States returns the full names of the differential variables.
	States() []string
	// Observed returns the full names of the algebraic variables.
	Observed() []string
	// Series returns the values of a state or observed variable at every
	// recorded time point.
	Series(fullName string) ([]float64, bool)
}

// Memory is an in-memory Solution. Solvers fill it with Append; decoders
// and the run store build it with FromSeries.
type Memory struct {
	times    []float64
	states   []string
	observed []string
	series   map[string][]float64
}

// NewMemory returns an empty solution for the given variables. Values
// passed to Append must follow the same order.
func NewMemory(states, observed []string) *Memory {
	m := &Memory{
		states:   append([]string(nil), states...),
		observed: append([]string(nil), observed...),
		series:   make(map[string][]float64, len(states)+len(observed)),
	}
	for _, name := range m.states {
		m.series[name] = nil
	}
	for _, name := range m.observed {
		m.series[name] = nil
	}
	return m
}

// FromSeries builds a solution from complete arrays. Names are sorted.
func FromSeries(times []float64, states, observed map[string][]float64) *Memory {
	m := &Memory{
		times:  times,
		series: make(map[string][]float64, len(states)+len(observed)),
	}
	for name, values := range states {
		m.states = append(m.states, name)
		m.series[name] = values
	}
	for name, values := range observed {
		m.observed = append(m.observed, name)
		m.series[name] = values
	}
	sort.Strings(m.states)
	sort.Strings(m.observed)
	return m
}

// Append records one time point. states and observed are aligned with the
// names given to NewMemory.
func (m *Memory) Append(t float64, states, observed []float64) {
	m.times = append(m.times, t)
	for i, name := range m.states {
		m.series[name] = append(m.series[name], states[i])
	}
	for i, name := range m.observed {
		m.series[name] = append(m.series[name], observed[i])
	}
}

func (m *Memory) Times() []float64   { return m.times }
func (m *Memory) States() []string   { return m.states }
func (m *Memory) Observed() []string { return m.observed }

func (m *Memory) Series(fullName string) ([]float64, bool) {
	values, ok := m.series[fullName]
	return values, ok
}
