// Package model holds the sector definitions of a coupled stock/flow model:
// sectors with their declared variables, equations and parameters, the
// registry that owns them, and composition into a single system.
package model

import (
	"strings"

	"github.com/nvandessel/stockflow/internal/constants"
)

// Kind is the structural role of a variable.
type Kind string

const (
	KindStock          Kind = constants.KindStock
	KindAuxiliary      Kind = constants.KindAuxiliary
	KindInternalBuffer Kind = constants.KindInternalBuffer
	KindParameter      Kind = constants.KindParameter
)

// Variable is a classified, sector-qualified model variable.
type Variable struct {
	FullName    string `json:"name"`
	ShortName   string `json:"short_name"`
	Sector      string `json:"sector"`
	Prefix      string `json:"prefix"`
	Description string `json:"description"`
	Kind        Kind   `json:"kind"`
	// Equation is the rate expression of a stock or the defining expression of
	// an auxiliary, with time notation stripped. Empty for parameters and for
	// auxiliaries defined elsewhere.
	Equation string `json:"equation,omitempty"`
}

// Declaration is a variable as declared by a sector.
type Declaration struct {
	Name string
	// Description is empty for exogenous coupling placeholders.
	Description string
	// From optionally names the prefix of the sector that defines the variable.
	From string
	// Initial is the initial value of a stock.
	Initial *float64
}

// Equation is a raw "LHS ~ RHS" equation as text.
type Equation struct {
	LHS string
	RHS string
}

// Sector is one named namespace of the model.
type Sector struct {
	Name       string
	Prefix     string
	Variables  []Declaration
	Equations  []Equation
	Parameters map[string]float64
}

// Declaration returns the declaration of name in this sector.
func (s *Sector) Declaration(name string) (Declaration, bool) {
	for _, d := range s.Variables {
		if d.Name == name {
			return d, true
		}
	}
	return Declaration{}, false
}

// HasParameter reports whether the sector defines a parameter called name.
func (s *Sector) HasParameter(name string) bool {
	_, ok := s.Parameters[name]
	return ok
}

// Span is the simulated time range and integration step.
type Span struct {
	Start float64 `json:"start" yaml:"start"`
	Stop  float64 `json:"stop" yaml:"stop"`
	Step  float64 `json:"step" yaml:"step"`
}

// BufferMarkers are name fragments that identify internal delay-line state.
type BufferMarkers []string

// Match reports whether name contains any marker.
func (m BufferMarkers) Match(name string) bool {
	for _, marker := range m {
		if marker != "" && strings.Contains(name, marker) {
			return true
		}
	}
	return false
}
