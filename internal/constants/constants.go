// Package constants provides named constants used throughout the stockflow codebase.
// This centralizes naming conventions and solver defaults in one place.
package constants

// Naming conventions of the composed model.
const (
	// DefaultSeparator joins a sector prefix and a short name into a full name,
	// e.g. "pop₊POP".
	DefaultSeparator = "₊"

	// TimeVariable is the independent variable of every model.
	TimeVariable = "t"

	// StoreDirName is the per-project directory holding runs, logs and config.
	StoreDirName = ".stockflow"
)

// DefaultBufferMarkers are the name fragments that mark delay-line state
// variables. Variables containing any of them are internal buffers.
var DefaultBufferMarkers = []string{"RT_", "LV_"}

// Solver defaults, in model time units.
const (
	DefaultStartTime = 1900.0
	DefaultStopTime  = 2100.0
	DefaultStep      = 0.5

	// DefaultSaveEvery records one point per integration step.
	DefaultSaveEvery = 1
)

// Query limits.
const (
	// MaxSuggestions caps the near-match list carried by a not-found error.
	MaxSuggestions = 5

	// MaxLabelLen truncates long equation labels in graph renderings.
	MaxLabelLen = 40
)

// Variable kind strings, shared by the store and the JSON outputs.
const (
	KindStock          = "stock"
	KindAuxiliary      = "auxiliary"
	KindInternalBuffer = "internal-buffer"
	KindParameter      = "parameter"
)
