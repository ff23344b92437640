package analysis

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguous is matched by every *AmbiguousError.
	ErrAmbiguous = errors.New("ambiguous name")
)

// NotFoundError reports a name that matched nothing in the catalog it was
// looked up in.
type NotFoundError struct {
	// Kind is what was looked up: "stock", "flow", "auxiliary" or "variable".
	Kind string
	Name string
	// Suggestions holds up to constants.MaxSuggestions near matches.
	Suggestions []string
	// Hint tells the caller how to list valid names.
	Hint string
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q not found", e.Kind, e.Name)
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, "; did you mean: %s", strings.Join(e.Suggestions, ", "))
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " (%s)", e.Hint)
	}
	return b.String()
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AmbiguousError reports a short name shared by variables of several sectors.
// Candidates are full names, any of which can be passed back unambiguously.
type AmbiguousError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%q is ambiguous, use one of: %s", e.Name, strings.Join(e.Candidates, ", "))
}

func (e *AmbiguousError) Is(target error) bool { return target == ErrAmbiguous }
