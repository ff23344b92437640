package analysis

import (
	"sort"

	"github.com/nvandessel/stockflow/internal/model"
)

// Status is the outcome of resolving a name.
type Status int

const (
	Resolved Status = iota
	NotFound
	Ambiguous
)

func (s Status) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case NotFound:
		return "not-found"
	case Ambiguous:
		return "ambiguous"
	}
	return "unknown"
}

// Resolution is the tagged result of a name lookup. Match is set only when
// Status is Resolved; Candidates only when Status is Ambiguous.
type Resolution struct {
	Query      string
	Status     Status
	Match      model.Variable
	Candidates []string
}

// Resolve looks query up in vars. An exact full name always wins, so a
// namespaced query is never ambiguous. Otherwise every variable with that
// short name matches; more than one match is Ambiguous.
func Resolve(vars []model.Variable, query string) Resolution {
	for _, v := range vars {
		if v.FullName == query {
			return Resolution{Query: query, Status: Resolved, Match: v}
		}
	}

	var matches []model.Variable
	for _, v := range vars {
		if v.ShortName == query {
			matches = append(matches, v)
		}
	}
	switch len(matches) {
	case 0:
		return Resolution{Query: query, Status: NotFound}
	case 1:
		return Resolution{Query: query, Status: Resolved, Match: matches[0]}
	}

	candidates := make([]string, len(matches))
	for i, m := range matches {
		candidates[i] = m.FullName
	}
	sort.Strings(candidates)
	return Resolution{Query: query, Status: Ambiguous, Candidates: candidates}
}

// Err converts an unresolved outcome into a *NotFoundError or
// *AmbiguousError. It returns nil when the name resolved.
func (r Resolution) Err(kind, hint string) error {
	switch r.Status {
	case NotFound:
		return &NotFoundError{Kind: kind, Name: r.Query, Hint: hint}
	case Ambiguous:
		return &AmbiguousError{Name: r.Query, Candidates: r.Candidates}
	}
	return nil
}
