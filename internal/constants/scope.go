package constants

// Scope selects which configuration file a command reads or writes.
type Scope string

const (
	// ScopeProject is the config file under <root>/.stockflow/.
	ScopeProject Scope = "project"

	// ScopeGlobal is the config file under ~/.stockflow/.
	ScopeGlobal Scope = "global"
)

// Valid returns true if the scope is a recognized value.
func (s Scope) Valid() bool {
	switch s {
	case ScopeProject, ScopeGlobal:
		return true
	}
	return false
}

// String returns the string representation of the scope.
func (s Scope) String() string {
	return string(s)
}
