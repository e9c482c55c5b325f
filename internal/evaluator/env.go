// Package evaluator implements the expression side of project evaluation:
// property environments with $()-expansion, the condition language, and
// wildcard item includes.
//
// The package is pure: it never touches ambient state, and its only I/O is
// the fs.FS handed to Exists checks and include globbing.
package evaluator

import (
	"strings"
)

// Env is a property environment. Property names compare case-insensitively;
// the last value set wins.
type Env struct {
	values map[string]string
}

// NewEnv creates an environment seeded with the given initial properties.
func NewEnv(initial map[string]string) *Env {
	e := &Env{values: make(map[string]string, len(initial))}
	for name, value := range initial {
		e.Set(name, value)
	}
	return e
}

// Set assigns a property value, replacing any previous value.
func (e *Env) Set(name, value string) {
	e.values[strings.ToLower(name)] = value
}

// Get returns a property's current value and whether it has been set.
func (e *Env) Get(name string) (string, bool) {
	v, ok := e.values[strings.ToLower(name)]
	return v, ok
}

// Expand replaces every $(Name) reference in s with the property's current
// value. References to unset properties expand to the empty string, matching
// build-engine semantics. Malformed references (no closing parenthesis) are
// left verbatim.
func (e *Env) Expand(s string) string {
	if !strings.Contains(s, "$(") {
		return s
	}

	var sb strings.Builder
	for {
		start := strings.Index(s, "$(")
		if start < 0 {
			sb.WriteString(s)
			return sb.String()
		}
		end := strings.Index(s[start:], ")")
		if end < 0 {
			sb.WriteString(s)
			return sb.String()
		}
		end += start

		sb.WriteString(s[:start])
		name := s[start+2 : end]
		if v, ok := e.Get(name); ok {
			sb.WriteString(v)
		}
		s = s[end+1:]
	}
}

// Snapshot returns a copy of the environment's current values keyed by the
// lower-cased property names.
func (e *Env) Snapshot() map[string]string {
	out := make(map[string]string, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}
