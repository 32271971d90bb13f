package sas

import (
	"regexp"
	"strings"
)

var (
	letRe = regexp.MustCompile(`(?i)%let\s+([A-Za-z_]\w*)\s*=\s*([^;]*);`)
	refRe = regexp.MustCompile(`&([A-Za-z_]\w*)\.?`)
)

// Variables is the flat macro-variable table for one analysis run. SAS has
// call-stack-like variable scoping; this table deliberately approximates it
// with a single global namespace (a stated limitation of the analyzer).
type Variables struct {
	values map[string]string // lowercased name → resolved value
	order  []string          // first-definition order, lowercased
}

// NewVariables returns an empty variable table.
func NewVariables() *Variables {
	return &Variables{values: make(map[string]string)}
}

// ParseVariables scans source for %let assignments and builds the resolved
// table. Values are substituted against the table as it stood at the
// assignment (left-to-right, so redefinition shadows earlier values for
// later assignments). A final resolution pass settles forward references
// against the completed table so that Substitute is idempotent; circular
// references collapse to the literal reference text.
func ParseVariables(source string) *Variables {
	v := NewVariables()
	for _, m := range letRe.FindAllStringSubmatch(source, -1) {
		name := strings.ToLower(m[1])
		value := v.Substitute(strings.TrimSpace(m[2]))
		if _, seen := v.values[name]; !seen {
			v.order = append(v.order, name)
		}
		v.values[name] = value
	}
	v.finalize()
	return v
}

// Set records a variable binding directly. Mainly useful for callers that
// carry a pre-resolved table across units.
func (v *Variables) Set(name, value string) {
	name = strings.ToLower(name)
	if _, seen := v.values[name]; !seen {
		v.order = append(v.order, name)
	}
	v.values[name] = value
}

// Lookup returns the resolved value for name, case-insensitively.
func (v *Variables) Lookup(name string) (string, bool) {
	val, ok := v.values[strings.ToLower(name)]
	return val, ok
}

// Len returns the number of defined variables.
func (v *Variables) Len() int {
	return len(v.values)
}

// Names returns the defined variable names in first-definition order.
func (v *Variables) Names() []string {
	return append([]string(nil), v.order...)
}

// Substitute replaces &name references in text with their resolved values.
// References to undefined variables are preserved verbatim rather than
// treated as an error, since forward references and run-time-only values
// are common. Substitute is idempotent: stored values never contain a
// reference that resolves to anything other than itself.
func (v *Variables) Substitute(text string) string {
	if len(v.values) == 0 || !strings.Contains(text, "&") {
		return text
	}
	return refRe.ReplaceAllStringFunc(text, func(ref string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(ref, "&"), ".")
		if val, ok := v.values[strings.ToLower(name)]; ok {
			return val
		}
		return ref
	})
}

// finalize settles forward references: each stored value is re-resolved
// against the completed table. A visiting set collapses reference cycles
// to the literal reference text instead of looping.
func (v *Variables) finalize() {
	resolved := make(map[string]string, len(v.values))
	for _, name := range v.order {
		v.resolveInto(name, resolved, map[string]bool{})
	}
	v.values = resolved
}

func (v *Variables) resolveInto(name string, resolved map[string]string, visiting map[string]bool) string {
	if val, done := resolved[name]; done {
		return val
	}
	if visiting[name] {
		return "&" + name
	}
	visiting[name] = true
	defer delete(visiting, name)

	val := refRe.ReplaceAllStringFunc(v.values[name], func(ref string) string {
		inner := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(ref, "&"), "."))
		if _, ok := v.values[inner]; !ok {
			return ref
		}
		return v.resolveInto(inner, resolved, visiting)
	})
	resolved[name] = val
	return val
}
