// Package evaltable wraps the build evaluator's output in a read-only table
// the reconciler can query.
//
// The table is built once per evaluation, validated at construction, and
// never mutated afterwards. Construction distinguishes two failure classes:
// malformed entries (missing name or value) fail the whole table, while
// entries referencing a declaration the syntax view does not know are dropped
// from matching and surfaced as warnings.
package evaltable

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/buildscope/internal/syntax"
)

// ErrMalformed is wrapped by construction errors caused by evaluator output
// missing required fields. It is distinct from an empty table, which is valid.
var ErrMalformed = errors.New("malformed evaluator output")

// EntryKind is the evaluation-side classification of an entry.
type EntryKind int

const (
	EntryProperty EntryKind = iota
	EntryItem
	EntryTarget
)

// String returns the lower-case name of the entry kind.
func (k EntryKind) String() string {
	switch k {
	case EntryProperty:
		return "property"
	case EntryItem:
		return "item"
	case EntryTarget:
		return "target"
	}
	return "invalid"
}

// Entry is one evaluated property, item or target.
type Entry struct {
	Kind  EntryKind
	Name  string
	Value cty.Value

	// Declaring identifies the winning declaration the evaluator reports for
	// this entry, or syntax.NoElement when there is none (well-known
	// built-in properties).
	Declaring syntax.ElementID
}

type nameKey struct {
	kind EntryKind
	name string
}

// Table is the read-only evaluated object table.
type Table struct {
	entries    []*Entry
	byName     map[nameKey][]*Entry
	byDecl     map[syntax.ElementID][]*Entry
	conditions map[syntax.ElementID]bool
	unresolved map[syntax.ElementID]struct{}
}

// New validates and indexes the evaluator's output against the syntax view
// the entries refer into.
//
// Returned diagnostics carry recoverable input inconsistencies (an entry
// referencing an element the view does not contain); such entries stay out of
// the reverse index but are not fatal. A non-nil error means the output is
// malformed and no table can be built.
func New(view *syntax.View, entries []*Entry, conditions map[syntax.ElementID]bool, unresolved []syntax.ElementID) (*Table, hcl.Diagnostics, error) {
	t := &Table{
		byName:     make(map[nameKey][]*Entry),
		byDecl:     make(map[syntax.ElementID][]*Entry),
		conditions: make(map[syntax.ElementID]bool, len(conditions)),
		unresolved: make(map[syntax.ElementID]struct{}, len(unresolved)),
	}
	var diags hcl.Diagnostics

	for i, e := range entries {
		if e == nil {
			return nil, nil, fmt.Errorf("%w: entry %d is nil", ErrMalformed, i)
		}
		if e.Name == "" {
			return nil, nil, fmt.Errorf("%w: entry %d has no name", ErrMalformed, i)
		}
		if e.Value == cty.NilVal {
			return nil, nil, fmt.Errorf("%w: entry %q has no value", ErrMalformed, e.Name)
		}

		t.entries = append(t.entries, e)
		key := nameKey{kind: e.Kind, name: e.Name}
		t.byName[key] = append(t.byName[key], e)

		if e.Declaring == syntax.NoElement {
			continue
		}
		if _, ok := view.Element(e.Declaring); !ok {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagWarning,
				Summary:  "Evaluated entry references unknown declaration",
				Detail: fmt.Sprintf("The evaluated %s %q references declaration #%d, which is not present in the syntax view. The entry is ignored for matching.",
					e.Kind, e.Name, e.Declaring),
			})
			continue
		}
		t.byDecl[e.Declaring] = append(t.byDecl[e.Declaring], e)
	}

	for id, result := range conditions {
		t.conditions[id] = result
	}
	for _, id := range unresolved {
		t.unresolved[id] = struct{}{}
	}

	return t, diags, nil
}

// Entries returns every entry in the table. The returned slice is shared and
// must not be modified.
func (t *Table) Entries() []*Entry {
	return t.entries
}

// Lookup returns all entries with the given kind and name.
func (t *Table) Lookup(kind EntryKind, name string) []*Entry {
	return t.byName[nameKey{kind: kind, name: name}]
}

// ByDeclaring returns all entries whose winning declaration is the given
// element. The lookup is O(1); the index is built once at construction.
func (t *Table) ByDeclaring(id syntax.ElementID) []*Entry {
	return t.byDecl[id]
}

// ConditionResult reports the evaluator's verdict for the element's own
// Condition attribute. The second result is false when the element carries no
// condition, in which case the declaration is unconditional.
func (t *Table) ConditionResult(id syntax.ElementID) (result, hasCondition bool) {
	result, hasCondition = t.conditions[id]
	return result, hasCondition
}

// ImportUnresolved reports whether the evaluator failed to resolve the import
// declared by the given element.
func (t *Table) ImportUnresolved(id syntax.ElementID) bool {
	_, ok := t.unresolved[id]
	return ok
}
