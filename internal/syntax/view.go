// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the View, the read-only projection of one logical project
// document that the rest of the system consumes.
//
// Why flatten imports into one sequence?
//
// A project is logically one document even when it is spread over the root
// file and any number of imported fragments. By the time a View exists,
// import resolution has already spliced every reachable fragment into a
// single document-order sequence. Downstream consumers never deal with files;
// they deal with one ordered list of declarations, which is exactly the order
// the evaluator processed them in.
package syntax

import (
	"github.com/hashicorp/hcl/v2"
)

// Element is one build-relevant declaration in the flattened document.
type Element struct {
	ID   ElementID
	Kind Kind

	// Name is the declaration's semantic name: the tag for properties, items
	// and tasks, the Name attribute for targets, the TaskName attribute for
	// usingtasks, the Project attribute for imports. Groups are anonymous and
	// carry an empty name.
	Name string

	Tag   string
	Attrs map[string]string
	Text  string
	Range hcl.Range

	// Condition is the raw Condition attribute, or "" when absent.
	Condition string

	// Parent is the nearest build-relevant ancestor, or NoElement. Imported
	// elements chain within their own file; the import element that spliced
	// them is not their parent.
	Parent ElementID
}

// View is an immutable, restartable sequence of the build-relevant elements
// of one logical document, in document order.
type View struct {
	elements []*Element
}

// Elements returns all elements in document order. The returned slice is
// shared and must not be modified.
func (v *View) Elements() []*Element {
	return v.elements
}

// Element returns the element with the given identity.
func (v *View) Element(id ElementID) (*Element, bool) {
	if id < 0 || int(id) >= len(v.elements) {
		return nil, false
	}
	return v.elements[id], true
}

// Len reports the number of build-relevant elements in the view.
func (v *View) Len() int {
	return len(v.elements)
}

// Builder accumulates elements during the loader's document walk and seals
// them into a View.
type Builder struct {
	elements []*Element
}

// NewBuilder creates an empty view builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends an element in document order, assigns its identity and returns
// it. The caller fills every field except ID.
func (b *Builder) Add(el *Element) ElementID {
	el.ID = ElementID(len(b.elements))
	b.elements = append(b.elements, el)
	return el.ID
}

// Build seals the accumulated elements into an immutable View. The builder
// must not be reused afterwards.
func (b *Builder) Build() *View {
	return &View{elements: b.elements}
}
