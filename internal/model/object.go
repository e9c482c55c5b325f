// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines Object, the shared record behind every taxonomy variant,
// and Reason, the annotation explaining why an unused declaration produced no
// effect.
package model

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/buildscope/internal/syntax"
)

// Reason explains why an unused declaration produced no evaluation effect.
type Reason int

const (
	// ReasonNone marks used objects, which need no explanation.
	ReasonNone Reason = iota
	// ReasonConditionFalse: the element's own Condition attribute evaluated
	// to false.
	ReasonConditionFalse
	// ReasonOverriddenByLaterDeclaration: a later declaration of the same
	// kind and name won.
	ReasonOverriddenByLaterDeclaration
	// ReasonUnresolvedImport: the import's target file could not be resolved.
	ReasonUnresolvedImport
	// ReasonParentUnused: the nearest enclosing declaration is itself unused.
	ReasonParentUnused
)

// String returns the human-readable name of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonConditionFalse:
		return "condition false"
	case ReasonOverriddenByLaterDeclaration:
		return "overridden by later declaration"
	case ReasonUnresolvedImport:
		return "unresolved import"
	case ReasonParentUnused:
		return "parent unused"
	}
	return "invalid"
}

// Object is one reconciled declaration. Every object has exactly one
// declaring element; used variants additionally carry the evaluated value(s)
// copied from the matched table entries.
type Object struct {
	Kind Kind

	// Name is empty for anonymous groupings and positional otherwise.
	Name string

	// Element identifies the declaring syntax element. Exactly one object
	// exists per build-relevant element.
	Element syntax.ElementID

	// Parent is the declaring element's nearest build-relevant ancestor, or
	// syntax.NoElement.
	Parent syntax.ElementID

	// Span is the declaring element's source range; Span.Filename is never
	// empty.
	Span hcl.Range

	// Value is the evaluated value for used variants (cty.NilVal otherwise).
	// For declarations that expand to several entries, such as wildcard
	// items, Value holds the first entry and Values the full set.
	Value  cty.Value
	Values []cty.Value

	// Reason is set on unused variants and ReasonNone on used ones.
	Reason Reason

	// OverriddenBy identifies the winning sibling declaration when Reason is
	// ReasonOverriddenByLaterDeclaration, and is syntax.NoElement otherwise.
	OverriddenBy syntax.ElementID
}

// SourceFile returns the path of the file declaring the object.
func (o *Object) SourceFile() string {
	return o.Span.Filename
}

// Used reports whether the object's declaration took effect.
func (o *Object) Used() bool {
	return !o.Kind.IsUnused()
}
