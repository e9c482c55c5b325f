// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the identity and classification types for the syntax
// element view.
//
// Why a flat ElementID?
//
// Every other component of the system (evaluation table, reconciler, graph)
// needs a way to refer to a declaration without owning it or copying its
// text. An ElementID is the element's index in the flattened document-order
// sequence, which makes it stable for the lifetime of one snapshot, cheap to
// compare, and usable as a map key across all components.
package syntax

// ElementID identifies an element within one View. It is the element's index
// in the flattened document-order sequence.
type ElementID int

// NoElement marks the absence of an element reference, e.g. an evaluated
// entry with no explicit declaration.
const NoElement ElementID = -1

// Kind classifies an element's role in the build file, derived from its tag
// and the element it nests under.
type Kind int

const (
	// KindIrrelevant marks elements that carry no build meaning (the project
	// root, item metadata, unrecognized tags). They never enter the view.
	KindIrrelevant Kind = iota
	KindProperty
	KindItem
	KindGroup // PropertyGroup and ItemGroup containers
	KindTarget
	KindTask
	KindImport
	KindUsingTask
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindIrrelevant:
		return "irrelevant"
	case KindProperty:
		return "property"
	case KindItem:
		return "item"
	case KindGroup:
		return "group"
	case KindTarget:
		return "target"
	case KindTask:
		return "task"
	case KindImport:
		return "import"
	case KindUsingTask:
		return "usingtask"
	}
	return "invalid"
}

// Classify derives an element kind from a tag name plus the kind and tag of
// the enclosing element. The project root and anything without build meaning
// (item metadata, task parameters, unknown containers) classify as
// KindIrrelevant.
func Classify(tag string, parentKind Kind, parentTag string) Kind {
	switch parentKind {
	case KindGroup:
		// The group's own tag decides what its children declare.
		switch parentTag {
		case "PropertyGroup":
			return KindProperty
		case "ItemGroup":
			return KindItem
		}
		return KindIrrelevant
	case KindTarget:
		switch tag {
		case "PropertyGroup", "ItemGroup":
			return KindGroup
		case "OnError":
			return KindIrrelevant
		default:
			return KindTask
		}
	case KindIrrelevant:
		if parentTag != "Project" {
			return KindIrrelevant
		}
		switch tag {
		case "PropertyGroup", "ItemGroup":
			return KindGroup
		case "Target":
			return KindTarget
		case "Import":
			return KindImport
		case "UsingTask":
			return KindUsingTask
		default:
			return KindIrrelevant
		}
	default:
		// Properties, items, tasks, imports and usingtasks declare leaves;
		// nothing nested below them is build-relevant on its own.
		return KindIrrelevant
	}
}
