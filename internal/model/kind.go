// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the closed object taxonomy.
//
// Why a closed enumeration instead of an interface hierarchy?
//
// The reconciler must branch over every taxonomy variant exhaustively, and a
// closed enum makes a missed variant a visible gap in a switch rather than a
// silent fall-through behind runtime type inspection. Each used kind pairs
// with exactly one unused counterpart; unresolved imports stand alone because
// a successfully resolved import contributes its target file's declarations
// instead of producing a "used import" value.
package model

// Kind identifies one variant of the object taxonomy.
type Kind int

const (
	KindProperty Kind = iota
	KindItem
	KindItemGroup
	KindTarget
	KindTask
	KindImport
	KindUnusedProperty
	KindUnusedItem
	KindUnusedItemGroup
	KindUnusedTarget
	KindUnusedTask
	KindUnusedImport
	KindUnresolvedImport
)

var kindNames = map[Kind]string{
	KindProperty:         "property",
	KindItem:             "item",
	KindItemGroup:        "item-group",
	KindTarget:           "target",
	KindTask:             "task",
	KindImport:           "import",
	KindUnusedProperty:   "unused property",
	KindUnusedItem:       "unused item",
	KindUnusedItemGroup:  "unused item-group",
	KindUnusedTarget:     "unused target",
	KindUnusedTask:       "unused task",
	KindUnusedImport:     "unused import",
	KindUnresolvedImport: "unresolved import",
}

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// IsUnused reports whether the kind describes a declaration that produced no
// evaluation effect.
func (k Kind) IsUnused() bool {
	switch k {
	case KindUnusedProperty, KindUnusedItem, KindUnusedItemGroup,
		KindUnusedTarget, KindUnusedTask, KindUnusedImport, KindUnresolvedImport:
		return true
	case KindProperty, KindItem, KindItemGroup, KindTarget, KindTask, KindImport:
		return false
	}
	return false
}

// UnusedCounterpart returns the unused variant paired with a used kind.
// Calling it on an unused kind is a programming error and panics.
func (k Kind) UnusedCounterpart() Kind {
	switch k {
	case KindProperty:
		return KindUnusedProperty
	case KindItem:
		return KindUnusedItem
	case KindItemGroup:
		return KindUnusedItemGroup
	case KindTarget:
		return KindUnusedTarget
	case KindTask:
		return KindUnusedTask
	case KindImport:
		return KindUnusedImport
	}
	panic("model: no unused counterpart for kind " + k.String())
}

// Base collapses a kind to its used variant, mapping every unused kind back
// to the declaration kind it annotates. Unresolved imports collapse to
// KindImport.
func (k Kind) Base() Kind {
	switch k {
	case KindUnusedProperty:
		return KindProperty
	case KindUnusedItem:
		return KindItem
	case KindUnusedItemGroup:
		return KindItemGroup
	case KindUnusedTarget:
		return KindTarget
	case KindUnusedTask:
		return KindTask
	case KindUnusedImport, KindUnresolvedImport:
		return KindImport
	}
	return k
}
