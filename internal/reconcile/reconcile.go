// Package reconcile builds the correlated object graph from the two inputs
// of one evaluation: the flattened syntax element view and the evaluated
// object table.
//
// Construction is single-pass and single-threaded per build: every element of
// the view is visited exactly once in document order, paired with its
// evaluated counterpart when one exists, and otherwise classified with the
// reason it produced no effect. The pass guarantees the graph's completeness
// invariant (every build-relevant element yields exactly one object) and its
// uniqueness invariant (no element yields two) by construction. Cancellation
// is checked between successive elements; an abandoned build returns the
// context error and leaves nothing published.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/buildscope/internal/ctxlog"
	"github.com/vk/buildscope/internal/evaltable"
	"github.com/vk/buildscope/internal/graph"
	"github.com/vk/buildscope/internal/model"
	"github.com/vk/buildscope/internal/syntax"
)

// Options tunes a reconciliation build.
type Options struct {
	// ReasonPriority orders the classification checks applied to an
	// unmatched declaration; the first applicable reason wins. Nil means
	// DefaultReasonPriority. The ordering among the reasons is a policy
	// decision, so it is configurable rather than hard-baked.
	ReasonPriority []model.Reason

	// BaseDiagnostics carries diagnostics produced while assembling the
	// inputs (unresolved imports, condition syntax problems) so they travel
	// with the finished graph ahead of the reconciler's own annotations.
	BaseDiagnostics hcl.Diagnostics
}

// DefaultReasonPriority returns the default classification order for
// unmatched declarations.
func DefaultReasonPriority() []model.Reason {
	return []model.Reason{
		model.ReasonConditionFalse,
		model.ReasonOverriddenByLaterDeclaration,
		model.ReasonUnresolvedImport,
		model.ReasonParentUnused,
	}
}

// Build constructs the immutable object graph for one snapshot.
func Build(ctx context.Context, view *syntax.View, table *evaltable.Table, opts *Options) (*graph.Graph, error) {
	if opts == nil {
		opts = &Options{}
	}
	priority := opts.ReasonPriority
	if priority == nil {
		priority = DefaultReasonPriority()
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Reconcile: starting graph construction.", "elements", view.Len())

	r := &run{
		view:      view,
		table:     table,
		priority:  priority,
		byElement: make(map[syntax.ElementID]*model.Object, view.Len()),
		winners:   computeWinners(view, table),
		diags:     opts.BaseDiagnostics,
	}

	objects := make([]*model.Object, 0, view.Len())
	for _, el := range view.Elements() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		obj := r.reconcile(el)
		objects = append(objects, obj)
		r.byElement[el.ID] = obj
	}

	logger.Debug("Reconcile: graph construction complete.",
		"objects", len(objects), "diagnostics", len(r.diags))
	return graph.New(objects, r.diags), nil
}

type run struct {
	view      *syntax.View
	table     *evaltable.Table
	priority  []model.Reason
	byElement map[syntax.ElementID]*model.Object
	winners   map[winnerKey]syntax.ElementID
	diags     hcl.Diagnostics
}

type winnerKey struct {
	kind evaltable.EntryKind
	name string
}

// computeWinners records, per (kind, name), the latest declaration in
// evaluation order that the table matched. Unmatched declarations of the same
// name earlier in the order were overridden by it.
func computeWinners(view *syntax.View, table *evaltable.Table) map[winnerKey]syntax.ElementID {
	winners := make(map[winnerKey]syntax.ElementID)
	for _, el := range view.Elements() {
		entryKind, backed := entryKindFor(el.Kind)
		if !backed || len(table.ByDeclaring(el.ID)) == 0 {
			continue
		}
		key := winnerKey{kind: entryKind, name: strings.ToLower(el.Name)}
		if prev, ok := winners[key]; !ok || el.ID > prev {
			winners[key] = el.ID
		}
	}
	return winners
}

// entryKindFor maps an element kind to the evaluation-table kind backing it.
// Groups, tasks, usingtasks and imports have no table entries; their
// effectiveness is reconstructed from condition results and ancestry.
func entryKindFor(kind syntax.Kind) (evaltable.EntryKind, bool) {
	switch kind {
	case syntax.KindProperty:
		return evaltable.EntryProperty, true
	case syntax.KindItem:
		return evaltable.EntryItem, true
	case syntax.KindTarget:
		return evaltable.EntryTarget, true
	}
	return 0, false
}

// baseKind maps an element kind to its used taxonomy kind. Usingtask
// declarations classify under the task kinds; both grouping containers
// classify under the item-group kinds.
func baseKind(kind syntax.Kind) model.Kind {
	switch kind {
	case syntax.KindProperty:
		return model.KindProperty
	case syntax.KindItem:
		return model.KindItem
	case syntax.KindGroup:
		return model.KindItemGroup
	case syntax.KindTarget:
		return model.KindTarget
	case syntax.KindTask, syntax.KindUsingTask:
		return model.KindTask
	case syntax.KindImport:
		return model.KindImport
	}
	panic(fmt.Sprintf("reconcile: element kind %v cannot enter the graph", kind))
}

// reconcile classifies one element into exactly one object.
func (r *run) reconcile(el *syntax.Element) *model.Object {
	base := baseKind(el.Kind)
	obj := &model.Object{
		Kind:         base,
		Name:         el.Name,
		Element:      el.ID,
		Parent:       el.Parent,
		Span:         el.Range,
		Value:        cty.NilVal,
		OverriddenBy: syntax.NoElement,
	}

	if _, backed := entryKindFor(el.Kind); backed {
		if entries := r.table.ByDeclaring(el.ID); len(entries) > 0 {
			// The common, cheap path. All entries sharing this declaring
			// element collapse into this one object; a wildcard item keeps
			// its full evaluated set.
			obj.Value = entries[0].Value
			obj.Values = make([]cty.Value, len(entries))
			for i, e := range entries {
				obj.Values[i] = e.Value
			}
			return obj
		}

		if reason, overriddenBy, ok := r.classifyUnmatched(el); ok {
			r.applyUnused(obj, reason, overriddenBy)
			return obj
		}

		// Genuinely orphaned: the element should have an evaluated
		// counterpart but the table has none and no reason applies. Fall
		// back to the conservative classification and flag the mismatch
		// instead of failing the build.
		r.applyUnused(obj, model.ReasonConditionFalse, syntax.NoElement)
		r.diags = append(r.diags, &hcl.Diagnostic{
			Severity: hcl.DiagWarning,
			Summary:  "Unclassifiable declaration",
			Detail: fmt.Sprintf("The %s %q has no evaluated counterpart and no determinable reason; it is conservatively classified as conditioned out.",
				base, el.Name),
			Subject: el.Range.Ptr(),
		})
		return obj
	}

	// Declarations without table entries are used exactly when nothing
	// blocks them.
	if reason, overriddenBy, ok := r.classifyUnmatched(el); ok {
		r.applyUnused(obj, reason, overriddenBy)
	}
	return obj
}

// classifyUnmatched determines why a declaration produced no effect, trying
// each configured reason in priority order.
func (r *run) classifyUnmatched(el *syntax.Element) (model.Reason, syntax.ElementID, bool) {
	for _, reason := range r.priority {
		switch reason {
		case model.ReasonConditionFalse:
			// Only the element's own condition counts here; a false
			// condition on an ancestor surfaces as ReasonParentUnused so the
			// classification names the declaration actually at fault.
			if result, has := r.table.ConditionResult(el.ID); has && !result {
				return model.ReasonConditionFalse, syntax.NoElement, true
			}

		case model.ReasonOverriddenByLaterDeclaration:
			entryKind, backed := entryKindFor(el.Kind)
			if !backed || el.Name == "" {
				continue
			}
			key := winnerKey{kind: entryKind, name: strings.ToLower(el.Name)}
			if winner, ok := r.winners[key]; ok && winner > el.ID {
				return model.ReasonOverriddenByLaterDeclaration, winner, true
			}

		case model.ReasonUnresolvedImport:
			if el.Kind == syntax.KindImport && r.table.ImportUnresolved(el.ID) {
				return model.ReasonUnresolvedImport, syntax.NoElement, true
			}

		case model.ReasonParentUnused:
			if el.Parent == syntax.NoElement {
				continue
			}
			// Parents precede children in document order, so the parent's
			// object always exists by the time the child is classified.
			if parent, ok := r.byElement[el.Parent]; ok && !parent.Used() {
				return model.ReasonParentUnused, syntax.NoElement, true
			}
		}
	}
	return model.ReasonNone, syntax.NoElement, false
}

// applyUnused rewrites a provisional used object into its unused variant.
func (r *run) applyUnused(obj *model.Object, reason model.Reason, overriddenBy syntax.ElementID) {
	if reason == model.ReasonUnresolvedImport {
		obj.Kind = model.KindUnresolvedImport
	} else {
		obj.Kind = obj.Kind.UnusedCounterpart()
	}
	obj.Reason = reason
	obj.OverriddenBy = overriddenBy
	obj.Value = cty.NilVal
	obj.Values = nil
}
