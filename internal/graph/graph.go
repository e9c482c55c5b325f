// Package graph holds the reconciled object graph and its read-only query
// surface.
//
// A Graph is immutable once constructed: every index is built exactly once in
// New, queries never mutate state, and the whole graph is replaced — never
// patched — when its document is re-evaluated. That makes a published graph
// safe for concurrent readers without synchronization.
package graph

import (
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/buildscope/internal/model"
	"github.com/vk/buildscope/internal/syntax"
)

// Graph is the correlated object graph of one evaluation.
type Graph struct {
	objects   []*model.Object
	byElement map[syntax.ElementID]*model.Object
	byName    map[nameKey][]*model.Object
	nameIndex []*model.Object // sorted by (kind, folded name) for prefix scans
	byFile    map[string][]*model.Object
	diags     hcl.Diagnostics
}

type nameKey struct {
	kind model.Kind
	name string
}

// New builds a graph over the given objects, which must be in document order.
// The diagnostics carry per-object annotations recovered during
// reconciliation; they do not make the graph unusable.
func New(objects []*model.Object, diags hcl.Diagnostics) *Graph {
	g := &Graph{
		objects:   objects,
		byElement: make(map[syntax.ElementID]*model.Object, len(objects)),
		byName:    make(map[nameKey][]*model.Object),
		byFile:    make(map[string][]*model.Object),
		diags:     diags,
	}

	for _, obj := range objects {
		g.byElement[obj.Element] = obj
		if obj.Name != "" {
			key := nameKey{kind: obj.Kind, name: strings.ToLower(obj.Name)}
			g.byName[key] = append(g.byName[key], obj)
			g.nameIndex = append(g.nameIndex, obj)
		}
		g.byFile[obj.SourceFile()] = append(g.byFile[obj.SourceFile()], obj)
	}

	sort.SliceStable(g.nameIndex, func(i, j int) bool {
		a, b := g.nameIndex[i], g.nameIndex[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	for _, objs := range g.byFile {
		sort.SliceStable(objs, func(i, j int) bool {
			return comparePos(objs[i].Span.Start, objs[j].Span.Start) < 0
		})
	}

	return g
}

// Len reports the number of objects in the graph.
func (g *Graph) Len() int {
	return len(g.objects)
}

// Diagnostics returns the annotations attached to the graph during
// reconciliation: input inconsistencies and conservatively classified
// declarations.
func (g *Graph) Diagnostics() hcl.Diagnostics {
	return g.diags
}

// comparePos orders two positions within the same file.
func comparePos(a, b hcl.Pos) int {
	if a.Line != b.Line {
		return a.Line - b.Line
	}
	return a.Column - b.Column
}

// spanContains reports whether the range contains the position, with an
// inclusive start and exclusive end.
func spanContains(r hcl.Range, pos hcl.Pos) bool {
	return comparePos(r.Start, pos) <= 0 && comparePos(pos, r.End) < 0
}
