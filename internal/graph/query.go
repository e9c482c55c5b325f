package graph

import (
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/buildscope/internal/model"
	"github.com/vk/buildscope/internal/syntax"
)

// All returns every object in document order. The returned slice is shared
// and must not be modified.
func (g *Graph) All() []*model.Object {
	return g.objects
}

// ByElement returns the object whose declaring element has the given
// identity.
func (g *Graph) ByElement(id syntax.ElementID) (*model.Object, bool) {
	obj, ok := g.byElement[id]
	return obj, ok
}

// ByName returns all objects of the given kind whose name equals name,
// ignoring case. Anonymous objects are never returned by name.
func (g *Graph) ByName(kind model.Kind, name string) []*model.Object {
	return g.byName[nameKey{kind: kind, name: strings.ToLower(name)}]
}

// ByNamePrefix returns all objects of the given kind whose name starts with
// prefix, ignoring case, in name order. An empty prefix returns every named
// object of the kind.
func (g *Graph) ByNamePrefix(kind model.Kind, prefix string) []*model.Object {
	prefix = strings.ToLower(prefix)
	lo := sort.Search(len(g.nameIndex), func(i int) bool {
		obj := g.nameIndex[i]
		if obj.Kind != kind {
			return obj.Kind > kind
		}
		return strings.ToLower(obj.Name) >= prefix
	})

	var out []*model.Object
	for i := lo; i < len(g.nameIndex); i++ {
		obj := g.nameIndex[i]
		if obj.Kind != kind || !strings.HasPrefix(strings.ToLower(obj.Name), prefix) {
			break
		}
		out = append(out, obj)
	}
	return out
}

// InFile returns all objects declared in the given file, ordered by position.
// The returned slice is shared and must not be modified.
func (g *Graph) InFile(path string) []*model.Object {
	return g.byFile[path]
}

// Files returns the paths of all files contributing objects to the graph, in
// sorted order.
func (g *Graph) Files() []string {
	files := make([]string, 0, len(g.byFile))
	for path := range g.byFile {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// AtPosition returns the smallest object whose span contains the given
// position in the given file.
//
// The per-file slice is ordered by start position, so the innermost
// containing object is the latest-starting one at or before pos; if the
// candidate found by binary search does not contain pos, only its ancestors
// can, and the parent chain is walked instead of scanning the slice.
func (g *Graph) AtPosition(file string, pos hcl.Pos) (*model.Object, bool) {
	objs := g.byFile[file]
	if len(objs) == 0 {
		return nil, false
	}

	idx := sort.Search(len(objs), func(i int) bool {
		return comparePos(objs[i].Span.Start, pos) > 0
	})
	if idx == 0 {
		return nil, false
	}

	for obj := objs[idx-1]; obj != nil; {
		if spanContains(obj.Span, pos) {
			return obj, true
		}
		parent, ok := g.byElement[obj.Parent]
		if !ok {
			return nil, false
		}
		obj = parent
	}
	return nil, false
}
