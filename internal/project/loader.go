// Package project loads a project file into the two inputs reconciliation
// consumes: the flattened syntax element view and the evaluated object table.
//
// Loading walks the root document in order, maintaining a property
// environment as declarations take effect, and splices every resolvable
// <Import> into the same walk, so the resulting element sequence is the
// logical document in evaluation order. The walk records, per element, the
// outcome of its own Condition attribute, and emits evaluated entries for
// every property, item and target that took effect, with
// last-declaration-wins for properties and targets and accumulation for
// items.
package project

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/buildscope/internal/ctxlog"
	"github.com/vk/buildscope/internal/evaltable"
	"github.com/vk/buildscope/internal/evaluator"
	"github.com/vk/buildscope/internal/syntax"
	"github.com/vk/buildscope/internal/xmlview"
)

// Options configures a load.
type Options struct {
	// Properties seeds the property environment, the way a build invocation's
	// global properties would.
	Properties map[string]string

	// FS, when set, is used for Exists checks and wildcard item expansion
	// instead of the directory of the file being processed. Intended for
	// tests.
	FS fs.FS

	// MaxImportDepth bounds import nesting. Zero means the default of 32.
	MaxImportDepth int
}

// Snapshot is the pair of inputs one reconciliation build consumes, plus any
// diagnostics the load itself produced. It is immutable once returned.
type Snapshot struct {
	View  *syntax.View
	Table *evaltable.Table
	Diags hcl.Diagnostics
}

const defaultMaxImportDepth = 32

// Load parses, evaluates and flattens the project file at path.
//
// Recoverable problems (unresolvable imports, condition syntax errors) are
// reported through Snapshot.Diags; a non-nil error means no usable snapshot
// could be produced at all.
func Load(ctx context.Context, path string, opts *Options) (*Snapshot, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Load: starting project load.", "path", path)

	doc, err := xmlview.ParseFile(path)
	if err != nil {
		return nil, err
	}

	maxDepth := opts.MaxImportDepth
	if maxDepth == 0 {
		maxDepth = defaultMaxImportDepth
	}

	l := &loader{
		ctx:      ctx,
		opts:     opts,
		maxDepth: maxDepth,
		env:      evaluator.NewEnv(opts.Properties),
		builder:  syntax.NewBuilder(),
		props:    make(map[string]*evaltable.Entry),
		targets:  make(map[string]*evaltable.Entry),
		conds:    make(map[syntax.ElementID]bool),
		visited:  make(map[string]struct{}),
	}
	l.seedBuiltins(path)
	l.visited[path] = struct{}{}

	if err := l.walkDocument(doc); err != nil {
		return nil, err
	}

	view := l.builder.Build()
	entries := l.collectEntries()

	table, tableDiags, err := evaltable.New(view, entries, l.conds, l.unresolved)
	if err != nil {
		return nil, err
	}

	logger.Debug("Load: project load complete.",
		"elements", view.Len(), "entries", len(entries), "diagnostics", len(l.diags)+len(tableDiags))
	return &Snapshot{
		View:  view,
		Table: table,
		Diags: append(l.diags, tableDiags...),
	}, nil
}

type loader struct {
	ctx      context.Context
	opts     *Options
	maxDepth int

	env     *evaluator.Env
	builder *syntax.Builder

	builtins    []*evaltable.Entry
	props       map[string]*evaltable.Entry
	items       []*evaltable.Entry
	targets     map[string]*evaltable.Entry
	propOrder   []string
	targetOrder []string

	conds      map[syntax.ElementID]bool
	unresolved []syntax.ElementID
	diags      hcl.Diagnostics

	visited map[string]struct{}
	depth   int
}

// seedBuiltins populates the environment with the well-known properties every
// evaluation exposes. They have no explicit declaration, so their entries
// carry no declaring element.
func (l *loader) seedBuiltins(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	builtins := map[string]string{
		"MSBuildProjectFile":      filepath.Base(abs),
		"MSBuildProjectDirectory": filepath.Dir(abs),
	}
	for name, value := range builtins {
		if _, set := l.env.Get(name); set {
			continue // global properties win over built-ins
		}
		l.env.Set(name, value)
		l.builtins = append(l.builtins, &evaltable.Entry{
			Kind:      evaltable.EntryProperty,
			Name:      name,
			Value:     cty.StringVal(value),
			Declaring: syntax.NoElement,
		})
	}
}

// walkDocument walks one file's root children. The root element itself is a
// container with no build meaning of its own.
func (l *loader) walkDocument(doc *xmlview.Document) error {
	for _, child := range doc.Root.Children {
		if err := l.walkElement(doc, child, syntax.NoElement, syntax.KindIrrelevant, "Project", true); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) walkElement(doc *xmlview.Document, x *xmlview.Element, parent syntax.ElementID, parentKind syntax.Kind, parentTag string, parentEffective bool) error {
	// Builds are abandoned cooperatively between elements; a cancelled walk
	// must not leave partial state visible, which holds because nothing is
	// published until Load returns.
	if err := l.ctx.Err(); err != nil {
		return err
	}

	kind := syntax.Classify(x.Tag, parentKind, parentTag)
	if kind == syntax.KindIrrelevant {
		return nil
	}

	el := &syntax.Element{
		Kind:   kind,
		Name:   elementName(kind, x),
		Tag:    x.Tag,
		Attrs:  x.Attrs,
		Text:   x.Text,
		Range:  x.Range,
		Parent: parent,
	}
	id := l.builder.Add(el)

	effective := parentEffective
	if cond, ok := x.Attr("Condition"); ok {
		el.Condition = cond
		result, err := evaluator.EvalCondition(cond, l.env, l.fsFor(doc))
		if err != nil {
			l.diags = append(l.diags, &hcl.Diagnostic{
				Severity: hcl.DiagWarning,
				Summary:  "Invalid condition",
				Detail:   fmt.Sprintf("The condition %q could not be evaluated: %s. It is treated as false.", cond, err),
				Subject:  x.Range.Ptr(),
			})
			result = false
		}
		l.conds[id] = result
		effective = effective && result
	}

	switch kind {
	case syntax.KindProperty:
		if effective {
			value := l.env.Expand(x.Text)
			l.env.Set(el.Name, value)
			key := strings.ToLower(el.Name)
			if _, seen := l.props[key]; !seen {
				l.propOrder = append(l.propOrder, key)
			}
			l.props[key] = &evaltable.Entry{
				Kind:      evaltable.EntryProperty,
				Name:      el.Name,
				Value:     cty.StringVal(value),
				Declaring: id,
			}
		}

	case syntax.KindItem:
		if effective {
			include, _ := x.Attr("Include")
			values, err := evaluator.ExpandInclude(include, l.env, l.fsFor(doc))
			if err != nil {
				l.diags = append(l.diags, &hcl.Diagnostic{
					Severity: hcl.DiagWarning,
					Summary:  "Invalid item include",
					Detail:   err.Error(),
					Subject:  x.Range.Ptr(),
				})
			}
			for _, v := range values {
				l.items = append(l.items, &evaltable.Entry{
					Kind:      evaltable.EntryItem,
					Name:      el.Name,
					Value:     cty.StringVal(v),
					Declaring: id,
				})
			}
		}

	case syntax.KindGroup:
		for _, child := range x.Children {
			if err := l.walkElement(doc, child, id, kind, x.Tag, effective); err != nil {
				return err
			}
		}

	case syntax.KindTarget:
		if effective {
			key := strings.ToLower(el.Name)
			if _, seen := l.targets[key]; !seen {
				l.targetOrder = append(l.targetOrder, key)
			}
			l.targets[key] = &evaltable.Entry{
				Kind:      evaltable.EntryTarget,
				Name:      el.Name,
				Value:     cty.StringVal(el.Name),
				Declaring: id,
			}
		}
		for _, child := range x.Children {
			if err := l.walkElement(doc, child, id, kind, x.Tag, effective); err != nil {
				return err
			}
		}

	case syntax.KindTask, syntax.KindUsingTask:
		// Tasks and usingtask declarations produce no evaluated entries;
		// their effectiveness is reconstructed from condition results and
		// their enclosing declarations.

	case syntax.KindImport:
		if effective {
			if err := l.splice(doc, x, id); err != nil {
				return err
			}
		}
	}

	return nil
}

// splice resolves an effective import and walks the target file's elements in
// place, so the flattened sequence matches evaluation order. Resolution
// failures mark the import unresolved; the walk never descends into a file it
// could not load.
func (l *loader) splice(doc *xmlview.Document, x *xmlview.Element, id syntax.ElementID) error {
	raw, _ := x.Attr("Project")
	target := l.env.Expand(raw)
	if target == "" {
		l.markUnresolved(x, id, "the Project attribute expanded to an empty path")
		return nil
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(doc.Path), filepath.FromSlash(strings.ReplaceAll(target, `\`, "/")))
	}

	if l.depth >= l.maxDepth {
		l.markUnresolved(x, id, fmt.Sprintf("import nesting exceeds %d levels", l.maxDepth))
		return nil
	}
	if _, seen := l.visited[target]; seen {
		l.markUnresolved(x, id, "the file is already part of this evaluation (import cycle)")
		return nil
	}

	imported, err := xmlview.ParseFile(target)
	if err != nil {
		l.markUnresolved(x, id, err.Error())
		return nil
	}

	l.visited[target] = struct{}{}
	l.depth++
	defer func() { l.depth-- }()

	ctxlog.FromContext(l.ctx).Debug("Load: spliced import.", "from", doc.Path, "target", target)
	return l.walkDocument(imported)
}

func (l *loader) markUnresolved(x *xmlview.Element, id syntax.ElementID, detail string) {
	l.unresolved = append(l.unresolved, id)
	l.diags = append(l.diags, &hcl.Diagnostic{
		Severity: hcl.DiagWarning,
		Summary:  "Unresolved import",
		Detail:   fmt.Sprintf("The import could not be resolved: %s.", detail),
		Subject:  x.Range.Ptr(),
	})
}

// fsFor returns the filesystem used for Exists checks and include globbing
// while processing the given file.
func (l *loader) fsFor(doc *xmlview.Document) fs.FS {
	if l.opts.FS != nil {
		return l.opts.FS
	}
	dir := filepath.Dir(doc.Path)
	if dir == "" {
		dir = "."
	}
	if _, err := os.Stat(dir); err != nil {
		return nil
	}
	return os.DirFS(dir)
}

// collectEntries flattens the accumulated evaluation results into one slice:
// built-ins first, then winning properties, items in document order, and
// winning targets.
func (l *loader) collectEntries() []*evaltable.Entry {
	entries := make([]*evaltable.Entry, 0, len(l.builtins)+len(l.props)+len(l.items)+len(l.targets))
	entries = append(entries, l.builtins...)
	for _, key := range l.propOrder {
		entries = append(entries, l.props[key])
	}
	entries = append(entries, l.items...)
	for _, key := range l.targetOrder {
		entries = append(entries, l.targets[key])
	}
	return entries
}

// elementName derives the semantic name of a declaration from its element.
func elementName(kind syntax.Kind, x *xmlview.Element) string {
	switch kind {
	case syntax.KindProperty, syntax.KindItem, syntax.KindTask:
		return x.Tag
	case syntax.KindTarget:
		name, _ := x.Attr("Name")
		return name
	case syntax.KindUsingTask:
		name, _ := x.Attr("TaskName")
		return name
	case syntax.KindImport:
		project, _ := x.Attr("Project")
		return project
	default:
		return "" // groups are anonymous
	}
}
