package reconcile

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/buildscope/internal/evaltable"
	"github.com/vk/buildscope/internal/model"
	"github.com/vk/buildscope/internal/syntax"
)

// addEl appends one element with a synthetic single-line range.
func addEl(b *syntax.Builder, kind syntax.Kind, tag, name, cond string, parent syntax.ElementID, line int) syntax.ElementID {
	return b.Add(&syntax.Element{
		Kind:      kind,
		Name:      name,
		Tag:       tag,
		Condition: cond,
		Parent:    parent,
		Range: hcl.Range{
			Filename: "build.proj",
			Start:    hcl.Pos{Line: line, Column: 3, Byte: line * 100},
			End:      hcl.Pos{Line: line, Column: 40, Byte: line*100 + 37},
		},
	})
}

func mustTable(t *testing.T, view *syntax.View, entries []*evaltable.Entry, conds map[syntax.ElementID]bool, unresolved []syntax.ElementID) *evaltable.Table {
	t.Helper()
	table, diags, err := evaltable.New(view, entries, conds, unresolved)
	require.NoError(t, err)
	require.Empty(t, diags)
	return table
}

func TestBuild_CompletenessAndUniqueness(t *testing.T) {
	t.Parallel()

	b := syntax.NewBuilder()
	group := addEl(b, syntax.KindGroup, "PropertyGroup", "", "", syntax.NoElement, 2)
	prop := addEl(b, syntax.KindProperty, "OutDir", "OutDir", "", group, 3)
	items := addEl(b, syntax.KindGroup, "ItemGroup", "", "", syntax.NoElement, 5)
	item := addEl(b, syntax.KindItem, "Compile", "Compile", "", items, 6)
	target := addEl(b, syntax.KindTarget, "Target", "Build", "", syntax.NoElement, 8)
	task := addEl(b, syntax.KindTask, "Message", "Message", "", target, 9)
	view := b.Build()

	table := mustTable(t, view, []*evaltable.Entry{
		{Kind: evaltable.EntryProperty, Name: "MSBuildProjectFile", Value: cty.StringVal("build.proj"), Declaring: syntax.NoElement},
		{Kind: evaltable.EntryProperty, Name: "OutDir", Value: cty.StringVal("bin"), Declaring: prop},
		{Kind: evaltable.EntryItem, Name: "Compile", Value: cty.StringVal("a.cs"), Declaring: item},
		{Kind: evaltable.EntryTarget, Name: "Build", Value: cty.StringVal("Build"), Declaring: target},
	}, nil, nil)

	g, err := Build(context.Background(), view, table, nil)
	require.NoError(t, err)

	// Every build-relevant element yields exactly one object, and entries
	// without a declaring element yield none.
	require.Equal(t, view.Len(), g.Len())
	seen := make(map[syntax.ElementID]bool)
	for _, obj := range g.All() {
		assert.False(t, seen[obj.Element], "element %d reconciled twice", obj.Element)
		seen[obj.Element] = true
		assert.NotEmpty(t, obj.SourceFile())
	}
	for _, el := range view.Elements() {
		obj, ok := g.ByElement(el.ID)
		require.True(t, ok, "element %d has no object", el.ID)
		assert.Equal(t, el.ID, obj.Element)
		assert.Equal(t, el.Parent, obj.Parent)
		assert.Equal(t, el.Range, obj.Span)
	}

	// Everything in this project took effect.
	for _, obj := range g.All() {
		assert.True(t, obj.Used(), "%s %q", obj.Kind, obj.Name)
		assert.Equal(t, model.ReasonNone, obj.Reason)
	}

	// Declarations without evaluated entries still classify as used.
	groupObj, _ := g.ByElement(group)
	assert.Equal(t, model.KindItemGroup, groupObj.Kind)
	assert.Empty(t, groupObj.Name)
	taskObj, _ := g.ByElement(task)
	assert.Equal(t, model.KindTask, taskObj.Kind)
}

func TestBuild_UsedValueFidelity(t *testing.T) {
	t.Parallel()

	b := syntax.NewBuilder()
	items := addEl(b, syntax.KindGroup, "ItemGroup", "", "", syntax.NoElement, 2)
	item := addEl(b, syntax.KindItem, "Compile", "Compile", "", items, 3)
	view := b.Build()

	// A wildcard include expands to several entries that share one declaring
	// element; they collapse into a single object carrying the full set.
	table := mustTable(t, view, []*evaltable.Entry{
		{Kind: evaltable.EntryItem, Name: "Compile", Value: cty.StringVal("src/a.cs"), Declaring: item},
		{Kind: evaltable.EntryItem, Name: "Compile", Value: cty.StringVal("src/b.cs"), Declaring: item},
	}, nil, nil)

	g, err := Build(context.Background(), view, table, nil)
	require.NoError(t, err)

	obj, ok := g.ByElement(item)
	require.True(t, ok)
	assert.Equal(t, model.KindItem, obj.Kind)
	assert.Equal(t, cty.StringVal("src/a.cs"), obj.Value)
	require.Len(t, obj.Values, 2)
	assert.Equal(t, cty.StringVal("src/b.cs"), obj.Values[1])
}

func TestBuild_OwnConditionFalse(t *testing.T) {
	t.Parallel()

	b := syntax.NewBuilder()
	group := addEl(b, syntax.KindGroup, "PropertyGroup", "", "", syntax.NoElement, 2)
	prop := addEl(b, syntax.KindProperty, "Foo", "Foo", "'$(Config)'=='Debug'", group, 3)
	view := b.Build()

	table := mustTable(t, view, nil, map[syntax.ElementID]bool{prop: false}, nil)

	g, err := Build(context.Background(), view, table, nil)
	require.NoError(t, err)

	obj, _ := g.ByElement(prop)
	assert.Equal(t, model.KindUnusedProperty, obj.Kind)
	assert.Equal(t, model.ReasonConditionFalse, obj.Reason)
	assert.Equal(t, syntax.NoElement, obj.OverriddenBy)
	assert.Equal(t, cty.NilVal, obj.Value)
	assert.False(t, obj.Used())

	groupObj, _ := g.ByElement(group)
	assert.True(t, groupObj.Used())
}

func TestBuild_OverridePrecedence(t *testing.T) {
	t.Parallel()

	// Two declarations of Foo; the later one wins, so the earlier one is
	// overridden even though its own group's condition held.
	b := syntax.NewBuilder()
	group1 := addEl(b, syntax.KindGroup, "PropertyGroup", "", "'$(Config)'==''", syntax.NoElement, 2)
	foo1 := addEl(b, syntax.KindProperty, "Foo", "Foo", "", group1, 3)
	group2 := addEl(b, syntax.KindGroup, "PropertyGroup", "", "", syntax.NoElement, 5)
	foo2 := addEl(b, syntax.KindProperty, "Foo", "Foo", "", group2, 6)
	view := b.Build()

	table := mustTable(t, view, []*evaltable.Entry{
		{Kind: evaltable.EntryProperty, Name: "Foo", Value: cty.StringVal("2"), Declaring: foo2},
	}, map[syntax.ElementID]bool{group1: true}, nil)

	g, err := Build(context.Background(), view, table, nil)
	require.NoError(t, err)

	first, _ := g.ByElement(foo1)
	assert.Equal(t, model.KindUnusedProperty, first.Kind)
	assert.Equal(t, model.ReasonOverriddenByLaterDeclaration, first.Reason)
	assert.Equal(t, foo2, first.OverriddenBy)

	second, _ := g.ByElement(foo2)
	assert.True(t, second.Used())
	assert.Equal(t, cty.StringVal("2"), second.Value)

	for _, id := range []syntax.ElementID{group1, group2} {
		obj, _ := g.ByElement(id)
		assert.True(t, obj.Used())
	}
}

func TestBuild_TargetNameMatchesCaseInsensitively(t *testing.T) {
	t.Parallel()

	b := syntax.NewBuilder()
	t1 := addEl(b, syntax.KindTarget, "Target", "Build", "", syntax.NoElement, 2)
	t2 := addEl(b, syntax.KindTarget, "Target", "BUILD", "", syntax.NoElement, 4)
	view := b.Build()

	table := mustTable(t, view, []*evaltable.Entry{
		{Kind: evaltable.EntryTarget, Name: "BUILD", Value: cty.StringVal("BUILD"), Declaring: t2},
	}, nil, nil)

	g, err := Build(context.Background(), view, table, nil)
	require.NoError(t, err)

	first, _ := g.ByElement(t1)
	assert.Equal(t, model.KindUnusedTarget, first.Kind)
	assert.Equal(t, model.ReasonOverriddenByLaterDeclaration, first.Reason)
	assert.Equal(t, t2, first.OverriddenBy)
}

func TestBuild_ParentUnusedPropagation(t *testing.T) {
	t.Parallel()

	// The group's condition is false; the property inside carries a true
	// condition of its own, so the classification names the group as the
	// declaration at fault rather than reporting the property's condition.
	b := syntax.NewBuilder()
	group := addEl(b, syntax.KindGroup, "PropertyGroup", "", "'$(Config)'=='Debug'", syntax.NoElement, 2)
	prop := addEl(b, syntax.KindProperty, "Bar", "Bar", "'true'=='true'", group, 3)
	view := b.Build()

	table := mustTable(t, view, nil, map[syntax.ElementID]bool{group: false, prop: true}, nil)

	g, err := Build(context.Background(), view, table, nil)
	require.NoError(t, err)

	groupObj, _ := g.ByElement(group)
	assert.Equal(t, model.KindUnusedItemGroup, groupObj.Kind)
	assert.Equal(t, model.ReasonConditionFalse, groupObj.Reason)

	propObj, _ := g.ByElement(prop)
	assert.Equal(t, model.KindUnusedProperty, propObj.Kind)
	assert.Equal(t, model.ReasonParentUnused, propObj.Reason)
}

func TestBuild_TasksFollowTheirTarget(t *testing.T) {
	t.Parallel()

	b := syntax.NewBuilder()
	target := addEl(b, syntax.KindTarget, "Target", "Clean", "'$(Skip)'=='false'", syntax.NoElement, 2)
	task := addEl(b, syntax.KindTask, "Delete", "Delete", "", target, 3)
	using := addEl(b, syntax.KindUsingTask, "UsingTask", "MyTask", "", syntax.NoElement, 6)
	view := b.Build()

	table := mustTable(t, view, nil, map[syntax.ElementID]bool{target: false}, nil)

	g, err := Build(context.Background(), view, table, nil)
	require.NoError(t, err)

	targetObj, _ := g.ByElement(target)
	assert.Equal(t, model.KindUnusedTarget, targetObj.Kind)
	assert.Equal(t, model.ReasonConditionFalse, targetObj.Reason)

	taskObj, _ := g.ByElement(task)
	assert.Equal(t, model.KindUnusedTask, taskObj.Kind)
	assert.Equal(t, model.ReasonParentUnused, taskObj.Reason)

	usingObj, _ := g.ByElement(using)
	assert.Equal(t, model.KindTask, usingObj.Kind)
	assert.True(t, usingObj.Used())
}

func TestBuild_ImportClassification(t *testing.T) {
	t.Parallel()

	b := syntax.NewBuilder()
	unresolved := addEl(b, syntax.KindImport, "Import", "missing.props", "", syntax.NoElement, 2)
	conditioned := addEl(b, syntax.KindImport, "Import", "debug.props", "'$(Config)'=='Debug'", syntax.NoElement, 3)
	resolved := addEl(b, syntax.KindImport, "Import", "common.props", "", syntax.NoElement, 4)
	view := b.Build()

	table := mustTable(t, view, nil,
		map[syntax.ElementID]bool{conditioned: false},
		[]syntax.ElementID{unresolved})

	g, err := Build(context.Background(), view, table, nil)
	require.NoError(t, err)

	obj, _ := g.ByElement(unresolved)
	assert.Equal(t, model.KindUnresolvedImport, obj.Kind)
	assert.Equal(t, model.ReasonUnresolvedImport, obj.Reason)
	assert.Equal(t, model.KindImport, obj.Kind.Base())

	obj, _ = g.ByElement(conditioned)
	assert.Equal(t, model.KindUnusedImport, obj.Kind)
	assert.Equal(t, model.ReasonConditionFalse, obj.Reason)

	obj, _ = g.ByElement(resolved)
	assert.Equal(t, model.KindImport, obj.Kind)
	assert.True(t, obj.Used())
}

func TestBuild_OrphanFallsBackConservatively(t *testing.T) {
	t.Parallel()

	// An entry-backed declaration with no evaluated counterpart and no
	// determinable reason is classified as conditioned out rather than
	// failing the build, and the mismatch is surfaced as a diagnostic.
	b := syntax.NewBuilder()
	group := addEl(b, syntax.KindGroup, "ItemGroup", "", "", syntax.NoElement, 2)
	item := addEl(b, syntax.KindItem, "None", "None", "", group, 3)
	view := b.Build()

	table := mustTable(t, view, nil, nil, nil)

	g, err := Build(context.Background(), view, table, nil)
	require.NoError(t, err)

	obj, _ := g.ByElement(item)
	assert.Equal(t, model.KindUnusedItem, obj.Kind)
	assert.Equal(t, model.ReasonConditionFalse, obj.Reason)

	require.Len(t, g.Diagnostics(), 1)
	assert.Equal(t, "Unclassifiable declaration", g.Diagnostics()[0].Summary)
}

func TestBuild_CustomReasonPriority(t *testing.T) {
	t.Parallel()

	// Both "overridden" and "parent unused" apply to the first Foo. The
	// configured order decides which one the object reports.
	build := func(t *testing.T, priority []model.Reason) (*model.Object, syntax.ElementID) {
		b := syntax.NewBuilder()
		group1 := addEl(b, syntax.KindGroup, "PropertyGroup", "", "'$(Config)'!=''", syntax.NoElement, 2)
		foo1 := addEl(b, syntax.KindProperty, "Foo", "Foo", "", group1, 3)
		group2 := addEl(b, syntax.KindGroup, "PropertyGroup", "", "", syntax.NoElement, 5)
		foo2 := addEl(b, syntax.KindProperty, "Foo", "Foo", "", group2, 6)
		view := b.Build()

		table := mustTable(t, view, []*evaltable.Entry{
			{Kind: evaltable.EntryProperty, Name: "Foo", Value: cty.StringVal("2"), Declaring: foo2},
		}, map[syntax.ElementID]bool{group1: false}, nil)

		g, err := Build(context.Background(), view, table, &Options{ReasonPriority: priority})
		require.NoError(t, err)
		obj, ok := g.ByElement(foo1)
		require.True(t, ok)
		return obj, foo2
	}

	t.Run("default prefers overridden", func(t *testing.T) {
		t.Parallel()
		obj, winner := build(t, nil)
		assert.Equal(t, model.ReasonOverriddenByLaterDeclaration, obj.Reason)
		assert.Equal(t, winner, obj.OverriddenBy)
	})

	t.Run("parent-first names the group", func(t *testing.T) {
		t.Parallel()
		obj, _ := build(t, []model.Reason{
			model.ReasonParentUnused,
			model.ReasonConditionFalse,
			model.ReasonOverriddenByLaterDeclaration,
			model.ReasonUnresolvedImport,
		})
		assert.Equal(t, model.ReasonParentUnused, obj.Reason)
		assert.Equal(t, syntax.NoElement, obj.OverriddenBy)
	})
}

func TestBuild_Cancellation(t *testing.T) {
	t.Parallel()

	b := syntax.NewBuilder()
	addEl(b, syntax.KindGroup, "PropertyGroup", "", "", syntax.NoElement, 2)
	view := b.Build()
	table := mustTable(t, view, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := Build(ctx, view, table, nil)
	assert.Nil(t, g)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_Idempotence(t *testing.T) {
	t.Parallel()

	makeInputs := func(t *testing.T) (*syntax.View, *evaltable.Table) {
		b := syntax.NewBuilder()
		group := addEl(b, syntax.KindGroup, "PropertyGroup", "", "'$(A)'==''", syntax.NoElement, 2)
		foo := addEl(b, syntax.KindProperty, "Foo", "Foo", "", group, 3)
		imp := addEl(b, syntax.KindImport, "Import", "x.props", "", syntax.NoElement, 5)
		view := b.Build()
		table := mustTable(t, view, []*evaltable.Entry{
			{Kind: evaltable.EntryProperty, Name: "Foo", Value: cty.StringVal("1"), Declaring: foo},
		}, map[syntax.ElementID]bool{group: true}, []syntax.ElementID{imp})
		return view, table
	}

	view1, table1 := makeInputs(t)
	view2, table2 := makeInputs(t)

	g1, err := Build(context.Background(), view1, table1, nil)
	require.NoError(t, err)
	g2, err := Build(context.Background(), view2, table2, nil)
	require.NoError(t, err)

	diff := cmp.Diff(g1.All(), g2.All(), cmp.Comparer(func(a, b cty.Value) bool {
		if a == cty.NilVal || b == cty.NilVal {
			return a == b
		}
		return a.RawEquals(b)
	}))
	assert.Empty(t, diff)
}

func TestBuild_CarriesBaseDiagnostics(t *testing.T) {
	t.Parallel()

	b := syntax.NewBuilder()
	addEl(b, syntax.KindGroup, "PropertyGroup", "", "", syntax.NoElement, 2)
	view := b.Build()
	table := mustTable(t, view, nil, nil, nil)

	base := hcl.Diagnostics{{
		Severity: hcl.DiagWarning,
		Summary:  "Unresolved import",
	}}

	g, err := Build(context.Background(), view, table, &Options{BaseDiagnostics: base})
	require.NoError(t, err)
	require.Len(t, g.Diagnostics(), 1)
	assert.Equal(t, "Unresolved import", g.Diagnostics()[0].Summary)
}
