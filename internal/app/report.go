package app

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/buildscope/internal/graph"
	"github.com/vk/buildscope/internal/model"
)

// writeReport prints one line per object plus any graph diagnostics, and
// returns the number of unused declarations.
func (a *App) writeReport(g *graph.Graph) int {
	unused := 0

	for _, obj := range g.All() {
		location := fmt.Sprintf("%s:%d", obj.SourceFile(), obj.Span.Start.Line)
		name := obj.Name
		if name == "" {
			name = "(anonymous)"
		}

		switch {
		case obj.Used():
			if obj.Value != cty.NilVal && obj.Value.Type() == cty.String {
				if len(obj.Values) > 1 {
					fmt.Fprintf(a.outW, "%-18s %s = %q (+%d more) (%s)\n",
						obj.Kind, name, obj.Value.AsString(), len(obj.Values)-1, location)
				} else {
					fmt.Fprintf(a.outW, "%-18s %s = %q (%s)\n",
						obj.Kind, name, obj.Value.AsString(), location)
				}
			} else {
				fmt.Fprintf(a.outW, "%-18s %s (%s)\n", obj.Kind, name, location)
			}
		default:
			unused++
			detail := obj.Reason.String()
			if obj.Reason == model.ReasonOverriddenByLaterDeclaration {
				if winner, ok := g.ByElement(obj.OverriddenBy); ok {
					detail = fmt.Sprintf("%s at %s:%d", detail, winner.SourceFile(), winner.Span.Start.Line)
				}
			}
			fmt.Fprintf(a.outW, "%-18s %s [%s] (%s)\n", obj.Kind, name, detail, location)
		}
	}

	for _, diag := range g.Diagnostics() {
		fmt.Fprintf(a.outW, "diagnostic: %s\n", diag.Error())
	}
	fmt.Fprintf(a.outW, "%d object(s), %d unused, %d diagnostic(s)\n",
		g.Len(), unused, len(g.Diagnostics()))

	return unused
}
