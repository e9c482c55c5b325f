package evaluator

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ExpandInclude expands an item Include attribute into the concrete values it
// contributes. The attribute is a semicolon-separated list; each part has its
// $() references expanded and, when it contains wildcard metacharacters, is
// globbed against fsys. A wildcard part that matches nothing contributes no
// values; a literal part always contributes itself.
//
// A nil fsys disables globbing, leaving wildcard parts unmatched.
func ExpandInclude(include string, env *Env, fsys fs.FS) ([]string, error) {
	var values []string

	for _, part := range strings.Split(env.Expand(include), ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		part = strings.ReplaceAll(part, `\`, "/")

		if !strings.ContainsAny(part, "*?[") {
			values = append(values, part)
			continue
		}
		if fsys == nil {
			continue
		}

		matches, err := doublestar.Glob(fsys, part)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", part, err)
		}
		values = append(values, matches...)
	}

	return values, nil
}
