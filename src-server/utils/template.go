package utils

import (
	"sort"
	"strings"
)

// RenderTemplate replaces every "${name}" and "{name}" token in tmpl with
// vars[name]. Substitution is a single literal pass, so values are never
// expanded again even if they contain tokens themselves. Templates without
// a matching token come back verbatim.
func RenderTemplate(tmpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tmpl
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	oldnew := make([]string, 0, len(vars)*4)
	for _, name := range names {
		oldnew = append(oldnew, "${"+name+"}", vars[name])
	}
	for _, name := range names {
		oldnew = append(oldnew, "{"+name+"}", vars[name])
	}
	return strings.NewReplacer(oldnew...).Replace(tmpl)
}
