// internal/rules/template.go
package rules

import (
	"regexp"
	"strings"
)

// placeholder matches {{path}} with optional inner whitespace.
var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Unresolved is what a placeholder renders as when nothing resolves it.
const Unresolved = "n/a"

// Interpolate replaces {{path}} placeholders in tmpl. extra is consulted
// first ("value", "required"), then the Env's record and computed namespace.
func Interpolate(tmpl string, env *Env, extra map[string]string) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if s, ok := extra[name]; ok {
			return s
		}
		if env != nil {
			if v, ok := env.Resolve(name); ok {
				return FormatValue(v)
			}
		}
		return Unresolved
	})
}
