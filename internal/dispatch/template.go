package dispatch

import (
	"fmt"
	"strings"
)

// Substitute replaces every literal occurrence of {key} in template with the
// string form of the corresponding context value. Placeholders whose key is
// absent from the context are left unchanged, and substituted values are
// never re-scanned, so braces inside a context value stay literal. This is
// flat literal substitution: no nested paths, no expressions.
func Substitute(template string, context map[string]any) string {
	open := strings.IndexByte(template, '{')
	if open < 0 {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))
	for open >= 0 {
		rel := strings.IndexByte(template[open:], '}')
		if rel < 0 {
			break
		}
		end := open + rel

		if value, ok := context[template[open+1:end]]; ok {
			b.WriteString(template[:open])
			b.WriteString(stringify(value))
			template = template[end+1:]
		} else {
			// Unknown key: keep the brace literal and rescan just past it,
			// in case it shadows a real placeholder further in.
			b.WriteString(template[:open+1])
			template = template[open+1:]
		}
		open = strings.IndexByte(template, '{')
	}
	b.WriteString(template)
	return b.String()
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
