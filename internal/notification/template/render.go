// Package template substitutes {{name}} placeholders in notification templates.
package template

import (
	"fmt"
	"regexp"
)

var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render replaces every {{key}} whose key exists in vars with the value's string form.
// Unknown placeholders are left verbatim; malformed braces are not an error.
func Render(tmpl string, vars map[string]interface{}) string {
	if len(vars) == 0 || tmpl == "" {
		return tmpl
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := placeholder.FindStringSubmatch(match)[1]
		v, ok := vars[key]
		if !ok {
			return match
		}
		return stringify(v)
	})
}

// Placeholders lists the distinct keys referenced by tmpl, in first-seen order.
func Placeholders(tmpl string) []string {
	seen := map[string]bool{}
	var keys []string
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			keys = append(keys, m[1])
		}
	}
	return keys
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
