// Package template substitutes {{variable}} placeholders in workflow-authored text.
package template

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)\s*\}\}`)

// Render replaces every {{name}} or {{ name.path }} placeholder with the matching value from
// variables. Dotted names walk nested maps. Unknown placeholders are left untouched, so a
// typo stays visible in the rendered text.
func Render(input string, variables map[string]any) string {
	if !strings.Contains(input, "{{") {
		return input
	}

	return placeholder.ReplaceAllStringFunc(input, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]

		value, ok := lookup(variables, name)
		if !ok {
			return match
		}

		return format(value)
	})
}

// Placeholders returns the distinct variable names referenced by input, in order of appearance.
func Placeholders(input string) []string {
	seen := make(map[string]bool)
	names := make([]string, 0)

	for _, match := range placeholder.FindAllStringSubmatch(input, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}

	return names
}

func lookup(variables map[string]any, name string) (any, bool) {
	var current any = variables

	for _, part := range strings.Split(name, ".") {
		scope, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = scope[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func format(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format("2006-01-02")
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
