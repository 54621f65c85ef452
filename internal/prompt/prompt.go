// Package prompt renders role instructions with single-brace placeholders
// ({context}, {now}, ...). Instructions are authored as plain prose, so a
// full template engine would only get in the way; unknown placeholders are
// left untouched rather than treated as errors.
package prompt

import "strings"

// Render substitutes {name} placeholders in text from vars. A literal pair
// of braces can be produced with {{ and }}.
func Render(text string, vars map[string]string) string {
	if !strings.Contains(text, "{") {
		return text
	}
	replacements := make([]string, 0, len(vars)*2+4)
	replacements = append(replacements, "{{", "\x00", "}}", "\x01")
	for k, v := range vars {
		replacements = append(replacements, "{"+k+"}", v)
	}
	out := strings.NewReplacer(replacements...).Replace(text)
	out = strings.ReplaceAll(out, "\x00", "{")
	out = strings.ReplaceAll(out, "\x01", "}")
	return out
}

// HasPlaceholder reports whether text contains the given {name} placeholder.
func HasPlaceholder(text, name string) bool {
	return strings.Contains(text, "{"+name+"}")
}
