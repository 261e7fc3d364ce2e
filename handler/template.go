package handler

import (
	"fmt"
	"strings"
)

// Interpolate expands ${field} references in a handler config template
// against the node's input map. Unknown fields expand to the empty string,
// matching how the builder previews templates against partial trigger data.
// Only the braced form is recognized: a bare dollar sign passes through
// untouched, and an unterminated ${ is kept literally.
func Interpolate(template string, input map[string]any) string {
	start := strings.Index(template, "${")
	if start < 0 {
		return template
	}

	var b strings.Builder
	for start >= 0 {
		b.WriteString(template[:start])
		rest := template[start+2:]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(template[start:])
			return b.String()
		}
		if value, ok := input[rest[:end]]; ok && value != nil {
			fmt.Fprintf(&b, "%v", value)
		}
		template = rest[end+1:]
		start = strings.Index(template, "${")
	}
	b.WriteString(template)
	return b.String()
}

// Placeholders lists credential values that select the mock path instead of
// a live API call, so workflow graphs can be validated without secrets.
var Placeholders = map[string]bool{
	"":                       true,
	"YOUR_BOT_TOKEN":         true,
	"YOUR_ACCESS_TOKEN":      true,
	"YOUR_API_KEY":           true,
	"REPLACE_ME":             true,
	"sk-ant-placeholder":     true,
	"test-token-placeholder": true,
}

// IsPlaceholder reports whether a credential is absent or a known
// placeholder value.
func IsPlaceholder(credential string) bool {
	return Placeholders[strings.TrimSpace(credential)]
}
