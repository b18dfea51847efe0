// Package templating resolves named placeholders in node content from the
// answers a player gave earlier in the story.
package templating

import (
	"regexp"
	"strings"
)

// DefaultFallback is substituted when neither the history nor the binding
// supplies a value.
const DefaultFallback = "adventurer"

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Binding resolves one placeholder name. Candidates maps the choice ids that
// answer the source prompt to their display text.
type Binding struct {
	Name       string
	Candidates map[int64]string
	Fallback   string
}

// Names returns the distinct placeholder names in content, in order of first use.
func Names(content string) []string {
	var names []string
	seen := map[string]bool{}
	for _, match := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}
	return names
}

// Render substitutes every placeholder in content. history is the ordered
// list of chosen choice ids; the most recent candidate wins. Placeholders
// without a binding render as DefaultFallback.
func Render(content string, bindings []Binding, history []int64) string {
	if !strings.Contains(content, "{{") {
		return content
	}
	values := make(map[string]string, len(bindings))
	for _, binding := range bindings {
		values[binding.Name] = resolve(binding, history)
	}
	return placeholderPattern.ReplaceAllStringFunc(content, func(token string) string {
		name := placeholderPattern.FindStringSubmatch(token)[1]
		if value, ok := values[name]; ok {
			return value
		}
		return DefaultFallback
	})
}

func resolve(binding Binding, history []int64) string {
	for i := len(history) - 1; i >= 0; i-- {
		text, ok := binding.Candidates[history[i]]
		if !ok {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	if fallback := strings.TrimSpace(binding.Fallback); fallback != "" {
		return fallback
	}
	return DefaultFallback
}
