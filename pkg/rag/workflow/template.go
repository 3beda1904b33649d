package workflow

import (
	"fmt"
	"regexp"
	"strings"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/pkg/rag"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Placeholders lists the distinct keys referenced by tpl, in order of
// first appearance.
func Placeholders(tpl string) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(tpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			keys = append(keys, m[1])
		}
	}
	return keys
}

// Render replaces every {{key}} in tpl with its collected value. Any key
// without a value fails the whole render with rag.ErrMissingDependency.
func Render(tpl string, data entity.CollectedData) (string, error) {
	var missing []string
	for _, key := range Placeholders(tpl) {
		if !data.Has(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", rag.ErrMissingDependency, strings.Join(missing, ", "))
	}

	return placeholderPattern.ReplaceAllStringFunc(tpl, func(m string) string {
		key := placeholderPattern.FindStringSubmatch(m)[1]
		v, _ := data.Lookup(key)
		return v
	}), nil
}
