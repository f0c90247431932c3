// Package parsers holds the total, pure transforms from a complete_task
// payload's textual content to the typed record each role produces. Every
// parser tolerates malformed input: analyzer/planner fall back to a safe
// default, steward/oracle fall back to nil (treated by the workflow engine
// as escalate).
package parsers

import (
	"regexp"
	"strings"
)

var codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// stripCodeFence removes a Markdown code-fence wrapper (```json ... ```)
// around content, if present, returning the inner text. Content without a
// fence is returned unchanged (trimmed).
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if match := codeFencePattern.FindStringSubmatch(trimmed); match != nil {
		return strings.TrimSpace(match[1])
	}
	return trimmed
}
