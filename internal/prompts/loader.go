// Package prompts holds the fixed system-prompt asset for each agent role,
// embedded at build time.
//
// Grounded on the teacher's internal/prompts/loader.go embed.FS +
// name-to-content map idiom. Simplified from a template-with-variable-
// substitution loader to a fixed per-role lookup: babylon's prompts are
// static role instructions, and the per-task context (working directory,
// analysis, review notes, ...) is built separately in
// internal/workflow/context.go and passed as the user turn rather than
// substituted into the system prompt.
package prompts

import (
	"embed"
	"fmt"
)

//go:embed *.md
var promptFS embed.FS

// Loader resolves a role name to its embedded system-prompt markdown.
type Loader struct {
	prompts map[string]string
}

// New loads every embedded *.md asset, keyed by filename without extension.
func New() (*Loader, error) {
	entries, err := promptFS.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("prompts: read embedded assets: %w", err)
	}

	l := &Loader{prompts: make(map[string]string, len(entries))}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		content, err := promptFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("prompts: read %s: %w", name, err)
		}
		role := name[:len(name)-len(".md")]
		l.prompts[role] = string(content)
	}
	return l, nil
}

// SystemPrompt returns the system prompt for role, or an empty string if
// the role has no asset. Implements internal/workflow.PromptProvider.
func (l *Loader) SystemPrompt(role string) string {
	return l.prompts[role]
}
