package workflow

import (
	"strings"

	"babylon/internal/domain"
)

// normalizeScope treats an empty scope entry as "." and trims a trailing
// slash, so "src/", "src", and "" are compared consistently.
func normalizeScope(s string) string {
	s = strings.TrimSuffix(s, "/")
	if s == "" {
		return "."
	}
	return s
}

// scopesOverlap reports whether two file-scope path prefixes conflict: an
// empty scope overlaps everything, and one path overlaps another if they
// are equal or one is a path-prefix of the other.
func scopesOverlap(a, b string) bool {
	a, b = normalizeScope(a), normalizeScope(b)
	if a == "." || b == "." {
		return true
	}
	if a == b {
		return true
	}
	return strings.HasPrefix(b, a+"/") || strings.HasPrefix(a, b+"/")
}

// haveOverlappingFileScopes reports whether any two subtasks' declared
// file scopes conflict. A subtask with an empty scope list overlaps every
// other subtask (its blast radius is unknown), forcing a downgrade to
// sequential execution.
func haveOverlappingFileScopes(subtasks []domain.SubtaskDefinition) bool {
	for i := 0; i < len(subtasks); i++ {
		for j := i + 1; j < len(subtasks); j++ {
			if anyScopesOverlap(subtasks[i].FileScope, subtasks[j].FileScope) {
				return true
			}
		}
	}
	return false
}

func anyScopesOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	for _, pa := range a {
		for _, pb := range b {
			if scopesOverlap(pa, pb) {
				return true
			}
		}
	}
	return false
}

// contentWords lower-cases s and returns its words longer than 2
// characters, for the fuzzy duplicate-setup comparison.
func contentWords(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		trimmed := strings.Trim(f, ".,!?;:()[]{}\"'")
		if len(trimmed) > 2 {
			words = append(words, trimmed)
		}
	}
	return words
}

// isDuplicateOfSetup reports whether subtaskDesc is the same task as
// setupDesc: an exact case-insensitive/trimmed match, or a fuzzy match
// where at least 2 of the setup's content words (length > 2) also appear
// in the subtask description.
func isDuplicateOfSetup(subtaskDesc, setupDesc string) bool {
	a := strings.TrimSpace(strings.ToLower(subtaskDesc))
	b := strings.TrimSpace(strings.ToLower(setupDesc))
	if a == b {
		return true
	}

	setupWords := contentWords(setupDesc)
	if len(setupWords) == 0 {
		return false
	}
	subtaskWords := make(map[string]bool)
	for _, w := range contentWords(subtaskDesc) {
		subtaskWords[w] = true
	}

	matches := 0
	for _, w := range setupWords {
		if subtaskWords[w] {
			matches++
		}
	}
	return matches >= 2
}

// filterDuplicateSetup drops any subtask that duplicates the setup task,
// per runDecomposition step 1.
func filterDuplicateSetup(subtasks []domain.SubtaskDefinition, setup *domain.SubtaskDefinition) []domain.SubtaskDefinition {
	if setup == nil {
		return subtasks
	}
	out := make([]domain.SubtaskDefinition, 0, len(subtasks))
	for _, s := range subtasks {
		if isDuplicateOfSetup(s.Description, setup.Description) {
			continue
		}
		out = append(out, s)
	}
	return out
}
