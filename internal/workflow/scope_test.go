package workflow

import (
	"testing"

	"babylon/internal/domain"
)

func TestScopesOverlap(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"src/api", "src/api", true},
		{"src/api", "src/api/handlers", true},
		{"src/api/handlers", "src/api", true},
		{"src/api", "src/web", false},
		{"", "src/web", true},
		{"src/api/", "src/api", true},
	}
	for _, c := range cases {
		if got := scopesOverlap(c.a, c.b); got != c.want {
			t.Errorf("scopesOverlap(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestHaveOverlappingFileScopes(t *testing.T) {
	disjoint := []domain.SubtaskDefinition{
		{Description: "a", FileScope: []string{"src/api"}},
		{Description: "b", FileScope: []string{"src/web"}},
	}
	if haveOverlappingFileScopes(disjoint) {
		t.Fatalf("expected disjoint scopes to not overlap")
	}

	overlapping := []domain.SubtaskDefinition{
		{Description: "a", FileScope: []string{"src/api"}},
		{Description: "b", FileScope: []string{"src/api/handlers"}},
	}
	if !haveOverlappingFileScopes(overlapping) {
		t.Fatalf("expected overlapping scopes to be detected")
	}

	unknownScope := []domain.SubtaskDefinition{
		{Description: "a", FileScope: nil},
		{Description: "b", FileScope: []string{"src/web"}},
	}
	if !haveOverlappingFileScopes(unknownScope) {
		t.Fatalf("expected empty file scope to force an overlap")
	}
}

func TestIsDuplicateOfSetup(t *testing.T) {
	if !isDuplicateOfSetup("Set up the project", "set up the project") {
		t.Fatalf("expected exact case-insensitive match to be a duplicate")
	}
	if !isDuplicateOfSetup("Install dependencies and initialize the database schema", "Initialize the database schema and install dependencies") {
		t.Fatalf("expected fuzzy word-overlap match to be a duplicate")
	}
	if isDuplicateOfSetup("Write the README", "Initialize the database schema") {
		t.Fatalf("expected unrelated descriptions to not be a duplicate")
	}
}

func TestFilterDuplicateSetup(t *testing.T) {
	setup := &domain.SubtaskDefinition{Description: "Initialize the database schema"}
	subtasks := []domain.SubtaskDefinition{
		{Description: "Initialize the database schema"},
		{Description: "Write the API handler"},
	}
	out := filterDuplicateSetup(subtasks, setup)
	if len(out) != 1 || out[0].Description != "Write the API handler" {
		t.Fatalf("expected duplicate setup subtask filtered out, got %+v", out)
	}

	if out := filterDuplicateSetup(subtasks, nil); len(out) != 2 {
		t.Fatalf("expected no filtering without a setup task, got %+v", out)
	}
}
