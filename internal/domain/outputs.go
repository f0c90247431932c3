package domain

// PlannerOutputKind discriminates the planner sum type.
type PlannerOutputKind string

const (
	PlannerSpec          PlannerOutputKind = "spec"
	PlannerDecomposition PlannerOutputKind = "decomposition"
)

// SubtaskDefinition is one entry of a Decomposition's ordered subtask list.
type SubtaskDefinition struct {
	Description    string
	FileScope      []string
	SkipAnalysis   bool
}

// PlannerOutput is the sum type a planner's complete_task payload decodes
// into: either a Spec for a direct (non-decomposed) task, or a
// Decomposition describing the subtasks a composite task splits into.
type PlannerOutput struct {
	Kind PlannerOutputKind

	// Spec fields.
	NaturalLanguageSpec string
	AcceptanceCriteria   []string
	ExpectedFiles        []string
	FileScopePrefixes    []string

	// Decomposition fields.
	Subtasks                  []SubtaskDefinition
	Parallel                  bool
	SetupSubtask               *SubtaskDefinition
	CompositeAcceptanceCriteria []string
}

// AnalyzerOutput is the decoded complete_task payload produced by an
// analyzer agent.
type AnalyzerOutput struct {
	Complexity         float64
	Summary            string
	AffectedFiles      []string
	RecommendedApproach string
}

// complexityWords maps the accepted string shorthands to numeric complexity.
var complexityWords = map[string]float64{
	"simple":  0.25,
	"medium":  0.5,
	"complex": 0.85,
}

// ComplexityFromWord maps "simple"/"medium"/"complex" to their numeric
// complexity score. ok is false for any other string.
func ComplexityFromWord(word string) (float64, bool) {
	v, ok := complexityWords[word]
	return v, ok
}

// StewardActionKind discriminates the steward sum type.
type StewardActionKind string

const (
	StewardRetryMerge    StewardActionKind = "retry_merge"
	StewardRetryChildren StewardActionKind = "retry_children"
	StewardAddFixTask    StewardActionKind = "add_fix_task"
	StewardReDecompose   StewardActionKind = "re_decompose"
	StewardEscalate      StewardActionKind = "escalate"
)

// StewardAction is the sum type a steward's complete_task payload decodes
// into.
type StewardAction struct {
	Kind StewardActionKind

	RetryChildIndices []int    // retry_children
	Focus             string   // retry_children
	Description       string  // add_fix_task
}

// OracleActionKind discriminates the oracle sum type.
type OracleActionKind string

const (
	OracleNudgeRootSteward OracleActionKind = "nudge_root_steward"
	OracleRetryOnce        OracleActionKind = "retry_once"
	OracleEscalateToUser   OracleActionKind = "escalate_to_user"
)

// OracleAction is the sum type an oracle's complete_task payload decodes
// into.
type OracleAction struct {
	Kind    OracleActionKind
	Message string // nudge_root_steward
	Focus   string // retry_once
}
