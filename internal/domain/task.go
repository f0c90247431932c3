// Package domain holds the core data model shared by the workflow engine,
// agent runtime, org chart, and persistence layer: tasks, artifacts, agent
// results, and the sum-type outputs each role produces.
package domain

import "time"

// TaskStatus is one of the fixed task lifecycle states.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskBlocked    TaskStatus = "blocked"
	TaskReview     TaskStatus = "review"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Task is a unit of work tracked for the lifetime of a run.
type Task struct {
	ID          string
	Description string
	Status      TaskStatus
	Complexity  *float64
	Role        string
	Artifacts   []Artifact
	ChildIDs    []string
	ParentID    string
}

// SetComplexity assigns Complexity exactly once; subsequent calls are
// ignored, matching the "assigned at most once" invariant.
func (t *Task) SetComplexity(v float64) {
	if t.Complexity != nil {
		return
	}
	t.Complexity = &v
}

// AddArtifact appends an artifact to the task's append-only artifact log.
func (t *Task) AddArtifact(a Artifact) {
	t.Artifacts = append(t.Artifacts, a)
}

// LastArtifact returns the most recently appended artifact, the one
// surfaced to a parent task as the subtask's summary.
func (t *Task) LastArtifact() (Artifact, bool) {
	if len(t.Artifacts) == 0 {
		return Artifact{}, false
	}
	return t.Artifacts[len(t.Artifacts)-1], true
}

// ArtifactType is one of the fixed artifact kinds, one per producing role.
type ArtifactType string

const (
	ArtifactAnalysis      ArtifactType = "analysis"
	ArtifactSpec          ArtifactType = "spec"
	ArtifactDecomposition ArtifactType = "decomposition"
	ArtifactCodeChanges   ArtifactType = "code_changes"
	ArtifactReview        ArtifactType = "review"
	ArtifactCoordination  ArtifactType = "coordination"
	ArtifactManagement    ArtifactType = "management"
	ArtifactOracle        ArtifactType = "oracle"
)

// ArtifactTypeForRole returns the fixed artifact type a given role produces.
func ArtifactTypeForRole(role string) ArtifactType {
	switch role {
	case "analyzer":
		return ArtifactAnalysis
	case "planner":
		return ArtifactSpec
	case "executor":
		return ArtifactCodeChanges
	case "reviewer":
		return ArtifactReview
	case "coordinator":
		return ArtifactCoordination
	case "steward":
		return ArtifactManagement
	case "oracle":
		return ArtifactOracle
	default:
		return ArtifactCoordination
	}
}

// Artifact is produced by a single agent completion.
type Artifact struct {
	Type      ArtifactType
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}
