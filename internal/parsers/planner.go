package parsers

import (
	"encoding/json"

	"babylon/internal/domain"
)

type rawSubtask struct {
	Description  string   `json:"description"`
	FileScope    []string `json:"fileScope"`
	SkipAnalysis bool     `json:"skipAnalysis"`
}

type rawPlannerOutput struct {
	Kind string `json:"kind"`

	Spec struct {
		NaturalLanguageSpec string   `json:"naturalLanguageSpec"`
		AcceptanceCriteria  []string `json:"acceptanceCriteria"`
		ExpectedFiles       []string `json:"expectedFiles"`
		FileScopePrefixes   []string `json:"fileScopePrefixes"`
	} `json:"spec"`

	Decomposition struct {
		Subtasks                   []rawSubtask `json:"subtasks"`
		Parallel                    bool         `json:"parallel"`
		SetupSubtask                *rawSubtask  `json:"setupSubtask"`
		CompositeAcceptanceCriteria []string     `json:"compositeAcceptanceCriteria"`
	} `json:"decomposition"`
}

// ParsePlanner decodes a planner's complete_task content into the Spec or
// Decomposition sum type. On malformed input it returns a Spec whose body
// is the raw content with empty criteria lists.
func ParsePlanner(content string) domain.PlannerOutput {
	var raw rawPlannerOutput
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &raw); err != nil {
		return fallbackPlannerOutput(content)
	}

	switch raw.Kind {
	case string(domain.PlannerDecomposition):
		subtasks := make([]domain.SubtaskDefinition, 0, len(raw.Decomposition.Subtasks))
		for _, s := range raw.Decomposition.Subtasks {
			subtasks = append(subtasks, domain.SubtaskDefinition{
				Description:  s.Description,
				FileScope:    s.FileScope,
				SkipAnalysis: s.SkipAnalysis,
			})
		}
		var setup *domain.SubtaskDefinition
		if raw.Decomposition.SetupSubtask != nil {
			setup = &domain.SubtaskDefinition{
				Description:  raw.Decomposition.SetupSubtask.Description,
				FileScope:    raw.Decomposition.SetupSubtask.FileScope,
				SkipAnalysis: raw.Decomposition.SetupSubtask.SkipAnalysis,
			}
		}
		if len(subtasks) == 0 {
			return fallbackPlannerOutput(content)
		}
		return domain.PlannerOutput{
			Kind:                        domain.PlannerDecomposition,
			Subtasks:                    subtasks,
			Parallel:                    raw.Decomposition.Parallel,
			SetupSubtask:                setup,
			CompositeAcceptanceCriteria: raw.Decomposition.CompositeAcceptanceCriteria,
		}
	case string(domain.PlannerSpec):
		if raw.Spec.NaturalLanguageSpec == "" {
			return fallbackPlannerOutput(content)
		}
		return domain.PlannerOutput{
			Kind:                 domain.PlannerSpec,
			NaturalLanguageSpec:  raw.Spec.NaturalLanguageSpec,
			AcceptanceCriteria:   raw.Spec.AcceptanceCriteria,
			ExpectedFiles:        raw.Spec.ExpectedFiles,
			FileScopePrefixes:    raw.Spec.FileScopePrefixes,
		}
	default:
		return fallbackPlannerOutput(content)
	}
}

func fallbackPlannerOutput(content string) domain.PlannerOutput {
	return domain.PlannerOutput{
		Kind:                 domain.PlannerSpec,
		NaturalLanguageSpec:  content,
		AcceptanceCriteria:   []string{},
		ExpectedFiles:        []string{},
		FileScopePrefixes:    []string{},
	}
}
