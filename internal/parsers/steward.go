package parsers

import (
	"encoding/json"

	"babylon/internal/domain"
)

type rawStewardAction struct {
	Action      string `json:"action"`
	TaskIndices []int  `json:"taskIndices"`
	RetryFocus  string `json:"retryFocus"`
	Description string `json:"description"`
}

// ParseSteward decodes a steward's complete_task content into a
// StewardAction. On malformed input or an explicit null it returns nil —
// the workflow engine treats a nil action as escalate.
func ParseSteward(content string) *domain.StewardAction {
	trimmed := stripCodeFence(content)
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	var raw rawStewardAction
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil
	}

	switch raw.Action {
	case string(domain.StewardRetryMerge):
		return &domain.StewardAction{Kind: domain.StewardRetryMerge}
	case string(domain.StewardRetryChildren):
		return &domain.StewardAction{Kind: domain.StewardRetryChildren, RetryChildIndices: raw.TaskIndices, Focus: raw.RetryFocus}
	case string(domain.StewardAddFixTask):
		if raw.Description == "" {
			return nil
		}
		return &domain.StewardAction{Kind: domain.StewardAddFixTask, Description: raw.Description}
	case string(domain.StewardReDecompose):
		return &domain.StewardAction{Kind: domain.StewardReDecompose}
	case string(domain.StewardEscalate):
		return &domain.StewardAction{Kind: domain.StewardEscalate}
	default:
		return nil
	}
}
