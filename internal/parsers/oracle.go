package parsers

import (
	"encoding/json"

	"babylon/internal/domain"
)

type rawOracleAction struct {
	Action  string `json:"action"`
	Message string `json:"message"`
	Focus   string `json:"focus"`
}

// ParseOracle decodes an oracle's complete_task content into an
// OracleAction. On malformed input or an explicit null it returns nil —
// the workflow engine treats a nil action as escalate.
func ParseOracle(content string) *domain.OracleAction {
	trimmed := stripCodeFence(content)
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	var raw rawOracleAction
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil
	}

	switch raw.Action {
	case string(domain.OracleNudgeRootSteward):
		if raw.Message == "" {
			return nil
		}
		return &domain.OracleAction{Kind: domain.OracleNudgeRootSteward, Message: raw.Message}
	case string(domain.OracleRetryOnce):
		return &domain.OracleAction{Kind: domain.OracleRetryOnce, Focus: raw.Focus}
	case string(domain.OracleEscalateToUser):
		return &domain.OracleAction{Kind: domain.OracleEscalateToUser}
	default:
		return nil
	}
}
