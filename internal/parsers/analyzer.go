package parsers

import (
	"encoding/json"

	"babylon/internal/domain"
)

const analyzerSummaryFallbackLen = 280

type rawAnalyzerOutput struct {
	Complexity          any      `json:"complexity"`
	Summary             string   `json:"summary"`
	AffectedFiles       []string `json:"affectedFiles"`
	RecommendedApproach string   `json:"recommendedApproach"`
}

// ParseAnalyzer decodes an analyzer's complete_task content. On malformed
// input it returns a safe default: complexity 0.5 and a summary sliced
// from the raw content.
func ParseAnalyzer(content string) domain.AnalyzerOutput {
	var raw rawAnalyzerOutput
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &raw); err != nil {
		return fallbackAnalyzerOutput(content)
	}

	complexity, ok := coerceComplexity(raw.Complexity)
	if !ok {
		complexity = 0.5
	}

	summary := raw.Summary
	if summary == "" {
		summary = sliceForSummary(content)
	}

	return domain.AnalyzerOutput{
		Complexity:          complexity,
		Summary:             summary,
		AffectedFiles:       raw.AffectedFiles,
		RecommendedApproach: raw.RecommendedApproach,
	}
}

func fallbackAnalyzerOutput(content string) domain.AnalyzerOutput {
	return domain.AnalyzerOutput{
		Complexity: 0.5,
		Summary:    sliceForSummary(content),
	}
}

func sliceForSummary(content string) string {
	if len(content) <= analyzerSummaryFallbackLen {
		return content
	}
	return content[:analyzerSummaryFallbackLen]
}

// coerceComplexity accepts either a numeric complexity in [0,1] or one of
// the "simple"/"medium"/"complex" shorthand strings.
func coerceComplexity(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if t < 0 || t > 1 {
			return 0, false
		}
		return t, true
	case string:
		return domain.ComplexityFromWord(t)
	default:
		return 0, false
	}
}
