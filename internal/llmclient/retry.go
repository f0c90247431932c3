package llmclient

import "strings"

// IsRetryable reports whether err's message indicates a transient failure
// the agent runtime should retry: rate limiting, a 5xx response, a timeout,
// or a reset connection. Any other error is fatal for the calling agent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())

	transientMarkers := []string{
		"429", "rate limit",
		"500", "internal server error",
		"502", "bad gateway",
		"503", "service unavailable",
		"504", "gateway timeout",
		"timeout", "deadline exceeded",
		"connection reset", "broken pipe",
		"connection refused",
	}
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
