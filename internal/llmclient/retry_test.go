package llmclient

import (
	"errors"
	"testing"
)

func TestIsRetryableRecognizesTransientMarkers(t *testing.T) {
	cases := []string{
		"received 429 too many requests",
		"rate limit exceeded",
		"upstream returned 503 service unavailable",
		"context deadline exceeded",
		"read: connection reset by peer",
	}
	for _, c := range cases {
		if !IsRetryable(errors.New(c)) {
			t.Fatalf("expected %q to be retryable", c)
		}
	}
}

func TestIsRetryableRejectsPermanentErrors(t *testing.T) {
	cases := []string{
		"401 unauthorized",
		"invalid api key",
		"model not found",
	}
	for _, c := range cases {
		if IsRetryable(errors.New(c)) {
			t.Fatalf("expected %q to not be retryable", c)
		}
	}
}

func TestIsRetryableHandlesNil(t *testing.T) {
	if IsRetryable(nil) {
		t.Fatalf("nil error should not be retryable")
	}
}
