package toolkit

import (
	"strings"
	"testing"
)

func TestTruncateLeavesShortStringsAlone(t *testing.T) {
	s := "hello"
	if got := Truncate(s, 100); got != s {
		t.Fatalf("got %q want %q", got, s)
	}
}

func TestTruncateKeepsPrefixAndSuffixWithMarker(t *testing.T) {
	s := strings.Repeat("a", 50) + strings.Repeat("b", 50)
	got := Truncate(s, 40)
	if len(got) > len(s) {
		t.Fatalf("truncated output should not be longer than input")
	}
	if !strings.Contains(got, "truncated") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
	if !strings.HasPrefix(got, "aaa") {
		t.Fatalf("expected prefix retained, got %q", got)
	}
	if !strings.HasSuffix(got, "bbb") {
		t.Fatalf("expected suffix retained, got %q", got)
	}
}

func TestTruncateTailKeepsOnlyTheEnd(t *testing.T) {
	s := strings.Repeat("x", 10) + "END"
	got := TruncateTail(s, 3)
	if got != "END" {
		t.Fatalf("got %q want END", got)
	}
}
