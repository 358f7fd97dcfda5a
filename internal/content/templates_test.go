package content

import (
	"strings"
	"testing"
)

func TestFallbackDeterministic(t *testing.T) {
	first := Fallback("go concurrency")
	second := Fallback("go concurrency")
	if first != second {
		t.Errorf("same topic produced different templates: %q vs %q", first, second)
	}
}

func TestFallbackContainsTopic(t *testing.T) {
	topics := []string{"go concurrency", "coffee brewing", "indie music", "x"}
	for _, topic := range topics {
		got := Fallback(topic)
		if !strings.Contains(got, topic) {
			t.Errorf("Fallback(%q) = %q does not mention the topic", topic, got)
		}
	}
}

func TestFallbackEmptyTopic(t *testing.T) {
	got := Fallback("   ")
	if got == "" {
		t.Fatal("empty topic produced empty text")
	}
	if strings.Contains(got, "%s") {
		t.Errorf("unfilled template: %q", got)
	}
}
