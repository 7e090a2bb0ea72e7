package rate

import (
	"math"
	"strings"
	"testing"
)

func TestComputeEmpty(t *testing.T) {
	for _, transcript := range []string{"", "   ", "\n\t"} {
		est := Compute(transcript)
		if est.WordCount != 0 || est.DurationSeconds != 0 || est.WordsPerMinute != 0 {
			t.Fatalf("expected zero estimate for %q, got %+v", transcript, est)
		}
	}
}

func TestComputeOneMinute(t *testing.T) {
	transcript := strings.TrimSpace(strings.Repeat("word ", 130))

	est := Compute(transcript)
	if est.WordCount != 130 {
		t.Fatalf("expected 130 words, got %d", est.WordCount)
	}
	if est.DurationSeconds != 60.0 {
		t.Fatalf("expected 60.0 seconds, got %v", est.DurationSeconds)
	}
	if est.WordsPerMinute != 130.0 {
		t.Fatalf("expected 130.0 wpm, got %v", est.WordsPerMinute)
	}
}

func TestComputeMatchesFormula(t *testing.T) {
	tests := []string{
		"hello",
		"I goes to the store yesterday",
		"multiple   spaces\tand\nnewlines here",
		strings.Repeat("a b c ", 97),
	}
	for _, transcript := range tests {
		est := Compute(transcript)
		words := float64(len(strings.Fields(transcript)))
		if est.DurationSeconds != words/AssumedWPM*60 {
			t.Fatalf("duration mismatch for %q: %v", transcript, est.DurationSeconds)
		}
		want := words / (est.DurationSeconds / 60)
		if math.Abs(est.WordsPerMinute-want) > 1e-9 {
			t.Fatalf("wpm mismatch for %q: got %v want %v", transcript, est.WordsPerMinute, want)
		}
	}
}
