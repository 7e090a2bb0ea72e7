// Package rate estimates speaking pace from a transcript alone. The audio
// duration is never measured; it is inferred from an assumed speaking rate.
package rate

import "strings"

// AssumedWPM is the fixed speaking rate used to infer elapsed time.
const AssumedWPM = 130

type Estimate struct {
	WordCount       int     `json:"wordCount"`
	DurationSeconds float64 `json:"durationSeconds"`
	WordsPerMinute  float64 `json:"wordsPerMinute"`
}

// EstimateDuration returns the inferred speaking time in seconds.
func EstimateDuration(transcript string) float64 {
	return float64(len(strings.Fields(transcript))) / AssumedWPM * 60
}

// Compute derives word count, inferred duration and words per minute. Words
// per minute is 0 when the inferred duration is 0.
func Compute(transcript string) Estimate {
	words := len(strings.Fields(transcript))
	duration := EstimateDuration(transcript)
	var wpm float64
	if duration > 0 {
		wpm = float64(words) / (duration / 60)
	}
	return Estimate{WordCount: words, DurationSeconds: duration, WordsPerMinute: wpm}
}
