// Package report holds the presentation model of one processed upload and
// its plain-text export.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrsingh-rishi/articulate/feedback"
	"github.com/mrsingh-rishi/articulate/rate"
)

// FileNameLayout is the timestamp layout embedded in export file names.
const FileNameLayout = "2006-01-02_15-04-05"

// Input gathers what the pipeline produced for one upload.
type Input struct {
	File        string
	Index       int
	Transcript  string
	Fingerprint string
	Style       feedback.Style
	Rate        rate.Estimate
	Outcome     feedback.Outcome
}

type Report struct {
	ID          string         `json:"id"`
	File        string         `json:"file"`
	Index       int            `json:"index"`
	CreatedAt   time.Time      `json:"createdAt"`
	Transcript  string         `json:"transcript"`
	Feedback    feedback.View  `json:"feedback"`
	Rate        rate.Estimate  `json:"rate"`
	Style       feedback.Style `json:"style"`
	Temperature float32        `json:"temperature"`
	Fingerprint string         `json:"fingerprint"`
	ParseFailed bool           `json:"parseFailed"`
	RawResponse string         `json:"rawResponse,omitempty"`

	result feedback.Result
}

func New(in Input, now time.Time) *Report {
	r := &Report{
		ID:          uuid.NewString(),
		File:        in.File,
		Index:       in.Index,
		CreatedAt:   now,
		Transcript:  in.Transcript,
		Feedback:    in.Outcome.Result.View(),
		Rate:        in.Rate,
		Style:       in.Style,
		Temperature: in.Outcome.Temperature,
		Fingerprint: in.Fingerprint,
		ParseFailed: in.Outcome.ParseFailed(),
		result:      in.Outcome.Result,
	}
	if r.ParseFailed {
		r.RawResponse = in.Outcome.Raw
	}
	return r
}

// Score is the integer score recorded in the history.
func (r *Report) Score() int {
	return r.Feedback.ScoreValue
}

// Text renders the downloadable plain-text export.
func (r *Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transcript:\n%s\n\n", r.Transcript)
	fmt.Fprintf(&b, "Grammar Score: %s/10\n", r.result.Field(feedback.KeyScore, "?"))
	fmt.Fprintf(&b, "CEFR Level: %s\n", r.result.Field(feedback.KeyCEFR, "?"))
	fmt.Fprintf(&b, "Tone: %s\n", r.result.Field(feedback.KeyTone, "?"))
	fmt.Fprintf(&b, "Content Type: %s\n", r.result.Field(feedback.KeyContentType, feedback.DefaultContentType))
	fmt.Fprintf(&b, "Pronunciation: %s\n", r.result.Field(feedback.KeyPronunciation, ""))
	fmt.Fprintf(&b, "Summary: %s\n", r.result.Field(feedback.KeySummary, ""))
	fmt.Fprintf(&b, "Suggestions:\n%s\n", r.result.Field(feedback.KeySuggestions, ""))
	fmt.Fprintf(&b, "Corrections:\n%s", strings.Join(r.result.Corrections(), "\n"))
	return b.String()
}

// FileName is the export file name for a download started at t.
func FileName(t time.Time) string {
	return "GrammarFeedback_" + t.Format(FileNameLayout) + ".txt"
}
