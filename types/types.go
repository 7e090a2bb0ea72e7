package types

import "time"

// Stage names a step of the feedback pipeline as seen by the browser.
type Stage string

const (
	StageQueued        Stage = "queued"
	StageTranscribing  Stage = "transcribing"
	StageTranscribed   Stage = "transcribed"
	StageAnalyzing     Stage = "analyzing"
	StageParseFallback Stage = "parse_fallback"
	StageComplete      Stage = "complete"
	StageFailed        Stage = "failed"
)

// StageEvent reports progress of one upload within a session.
type StageEvent struct {
	SessionID string    `json:"sessionId"`
	UploadID  string    `json:"uploadId"`
	File      string    `json:"file"`
	Stage     Stage     `json:"stage"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier receives stage events. A nil Notifier drops them.
type Notifier func(StageEvent)

// Notify calls n when it is set.
func (n Notifier) Notify(ev StageEvent) {
	if n != nil {
		n(ev)
	}
}
