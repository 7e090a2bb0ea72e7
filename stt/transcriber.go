// Package stt turns materialised audio files into plain-text transcripts.
package stt

import "context"

// Transcriber abstracts speech-to-text backends. Implementations return the
// transcript text unmodified and do not retry.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}
