package stt

import (
	"context"
	"fmt"
	"path/filepath"
)

type mockTranscriber struct{}

// NewMockTranscriber returns a transcriber that never leaves the process.
func NewMockTranscriber() Transcriber {
	return &mockTranscriber{}
}

func (m *mockTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("This is a mock transcript for %s. I goes to the store yesterday and buyed some apples.", filepath.Base(audioPath)), nil
}
