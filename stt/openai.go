package stt

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// WhisperTranscriber sends audio files to the OpenAI transcription endpoint.
type WhisperTranscriber struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

func NewWhisperTranscriber(client *openai.Client, model string, logger zerolog.Logger) (*WhisperTranscriber, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{
		client: client,
		model:  model,
		logger: logger.With().Str("component", "stt").Str("model", model).Logger(),
	}, nil
}

// Transcribe uploads the file with default decoding settings.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: audioPath,
	})
	if err != nil {
		return "", errors.Wrap(err, "whisper transcription")
	}
	w.logger.Debug().Int("chars", len(resp.Text)).Msg("transcription received")
	return resp.Text, nil
}
