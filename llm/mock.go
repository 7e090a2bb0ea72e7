package llm

import (
	"context"
	"encoding/json"
	"strings"
)

type mockCompleter struct{}

// NewMockCompleter returns a completer that answers with a canned feedback
// object, for running the service without credentials.
func NewMockCompleter() Completer {
	return &mockCompleter{}
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string, _ float32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	words := len(strings.Fields(prompt))
	reply := map[string]any{
		"score":                7,
		"brief summary":        "Understandable speech with a few tense errors.",
		"specific suggestions": "Review irregular past tense verbs.",
		"CEFR level":           "B1",
		"overall tone":         "Neutral",
		"type of content":      "Conversation",
		"pronunciation":        "Clear, with steady pacing.",
		"corrections":          []string{"I goes -> I went", "buyed -> bought"},
		"prompt words":         words,
	}
	data, err := json.Marshal(reply)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
