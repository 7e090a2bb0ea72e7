// Package llm wraps the hosted text-generation service.
package llm

import "context"

// Completer sends one prompt and returns the raw text of the reply.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float32) (string, error)
}
