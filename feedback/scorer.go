package feedback

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mrsingh-rishi/articulate/llm"
)

type Options struct {
	Style      Style
	Randomness bool
}

// Outcome carries the parsed result together with the raw reply. When the
// reply could not be parsed, Result is Fallback() and ParseErr is set.
type Outcome struct {
	Raw         string
	Result      Result
	ParseErr    error
	Temperature float32
}

// ParseFailed reports whether the fallback result was used.
func (o Outcome) ParseFailed() bool {
	return o.ParseErr != nil
}

type Scorer struct {
	completer llm.Completer
	logger    zerolog.Logger
}

func NewScorer(completer llm.Completer, logger zerolog.Logger) (*Scorer, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	return &Scorer{
		completer: completer,
		logger:    logger.With().Str("component", "feedback").Logger(),
	}, nil
}

// Score asks the model to assess transcript. Only a failed model call is
// returned as an error; an unparseable reply is recovered into the outcome.
func (s *Scorer) Score(ctx context.Context, transcript string, opts Options) (Outcome, error) {
	temperature := Temperature(opts.Randomness)
	raw, err := s.completer.Complete(ctx, BuildPrompt(transcript, opts.Style), temperature)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "request feedback")
	}

	out := Outcome{Raw: raw, Temperature: temperature}
	result, err := Parse(raw)
	if err != nil {
		s.logger.Warn().Err(err).Int("rawBytes", len(raw)).Msg("feedback reply not parseable, using fallback")
		out.Result = Fallback()
		out.ParseErr = err
		return out, nil
	}
	if issues := result.Issues(); len(issues) > 0 {
		s.logger.Debug().Strs("issues", issues).Msg("dropped malformed feedback fields")
	}
	out.Result = result
	return out, nil
}
