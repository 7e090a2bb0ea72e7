package llm

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/articulate/config"
)

// NewAPIClient builds the OpenAI client shared by transcription and feedback.
func NewAPIClient(cfg config.OpenAIConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

type OpenAIClient struct {
	Client   *openai.Client
	Model    string // chat model used for scoring
	JSONMode bool   // request response_format=json_object
	logger   zerolog.Logger
}

func NewOpenAIClient(client *openai.Client, model string, jsonMode bool, logger zerolog.Logger) (*OpenAIClient, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	if model == "" {
		return nil, errors.New("model is required")
	}
	return &OpenAIClient{
		Client:   client,
		Model:    model,
		JSONMode: jsonMode,
		logger:   logger.With().Str("component", "llm").Str("model", model).Logger(),
	}, nil
}

// Complete sends the prompt as a single user message and returns the content
// of the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: wireTemperature(temperature),
	}
	if c.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	c.logger.Debug().
		Int("promptTokens", resp.Usage.PromptTokens).
		Int("completionTokens", resp.Usage.CompletionTokens).
		Msg("chat completion received")
	return resp.Choices[0].Message.Content, nil
}

// The request struct drops a zero temperature (omitempty), which would leave
// the API default of 1.0 in effect.
func wireTemperature(t float32) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
