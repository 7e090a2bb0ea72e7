package llm

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mrsingh-rishi/articulate/config"
)

type capturedRequest struct {
	Model          string  `json:"model"`
	Temperature    float32 `json:"temperature"`
	HasTemperature bool    `json:"-"`
	Messages       []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

func newServer(t *testing.T, status int, body string, captured *capturedRequest) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode request: %v", err)
		}
		data, _ := json.Marshal(raw)
		if captured != nil {
			_ = json.Unmarshal(data, captured)
			_, captured.HasTemperature = raw["temperature"]
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/v1"
}

const okBody = `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4",
"choices":[{"index":0,"message":{"role":"assistant","content":"{\"score\": 8}"},"finish_reason":"stop"}],
"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`

func TestCompleteSendsPrompt(t *testing.T) {
	var captured capturedRequest
	baseURL := newServer(t, http.StatusOK, okBody, &captured)

	client, err := NewOpenAIClient(NewAPIClient(config.OpenAIConfig{APIKey: "sk-test", BaseURL: baseURL}), "gpt-4", false, zerolog.Nop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	out, err := client.Complete(context.Background(), "grade this", 0.7)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != `{"score": 8}` {
		t.Fatalf("unexpected content %q", out)
	}
	if captured.Model != "gpt-4" {
		t.Fatalf("expected gpt-4, got %s", captured.Model)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != "user" || captured.Messages[0].Content != "grade this" {
		t.Fatalf("unexpected messages %+v", captured.Messages)
	}
	if math.Abs(float64(captured.Temperature)-0.7) > 1e-6 {
		t.Fatalf("expected temperature 0.7, got %v", captured.Temperature)
	}
	if captured.ResponseFormat != nil {
		t.Fatalf("expected no response_format without json mode")
	}
}

func TestCompleteZeroTemperatureIsSent(t *testing.T) {
	var captured capturedRequest
	baseURL := newServer(t, http.StatusOK, okBody, &captured)

	client, _ := NewOpenAIClient(NewAPIClient(config.OpenAIConfig{APIKey: "sk-test", BaseURL: baseURL}), "gpt-4o", true, zerolog.Nop())
	if _, err := client.Complete(context.Background(), "grade this", 0); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !captured.HasTemperature {
		t.Fatal("expected temperature field on the wire for deterministic scoring")
	}
	if captured.Temperature > 1e-6 {
		t.Fatalf("expected near-zero temperature, got %v", captured.Temperature)
	}
	if captured.ResponseFormat == nil || captured.ResponseFormat.Type != "json_object" {
		t.Fatalf("expected json_object response format, got %+v", captured.ResponseFormat)
	}
}

func TestCompleteError(t *testing.T) {
	baseURL := newServer(t, http.StatusTooManyRequests, `{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`, nil)

	client, _ := NewOpenAIClient(NewAPIClient(config.OpenAIConfig{APIKey: "sk-test", BaseURL: baseURL}), "gpt-4", false, zerolog.Nop())
	if _, err := client.Complete(context.Background(), "grade this", 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestCompleteNoChoices(t *testing.T) {
	baseURL := newServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","choices":[]}`, nil)

	client, _ := NewOpenAIClient(NewAPIClient(config.OpenAIConfig{APIKey: "sk-test", BaseURL: baseURL}), "gpt-4", false, zerolog.Nop())
	if _, err := client.Complete(context.Background(), "grade this", 0); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNewOpenAIClientValidation(t *testing.T) {
	if _, err := NewOpenAIClient(nil, "gpt-4", false, zerolog.Nop()); err == nil {
		t.Fatal("expected error without client")
	}
	if _, err := NewOpenAIClient(NewAPIClient(config.OpenAIConfig{APIKey: "k"}), "", false, zerolog.Nop()); err == nil {
		t.Fatal("expected error without model")
	}
}

func TestMockCompleterReturnsJSON(t *testing.T) {
	out, err := NewMockCompleter().Complete(context.Background(), "some prompt", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("expected json, got %q", out)
	}
	if decoded["CEFR level"] != "B1" {
		t.Fatalf("unexpected mock reply %v", decoded)
	}
}
