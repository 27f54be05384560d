package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenRouterClient_Chat(t *testing.T) {
	t.Run("successful chat", func(t *testing.T) {
		var got openRouterRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.Method != http.MethodPost {
				t.Errorf("unexpected method: %s", r.Method)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}
			if r.Header.Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID header")
			}
			json.NewDecoder(r.Body).Decode(&got)

			resp := map[string]any{
				"id":    "test-id",
				"model": "google/gemini-2.5-flash",
				"choices": []map[string]any{
					{
						"message":       map[string]any{"role": "assistant", "content": `{"summary":"ok"}`},
						"finish_reason": "stop",
					},
				},
				"usage": map[string]any{
					"prompt_tokens":     10,
					"completion_tokens": 8,
					"total_tokens":      18,
					"cost":              0.0002,
				},
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: server.URL})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{
				{Role: "system", Content: "json only"},
				{Role: "user", Content: "format this"},
			},
			Temperature: 0.3,
			MaxTokens:   16000,
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}

		if result.Content != `{"summary":"ok"}` {
			t.Errorf("Content = %q", result.Content)
		}
		if result.TotalTokens != 18 {
			t.Errorf("TotalTokens = %d, want 18", result.TotalTokens)
		}
		if result.RequestID == "" {
			t.Error("RequestID not generated")
		}

		if got.Model != DefaultModel {
			t.Errorf("request model = %q, want %q", got.Model, DefaultModel)
		}
		if got.Temperature != 0.3 || got.MaxTokens != 16000 {
			t.Errorf("request temperature/max_tokens = %v/%d", got.Temperature, got.MaxTokens)
		}
		if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "format this" {
			t.Errorf("request messages = %+v", got.Messages)
		}
	})

	t.Run("non-2xx is a StatusError with body and no retry", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limited"}`))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("Chat() error = %v, want *StatusError", err)
		}
		if statusErr.StatusCode != http.StatusTooManyRequests {
			t.Errorf("StatusCode = %d", statusErr.StatusCode)
		}
		if statusErr.Body != `{"error":"rate limited"}` {
			t.Errorf("Body = %q", statusErr.Body)
		}
		if calls != 1 {
			t.Errorf("server called %d times, want 1", calls)
		}
	})

	t.Run("empty choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"x","choices":[]}`))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
		if !errors.Is(err, ErrEmptyResponse) {
			t.Errorf("Chat() error = %v, want ErrEmptyResponse", err)
		}
	})

	t.Run("api error in 200 body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":{"message":"model overloaded","code":"overloaded"}}`))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL})
		if _, err := client.Chat(context.Background(), &ChatRequest{}); err == nil {
			t.Error("expected error for API-level error")
		}
	})

	t.Run("multipart content is flattened", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[{"message":{"content":[{"type":"text","text":"{\"a\":"},{"type":"text","text":"1}"}]}}]}`))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL})
		result, err := client.Chat(context.Background(), &ChatRequest{})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.Content != `{"a":1}` {
			t.Errorf("Content = %q", result.Content)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: server.URL})
		if _, err := client.Chat(ctx, &ChatRequest{}); !errors.Is(err, context.Canceled) {
			t.Errorf("Chat() error = %v, want context.Canceled", err)
		}
	})
}

func TestOpenAIClient_Chat(t *testing.T) {
	t.Run("successful chat", func(t *testing.T) {
		var got map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			json.NewDecoder(r.Body).Decode(&got)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
				"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{}"}}],
				"usage":{"prompt_tokens":5,"completion_tokens":1,"total_tokens":6}
			}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages:    []Message{{Role: "system", Content: "s"}, {Role: "user", Content: "u"}},
			Temperature: 0.3,
			MaxTokens:   16000,
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.Content != "{}" || result.TotalTokens != 6 {
			t.Errorf("result = %+v", result)
		}
		if got["temperature"] != 0.3 {
			t.Errorf("temperature = %v", got["temperature"])
		}
		if got["max_tokens"] != float64(16000) {
			t.Errorf("max_tokens = %v", got["max_tokens"])
		}
	})

	t.Run("non-2xx is a StatusError with no retry", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL})
		_, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "u"}}})

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("Chat() error = %v, want *StatusError", err)
		}
		if statusErr.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("StatusCode = %d", statusErr.StatusCode)
		}
		if calls != 1 {
			t.Errorf("server called %d times, want 1", calls)
		}
	})
}
