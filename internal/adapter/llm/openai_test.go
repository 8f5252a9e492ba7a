package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskpilot/internal/domain"
	"taskpilot/internal/infra/config"
)

func newTestLogger() *slog.Logger {
	return slog.Default()
}

func TestOpenAIProviderChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth: %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content-type: %s", r.Header.Get("Content-Type"))
		}

		resp := openaiResponse{
			ID:    "chatcmpl-123",
			Model: "gpt-4",
			Choices: []openaiChoice{
				{
					Index: 0,
					Message: openaiMessage{
						Role:    "assistant",
						Content: "Hello! How can I help?",
					},
					FinishReason: "stop",
				},
			},
			Usage: openaiUsage{
				PromptTokens:     10,
				CompletionTokens: 8,
				TotalTokens:      18,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "gpt-4",
	}, newTestLogger())

	req := domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "Hello"},
		},
	}

	resp, err := provider.Chat(context.Background(), req)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if resp.Message.Content != "Hello! How can I help?" {
		t.Errorf("Content = %q, want %q", resp.Message.Content, "Hello! How can I help?")
	}
	if resp.Usage.TotalTokens != 18 {
		t.Errorf("TotalTokens = %d, want 18", resp.Usage.TotalTokens)
	}
}

func TestOpenAIProviderChatWithToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openaiResponse{
			ID:    "chatcmpl-456",
			Model: "gpt-4",
			Choices: []openaiChoice{
				{
					Index: 0,
					Message: openaiMessage{
						Role: "assistant",
						ToolCalls: []openaiToolCall{
							{
								ID:   "call_1",
								Type: "function",
								Function: openaiToolCallFunction{
									Name:      "create_asana_task",
									Arguments: `{"task_name":"Buy milk"}`,
								},
							},
						},
					},
					FinishReason: "tool_calls",
				},
			},
			Usage: openaiUsage{TotalTokens: 25},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{
		BaseURL: server.URL,
		Model:   "gpt-4",
	}, newTestLogger())

	resp, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "add buy milk"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.Message.ToolCalls))
	}
	if resp.Message.ToolCalls[0].Name != "create_asana_task" {
		t.Errorf("tool name = %q, want %q", resp.Message.ToolCalls[0].Name, "create_asana_task")
	}
}

func TestOpenAIProviderEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openaiResponse{ID: "chatcmpl-789", Model: "gpt-4"})
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{
		BaseURL: server.URL,
		Model:   "gpt-4",
	}, newTestLogger())

	_, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, domain.ErrEmptyCompletion) {
		t.Errorf("want ErrEmptyCompletion, got %v", err)
	}
}

func TestOpenAIProviderHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit exceeded"}}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{
		BaseURL: server.URL,
		Model:   "gpt-4",
	}, newTestLogger())

	_, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, domain.ErrRateLimit) {
		t.Errorf("want ErrRateLimit, got %v", err)
	}
}

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimit},
		{http.StatusUnauthorized, domain.ErrAuthInvalid},
		{http.StatusForbidden, domain.ErrAuthInvalid},
		{http.StatusRequestEntityTooLarge, domain.ErrContextOverflow},
		{http.StatusInternalServerError, domain.ErrProviderError},
		{http.StatusBadGateway, domain.ErrProviderError},
	}
	for _, tt := range tests {
		err := mapHTTPError(tt.status, []byte("body"))
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: want %v, got %v", tt.status, tt.want, err)
		}
	}

	// 400 maps to a plain error, not a sentinel.
	err := mapHTTPError(http.StatusBadRequest, []byte("bad request"))
	if errors.Is(err, domain.ErrRateLimit) || errors.Is(err, domain.ErrAuthInvalid) {
		t.Errorf("400 should not map to a sentinel: %v", err)
	}
}

func TestToOpenAIRequestToolResultMessage(t *testing.T) {
	req := domain.ChatRequest{
		Model: "gpt-4",
		Messages: []domain.Message{
			{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{
				{ID: "call_1", Name: "create_asana_task", Arguments: json.RawMessage(`{"task_name":"x"}`)},
			}},
			{Role: domain.RoleTool, Content: `{"gid":"1"}`, Name: "create_asana_task", ToolCalls: []domain.ToolCall{
				{ID: "call_1"},
			}},
		},
	}

	oaiReq := toOpenAIRequest(req)
	if len(oaiReq.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(oaiReq.Messages))
	}

	asst := oaiReq.Messages[0]
	if len(asst.ToolCalls) != 1 || asst.ToolCalls[0].ID != "call_1" {
		t.Errorf("assistant tool calls not mapped: %+v", asst.ToolCalls)
	}
	if asst.ToolCalls[0].Type != "function" {
		t.Errorf("tool call type = %q, want function", asst.ToolCalls[0].Type)
	}

	toolMsg := oaiReq.Messages[1]
	if toolMsg.ToolCallID != "call_1" {
		t.Errorf("tool_call_id = %q, want call_1", toolMsg.ToolCallID)
	}
	if len(toolMsg.ToolCalls) != 0 {
		t.Errorf("tool message should not carry tool_calls on the wire: %+v", toolMsg.ToolCalls)
	}
}

func TestDoJSONRequestBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if len(body) == 0 {
			t.Error("expected request body")
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := doJSONRequest(context.Background(), server.Client(), server.URL, []byte(`{"a":1}`), nil)
	if err != nil {
		t.Fatalf("doJSONRequest: %v", err)
	}
}
