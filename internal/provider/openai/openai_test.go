package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashish-admin/stratech-orchestrator/internal/provider"
)

func TestInvoke_Mock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openAIResponse{
			ID: "chatcmpl-123",
			Choices: []openAIChoice{
				{Message: openAIMessage{Role: "assistant", Content: "Ward analysis from mock."}},
			},
			Usage: openAIUsage{PromptTokens: 10, CompletionTokens: 20},
			Model: "gpt-4o-mini",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	g := &OpenAIGateway{apiKey: "test-key", baseURL: server.URL, model: defaultModel}

	res, err := g.Invoke(context.Background(), &provider.Request{Query: "ward status"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.Content != "Ward analysis from mock." {
		t.Errorf("Unexpected content: %s", res.Content)
	}
	if res.InputTokens != 10 || res.OutputTokens != 20 {
		t.Errorf("Unexpected token usage: %d/%d", res.InputTokens, res.OutputTokens)
	}
	if res.Provider != "openai" {
		t.Errorf("Expected provider openai, got %s", res.Provider)
	}
}

func TestInvoke_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	g := &OpenAIGateway{apiKey: "test-key", baseURL: server.URL, model: defaultModel}

	if _, err := g.Invoke(context.Background(), &provider.Request{Query: "q"}); err == nil {
		t.Fatal("Expected an error on non-200 status")
	}
}

func TestInvoke_SystemPromptMapped(t *testing.T) {
	var got openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		resp := openAIResponse{
			Choices: []openAIChoice{{Message: openAIMessage{Content: "ok"}}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	g := &OpenAIGateway{apiKey: "test-key", baseURL: server.URL, model: defaultModel}

	_, err := g.Invoke(context.Background(), &provider.Request{
		Query:        "question",
		SystemPrompt: "analyst persona",
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("Expected system+user messages, got %+v", got.Messages)
	}
}
