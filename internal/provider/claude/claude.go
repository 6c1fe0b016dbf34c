package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ashish-admin/stratech-orchestrator/internal/provider"
)

const defaultModel = "claude-3-5-sonnet-20241022"

type ClaudeGateway struct {
	apiKey  string
	baseURL string
	model   string
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	ID      string          `json:"id"`
	Content []claudeContent `json:"content"`
	Model   string          `json:"model"`
	Usage   claudeUsage     `json:"usage"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func New(apiKey string) provider.Gateway {
	return &ClaudeGateway{
		apiKey:  apiKey,
		baseURL: "https://api.anthropic.com/v1",
		model:   defaultModel,
	}
}

func (g *ClaudeGateway) Invoke(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	claudeReq := g.mapRequest(req)
	body, err := json.Marshal(claudeReq)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/messages", g.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", g.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("claude api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var claudeResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&claudeResp); err != nil {
		return nil, err
	}

	if len(claudeResp.Content) == 0 {
		return nil, fmt.Errorf("claude api returned no content")
	}

	return &provider.Result{
		ID:           claudeResp.ID,
		Content:      claudeResp.Content[0].Text,
		InputTokens:  claudeResp.Usage.InputTokens,
		OutputTokens: claudeResp.Usage.OutputTokens,
		Model:        claudeResp.Model,
		Provider:     g.Name(),
	}, nil
}

func (g *ClaudeGateway) mapRequest(req *provider.Request) claudeRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024 // the messages API requires max_tokens
	}
	return claudeRequest{
		Model:     g.model,
		MaxTokens: maxTokens,
		System:    req.SystemPrompt,
		Messages: []claudeMessage{
			{Role: "user", Content: req.Query},
		},
	}
}

func (g *ClaudeGateway) Name() string {
	return "claude"
}

func (g *ClaudeGateway) CostPerInputToken() float64 {
	return 0.00000300
}

func (g *ClaudeGateway) CostPerOutputToken() float64 {
	return 0.00001500
}
