package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"semantic-memory/internal/memerr"
)

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	Retry   RetryConfig
	client  *http.Client
}

// NewClient creates a new LLM client.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Retry:   DefaultRetryConfig(),
		client:  newHTTPClient(timeout),
	}
}

// ChatRequest represents the request payload for chat completions.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float32   `json:"temperature"`
	Stop        []string  `json:"stop,omitempty"`
	Stream      bool      `json:"stream"`
}

// ChatChoice represents a single choice in the chat response.
type ChatChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatResponse represents the response from the chat completions API.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Choices []ChatChoice `json:"choices"`
}

// Generate sends prompt as a single user message and returns the reply text.
func (c *Client) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", memerr.Validation("prompt", "cannot be empty")
	}
	model := params.Model
	if model == "" {
		model = c.Model
	}

	url := fmt.Sprintf("%s/v1/chat/completions", c.BaseURL)
	payload := ChatRequest{
		Model:       model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		Stop:        params.Stop,
	}

	return withRetry(ctx, c.Retry, "generate", url, func(ctx context.Context) (string, error) {
		var resp ChatResponse
		if err := doJSON(ctx, c.client, http.MethodPost, url, c.APIKey, payload, &resp); err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", &memerr.ParseError{Source: "chat response", Index: -1, Err: fmt.Errorf("no choices returned")}
		}
		return resp.Choices[0].Message.Content, nil
	})
}
