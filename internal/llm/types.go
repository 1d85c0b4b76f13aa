package llm

import (
	"context"
	"net/http"
	"time"
)

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_llm.go -package=mocks semantic-memory/internal/llm Embedder,Generator

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, params GenerateParams) (string, error)
}

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateParams holds sampling parameters for a generation request.
type GenerateParams struct {
	// Model overrides the client's default model when set.
	Model string

	// MaxTokens limits the generated length. 0 means no limit.
	MaxTokens int

	Temperature float32

	// Stop sequences end generation early.
	Stop []string
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
