package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"semantic-memory/internal/memerr"
)

// EmbeddingsClient calls an OpenAI-compatible /v1/embeddings endpoint.
type EmbeddingsClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	ExpectedSize int // 0 accepts any size
	Retry        RetryConfig
	client       *http.Client
}

// NewEmbeddingsClient creates a new embeddings client.
// All embeddings returned by EmbedTexts are validated against expectedSize.
func NewEmbeddingsClient(baseURL, apiKey, model string, expectedSize int, timeout time.Duration) *EmbeddingsClient {
	return &EmbeddingsClient{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       apiKey,
		Model:        model,
		ExpectedSize: expectedSize,
		Retry:        DefaultRetryConfig(),
		client:       newHTTPClient(timeout),
	}
}

// EmbeddingsRequest represents the request payload for embeddings API.
type EmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingData represents a single embedding in the response.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingsResponse represents the response from the embeddings API.
type EmbeddingsResponse struct {
	Data []EmbeddingData `json:"data"`
}

// Embed returns the embedding of a single text.
func (c *EmbeddingsClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, memerr.Validation("text", "cannot be empty")
	}
	vecs, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts generates embeddings for the given texts, one float32 vector per input.
// Failed calls are retried; what is still failing comes back as *memerr.TransportError.
func (c *EmbeddingsClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, memerr.Validation("texts", "empty input array")
	}

	url := fmt.Sprintf("%s/v1/embeddings", c.BaseURL)
	payload := EmbeddingsRequest{Model: c.Model, Input: texts}

	return withRetry(ctx, c.Retry, "embed", url, func(ctx context.Context) ([][]float32, error) {
		var resp EmbeddingsResponse
		if err := doJSON(ctx, c.client, http.MethodPost, url, c.APIKey, payload, &resp); err != nil {
			return nil, err
		}
		return c.convert(len(texts), resp)
	})
}

func (c *EmbeddingsClient) convert(want int, resp EmbeddingsResponse) ([][]float32, error) {
	if len(resp.Data) != want {
		return nil, &memerr.ParseError{Source: "embeddings response", Index: -1,
			Err: fmt.Errorf("expected %d embeddings, got %d", want, len(resp.Data))}
	}

	result := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		if len(data.Embedding) == 0 || (c.ExpectedSize > 0 && len(data.Embedding) != c.ExpectedSize) {
			return nil, &memerr.ParseError{Source: "embeddings response", Index: i,
				Err: fmt.Errorf("embedding has size %d, expected %d", len(data.Embedding), c.ExpectedSize)}
		}
		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		result[i] = vec
	}
	return result, nil
}
