package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ModelProbe checks that an endpoint is reachable and serves a model.
type ModelProbe struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewModelProbe creates a probe with a short timeout.
func NewModelProbe(baseURL, apiKey string) *ModelProbe {
	return &ModelProbe{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		client:  newHTTPClient(5 * time.Second),
	}
}

// ModelsResponse represents the response from the /v1/models endpoint.
type ModelsResponse struct {
	Data []ModelStatus `json:"data"`
}

// ModelStatus represents a single model entry.
type ModelStatus struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// ListModels returns the ids the endpoint reports.
func (p *ModelProbe) ListModels(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/v1/models", p.BaseURL)
	var resp ModelsResponse
	if err := doJSON(ctx, p.client, http.MethodGet, url, p.APIKey, nil, &resp); err != nil {
		return nil, fmt.Errorf("list models at %s: %w", p.BaseURL, err)
	}
	ids := make([]string, len(resp.Data))
	for i, m := range resp.Data {
		ids[i] = m.ID
	}
	return ids, nil
}

// HasModel reports whether model is served. Ollama tags such as "llama3.2:latest"
// also match a bare "llama3.2".
func (p *ModelProbe) HasModel(ctx context.Context, model string) (bool, error) {
	ids, err := p.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == model || strings.TrimSuffix(id, ":latest") == strings.TrimSuffix(model, ":latest") {
			return true, nil
		}
	}
	return false, nil
}
