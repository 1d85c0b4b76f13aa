package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"semantic-memory/internal/memerr"
)

func TestNewEmbeddingsClient(t *testing.T) {
	client := NewEmbeddingsClient("http://localhost:11434", "test-key", "test-model", 768, time.Second)
	if client == nil {
		t.Fatal("NewEmbeddingsClient() returned nil")
	}
	if client.BaseURL != "http://localhost:11434" {
		t.Errorf("NewEmbeddingsClient() BaseURL = %v, want http://localhost:11434", client.BaseURL)
	}
	if client.ExpectedSize != 768 {
		t.Errorf("NewEmbeddingsClient() ExpectedSize = %v, want 768", client.ExpectedSize)
	}
}

func TestEmbeddingsClient_EmbedTexts(t *testing.T) {
	tests := []struct {
		name         string
		texts        []string
		expectedSize int
		serverResp   func(w http.ResponseWriter, r *http.Request)
		wantErr      func(error) bool
		wantCount    int
	}{
		{
			name:         "successful embedding",
			texts:        []string{"Hello", "World"},
			expectedSize: 768,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/v1/embeddings" {
					t.Errorf("expected /v1/embeddings, got %s", r.URL.Path)
				}
				resp := EmbeddingsResponse{
					Data: []EmbeddingData{
						{Embedding: make([]float64, 768)},
						{Embedding: make([]float64, 768)},
					},
				}
				_ = json.NewEncoder(w).Encode(resp)
			},
			wantCount: 2,
		},
		{
			name:         "any size accepted when unconfigured",
			texts:        []string{"Hello"},
			expectedSize: 0,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(EmbeddingsResponse{Data: []EmbeddingData{{Embedding: []float64{1, 2}}}})
			},
			wantCount: 1,
		},
		{
			name:         "empty input",
			texts:        []string{},
			expectedSize: 768,
			wantErr:      func(err error) bool { return errors.Is(err, memerr.ErrInvalidInput) },
		},
		{
			name:         "wrong embedding count",
			texts:        []string{"Hello", "World"},
			expectedSize: 768,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(EmbeddingsResponse{Data: []EmbeddingData{{Embedding: make([]float64, 768)}}})
			},
			wantErr: func(err error) bool {
				var pe *memerr.ParseError
				return errors.As(err, &pe)
			},
		},
		{
			name:         "wrong vector size",
			texts:        []string{"Hello"},
			expectedSize: 768,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(EmbeddingsResponse{Data: []EmbeddingData{{Embedding: make([]float64, 512)}}})
			},
			wantErr: func(err error) bool {
				var pe *memerr.ParseError
				return errors.As(err, &pe) && pe.Index == 0
			},
		},
		{
			name:         "server error",
			texts:        []string{"Hello"},
			expectedSize: 768,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("internal server error"))
			},
			wantErr: func(err error) bool {
				var te *memerr.TransportError
				return errors.As(err, &te) && te.StatusCode == http.StatusInternalServerError && te.Attempts == 2
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.serverResp == nil {
					t.Error("server should not be called")
					return
				}
				tt.serverResp(w, r)
			}))
			defer server.Close()

			client := NewEmbeddingsClient(server.URL, "test-key", "test-model", tt.expectedSize, time.Second)
			client.Retry = fastRetry(2)
			embeddings, err := client.EmbedTexts(context.Background(), tt.texts)

			if tt.wantErr != nil {
				if err == nil || !tt.wantErr(err) {
					t.Errorf("EmbedTexts() error = %v, did not match", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("EmbedTexts() unexpected error: %v", err)
			}
			if len(embeddings) != tt.wantCount {
				t.Errorf("EmbedTexts() returned %d embeddings, want %d", len(embeddings), tt.wantCount)
			}
		})
	}
}

func TestEmbeddingsClient_Embed_ConvertsFloat64ToFloat32(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(EmbeddingsResponse{
			Data: []EmbeddingData{{Embedding: []float64{1.5, 2.5, 3.5}}},
		})
	}))
	defer server.Close()

	client := NewEmbeddingsClient(server.URL, "test-key", "test-model", 3, time.Second)
	emb, err := client.Embed(context.Background(), "test")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	want := []float32{1.5, 2.5, 3.5}
	if len(emb) != len(want) {
		t.Fatalf("Embed() size = %d, want 3", len(emb))
	}
	for i := range want {
		if emb[i] != want[i] {
			t.Errorf("Embed()[%d] = %v, want %v", i, emb[i], want[i])
		}
	}
}

func TestEmbeddingsClient_Embed_RejectsBlankText(t *testing.T) {
	client := NewEmbeddingsClient("http://127.0.0.1:1", "", "m", 3, time.Second)
	if _, err := client.Embed(context.Background(), "   "); !errors.Is(err, memerr.ErrInvalidInput) {
		t.Errorf("Embed() error = %v, want ErrInvalidInput", err)
	}
}

func TestModelProbe_HasModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("expected /v1/models, got %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(ModelsResponse{Data: []ModelStatus{{ID: "llama3.2:latest"}, {ID: "nomic-embed-text"}}})
	}))
	defer server.Close()

	probe := NewModelProbe(server.URL, "")
	tests := []struct {
		model string
		want  bool
	}{
		{"llama3.2:latest", true},
		{"llama3.2", true},
		{"nomic-embed-text:latest", true},
		{"mistral", false},
	}
	for _, tt := range tests {
		got, err := probe.HasModel(context.Background(), tt.model)
		if err != nil {
			t.Fatalf("HasModel(%q) error = %v", tt.model, err)
		}
		if got != tt.want {
			t.Errorf("HasModel(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestModelProbe_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	if _, err := NewModelProbe(url, "").ListModels(context.Background()); err == nil {
		t.Error("ListModels() expected error for closed server")
	}
}
