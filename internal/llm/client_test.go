package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"semantic-memory/internal/memerr"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:11434/", "test-key", "test-model", 0)
	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.BaseURL != "http://localhost:11434" {
		t.Errorf("NewClient() BaseURL = %v, want trailing slash trimmed", client.BaseURL)
	}
	if client.Model != "test-model" {
		t.Errorf("NewClient() Model = %v, want test-model", client.Model)
	}
	if client.client == nil || client.client.Timeout != 60*time.Second {
		t.Error("NewClient() should default to a 60s timeout")
	}
}

func TestClient_Generate(t *testing.T) {
	tests := []struct {
		name       string
		prompt     string
		params     GenerateParams
		serverResp func(t *testing.T, w http.ResponseWriter, r *http.Request)
		wantReply  string
		wantErr    func(error) bool
	}{
		{
			name:   "successful generation",
			prompt: "Summarize this",
			params: GenerateParams{MaxTokens: 200, Temperature: 0.3},
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/v1/chat/completions" {
					t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
				}
				if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
					t.Error("missing Authorization header")
				}
				var req ChatRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Fatalf("decode request: %v", err)
				}
				if req.Model != "test-model" || req.MaxTokens != 200 || req.Stream {
					t.Errorf("unexpected request %+v", req)
				}
				if len(req.Messages) != 1 || req.Messages[0].Content != "Summarize this" {
					t.Errorf("unexpected messages %+v", req.Messages)
				}
				_ = json.NewEncoder(w).Encode(ChatResponse{
					Choices: []ChatChoice{{Message: Message{Role: "assistant", Content: "A summary."}}},
				})
			},
			wantReply: "A summary.",
		},
		{
			name:   "model override",
			prompt: "hi",
			params: GenerateParams{Model: "other"},
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				var req ChatRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				if req.Model != "other" {
					t.Errorf("model = %q, want other", req.Model)
				}
				_ = json.NewEncoder(w).Encode(ChatResponse{Choices: []ChatChoice{{Message: Message{Content: "ok"}}}})
			},
			wantReply: "ok",
		},
		{
			name:   "no choices returned",
			prompt: "hi",
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(ChatResponse{})
			},
			wantErr: func(err error) bool {
				var pe *memerr.ParseError
				return errors.As(err, &pe)
			},
		},
		{
			name:   "bad request is not retried",
			prompt: "hi",
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
			wantErr: func(err error) bool {
				var te *memerr.TransportError
				return errors.As(err, &te) && te.StatusCode == http.StatusBadRequest && te.Attempts == 1
			},
		},
		{
			name:   "server error exhausts retries",
			prompt: "hi",
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: func(err error) bool {
				var te *memerr.TransportError
				return errors.As(err, &te) && te.Attempts == 3 && te.Op == "generate"
			},
		},
		{
			name:    "empty prompt",
			prompt:  "  ",
			wantErr: func(err error) bool { return errors.Is(err, memerr.ErrInvalidInput) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.serverResp == nil {
					t.Error("server should not be called")
					return
				}
				tt.serverResp(t, w, r)
			}))
			defer server.Close()

			client := NewClient(server.URL, "test-key", "test-model", time.Second)
			client.Retry = fastRetry(3)
			reply, err := client.Generate(context.Background(), tt.prompt, tt.params)

			if tt.wantErr != nil {
				if err == nil || !tt.wantErr(err) {
					t.Errorf("Generate() error = %v, did not match", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate() unexpected error: %v", err)
			}
			if reply != tt.wantReply {
				t.Errorf("Generate() = %q, want %q", reply, tt.wantReply)
			}
		})
	}
}

func TestClient_Generate_RecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(ChatResponse{Choices: []ChatChoice{{Message: Message{Content: "recovered"}}}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "m", time.Second)
	client.Retry = fastRetry(3)
	reply, err := client.Generate(context.Background(), "hi", GenerateParams{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply != "recovered" || calls.Load() != 2 {
		t.Errorf("reply = %q after %d calls", reply, calls.Load())
	}
}

func TestClient_Generate_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, "", "m", time.Second)
	client.Retry = fastRetry(2)
	_, err := client.Generate(context.Background(), "hi", GenerateParams{})
	if !memerr.IsTransport(err) {
		t.Fatalf("Generate() error = %v, want TransportError", err)
	}
}
