package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"semantic-memory/internal/archival"
	"semantic-memory/internal/classifier"
	"semantic-memory/internal/convlog"
	"semantic-memory/internal/indexer"
	"semantic-memory/internal/memerr"
	"semantic-memory/internal/rag"
	"semantic-memory/internal/service"
	"semantic-memory/internal/service/mocks"
	"semantic-memory/internal/vectorstore"
)

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestInteractionHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(m *mocks.MockMemoryService)
		wantStatus int
	}{
		{
			name: "recorded",
			body: `{"user": "hi", "assistant": "hello"}`,
			setup: func(m *mocks.MockMemoryService) {
				m.EXPECT().RecordInteraction(gomock.Any(), "hi", "hello").
					Return(service.InteractionResult{Pending: 3}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "empty text",
			body: `{"user": "", "assistant": "hello"}`,
			setup: func(m *mocks.MockMemoryService) {
				m.EXPECT().RecordInteraction(gomock.Any(), "", "hello").
					Return(service.InteractionResult{}, memerr.Validation("user", "cannot be empty"))
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid json",
			body:       `{"user":`,
			setup:      func(m *mocks.MockMemoryService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockMemoryService(ctrl)
			tt.setup(svc)

			w := serve(NewInteractionHandler(svc), http.MethodPost, "/api/interactions", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusCreated {
				got := decode[service.InteractionResult](t, w)
				if got.Pending != 3 || got.ArchivalStarted {
					t.Errorf("response = %+v", got)
				}
			}
		})
	}
}

func TestQueryHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockMemoryService(ctrl)

	svc.EXPECT().QueryLongTerm(gomock.Any(), "creepers", 2, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ int, minScore *float64) ([]vectorstore.SearchResult, error) {
			if minScore == nil || *minScore != 0.25 {
				t.Errorf("minScore = %v, want 0.25", minScore)
			}
			return []vectorstore.SearchResult{
				{
					Record: vectorstore.Record{Text: "Use a shield.", Metadata: vectorstore.Metadata{
						Provenance: vectorstore.ProvenanceKnowledge, SourceID: "combat", ChunkType: "combat",
					}},
					Similarity: 0.7, Score: 0.9,
				},
				{
					Record: vectorstore.Record{Text: "Alex met a creeper.", Metadata: vectorstore.Metadata{
						Provenance: vectorstore.ProvenanceSummary, ConversationDate: "2024-03-01",
					}},
					Similarity: 0.3, Score: 0.3,
				},
			}, nil
		})

	// A threshold below the configured default must reach the search, not be re-applied here.
	w := serve(NewQueryHandler(svc), http.MethodPost, "/api/query", `{"text": "creepers", "k": 2, "min_score": 0.25}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	resp := decode[QueryResponse](t, w)
	if len(resp.Results) != 2 {
		t.Fatalf("results = %+v, want both ranked records", resp.Results)
	}
	if r := resp.Results[0]; r.SourceID != "combat" || r.Provenance != vectorstore.ProvenanceKnowledge || r.Score != 0.9 {
		t.Errorf("result = %+v", r)
	}
	if r := resp.Results[1]; r.ConversationDate != "2024-03-01" || r.Provenance != vectorstore.ProvenanceSummary {
		t.Errorf("result = %+v", r)
	}
}

func TestQueryHandler_NoMinScore(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockMemoryService(ctrl)
	svc.EXPECT().QueryLongTerm(gomock.Any(), "creepers", 0, gomock.Nil()).Return(nil, nil)

	w := serve(NewQueryHandler(svc), http.MethodPost, "/api/query", `{"text": "creepers"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if resp := decode[QueryResponse](t, w); len(resp.Results) != 0 {
		t.Errorf("results = %+v, want none", resp.Results)
	}
}

func TestQueryHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", memerr.Validation("k", "must not be negative"), http.StatusBadRequest},
		{"search unavailable", fmt.Errorf("%w: connection refused", memerr.ErrSearchUnavailable), http.StatusServiceUnavailable},
		{"transport", &memerr.TransportError{Op: "embed", Endpoint: "http://x", Attempts: 3, Err: errors.New("timeout")}, http.StatusServiceUnavailable},
		{"not found", memerr.ErrNotFound, http.StatusNotFound},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockMemoryService(ctrl)
			svc.EXPECT().QueryLongTerm(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, tt.err)

			w := serve(NewQueryHandler(svc), http.MethodPost, "/api/query", `{"text": "x"}`)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if resp := decode[ErrorResponse](t, w); resp.Error == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestContextHandler_DefaultsToAllTiers(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockMemoryService(ctrl)

	svc.EXPECT().BuildContext(gomock.Any(), "what did we build", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, opts rag.Options) (string, error) {
			if !opts.UseShortTerm || !opts.UseLongTerm || !opts.UseBaseKnowledge {
				t.Errorf("opts = %+v, want every tier", opts)
			}
			if opts.K != 4 {
				t.Errorf("opts.K = %d, want 4", opts.K)
			}
			return "Base knowledge:\n- Use ladders.", nil
		})

	w := serve(NewContextHandler(svc), http.MethodPost, "/api/context", `{"text": "what did we build", "k": 4}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got := decode[ContextResponse](t, w); !strings.Contains(got.Context, "Use ladders.") {
		t.Errorf("context = %q", got.Context)
	}
}

func TestShortTermHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockMemoryService(ctrl)
	ts := time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)
	svc.EXPECT().QueryShortTermOnly(gomock.Any()).Return([]convlog.Entry{
		{Role: convlog.User, Content: "hi", Timestamp: ts},
	})

	w := serve(NewShortTermHandler(svc), http.MethodGet, "/api/short-term", "")
	resp := decode[ShortTermResponse](t, w)
	if len(resp.Entries) != 1 || resp.Entries[0].Timestamp != convlog.FormatTimestamp(ts) {
		t.Errorf("entries = %+v", resp.Entries)
	}
}

func TestClearHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockMemoryService(ctrl)
	h := NewClearHandler(svc)

	if w := serve(h, http.MethodDelete, "/api/memory", ""); w.Code != http.StatusBadRequest {
		t.Errorf("without confirm status = %d, want 400", w.Code)
	}

	svc.EXPECT().ClearPersonalMemory(gomock.Any()).Return(nil)
	if w := serve(h, http.MethodDelete, "/api/memory?confirm=true", ""); w.Code != http.StatusNoContent {
		t.Errorf("with confirm status = %d, want 204", w.Code)
	}
}

func TestArchivalHandler(t *testing.T) {
	t.Run("report", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockMemoryService(ctrl)
		svc.EXPECT().RunArchivalNow(gomock.Any()).Return(archival.CycleReport{ID: "c1", Committed: 2}, nil)

		w := serve(NewArchivalHandler(svc), http.MethodPost, "/api/archival/run", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if got := decode[archival.CycleReport](t, w); got.ID != "c1" || got.Committed != 2 {
			t.Errorf("report = %+v", got)
		}
	})

	t.Run("already running", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockMemoryService(ctrl)
		svc.EXPECT().RunArchivalNow(gomock.Any()).Return(archival.CycleReport{}, archival.ErrCycleInProgress)

		w := serve(NewArchivalHandler(svc), http.MethodPost, "/api/archival/run", "")
		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
	})

	t.Run("interrupted cycle still reports", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockMemoryService(ctrl)
		svc.EXPECT().RunArchivalNow(gomock.Any()).Return(archival.CycleReport{ID: "c2", Committed: 1}, context.Canceled)

		w := serve(NewArchivalHandler(svc), http.MethodPost, "/api/archival/run", "")
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})
}

func TestSnapshotHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockMemoryService(ctrl)
	h := NewSnapshotHandler(svc)
	h.now = func() time.Time { return time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC) }

	svc.EXPECT().ExportSnapshot(gomock.Any()).Return(&service.Snapshot{Version: 1, Timezone: "UTC"}, nil)
	w := serve(h, http.MethodGet, "/api/snapshot?download=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="memory_export_20240302_100000.json"` {
		t.Errorf("Content-Disposition = %q", got)
	}

	body := `{"chat_entries": []}`
	svc.EXPECT().ImportSnapshot(gomock.Any(), []byte(body)).Return(service.ImportResult{}, nil)
	if w := serve(h, http.MethodPut, "/api/snapshot", body); w.Code != http.StatusOK {
		t.Errorf("PUT status = %d", w.Code)
	}

	svc.EXPECT().ImportSnapshot(gomock.Any(), gomock.Any()).
		Return(service.ImportResult{}, memerr.Validation("snapshot", "bad"))
	if w := serve(h, http.MethodPut, "/api/snapshot", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid PUT status = %d, want 400", w.Code)
	}
}

type fakeProbe struct {
	ok  bool
	err error
}

func (p fakeProbe) HasModel(context.Context, string) (bool, error) {
	return p.ok, p.err
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		statsErr   error
		probe      fakeProbe
		wantStatus int
		wantState  string
	}{
		{"healthy", nil, fakeProbe{ok: true}, http.StatusOK, "healthy"},
		{"model missing", nil, fakeProbe{ok: false}, http.StatusOK, "degraded"},
		{"probe error", nil, fakeProbe{err: errors.New("refused")}, http.StatusOK, "degraded"},
		{"store failing", errors.New("journal locked"), fakeProbe{ok: true}, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockMemoryService(ctrl)
			svc.EXPECT().Stats(gomock.Any()).Return(service.Stats{}, tt.statsErr)

			h := NewHealthHandler(svc, ModelCheck{Name: "embedding_model", Probe: tt.probe, Model: "nomic"})
			w := serve(h, http.MethodGet, "/api/health", "")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			resp := decode[HealthResponse](t, w)
			if resp.Status != tt.wantState {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantState)
			}
			if _, ok := resp.Checks["embedding_model"]; !ok {
				t.Errorf("Checks = %v, want an embedding_model entry", resp.Checks)
			}
		})
	}
}

func TestDebugSearchHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockMemoryService(ctrl)
	svc.EXPECT().DebugSearch(gomock.Any(), "how do I build a farm", 3).Return(rag.DebugInfo{
		Query:  "how do I build a farm",
		Intent: classifier.Intent{Category: "building", Confidence: 0.5},
		Results: []rag.DebugResult{
			{Rank: 1, Provenance: vectorstore.ProvenanceKnowledge, Similarity: 0.7, Score: 0.95, Text: "Farms need water."},
		},
	}, nil)

	w := serve(NewDebugSearchHandler(svc), http.MethodPost, "/api/debug/search", `{"text": "how do I build a farm", "k": 3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	got := decode[rag.DebugInfo](t, w)
	if got.Intent.Category != "building" || len(got.Results) != 1 || got.Results[0].Score != 0.95 {
		t.Errorf("debug info = %+v", got)
	}
}

func TestKnowledgeHandler(t *testing.T) {
	tests := []struct {
		name       string
		report     *indexer.Report
		err        error
		wantStatus int
	}{
		{
			name:       "reloads",
			report:     &indexer.Report{SourcesProcessed: 2, SourcesUnchanged: 1},
			wantStatus: http.StatusOK,
		},
		{
			name:       "not configured",
			err:        memerr.Validation("knowledge_source_dir", "knowledge ingestion is not configured"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "embedding endpoint down",
			err:        &memerr.TransportError{Op: "embed", Err: errors.New("connection refused")},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockMemoryService(ctrl)
			svc.EXPECT().ReloadKnowledge(gomock.Any()).Return(tt.report, tt.err)

			w := serve(NewKnowledgeHandler(svc), http.MethodPost, "/api/knowledge/reload", "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.report != nil {
				got := decode[indexer.Report](t, w)
				if got.SourcesProcessed != 2 || got.SourcesUnchanged != 1 {
					t.Errorf("report = %+v", got)
				}
			}
		})
	}
}
