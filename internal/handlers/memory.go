package handlers

import (
	"net/http"
	"strings"

	"semantic-memory/internal/contextutil"
	"semantic-memory/internal/convlog"
	"semantic-memory/internal/rag"
	"semantic-memory/internal/service"
	"semantic-memory/internal/vectorstore"
)

// InteractionHandler records a user/assistant exchange.
type InteractionHandler struct {
	svc service.MemoryService
}

// NewInteractionHandler creates a new InteractionHandler.
func NewInteractionHandler(svc service.MemoryService) *InteractionHandler {
	return &InteractionHandler{svc: svc}
}

// InteractionRequest represents the HTTP request payload for recording an interaction.
//
// swagger:model InteractionRequest
type InteractionRequest struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// ServeHTTP appends the exchange to the conversation log. Archival may start in the background.
//
// swagger:route POST /api/interactions recordInteraction
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'201':
//	  description: Interaction recorded
//	'400':
//	  description: Empty user or assistant text
func (h *InteractionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req InteractionRequest
	if err := decodeBody(w, r, &req); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.svc.RecordInteraction(ctx, req.User, req.Assistant)
	if err != nil {
		writeServiceError(ctx, w, err, "Failed to record interaction")
		return
	}
	writeJSON(ctx, w, http.StatusCreated, res)
}

// QueryHandler ranks long-term memory against a query.
type QueryHandler struct {
	svc service.MemoryService
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(svc service.MemoryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

// QueryRequest represents the HTTP request payload for a long-term query.
//
// swagger:model QueryRequest
type QueryRequest struct {
	Text string `json:"text"`
	K    int    `json:"k,omitempty"`
	// MinScore replaces the configured score threshold for this query. Results are still
	// capped at K.
	MinScore *float64 `json:"min_score,omitempty"`
}

// QueryResult is one ranked record.
type QueryResult struct {
	Text             string                 `json:"text"`
	Provenance       vectorstore.Provenance `json:"provenance"`
	Similarity       float64                `json:"similarity"`
	Score            float64                `json:"score"`
	ConversationDate string                 `json:"conversation_date,omitempty"`
	SourceID         string                 `json:"source_id,omitempty"`
	ChunkType        string                 `json:"chunk_type,omitempty"`
	ContextPath      string                 `json:"context_path,omitempty"`
}

// QueryResponse represents the HTTP response payload for a long-term query.
//
// swagger:model QueryResponse
type QueryResponse struct {
	Results []QueryResult `json:"results"`
}

func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req QueryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	results, err := h.svc.QueryLongTerm(ctx, req.Text, req.K, req.MinScore)
	if err != nil {
		writeServiceError(ctx, w, err, "Failed to query memory")
		return
	}

	resp := QueryResponse{Results: make([]QueryResult, 0, len(results))}
	for _, res := range results {
		md := res.Record.Metadata
		resp.Results = append(resp.Results, QueryResult{
			Text:             res.Record.Text,
			Provenance:       md.Provenance,
			Similarity:       res.Similarity,
			Score:            res.Score,
			ConversationDate: md.ConversationDate,
			SourceID:         md.SourceID,
			ChunkType:        md.ChunkType,
			ContextPath:      md.ContextPath,
		})
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// ContextHandler renders retrieved memory as prompt context.
type ContextHandler struct {
	svc service.MemoryService
}

// NewContextHandler creates a new ContextHandler.
func NewContextHandler(svc service.MemoryService) *ContextHandler {
	return &ContextHandler{svc: svc}
}

// ContextRequest selects the query and tiers. With no tier enabled every tier is used.
//
// swagger:model ContextRequest
type ContextRequest struct {
	Text string `json:"text"`
	rag.Options
}

// ContextResponse carries the rendered context.
type ContextResponse struct {
	Context string `json:"context"`
}

func (h *ContextHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ContextRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	opts := req.Options
	if !opts.UseShortTerm && !opts.UseLongTerm && !opts.UseBaseKnowledge {
		all := rag.AllTiers()
		opts.UseShortTerm, opts.UseLongTerm, opts.UseBaseKnowledge = all.UseShortTerm, all.UseLongTerm, all.UseBaseKnowledge
	}

	rendered, err := h.svc.BuildContext(ctx, req.Text, opts)
	if err != nil {
		writeServiceError(ctx, w, err, "Failed to build context")
		return
	}
	writeJSON(ctx, w, http.StatusOK, ContextResponse{Context: rendered})
}

// ShortTermHandler returns today's conversation.
type ShortTermHandler struct {
	svc service.MemoryService
}

// NewShortTermHandler creates a new ShortTermHandler.
func NewShortTermHandler(svc service.MemoryService) *ShortTermHandler {
	return &ShortTermHandler{svc: svc}
}

// ShortTermResponse lists today's entries in the persisted record format.
type ShortTermResponse struct {
	Entries []convlog.Record `json:"entries"`
}

func (h *ShortTermHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries := h.svc.QueryShortTermOnly(ctx)
	resp := ShortTermResponse{Entries: make([]convlog.Record, len(entries))}
	for i, e := range entries {
		resp.Entries[i] = e.ToRecord()
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// StatsHandler reports counts per memory partition.
type StatsHandler struct {
	svc service.MemoryService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(svc service.MemoryService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.svc.Stats(ctx)
	if err != nil {
		writeServiceError(ctx, w, err, "Failed to read stats")
		return
	}
	writeJSON(ctx, w, http.StatusOK, stats)
}

// ClearHandler empties personal memory. Knowledge is kept.
type ClearHandler struct {
	svc service.MemoryService
}

// NewClearHandler creates a new ClearHandler.
func NewClearHandler(svc service.MemoryService) *ClearHandler {
	return &ClearHandler{svc: svc}
}

// ServeHTTP requires ?confirm=true so an accidental DELETE cannot wipe the log.
func (h *ClearHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !strings.EqualFold(r.URL.Query().Get("confirm"), "true") {
		writeError(ctx, w, http.StatusBadRequest, "Pass confirm=true to clear personal memory")
		return
	}
	if err := h.svc.ClearPersonalMemory(ctx); err != nil {
		writeServiceError(ctx, w, err, "Failed to clear memory")
		return
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "personal memory cleared via API")
	w.WriteHeader(http.StatusNoContent)
}

// DebugSearchHandler returns a per-result scoring breakdown.
type DebugSearchHandler struct {
	svc service.MemoryService
}

// NewDebugSearchHandler creates a new DebugSearchHandler.
func NewDebugSearchHandler(svc service.MemoryService) *DebugSearchHandler {
	return &DebugSearchHandler{svc: svc}
}

func (h *DebugSearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req QueryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	info, err := h.svc.DebugSearch(ctx, req.Text, req.K)
	if err != nil {
		writeServiceError(ctx, w, err, "Failed to run debug search")
		return
	}
	writeJSON(ctx, w, http.StatusOK, info)
}
