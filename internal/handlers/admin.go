package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"semantic-memory/internal/contextutil"
	"semantic-memory/internal/service"
)

// ArchivalHandler runs an archival cycle on demand.
type ArchivalHandler struct {
	svc service.MemoryService
}

// NewArchivalHandler creates a new ArchivalHandler.
func NewArchivalHandler(svc service.MemoryService) *ArchivalHandler {
	return &ArchivalHandler{svc: svc}
}

// ServeHTTP runs the cycle synchronously and returns its report. A cycle already in progress
// yields 409.
//
// swagger:route POST /api/archival/run runArchival
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Cycle report
//	'409':
//	  description: Another cycle is running
func (h *ArchivalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.svc.RunArchivalNow(ctx)
	if err != nil && report.ID == "" {
		writeServiceError(ctx, w, err, "Failed to run archival cycle")
		return
	}
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "archival cycle interrupted", "cycle_id", report.ID, "error", err)
	}
	writeJSON(ctx, w, http.StatusOK, report)
}

// SnapshotHandler exports and imports personal memory.
type SnapshotHandler struct {
	svc service.MemoryService
	now func() time.Time
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(svc service.MemoryService) *SnapshotHandler {
	return &SnapshotHandler{svc: svc, now: time.Now}
}

func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		snap, err := h.svc.ExportSnapshot(ctx)
		if err != nil {
			writeServiceError(ctx, w, err, "Failed to export memory")
			return
		}
		if r.URL.Query().Get("download") == "true" {
			name := fmt.Sprintf("memory_export_%s.json", h.now().UTC().Format("20060102_150405"))
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		}
		writeJSON(ctx, w, http.StatusOK, snap)

	case http.MethodPut:
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(ctx, w, http.StatusBadRequest, "Failed to read request body")
			return
		}
		res, err := h.svc.ImportSnapshot(ctx, data)
		if err != nil {
			writeServiceError(ctx, w, err, "Failed to import memory")
			return
		}
		writeJSON(ctx, w, http.StatusOK, res)

	default:
		writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// KnowledgeHandler re-ingests the knowledge source directory.
type KnowledgeHandler struct {
	svc service.MemoryService
}

// NewKnowledgeHandler creates a new KnowledgeHandler.
func NewKnowledgeHandler(svc service.MemoryService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

// ServeHTTP ingests synchronously. Unchanged sources are skipped.
func (h *KnowledgeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "knowledge reload triggered via API")

	report, err := h.svc.ReloadKnowledge(ctx)
	if err != nil {
		writeServiceError(ctx, w, err, "Failed to reload knowledge")
		return
	}
	logger.InfoContext(ctx, "knowledge reload finished",
		"processed", report.SourcesProcessed, "unchanged", report.SourcesUnchanged, "failed", report.SourcesFailed)
	writeJSON(ctx, w, http.StatusOK, report)
}
