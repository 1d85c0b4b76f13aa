package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"semantic-memory/internal/contextutil"
	"semantic-memory/internal/service"
)

// ModelChecker reports whether an inference endpoint serves a model.
type ModelChecker interface {
	HasModel(ctx context.Context, model string) (bool, error)
}

// ModelCheck pairs a probe with the model it must serve.
type ModelCheck struct {
	Name  string
	Probe ModelChecker
	Model string
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	svc                service.MemoryService
	models             []ModelCheck
	healthCheckTimeout time.Duration
	now                func() time.Time
}

// NewHealthHandler creates a new HealthHandler. Model checks are optional.
func NewHealthHandler(svc service.MemoryService, models ...ModelCheck) *HealthHandler {
	return &HealthHandler{
		svc:                svc,
		models:             models,
		healthCheckTimeout: 5 * time.Second,
		now:                time.Now,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy", "degraded", or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if status is degraded or unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// The memory store must answer for the service to be healthy. A missing model only degrades it.
//
// swagger:route GET /api/health healthCheck
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: System is healthy or degraded
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
//	'503':
//	  description: System is unhealthy
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string
	unhealthy := false

	if _, err := h.svc.Stats(checkCtx); err != nil {
		logger.WarnContext(ctx, "memory store health check failed", "error", err)
		checks["memory_store"] = "error"
		issues = append(issues, "memory_store_unavailable")
		unhealthy = true
	} else {
		checks["memory_store"] = "ok"
	}

	for _, m := range h.models {
		if h.checkModel(checkCtx, logger, m) {
			checks[m.Name] = "ok"
		} else {
			checks[m.Name] = "error"
			issues = append(issues, m.Name+"_unavailable")
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	switch {
	case unhealthy:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	case len(issues) > 0:
		status = "degraded"
	}

	writeJSON(ctx, w, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Issues:    issues,
	})
}

// checkModel checks that the endpoint is reachable and serves the model.
func (h *HealthHandler) checkModel(ctx context.Context, logger *slog.Logger, m ModelCheck) bool {
	ok, err := m.Probe.HasModel(ctx, m.Model)
	if err != nil {
		logger.WarnContext(ctx, "model health check failed", "check", m.Name, "error", err)
		return false
	}
	if !ok {
		logger.WarnContext(ctx, "model not served", "check", m.Name, "model", m.Model)
		return false
	}
	return true
}
