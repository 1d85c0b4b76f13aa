// Package http wires the admin API routes and middleware.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"semantic-memory/internal/handlers"
	"semantic-memory/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Service service.MemoryService
	// ModelChecks are reported by the health endpoint. Optional.
	ModelChecks []handlers.ModelCheck
	Logger      *slog.Logger
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(RequestLogger)
	r.Use(CORS)

	svc := deps.Service

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(svc, deps.ModelChecks...))
		r.Method(http.MethodPost, "/interactions", handlers.NewInteractionHandler(svc))
		r.Method(http.MethodPost, "/archival/run", handlers.NewArchivalHandler(svc))
		r.Method(http.MethodPost, "/query", handlers.NewQueryHandler(svc))
		r.Method(http.MethodPost, "/context", handlers.NewContextHandler(svc))
		r.Method(http.MethodGet, "/short-term", handlers.NewShortTermHandler(svc))
		r.Method(http.MethodGet, "/stats", handlers.NewStatsHandler(svc))
		r.Method(http.MethodDelete, "/memory", handlers.NewClearHandler(svc))

		snapshot := handlers.NewSnapshotHandler(svc)
		r.Method(http.MethodGet, "/snapshot", snapshot)
		r.Method(http.MethodPut, "/snapshot", snapshot)

		r.Method(http.MethodPost, "/knowledge/reload", handlers.NewKnowledgeHandler(svc))
		r.Method(http.MethodPost, "/debug/search", handlers.NewDebugSearchHandler(svc))
	})

	return r
}
