package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vitalsource-rag/internal/handlers"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Logger *slog.Logger
	Ingest http.Handler
	Query  http.Handler
	Health http.Handler
	Stats  http.Handler
}

// NewRouter creates a new HTTP router with the provided dependencies.
// API routes are mounted under /api/v1.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Method(http.MethodPost, "/ingest", deps.Ingest)
		r.Method(http.MethodPost, "/query", deps.Query)
		r.Method(http.MethodGet, "/health", deps.Health)
		r.Method(http.MethodGet, "/stats", deps.Stats)
	})

	r.Get("/", handlers.Root)

	return r
}
