package handlers

import (
	"context"
	"net/http"
	"time"

	"vitalsource-rag/internal/contextutil"
	"vitalsource-rag/internal/vectorstore"
)

// Health statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	vectorStore        vectorstore.VectorStore
	collectionName     string
	ledger             Pinger
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. ledger may be nil, in which
// case the ledger check is skipped.
func NewHealthHandler(vectorStore vectorstore.VectorStore, collectionName string, ledger Pinger) *HealthHandler {
	return &HealthHandler{
		vectorStore:        vectorStore,
		collectionName:     collectionName,
		ledger:             ledger,
		healthCheckTimeout: 5 * time.Second,
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
// Returns 200 OK when the vector store answers, 503 Service Unavailable otherwise.
// A reachable store without the collection, or an unreachable ledger, is
// reported as degraded: queries still work, stats do not.
//
// swagger:route GET /api/v1/health healthCheck
//
// # Health check endpoint
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
//	  description: Vector store unreachable
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string
	status := StatusHealthy
	httpStatus := http.StatusOK

	exists, err := h.vectorStore.CollectionExists(checkCtx, h.collectionName)
	switch {
	case err != nil:
		logger.WarnContext(ctx, "vector store health check failed", "error", err)
		checks["vector_store"] = "error"
		checks["collection"] = "unknown"
		issues = append(issues, "vector_store_unavailable")
		status = StatusUnhealthy
		httpStatus = http.StatusServiceUnavailable
	case !exists:
		logger.WarnContext(ctx, "vector store collection does not exist", "collection", h.collectionName)
		checks["vector_store"] = "ok"
		checks["collection"] = "missing"
		issues = append(issues, "collection_missing")
		status = StatusDegraded
	default:
		checks["vector_store"] = "ok"
		checks["collection"] = "ok"
	}

	if h.ledger != nil {
		if err := h.ledger.PingContext(checkCtx); err != nil {
			logger.WarnContext(ctx, "ledger health check failed", "error", err)
			checks["ledger"] = "error"
			issues = append(issues, "ledger_unavailable")
			if status == StatusHealthy {
				status = StatusDegraded
			}
		} else {
			checks["ledger"] = "ok"
		}
	}

	writeJSON(ctx, w, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Issues:    issues,
	})
}
