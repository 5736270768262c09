package handlers

import (
	"net/http"

	"vitalsource-rag/internal/contextutil"
	"vitalsource-rag/internal/indexer"
	"vitalsource-rag/internal/storage"
	"vitalsource-rag/internal/vectorstore"
)

// StatsHandler reports indexing coverage.
type StatsHandler struct {
	pageRepo           storage.PageStore
	chunkRepo          storage.ChunkStore
	runRepo            storage.RunStore
	vectorStore        vectorstore.VectorStore
	collectionName     string
	embeddingModelName string
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(
	pageRepo storage.PageStore,
	chunkRepo storage.ChunkStore,
	runRepo storage.RunStore,
	vectorStore vectorstore.VectorStore,
	collectionName string,
	embeddingModelName string,
) *StatsHandler {
	return &StatsHandler{
		pageRepo:           pageRepo,
		chunkRepo:          chunkRepo,
		runRepo:            runRepo,
		vectorStore:        vectorStore,
		collectionName:     collectionName,
		embeddingModelName: embeddingModelName,
	}
}

// StatsResponse is the ledger coverage plus the live collection size.
//
// swagger:model StatsResponse
type StatsResponse struct {
	*indexer.IndexingCoverageStats

	// Collection is the vector collection name
	Collection string `json:"collection"`

	// CollectionPoints is the live point count, absent when the store is unreachable
	CollectionPoints *int `json:"collection_points,omitempty"`
}

// ServeHTTP handles HTTP requests for indexing statistics.
//
// swagger:route GET /api/v1/stats indexingStats
//
// # Indexing coverage statistics
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  schema:
//	    "$ref": "#/definitions/StatsResponse"
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(ctx, w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := indexer.GetIndexingCoverageStats(ctx, h.pageRepo, h.chunkRepo, h.runRepo, h.embeddingModelName)
	if err != nil {
		logger.ErrorContext(ctx, "failed to compute indexing stats", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "failed to compute indexing stats")
		return
	}

	resp := StatsResponse{IndexingCoverageStats: stats, Collection: h.collectionName}
	if n, err := h.vectorStore.Count(ctx, h.collectionName); err != nil {
		logger.WarnContext(ctx, "failed to count collection points", "error", err)
	} else {
		resp.CollectionPoints = &n
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}
