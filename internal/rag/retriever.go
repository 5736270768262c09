package rag

import (
	"context"
	"errors"
	"fmt"

	"vitalsource-rag/internal/contextutil"
	"vitalsource-rag/internal/llm"
	"vitalsource-rag/internal/vectorstore"
)

// DefaultLimit is the number of records retrieved when a request sets none.
const DefaultLimit = 5

// DefaultMinCertainty is the similarity floor below which candidates are dropped.
const DefaultMinCertainty = 0.60

var (
	// ErrEmbeddingUnavailable means the query could not be embedded.
	ErrEmbeddingUnavailable = errors.New("query embedding unavailable")
	// ErrSearchUnavailable means the vector store could not be queried.
	ErrSearchUnavailable = errors.New("vector search unavailable")
)

// Retriever finds the chunks most similar to a query, honoring a hard year filter.
type Retriever struct {
	embedder     llm.Embedder
	vectorStore  vectorstore.VectorStore
	collection   string
	minCertainty float64
	defaultLimit int
}

// NewRetriever creates a new retriever. Non-positive minCertainty or limit
// select the defaults.
func NewRetriever(embedder llm.Embedder, vectorStore vectorstore.VectorStore, collection string, minCertainty float64, limit int) *Retriever {
	if minCertainty <= 0 {
		minCertainty = DefaultMinCertainty
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Retriever{
		embedder:     embedder,
		vectorStore:  vectorStore,
		collection:   collection,
		minCertainty: minCertainty,
		defaultLimit: limit,
	}
}

// CertaintyToCosine converts a (1 + cosine) / 2 certainty into a cosine threshold.
func CertaintyToCosine(certainty float64) float32 {
	return float32(2*certainty - 1)
}

// Retrieve returns the matching records, literal matches first.
// An empty slice with a nil error means nothing cleared the threshold.
func (r *Retriever) Retrieve(ctx context.Context, req RetrieveRequest) ([]RetrievalResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	limit := req.Limit
	if limit <= 0 {
		limit = r.defaultLimit
	}

	vec, err := r.embedder.Embed(ctx, req.Query)
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed query", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vec) == 0 || isZero(vec) {
		logger.WarnContext(ctx, "empty query embedding")
		return nil, fmt.Errorf("%w: empty vector", ErrEmbeddingUnavailable)
	}

	threshold := CertaintyToCosine(r.minCertainty)
	search := vectorstore.SearchRequest{
		Vector:         vec,
		Limit:          limit,
		ScoreThreshold: &threshold,
	}

	year, hasYear := yearFilter(req.Year)
	if hasYear {
		search.MatchInt = map[string]int64{"year": int64(year)}
	}

	logger.DebugContext(ctx, "searching vector store", "limit", limit, "year", year, "threshold", threshold)
	hits, err := r.vectorStore.Search(ctx, r.collection, search)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search vector store", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}

	results := make([]RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		res := fromHit(hit)
		if hasYear && (res.Year == nil || *res.Year != year) {
			logger.WarnContext(ctx, "dropping result outside year filter", "chunk_id", res.ChunkID, "year", res.Year)
			continue
		}
		results = append(results, res)
	}

	if len(results) == 0 {
		logger.InfoContext(ctx, "no chunks found", "query", req.Query, "year", year)
		return results, nil
	}

	results = rerankLiteral(req.Query, results)

	logger.InfoContext(ctx, "retrieval completed", "results", len(results), "top_certainty", results[0].Certainty)
	return results, nil
}

func yearFilter(year *int) (int, bool) {
	if year == nil || *year <= 0 {
		return 0, false
	}
	return *year, true
}

func fromHit(hit vectorstore.SearchResult) RetrievalResult {
	res := RetrievalResult{
		ChunkID:   vectorstore.PayloadString(hit.Meta, "chunk_id"),
		Content:   vectorstore.PayloadString(hit.Meta, "content"),
		Source:    vectorstore.PayloadString(hit.Meta, "source"),
		Section:   vectorstore.PayloadString(hit.Meta, "section"),
		Score:     hit.Score,
		Certainty: (1 + float64(hit.Score)) / 2,
	}
	if res.ChunkID == "" {
		res.ChunkID = hit.PointID
	}
	if page, ok := vectorstore.PayloadInt(hit.Meta, "page"); ok {
		res.Page = page
	}
	if year, ok := vectorstore.PayloadInt(hit.Meta, "year"); ok {
		res.Year = &year
	}
	return res
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
