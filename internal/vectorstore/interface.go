package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks vitalsource-rag/internal/vectorstore VectorStore

import (
	"context"
	"time"
)

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search hit, or a scrolled point with Score 0.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// SearchRequest describes a near-vector query.
// All match conditions are ANDed.
type SearchRequest struct {
	Vector         []float32
	Limit          int
	ScoreThreshold *float32 // cosine similarity floor, nil for none
	MatchInt       map[string]int64
	MatchKeyword   map[string]string
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a similarity search with optional exact-match filters.
	Search(ctx context.Context, collection string, req SearchRequest) ([]SearchResult, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error

	// CollectionExists reports whether the collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// EnsureCollection creates the collection if missing and validates its vector size.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// RecreateCollection drops the collection if present and creates it empty.
	RecreateCollection(ctx context.Context, collection string, vectorSize int) error

	// Count returns the exact number of points in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// Scroll returns up to limit points with payload, in storage order.
	Scroll(ctx context.Context, collection string, limit int) ([]SearchResult, error)

	// WaitReady blocks until the store answers a health check or timeout elapses.
	WaitReady(ctx context.Context, timeout time.Duration) error
}
