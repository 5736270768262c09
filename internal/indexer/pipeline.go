package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"vitalsource-rag/internal/contextutil"
	"vitalsource-rag/internal/extraction"
	"vitalsource-rag/internal/llm"
	"vitalsource-rag/internal/storage"
	"vitalsource-rag/internal/vectorstore"
)

// Points are written to the vector store in batches of this size.
const upsertBatchSize = 100

// Skip reasons recorded when a chunk is not indexed.
const (
	SkipEmbeddingError = "embedding_error"
	SkipEmptyEmbedding = "empty_embedding"
)

// Config configures an Indexer.
type Config struct {
	Collection      string
	Dimension       int
	ResetCollection bool          // drop and recreate the collection on every Index call
	ReadyTimeout    time.Duration // how long to wait for the vector store
}

// IndexResult summarizes one Index call.
type IndexResult struct {
	PagesRecorded   int
	ChunksAttempted int
	ChunksIndexed   int
	SkippedReasons  map[string]int
}

// Skipped returns the number of chunks that were not indexed.
func (r *IndexResult) Skipped() int {
	n := 0
	for _, v := range r.SkippedReasons {
		n += v
	}
	return n
}

// Indexer embeds chunks and writes them to the vector store, keeping the page
// and chunk ledger in SQLite in step.
type Indexer struct {
	// mu serializes the recreate-and-write sequence within the process.
	mu sync.Mutex

	cfg         Config
	embedder    llm.Embedder
	vectorStore vectorstore.VectorStore
	pageRepo    storage.PageStore
	chunkRepo   storage.ChunkStore
}

// NewIndexer creates a new indexer.
func NewIndexer(
	cfg Config,
	embedder llm.Embedder,
	vectorStore vectorstore.VectorStore,
	pageRepo storage.PageStore,
	chunkRepo storage.ChunkStore,
) *Indexer {
	return &Indexer{
		cfg:         cfg,
		embedder:    embedder,
		vectorStore: vectorStore,
		pageRepo:    pageRepo,
		chunkRepo:   chunkRepo,
	}
}

type pageKey struct {
	source string
	page   int
}

// Index writes chunks produced from docs. A chunk whose embedding fails or is
// empty is skipped and counted; a vector store failure aborts the call.
func (ix *Indexer) Index(ctx context.Context, docs []extraction.RawDocument, chunks []Chunk) (*IndexResult, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	logger := contextutil.LoggerFromContext(ctx)
	result := &IndexResult{SkippedReasons: make(map[string]int)}

	if err := ix.vectorStore.WaitReady(ctx, ix.cfg.ReadyTimeout); err != nil {
		return nil, fmt.Errorf("vector store not ready: %w", err)
	}

	if ix.cfg.ResetCollection {
		if err := ix.vectorStore.RecreateCollection(ctx, ix.cfg.Collection, ix.cfg.Dimension); err != nil {
			return nil, fmt.Errorf("failed to recreate collection: %w", err)
		}
		if err := ix.pageRepo.DeleteAll(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear ledger: %w", err)
		}
		logger.InfoContext(ctx, "collection recreated", "collection", ix.cfg.Collection)
	} else if err := ix.vectorStore.EnsureCollection(ctx, ix.cfg.Collection, ix.cfg.Dimension); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	pageIDs := make(map[pageKey]string, len(docs))
	for _, doc := range docs {
		id, err := ix.recordPage(ctx, doc)
		if err != nil {
			return nil, err
		}
		pageIDs[pageKey{doc.Metadata.Source, doc.Metadata.Page}] = id
		result.PagesRecorded++
	}

	var (
		points  []vectorstore.Point
		pending []*storage.ChunkRecord
	)
	flush := func() error {
		if len(points) == 0 {
			return nil
		}
		if err := ix.vectorStore.Upsert(ctx, ix.cfg.Collection, points); err != nil {
			return fmt.Errorf("failed to upsert vectors: %w", err)
		}
		for _, rec := range pending {
			if err := ix.chunkRepo.Insert(ctx, rec); err != nil {
				return fmt.Errorf("failed to record chunk: %w", err)
			}
		}
		result.ChunksIndexed += len(points)
		logger.DebugContext(ctx, "batch upserted", "points", len(points))
		points, pending = nil, nil
		return nil
	}

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.ChunksAttempted++

		vec, err := ix.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			reason := SkipEmbeddingError
			if errors.Is(err, llm.ErrEmptyEmbedding) {
				reason = SkipEmptyEmbedding
			}
			result.SkippedReasons[reason]++
			logger.WarnContext(ctx, "skipping chunk", "chunk_id", chunk.ChunkID, "source", chunk.Source, "page", chunk.Page, "reason", reason, "error", err)
			continue
		}
		if len(vec) == 0 {
			result.SkippedReasons[SkipEmptyEmbedding]++
			logger.WarnContext(ctx, "skipping chunk", "chunk_id", chunk.ChunkID, "reason", SkipEmptyEmbedding)
			continue
		}

		key := pageKey{chunk.Source, chunk.Page}
		pageID, ok := pageIDs[key]
		if !ok {
			pageID, err = ix.recordPage(ctx, extraction.RawDocument{Metadata: extraction.Metadata{
				Source:           chunk.Source,
				Page:             chunk.Page,
				Year:             chunk.Year,
				ExtractionMethod: chunk.ExtractionMethod,
			}})
			if err != nil {
				return nil, err
			}
			pageIDs[key] = pageID
		}

		points = append(points, vectorstore.Point{
			ID:   chunk.ChunkID,
			Vec:  vec,
			Meta: Payload(chunk),
		})
		pending = append(pending, &storage.ChunkRecord{
			ChunkID:   chunk.ChunkID,
			PageID:    pageID,
			Section:   chunk.Section,
			CharCount: utf8.RuneCountInString(chunk.Content),
		})

		if len(points) >= upsertBatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "indexing complete",
		"pages", result.PagesRecorded,
		"attempted", result.ChunksAttempted,
		"indexed", result.ChunksIndexed,
		"skipped", result.Skipped())
	return result, nil
}

// recordPage upserts the ledger row for a page. When the page was indexed
// before, its old chunks are removed from the store and the ledger.
func (ix *Indexer) recordPage(ctx context.Context, doc extraction.RawDocument) (string, error) {
	existing, err := ix.pageRepo.GetBySourcePage(ctx, doc.Metadata.Source, doc.Metadata.Page)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("failed to check existing page: %w", err)
	}

	if existing != nil {
		oldIDs, err := ix.chunkRepo.ListIDsByPage(ctx, existing.ID)
		if err != nil {
			return "", fmt.Errorf("failed to list old chunk IDs: %w", err)
		}
		if len(oldIDs) > 0 {
			if err := ix.vectorStore.Delete(ctx, ix.cfg.Collection, oldIDs); err != nil {
				contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to delete old chunks from vector store", "error", err, "count", len(oldIDs))
			}
			if err := ix.chunkRepo.DeleteByPage(ctx, existing.ID); err != nil {
				return "", fmt.Errorf("failed to delete old chunks: %w", err)
			}
		}
	}

	hash := sha256.Sum256([]byte(doc.Content))
	rec := &storage.PageRecord{
		Source:           doc.Metadata.Source,
		Page:             doc.Metadata.Page,
		Year:             doc.Metadata.Year,
		ExtractionMethod: doc.Metadata.ExtractionMethod,
		CharCount:        utf8.RuneCountInString(doc.Content),
		ContentHash:      fmt.Sprintf("%x", hash),
	}
	if err := ix.pageRepo.Upsert(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to record page: %w", err)
	}
	return rec.ID, nil
}

// Payload is the vector store payload for a chunk. year is omitted when unknown.
func Payload(c Chunk) map[string]any {
	meta := map[string]any{
		"content":           c.Content,
		"source":            c.Source,
		"page":              c.Page,
		"section":           c.Section,
		"chunk_id":          c.ChunkID,
		"extraction_method": c.ExtractionMethod,
	}
	if c.Year != nil {
		meta["year"] = *c.Year
	}
	return meta
}
