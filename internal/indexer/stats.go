package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"vitalsource-rag/internal/storage"
)

// IndexingCoverageStats contains statistics about the indexing process.
type IndexingCoverageStats struct {
	// PagesProcessed is the number of pages in the ledger.
	PagesProcessed int `json:"pages_processed"`
	// PagesWith0Chunks is the number of pages that produced no indexed chunk.
	PagesWith0Chunks int `json:"pages_with_0_chunks"`
	// ChunksAttempted is taken from the latest ingest run.
	ChunksAttempted int `json:"chunks_attempted"`
	// ChunksIndexed is the number of chunks in the ledger.
	ChunksIndexed int `json:"chunks_indexed"`
	// ChunksSkipped is the number of chunks skipped in the latest run.
	ChunksSkipped int `json:"chunks_skipped"`
	// ChunksSkippedReasons is a breakdown of why chunks were skipped.
	ChunksSkippedReasons map[string]int `json:"chunks_skipped_reasons,omitempty"`
	// SectionCounts is the number of indexed chunks per section.
	SectionCounts map[string]int `json:"section_counts"`
	// ChunkCharStats describes chunk sizes in characters.
	ChunkCharStats ChunkCharStats `json:"chunk_char_stats"`
	// ChunkerVersion is the version of the chunker used.
	ChunkerVersion string `json:"chunker_version"`
	// IndexVersion is a hash identifying the index build (chunker + embedding model + params).
	IndexVersion string `json:"index_version"`
	// LastRunAt is when the latest ingest run started.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	// LastRunStatus is the status of the latest ingest run.
	LastRunStatus string `json:"last_run_status,omitempty"`
}

// ChunkCharStats contains statistics about character counts in chunks.
type ChunkCharStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// GetIndexingCoverageStats computes indexing coverage statistics from the ledger.
func GetIndexingCoverageStats(
	ctx context.Context,
	pageRepo storage.PageStore,
	chunkRepo storage.ChunkStore,
	runRepo storage.RunStore,
	embeddingModelName string,
) (*IndexingCoverageStats, error) {
	stats := &IndexingCoverageStats{
		ChunksSkippedReasons: make(map[string]int),
		ChunkerVersion:       ChunkerVersion,
		IndexVersion:         IndexVersion(embeddingModelName),
	}

	pages, err := pageRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	stats.PagesProcessed = pages

	empty, err := pageRepo.CountWithoutChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pages with 0 chunks: %w", err)
	}
	stats.PagesWith0Chunks = empty

	counts, err := chunkRepo.CharCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk sizes: %w", err)
	}
	stats.ChunksIndexed = len(counts)
	stats.ChunkCharStats = computeCharStats(counts)

	sections, err := chunkRepo.SectionCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count sections: %w", err)
	}
	stats.SectionCounts = sections

	stats.ChunksAttempted = stats.ChunksIndexed
	run, err := runRepo.Latest(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load latest run: %w", err)
	default:
		stats.ChunksAttempted = run.ChunksAttempted
		for reason, n := range run.SkippedReasons {
			stats.ChunksSkippedReasons[reason] = n
			stats.ChunksSkipped += n
		}
		startedAt := run.StartedAt
		stats.LastRunAt = &startedAt
		stats.LastRunStatus = run.Status
	}

	return stats, nil
}

// IndexVersion hashes the chunker version, embedding model and chunking parameters.
func IndexVersion(embeddingModelName string) string {
	input := fmt.Sprintf("%s|%s|maxSection=%d|split=%d|overlap=%d|minOther=%d",
		ChunkerVersion, embeddingModelName, maxSectionRunes, splitChunkRunes, splitOverlapRunes, minBoilerplateRunes)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}

// computeCharStats computes min, max, mean, and p95 from character counts.
func computeCharStats(counts []int) ChunkCharStats {
	if len(counts) == 0 {
		return ChunkCharStats{}
	}

	sorted := make([]int, len(counts))
	copy(sorted, counts)
	sort.Ints(sorted)

	sum := 0
	for _, c := range sorted {
		sum += c
	}
	mean := float64(sum) / float64(len(sorted))

	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}

	return ChunkCharStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100,
		P95:  sorted[p95Index],
	}
}
