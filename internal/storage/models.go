package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// PageRecord is one extracted page that reached the indexer.
type PageRecord struct {
	ID               string // UUID
	Source           string
	Page             int
	Year             *int
	ExtractionMethod string
	CharCount        int
	ContentHash      string // SHA256 hex of the cleaned page markdown
	CreatedAt        time.Time
}

// ChunkRecord is the ledger entry for an indexed chunk.
type ChunkRecord struct {
	ChunkID   string // same as the vector point ID
	PageID    string
	Section   string
	CharCount int
}

// IngestRun summarizes one ingest request.
type IngestRun struct {
	ID              string
	StartedAt       time.Time
	FinishedAt      *time.Time
	Status          string
	FilesReceived   int
	FilesProcessed  int
	TotalPages      int
	ChunksAttempted int
	ChunksIndexed   int
	SkippedReasons  map[string]int
	Error           string
}
