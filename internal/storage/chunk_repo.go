package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks vitalsource-rag/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ChunkStore defines the ledger operations for indexed chunks.
type ChunkStore interface {
	// Insert records a chunk. chunk.ChunkID must already be set.
	Insert(ctx context.Context, chunk *ChunkRecord) error
	// DeleteByPage removes every chunk of a page.
	DeleteByPage(ctx context.Context, pageID string) error
	// ListIDsByPage returns the chunk IDs of a page; empty when none.
	ListIDsByPage(ctx context.Context, pageID string) ([]string, error)
	// GetByID returns ErrNotFound if the chunk is unknown.
	GetByID(ctx context.Context, chunkID string) (*ChunkRecord, error)
	// CharCounts returns the character count of every chunk.
	CharCounts(ctx context.Context) ([]int, error)
	// SectionCounts returns the number of chunks per section.
	SectionCounts(ctx context.Context) (map[string]int, error)
}

// ChunkRepo implements ChunkStore on SQLite.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Insert records a chunk.
func (r *ChunkRepo) Insert(ctx context.Context, chunk *ChunkRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO chunks (chunk_id, page_id, section, char_count) VALUES (?, ?, ?, ?)",
		chunk.ChunkID, chunk.PageID, chunk.Section, chunk.CharCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

// DeleteByPage removes the chunks of a page before it is re-indexed.
func (r *ChunkRepo) DeleteByPage(ctx context.Context, pageID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM chunks WHERE page_id = ?", pageID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks by page: %w", err)
	}
	return nil
}

// ListIDsByPage returns the vector point IDs belonging to a page.
func (r *ChunkRepo) ListIDsByPage(ctx context.Context, pageID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT chunk_id FROM chunks WHERE page_id = ? ORDER BY rowid",
		pageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk IDs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// GetByID gets a chunk by its ID.
func (r *ChunkRepo) GetByID(ctx context.Context, chunkID string) (*ChunkRecord, error) {
	var chunk ChunkRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT chunk_id, page_id, section, char_count FROM chunks WHERE chunk_id = ?",
		chunkID,
	).Scan(&chunk.ChunkID, &chunk.PageID, &chunk.Section, &chunk.CharCount)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk: %w", err)
	}

	return &chunk, nil
}

// CharCounts returns every chunk's character count.
func (r *ChunkRepo) CharCounts(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT char_count FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk sizes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var counts []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan chunk size: %w", err)
		}
		counts = append(counts, n)
	}
	return counts, rows.Err()
}

// SectionCounts groups chunks by section.
func (r *ChunkRepo) SectionCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT section, COUNT(*) FROM chunks GROUP BY section")
	if err != nil {
		return nil, fmt.Errorf("failed to query section counts: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	counts := make(map[string]int)
	for rows.Next() {
		var section string
		var n int
		if err := rows.Scan(&section, &n); err != nil {
			return nil, fmt.Errorf("failed to scan section count: %w", err)
		}
		counts[section] = n
	}
	return counts, rows.Err()
}
