package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_page_store.go -package=mocks vitalsource-rag/internal/storage PageStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PageStore defines the ledger operations for extracted pages.
type PageStore interface {
	// GetBySourcePage returns ErrNotFound when the page was never indexed.
	GetBySourcePage(ctx context.Context, source string, page int) (*PageRecord, error)
	// Upsert inserts the page or refreshes it, keeping the existing ID.
	// page.ID is set on return.
	Upsert(ctx context.Context, page *PageRecord) error
	// Count returns the number of pages in the ledger.
	Count(ctx context.Context) (int, error)
	// CountWithoutChunks returns the number of pages that produced no chunk.
	CountWithoutChunks(ctx context.Context) (int, error)
	// DeleteAll clears pages and, by cascade, their chunks.
	DeleteAll(ctx context.Context) error
}

// PageRepo implements PageStore on SQLite.
type PageRepo struct {
	db *sql.DB
}

// NewPageRepo creates a new PageRepo.
func NewPageRepo(db *sql.DB) *PageRepo {
	return &PageRepo{db: db}
}

// GetBySourcePage looks a page up by its natural key.
func (r *PageRepo) GetBySourcePage(ctx context.Context, source string, page int) (*PageRecord, error) {
	var rec PageRecord
	var year sql.NullInt64

	err := r.db.QueryRowContext(ctx,
		`SELECT id, source, page, year, extraction_method, char_count, content_hash, created_at
		 FROM pages WHERE source = ? AND page = ?`,
		source, page,
	).Scan(&rec.ID, &rec.Source, &rec.Page, &year, &rec.ExtractionMethod, &rec.CharCount, &rec.ContentHash, &rec.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query page: %w", err)
	}

	if year.Valid {
		y := int(year.Int64)
		rec.Year = &y
	}
	return &rec, nil
}

// Upsert inserts a new page or updates the existing (source, page) row.
func (r *PageRepo) Upsert(ctx context.Context, page *PageRecord) error {
	existing, err := r.GetBySourcePage(ctx, page.Source, page.Page)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to check existing page: %w", err)
	}

	var year any
	if page.Year != nil {
		year = *page.Year
	}

	if existing != nil {
		page.ID = existing.ID
		_, err = r.db.ExecContext(ctx,
			`UPDATE pages SET year = ?, extraction_method = ?, char_count = ?, content_hash = ?
			 WHERE id = ?`,
			year, page.ExtractionMethod, page.CharCount, page.ContentHash, page.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update page: %w", err)
		}
		return nil
	}

	if page.ID == "" {
		page.ID = uuid.New().String()
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO pages (id, source, page, year, extraction_method, char_count, content_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		page.ID, page.Source, page.Page, year, page.ExtractionMethod, page.CharCount, page.ContentHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert page: %w", err)
	}
	return nil
}

// Count returns the number of pages in the ledger.
func (r *PageRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

// CountWithoutChunks returns the number of pages with no chunk rows.
func (r *PageRepo) CountWithoutChunks(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pages
		 WHERE id NOT IN (SELECT DISTINCT page_id FROM chunks)`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages without chunks: %w", err)
	}
	return n, nil
}

// DeleteAll removes every page; chunk rows go with them.
func (r *PageRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM pages"); err != nil {
		return fmt.Errorf("failed to delete pages: %w", err)
	}
	return nil
}
