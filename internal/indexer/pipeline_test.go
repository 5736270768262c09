package indexer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/mock/gomock"

	"vitalsource-rag/internal/extraction"
	"vitalsource-rag/internal/llm"
	llm_mocks "vitalsource-rag/internal/llm/mocks"
	"vitalsource-rag/internal/storage"
	"vitalsource-rag/internal/vectorstore"
	vectorstore_mocks "vitalsource-rag/internal/vectorstore/mocks"
)

const testCollection = "medical_records"

type ledger struct {
	pages  *storage.PageRepo
	chunks *storage.ChunkRepo
}

func newLedger(t *testing.T) ledger {
	t.Helper()
	db, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return ledger{pages: storage.NewPageRepo(db), chunks: storage.NewChunkRepo(db)}
}

func testChunk(id, source string, page int, year *int, content string) Chunk {
	return Chunk{
		ChunkID:          id,
		Content:          content,
		Section:          SectionKidneyFunction,
		Source:           source,
		Page:             page,
		Year:             year,
		ExtractionMethod: extraction.MethodLlamaParse,
	}
}

func TestNewIndexer(t *testing.T) {
	ctrl := gomock.NewController(t)
	l := newLedger(t)

	ix := NewIndexer(Config{Collection: testCollection, Dimension: 768},
		llm_mocks.NewMockEmbedder(ctrl), vectorstore_mocks.NewMockVectorStore(ctrl), l.pages, l.chunks)

	if ix == nil {
		t.Fatal("NewIndexer() returned nil")
	}
	if ix.cfg.Collection != testCollection {
		t.Errorf("collection = %q", ix.cfg.Collection)
	}
}

func TestIndexer_Index(t *testing.T) {
	ctrl := gomock.NewController(t)
	l := newLedger(t)
	embedder := llm_mocks.NewMockEmbedder(ctrl)
	store := vectorstore_mocks.NewMockVectorStore(ctrl)

	ctx := context.Background()
	docs := []extraction.RawDocument{
		{Content: "# Kidney\nCreatinine 1.1", Metadata: extraction.Metadata{Source: "lab_2022.pdf", Page: 1, Year: intPtr(2022), ExtractionMethod: extraction.MethodLlamaParse}},
		{Content: "# Notes", Metadata: extraction.Metadata{Source: "lab_2022.pdf", Page: 2, Year: intPtr(2022), ExtractionMethod: extraction.MethodLlamaParse}},
	}
	chunks := []Chunk{
		testChunk("c1", "lab_2022.pdf", 1, intPtr(2022), "Creatinine 1.1"),
		testChunk("c2", "lab_2022.pdf", 1, intPtr(2022), "broken"),
		testChunk("c3", "lab_2022.pdf", 1, nil, "zero"),
	}

	store.EXPECT().WaitReady(gomock.Any(), gomock.Any()).Return(nil)
	store.EXPECT().RecreateCollection(gomock.Any(), testCollection, 768).Return(nil)
	embedder.EXPECT().Embed(gomock.Any(), "Creatinine 1.1").Return([]float32{0.1, 0.2}, nil)
	embedder.EXPECT().Embed(gomock.Any(), "broken").Return(nil, errors.New("quota exceeded"))
	embedder.EXPECT().Embed(gomock.Any(), "zero").Return(nil, llm.ErrEmptyEmbedding)
	store.EXPECT().Upsert(gomock.Any(), testCollection, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, points []vectorstore.Point) error {
			if len(points) != 1 {
				t.Fatalf("Upsert() got %d points, want 1", len(points))
			}
			p := points[0]
			if p.ID != "c1" {
				t.Errorf("point ID = %q, want c1", p.ID)
			}
			for _, key := range []string{"content", "source", "page", "year", "section", "chunk_id", "extraction_method"} {
				if _, ok := p.Meta[key]; !ok {
					t.Errorf("payload missing %q", key)
				}
			}
			return nil
		})

	ix := NewIndexer(Config{Collection: testCollection, Dimension: 768, ResetCollection: true}, embedder, store, l.pages, l.chunks)
	result, err := ix.Index(ctx, docs, chunks)
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	if result.PagesRecorded != 2 {
		t.Errorf("PagesRecorded = %d, want 2", result.PagesRecorded)
	}
	if result.ChunksAttempted != 3 || result.ChunksIndexed != 1 {
		t.Errorf("attempted/indexed = %d/%d, want 3/1", result.ChunksAttempted, result.ChunksIndexed)
	}
	if result.SkippedReasons[SkipEmbeddingError] != 1 || result.SkippedReasons[SkipEmptyEmbedding] != 1 {
		t.Errorf("SkippedReasons = %v", result.SkippedReasons)
	}
	if result.Skipped() != 2 {
		t.Errorf("Skipped() = %d, want 2", result.Skipped())
	}

	rec, err := l.chunks.GetByID(ctx, "c1")
	if err != nil {
		t.Fatalf("ledger missing c1: %v", err)
	}
	if rec.Section != SectionKidneyFunction {
		t.Errorf("ledger section = %q", rec.Section)
	}
	if _, err := l.chunks.GetByID(ctx, "c2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("skipped chunk should not be in the ledger, err = %v", err)
	}
	if n, _ := l.pages.CountWithoutChunks(ctx); n != 1 {
		t.Errorf("CountWithoutChunks() = %d, want 1", n)
	}
}

func TestIndexer_Index_Batches(t *testing.T) {
	ctrl := gomock.NewController(t)
	l := newLedger(t)
	embedder := llm_mocks.NewMockEmbedder(ctrl)
	store := vectorstore_mocks.NewMockVectorStore(ctrl)

	var chunks []Chunk
	for i := 0; i < 250; i++ {
		chunks = append(chunks, testChunk(fmt.Sprintf("c%03d", i), "big.pdf", 1+i%3, nil, fmt.Sprintf("row %d", i)))
	}

	store.EXPECT().WaitReady(gomock.Any(), gomock.Any()).Return(nil)
	store.EXPECT().EnsureCollection(gomock.Any(), testCollection, 3).Return(nil)
	embedder.EXPECT().Embed(gomock.Any(), gomock.Any()).Return([]float32{1, 0, 0}, nil).Times(250)

	var sizes []int
	store.EXPECT().Upsert(gomock.Any(), testCollection, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, points []vectorstore.Point) error {
			sizes = append(sizes, len(points))
			return nil
		}).Times(3)

	ix := NewIndexer(Config{Collection: testCollection, Dimension: 3}, embedder, store, l.pages, l.chunks)
	result, err := ix.Index(context.Background(), nil, chunks)
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	if fmt.Sprint(sizes) != "[100 100 50]" {
		t.Errorf("batch sizes = %v, want [100 100 50]", sizes)
	}
	if result.ChunksIndexed != 250 {
		t.Errorf("ChunksIndexed = %d, want 250", result.ChunksIndexed)
	}
	// Pages are recorded from chunk lineage when no document was passed.
	if n, _ := l.pages.Count(context.Background()); n != 3 {
		t.Errorf("pages = %d, want 3", n)
	}
}

func TestIndexer_Index_ReplacesPageChunks(t *testing.T) {
	ctrl := gomock.NewController(t)
	l := newLedger(t)
	embedder := llm_mocks.NewMockEmbedder(ctrl)
	store := vectorstore_mocks.NewMockVectorStore(ctrl)
	ctx := context.Background()

	doc := extraction.RawDocument{Content: "v1", Metadata: extraction.Metadata{Source: "a.pdf", Page: 1}}

	store.EXPECT().WaitReady(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	store.EXPECT().EnsureCollection(gomock.Any(), testCollection, 2).Return(nil).Times(2)
	embedder.EXPECT().Embed(gomock.Any(), gomock.Any()).Return([]float32{1, 1}, nil).Times(2)
	store.EXPECT().Upsert(gomock.Any(), testCollection, gomock.Any()).Return(nil).Times(2)
	store.EXPECT().Delete(gomock.Any(), testCollection, []string{"old"}).Return(nil)

	ix := NewIndexer(Config{Collection: testCollection, Dimension: 2}, embedder, store, l.pages, l.chunks)

	if _, err := ix.Index(ctx, []extraction.RawDocument{doc}, []Chunk{testChunk("old", "a.pdf", 1, nil, "v1")}); err != nil {
		t.Fatalf("first Index() error = %v", err)
	}
	if _, err := ix.Index(ctx, []extraction.RawDocument{doc}, []Chunk{testChunk("new", "a.pdf", 1, nil, "v2")}); err != nil {
		t.Fatalf("second Index() error = %v", err)
	}

	if _, err := l.chunks.GetByID(ctx, "old"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("old chunk should be gone, err = %v", err)
	}
	if _, err := l.chunks.GetByID(ctx, "new"); err != nil {
		t.Errorf("new chunk missing: %v", err)
	}
}

func TestIndexer_Index_StoreErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(store *vectorstore_mocks.MockVectorStore, embedder *llm_mocks.MockEmbedder)
	}{
		{
			name: "store not ready",
			setup: func(store *vectorstore_mocks.MockVectorStore, _ *llm_mocks.MockEmbedder) {
				store.EXPECT().WaitReady(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))
			},
		},
		{
			name: "recreate fails",
			setup: func(store *vectorstore_mocks.MockVectorStore, _ *llm_mocks.MockEmbedder) {
				store.EXPECT().WaitReady(gomock.Any(), gomock.Any()).Return(nil)
				store.EXPECT().RecreateCollection(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("boom"))
			},
		},
		{
			name: "upsert fails",
			setup: func(store *vectorstore_mocks.MockVectorStore, embedder *llm_mocks.MockEmbedder) {
				store.EXPECT().WaitReady(gomock.Any(), gomock.Any()).Return(nil)
				store.EXPECT().RecreateCollection(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				embedder.EXPECT().Embed(gomock.Any(), gomock.Any()).Return([]float32{1}, nil)
				store.EXPECT().Upsert(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			l := newLedger(t)
			embedder := llm_mocks.NewMockEmbedder(ctrl)
			store := vectorstore_mocks.NewMockVectorStore(ctrl)
			tt.setup(store, embedder)

			ix := NewIndexer(Config{Collection: testCollection, Dimension: 1, ResetCollection: true}, embedder, store, l.pages, l.chunks)
			if _, err := ix.Index(context.Background(), nil, []Chunk{testChunk("c", "a.pdf", 1, nil, "x")}); err == nil {
				t.Error("Index() expected error")
			}
		})
	}
}

func TestPayload(t *testing.T) {
	withYear := Payload(testChunk("id", "s.pdf", 2, intPtr(2021), "text"))
	if withYear["year"] != 2021 || withYear["page"] != 2 || withYear["chunk_id"] != "id" {
		t.Errorf("Payload() = %v", withYear)
	}

	noYear := Payload(testChunk("id", "s.pdf", 2, nil, "text"))
	if _, ok := noYear["year"]; ok {
		t.Error("Payload() should omit an unknown year")
	}
}
