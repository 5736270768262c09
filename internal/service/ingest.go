package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_ingest.go -package=mocks vitalsource-rag/internal/service Chunker,Indexer,IngestService

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"vitalsource-rag/internal/contextutil"
	"vitalsource-rag/internal/extraction"
	"vitalsource-rag/internal/indexer"
	"vitalsource-rag/internal/storage"
)

// Per-file ingest statuses.
const (
	FileStatusProcessed = "processed"
	FileStatusSkipped   = "skipped"
	FileStatusInvalid   = "invalid"
	FileStatusFailed    = "failed"
)

// Chunker splits extracted pages into chunks.
type Chunker interface {
	Chunk(ctx context.Context, docs []extraction.RawDocument) []indexer.Chunk
}

// Indexer embeds and stores chunks.
type Indexer interface {
	Index(ctx context.Context, docs []extraction.RawDocument, chunks []indexer.Chunk) (*indexer.IndexResult, error)
}

// UploadedFile is one document handed to the ingest service.
type UploadedFile struct {
	Filename string
	Content  io.Reader
}

// IngestRequest is a batch of uploaded documents.
type IngestRequest struct {
	Files []UploadedFile
}

// FileResult reports what happened to one uploaded file.
type FileResult struct {
	Filename string
	Status   string
	Pages    int
	Chunks   int
	Error    string
}

// IngestResponse summarizes an ingest request.
type IngestResponse struct {
	Status  string
	Message string
	// FilesProcessed lists the files that were extracted successfully.
	FilesProcessed []string
	Files          []FileResult
	TotalPages     int
	TotalChunks    int
	ChunksIndexed  int
	SkippedReasons map[string]int
}

// IngestService turns uploaded documents into indexed chunks.
type IngestService interface {
	Ingest(ctx context.Context, req IngestRequest) (IngestResponse, error)
}

// IngestConfig configures the ingest service.
type IngestConfig struct {
	RawDir            string
	AllowedExtensions []string
}

type ingestService struct {
	cfg       IngestConfig
	extractor extraction.Extractor
	chunker   Chunker
	indexer   Indexer
	runRepo   storage.RunStore
	pageCount func(path string) (int, error)
}

// NewIngestService creates a new IngestService.
func NewIngestService(cfg IngestConfig, extractor extraction.Extractor, chunker Chunker, idx Indexer, runRepo storage.RunStore) IngestService {
	return &ingestService{
		cfg:       cfg,
		extractor: extractor,
		chunker:   chunker,
		indexer:   idx,
		runRepo:   runRepo,
		pageCount: extraction.PageCount,
	}
}

// Ingest saves, validates, extracts, chunks and indexes the uploaded files,
// one file at a time. A file that fails extraction is reported and skipped.
func (s *ingestService) Ingest(ctx context.Context, req IngestRequest) (IngestResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	resp := IngestResponse{
		FilesProcessed: []string{},
		Files:          make([]FileResult, 0, len(req.Files)),
	}

	var qualifying []UploadedFile
	for _, f := range req.Files {
		if !extraction.HasAllowedExtension(f.Filename, s.cfg.AllowedExtensions) {
			logger.InfoContext(ctx, "skipping unsupported file", "filename", f.Filename)
			resp.Files = append(resp.Files, FileResult{Filename: f.Filename, Status: FileStatusSkipped})
			continue
		}
		qualifying = append(qualifying, f)
	}
	if len(qualifying) == 0 {
		return resp, ErrNoFiles
	}

	run := &storage.IngestRun{FilesReceived: len(qualifying)}
	if err := s.runRepo.Start(ctx, run); err != nil {
		logger.WarnContext(ctx, "failed to record ingest run", "error", err)
		run = nil
	}

	var docs []extraction.RawDocument
	resultIdx := make(map[string]int, len(qualifying))
	for _, f := range qualifying {
		result, pages := s.processFile(ctx, f)
		resp.Files = append(resp.Files, result)
		resultIdx[result.Filename] = len(resp.Files) - 1
		if result.Status == FileStatusProcessed {
			resp.FilesProcessed = append(resp.FilesProcessed, result.Filename)
			resp.TotalPages += len(pages)
			docs = append(docs, pages...)
		}
	}

	chunks := s.chunker.Chunk(ctx, docs)
	if len(chunks) == 0 {
		s.finishRun(ctx, run, resp, nil, ErrNoText)
		return resp, ErrNoText
	}
	for _, c := range chunks {
		if i, ok := resultIdx[c.Source]; ok {
			resp.Files[i].Chunks++
		}
	}
	resp.TotalChunks = len(chunks)

	logger.InfoContext(ctx, "indexing chunks", "chunks", len(chunks), "pages", resp.TotalPages)
	indexed, err := s.indexer.Index(ctx, docs, chunks)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrIndexing, err)
		logger.ErrorContext(ctx, "indexing failed", "error", err)
		s.finishRun(ctx, run, resp, nil, err)
		return resp, err
	}

	resp.ChunksIndexed = indexed.ChunksIndexed
	resp.SkippedReasons = indexed.SkippedReasons
	resp.Status = "Success"
	resp.Message = fmt.Sprintf("Ingestion complete. %d chunks indexed.", resp.ChunksIndexed)
	s.finishRun(ctx, run, resp, indexed, nil)

	logger.InfoContext(ctx, "ingest completed",
		"files", len(resp.FilesProcessed), "chunks", resp.TotalChunks, "indexed", resp.ChunksIndexed)
	return resp, nil
}

func (s *ingestService) processFile(ctx context.Context, f UploadedFile) (FileResult, []extraction.RawDocument) {
	logger := contextutil.LoggerFromContext(ctx).With("filename", f.Filename)
	result := FileResult{Filename: filepath.Base(f.Filename)}

	path, err := s.save(result.Filename, f.Content)
	if err != nil {
		logger.ErrorContext(ctx, "failed to save upload", "error", err)
		result.Status = FileStatusFailed
		result.Error = err.Error()
		return result, nil
	}

	pageCount, err := s.pageCount(path)
	if err != nil {
		logger.WarnContext(ctx, "uploaded file is not a readable PDF", "error", err)
		result.Status = FileStatusInvalid
		result.Error = err.Error()
		return result, nil
	}

	logger.InfoContext(ctx, "extracting document", "pages", pageCount)
	pages, err := s.extractor.Extract(ctx, path)
	if err != nil {
		logger.ErrorContext(ctx, "extraction failed", "error", err)
		result.Status = FileStatusFailed
		result.Error = err.Error()
		return result, nil
	}

	result.Status = FileStatusProcessed
	result.Pages = len(pages)
	return result, pages
}

// save writes content to RawDir under name. It goes through a temp file so
// re-ingesting a file that already lives in RawDir does not truncate it.
func (s *ingestService) save(name string, content io.Reader) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid filename %q", name)
	}
	if err := os.MkdirAll(s.cfg.RawDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create raw dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.cfg.RawDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, content); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close upload: %w", err)
	}

	dest := filepath.Join(s.cfg.RawDir, name)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return dest, nil
}

func (s *ingestService) finishRun(ctx context.Context, run *storage.IngestRun, resp IngestResponse, indexed *indexer.IndexResult, runErr error) {
	if run == nil {
		return
	}

	run.FilesProcessed = len(resp.FilesProcessed)
	run.TotalPages = resp.TotalPages
	run.ChunksAttempted = resp.TotalChunks
	run.Status = storage.RunStatusSucceeded
	if indexed != nil {
		run.ChunksIndexed = indexed.ChunksIndexed
		run.SkippedReasons = indexed.SkippedReasons
	}
	if runErr != nil {
		run.Status = storage.RunStatusFailed
		run.Error = runErr.Error()
	}

	if err := s.runRepo.Finish(ctx, run); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to finish ingest run", "run_id", run.ID, "error", err)
	}
}
