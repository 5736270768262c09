package extraction

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_extractor.go -package=mocks vitalsource-rag/internal/extraction Extractor

import "context"

// MethodLlamaParse is recorded on every page extracted by the LlamaParse client.
const MethodLlamaParse = "llama_parse_ocr_medical"

// Metadata is the lineage of one extracted page.
type Metadata struct {
	Source           string // original filename
	Page             int    // 1-based
	Year             *int   // parsed from the filename, nil when absent
	ExtractionMethod string
}

// RawDocument is the cleaned markdown of a single page.
type RawDocument struct {
	Content  string
	Metadata Metadata
}

// Extractor turns a document on disk into per-page markdown.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]RawDocument, error)
}
