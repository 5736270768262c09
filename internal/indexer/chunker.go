package indexer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"vitalsource-rag/internal/contextutil"
	"vitalsource-rag/internal/extraction"
)

const (
	// ChunkerVersion is folded into the index version hash; bump it when chunk output changes.
	ChunkerVersion = "section-v2"

	maxSectionRunes      = 2000 // enhanced content above this is split
	splitChunkRunes      = 1500
	splitOverlapRunes    = 150
	minBoilerplateRunes  = 500 // "other" segments shorter than this are dropped
	contextHeaderPattern = "Patient: %s | Date: %s\n"
)

// Chunker turns extracted pages into section-tagged chunks.
// It performs no I/O; only chunk IDs differ between runs on the same input.
type Chunker struct {
	rules []SectionRule
	newID func() string
}

// NewChunker creates a chunker. A nil or empty rule table selects DefaultSectionRules.
func NewChunker(rules []SectionRule) *Chunker {
	if len(rules) == 0 {
		rules = DefaultSectionRules
	}
	return &Chunker{
		rules: rules,
		newID: func() string { return uuid.New().String() },
	}
}

// Chunk processes every document in order and returns all emitted chunks.
// Documents without content are skipped.
func (c *Chunker) Chunk(ctx context.Context, docs []extraction.RawDocument) []Chunk {
	logger := contextutil.LoggerFromContext(ctx)
	if len(docs) == 0 {
		logger.WarnContext(ctx, "no documents provided to chunker")
		return nil
	}

	var chunks []Chunk
	for _, doc := range docs {
		if doc.Content == "" {
			logger.DebugContext(ctx, "skipping empty document", "source", doc.Metadata.Source, "page", doc.Metadata.Page)
			continue
		}
		chunks = append(chunks, c.chunkDocument(doc)...)
	}

	logger.InfoContext(ctx, "chunking complete", "documents", len(docs), "chunks", len(chunks))
	return chunks
}

func (c *Chunker) chunkDocument(doc extraction.RawDocument) []Chunk {
	header := ContextHeader(doc.Content)

	var chunks []Chunk
	for _, segment := range segmentByHeadings(doc.Content) {
		if strings.TrimSpace(segment) == "" {
			continue
		}

		section := classify(c.rules, segment)
		if section == SectionOther && utf8.RuneCountInString(segment) < minBoilerplateRunes {
			continue
		}

		enhanced := header + segment
		if utf8.RuneCountInString(enhanced) <= maxSectionRunes {
			chunks = append(chunks, c.newChunk(doc.Metadata, section, enhanced))
			continue
		}

		for i, piece := range SplitText(enhanced, splitChunkRunes, splitOverlapRunes) {
			if i > 0 {
				piece = header + piece
			}
			chunks = append(chunks, c.newChunk(doc.Metadata, section, piece))
		}
	}
	return chunks
}

func (c *Chunker) newChunk(meta extraction.Metadata, section, content string) Chunk {
	return Chunk{
		ChunkID:          c.newID(),
		Content:          content,
		Section:          section,
		Source:           meta.Source,
		Page:             meta.Page,
		Year:             meta.Year,
		ExtractionMethod: meta.ExtractionMethod,
	}
}

// ContextHeader builds the patient/date line prepended to every chunk of a page.
func ContextHeader(content string) string {
	return fmt.Sprintf(contextHeaderPattern, patientPattern.find(content), collDatePattern.find(content))
}
