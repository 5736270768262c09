package indexer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"vitalsource-rag/internal/extraction"
)

func intPtr(v int) *int { return &v }

func rawDoc(content string) extraction.RawDocument {
	return extraction.RawDocument{
		Content: content,
		Metadata: extraction.Metadata{
			Source:           "lab_report_2023.pdf",
			Page:             1,
			Year:             intPtr(2023),
			ExtractionMethod: extraction.MethodLlamaParse,
		},
	}
}

func TestNewChunker(t *testing.T) {
	c := NewChunker(nil)
	if c == nil {
		t.Fatal("NewChunker() returned nil")
	}
	if len(c.rules) != len(DefaultSectionRules) {
		t.Errorf("NewChunker(nil) rules = %d, want defaults", len(c.rules))
	}

	custom := []SectionRule{{Section: "thyroid", Keywords: []string{"tsh"}}}
	if got := NewChunker(custom).rules; len(got) != 1 || got[0].Section != "thyroid" {
		t.Errorf("NewChunker(custom) rules = %v", got)
	}
}

func TestChunker_JaneDoeLipidProfile(t *testing.T) {
	chunker := NewChunker(nil)
	doc := rawDoc("PATIENT: Jane Doe\nCOLL DATE: 2023-01-01\n# LIPID PROFILE\nLDL: 155 mg/dL\n")

	chunks := chunker.Chunk(context.Background(), []extraction.RawDocument{doc})

	if len(chunks) != 1 {
		t.Fatalf("Chunk() returned %d chunks, want 1: %+v", len(chunks), chunks)
	}
	got := chunks[0]
	if got.Section != SectionLipidProfile {
		t.Errorf("Section = %q, want %q", got.Section, SectionLipidProfile)
	}
	if !strings.HasPrefix(got.Content, "Patient: Jane Doe | Date: 2023-01-01") {
		t.Errorf("Content = %q, want context header prefix", got.Content)
	}
	if !strings.Contains(got.Content, "LDL: 155 mg/dL") {
		t.Errorf("Content lost the lab value: %q", got.Content)
	}
	if got.Source != "lab_report_2023.pdf" || got.Page != 1 || got.Year == nil || *got.Year != 2023 {
		t.Errorf("lineage = %s p%d %v", got.Source, got.Page, got.Year)
	}
	if got.ExtractionMethod != extraction.MethodLlamaParse {
		t.Errorf("ExtractionMethod = %q", got.ExtractionMethod)
	}
	if got.ChunkID == "" {
		t.Error("ChunkID should be set")
	}
}

func TestChunker_SectionClassification(t *testing.T) {
	tests := []struct {
		heading string
		want    string
	}{
		{"# COMPLETE BLOOD COUNT (CBC)", SectionCBC},
		{"## Hematology", SectionCBC},
		{"# Lipid Panel", SectionLipidProfile},
		{"# Total Cholesterol", SectionLipidProfile},
		{"# Diabetes Screening", SectionGlucoseDiabetes},
		{"# HbA1c", SectionGlucoseDiabetes},
		{"# Fasting Glucose", SectionGlucoseDiabetes},
		{"# Kidney Function Test", SectionKidneyFunction},
		{"# Serum Creatinine", SectionKidneyFunction},
		{"# Liver Function", SectionLiverFunction},
		{"# SGPT / SGOT", SectionLiverFunction},
		{"# Serum Electrolytes", SectionElectrolytes},
		{"# Clinical Interpretation", SectionClinicalInterpretation},
		{"# Diagnosis", SectionClinicalInterpretation},
	}

	chunker := NewChunker(nil)
	for _, tt := range tests {
		t.Run(tt.heading, func(t *testing.T) {
			chunks := chunker.Chunk(context.Background(), []extraction.RawDocument{rawDoc(tt.heading + "\nValue: 1\n")})
			if len(chunks) != 1 {
				t.Fatalf("Chunk() returned %d chunks, want 1", len(chunks))
			}
			if chunks[0].Section != tt.want {
				t.Errorf("Section = %q, want %q", chunks[0].Section, tt.want)
			}
		})
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	// "cbc" precedes "glucose" in the rule table.
	if got := classify(DefaultSectionRules, "# CBC and Glucose\nbody"); got != SectionCBC {
		t.Errorf("classify() = %q, want %q", got, SectionCBC)
	}
	// Only the first line is considered.
	if got := classify(DefaultSectionRules, "# Notes\nlipid values follow"); got != SectionOther {
		t.Errorf("classify() = %q, want %q", got, SectionOther)
	}
}

func TestChunker_BoilerplateFilter(t *testing.T) {
	chunker := NewChunker(nil)

	short := "# Lab Notes\n" + strings.Repeat("x", 400) + "\n"
	long := "# Lab Notes\n" + strings.Repeat("y", 600) + "\n"

	chunks := chunker.Chunk(context.Background(), []extraction.RawDocument{rawDoc(short), rawDoc(long)})
	if len(chunks) != 1 {
		t.Fatalf("Chunk() returned %d chunks, want only the long other segment", len(chunks))
	}

	for _, c := range chunks {
		if c.Section != SectionOther {
			continue
		}
		body := strings.TrimPrefix(c.Content, ContextHeader(long))
		if utf8.RuneCountInString(body) < minBoilerplateRunes {
			t.Errorf("other chunk with %d runes survived the filter", utf8.RuneCountInString(body))
		}
	}
}

func TestChunker_SplitsLongSections(t *testing.T) {
	var b strings.Builder
	b.WriteString("PATIENT: John Roe\nCOLL DATE: 2022-05-05\n# COMPLETE BLOOD COUNT\n")
	for i := 0; b.Len() < 5000; i++ {
		fmt.Fprintf(&b, "Test %d: %d.%d g/dL reference range 12.0-16.0\n", i, 10+i%5, i%10)
	}

	chunks := NewChunker(nil).Chunk(context.Background(), []extraction.RawDocument{rawDoc(b.String())})
	if len(chunks) < 3 {
		t.Fatalf("Chunk() returned %d chunks, want the section split", len(chunks))
	}

	header := "Patient: John Roe | Date: 2022-05-05\n"
	for i, c := range chunks {
		if c.Section != SectionCBC {
			t.Errorf("chunk %d section = %q, want cbc", i, c.Section)
		}
		if !strings.HasPrefix(c.Content, header) {
			t.Errorf("chunk %d lost the context header: %q", i, c.Content[:40])
		}
		if n := utf8.RuneCountInString(c.Content); n > splitChunkRunes+utf8.RuneCountInString(header) {
			t.Errorf("chunk %d has %d runes", i, n)
		}
	}
}

func TestChunker_SplitsAfterHeadingBreak(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		maxChunks int
	}{
		{name: "long paragraph", body: strings.Repeat("Hemoglobin 14.5 g/dL within range ", 80), maxChunks: 3},
		{name: "no spaces", body: strings.Repeat("x", 3000), maxChunks: 4},
	}

	header := "Patient: Jane Doe | Date: 2023-01-01\n"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := "PATIENT: Jane Doe\nCOLL DATE: 2023-01-01\n# COMPLETE BLOOD COUNT\n\n" + tt.body

			chunks := NewChunker(nil).Chunk(context.Background(), []extraction.RawDocument{rawDoc(page)})
			if len(chunks) < 2 || len(chunks) > tt.maxChunks {
				t.Fatalf("Chunk() returned %d chunks, want 2..%d", len(chunks), tt.maxChunks)
			}
			for i, c := range chunks {
				if !strings.HasPrefix(c.Content, header) {
					t.Errorf("chunk %d lost the context header", i)
				}
				if strings.Contains(strings.TrimPrefix(c.Content, header), "Jane Doe") {
					t.Errorf("chunk %d repeats a fragment of the header: %q", i, c.Content[:60])
				}
			}
		})
	}
}

func TestChunker_DistinctIDs(t *testing.T) {
	var docs []extraction.RawDocument
	for i := 0; i < 20; i++ {
		docs = append(docs, rawDoc("# Lipid Profile\nLDL: 155\n# CBC\nHb: 13\n"))
	}

	chunks := NewChunker(nil).Chunk(context.Background(), docs)
	if len(chunks) != 40 {
		t.Fatalf("Chunk() returned %d chunks, want 40", len(chunks))
	}

	seen := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		if seen[c.ChunkID] {
			t.Fatalf("duplicate chunk ID %s", c.ChunkID)
		}
		seen[c.ChunkID] = true
	}
}

func TestChunker_Idempotent(t *testing.T) {
	docs := []extraction.RawDocument{
		rawDoc("PATIENT: Jane Doe\n# Kidney Function\nCreatinine: 1.1 mg/dL\n# Interpretation\nNormal.\n"),
		rawDoc("# Liver Function\n" + strings.Repeat("ALT: 30 U/L. ", 300)),
	}
	chunker := NewChunker(nil)

	first := chunker.Chunk(context.Background(), docs)
	second := chunker.Chunk(context.Background(), docs)

	if len(first) != len(second) {
		t.Fatalf("runs returned %d and %d chunks", len(first), len(second))
	}
	for i := range first {
		if first[i].Content != second[i].Content || first[i].Section != second[i].Section {
			t.Errorf("chunk %d differs between runs", i)
		}
		if first[i].ChunkID == second[i].ChunkID {
			t.Errorf("chunk %d reused its ID across runs", i)
		}
	}
}

func TestChunker_SkipsEmpty(t *testing.T) {
	chunker := NewChunker(nil)
	if got := chunker.Chunk(context.Background(), nil); len(got) != 0 {
		t.Errorf("Chunk(nil) = %v", got)
	}
	if got := chunker.Chunk(context.Background(), []extraction.RawDocument{rawDoc(""), rawDoc("  \n\n")}); len(got) != 0 {
		t.Errorf("Chunk(blank docs) = %v", got)
	}
}

func TestContextHeader(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"both present", "PATIENT: Jane Doe\nCOLL DATE: 2023-01-01\n", "Patient: Jane Doe | Date: 2023-01-01\n"},
		{"missing", "# CBC\nHb: 13", "Patient: Unknown Patient | Date: Unknown Date\n"},
		{"table cell", "| **PATIENT:** John Roe |\n| COLL DATE: 2021-03-04 |", "Patient: John Roe | Date: 2021-03-04\n"},
		{"lower case", "patient: Ann\ncoll date: 2020-02-02", "Patient: Ann | Date: 2020-02-02\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContextHeader(tt.content); got != tt.want {
				t.Errorf("ContextHeader() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSegmentByHeadings(t *testing.T) {
	content := "preamble line\n# First\nbody 1\n  ## Second\nbody 2\nno trailing newline"
	segments := segmentByHeadings(content)

	if len(segments) != 3 {
		t.Fatalf("segmentByHeadings() = %q, want 3 segments", segments)
	}
	if !strings.HasPrefix(segments[1], "# First") || !strings.HasPrefix(segments[2], "  ## Second") {
		t.Errorf("segments = %q", segments)
	}
	if strings.Join(segments, "") != content {
		t.Error("segments should reassemble the original content")
	}
}
