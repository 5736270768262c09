package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"vitalsource-rag/internal/app"
	"vitalsource-rag/internal/config"
	"vitalsource-rag/internal/extraction"
	"vitalsource-rag/internal/indexer"
)

var (
	chunkSource string
	chunkPage   int
	chunkRules  string
	chunkJSON   bool
)

var chunkCmd = &cobra.Command{
	Use:   "chunk FILE.md",
	Short: "Preview how a markdown page is chunked",
	Long: `Runs the section-aware chunker over one page of markdown and prints the
resulting chunks. Works offline; no credentials are needed.
The year is parsed from --source (or the file name) the same way ingest does.`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func init() {
	chunkCmd.Flags().StringVar(&chunkSource, "source", "", "source filename recorded on the chunks (default: FILE's name)")
	chunkCmd.Flags().IntVar(&chunkPage, "page", 1, "page number recorded on the chunks")
	chunkCmd.Flags().StringVar(&chunkRules, "rules", "", "YAML rules file overriding the section keywords")
	chunkCmd.Flags().BoolVar(&chunkJSON, "json", false, "output chunks as JSON")
	rootCmd.AddCommand(chunkCmd)
}

type chunkView struct {
	ChunkID string `json:"chunk_id"`
	Section string `json:"section"`
	Source  string `json:"source"`
	Page    int    `json:"page"`
	Year    *int   `json:"year"`
	Chars   int    `json:"chars"`
	Content string `json:"content"`
}

func runChunk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	rules, err := config.LoadRules(chunkRules)
	if err != nil {
		return err
	}

	source := chunkSource
	if source == "" {
		source = filepath.Base(args[0])
	}

	doc := extraction.RawDocument{
		Content: string(content),
		Metadata: extraction.Metadata{
			Source:           source,
			Page:             chunkPage,
			Year:             extraction.ParseYear(source),
			ExtractionMethod: "markdown_file",
		},
	}

	chunks := indexer.NewChunker(app.SectionRules(rules)).Chunk(ctx, []extraction.RawDocument{doc})

	views := make([]chunkView, 0, len(chunks))
	for _, c := range chunks {
		views = append(views, chunkView{
			ChunkID: c.ChunkID,
			Section: c.Section,
			Source:  c.Source,
			Page:    c.Page,
			Year:    c.Year,
			Chars:   utf8.RuneCountInString(c.Content),
			Content: c.Content,
		})
	}

	if chunkJSON {
		return printJSON(cmd, views)
	}

	if len(views) == 0 {
		cmd.Println("No chunks produced.")
		return nil
	}
	cmd.Printf("%d chunks from %s page %d (year %s)\n\n", len(views), source, chunkPage, yearString(doc.Metadata.Year))
	for i, v := range views {
		cmd.Printf("[%d] %s (%d chars) %s\n", i+1, v.Section, v.Chars, v.ChunkID)
		cmd.Println(v.Content)
		cmd.Println()
	}
	return nil
}
