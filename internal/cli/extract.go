package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	extractDir  string
	extractJSON bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [files...]",
	Short: "Extract pages without indexing",
	Long: `Runs only the extraction stage and prints the cleaned markdown of every page.
Nothing is written to the vector store.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractDir, "dir", "d", "", "extract every supported document under this directory")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "output pages as JSON")
	rootCmd.AddCommand(extractCmd)
}

type extractedPage struct {
	Source           string `json:"source"`
	Page             int    `json:"page"`
	Year             *int   `json:"year"`
	ExtractionMethod string `json:"extraction_method"`
	Content          string `json:"content"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	svc, err := getServices(ctx)
	if err != nil {
		return err
	}

	paths, err := collectPaths(ctx, args, extractDir, svc.AllowedExtensions)
	if err != nil {
		return err
	}

	var pages []extractedPage
	for _, p := range paths {
		docs, err := svc.Extractor.Extract(ctx, p)
		if err != nil {
			return fmt.Errorf("extraction failed for %s: %w", filepath.Base(p), err)
		}
		for _, d := range docs {
			pages = append(pages, extractedPage{
				Source:           d.Metadata.Source,
				Page:             d.Metadata.Page,
				Year:             d.Metadata.Year,
				ExtractionMethod: d.Metadata.ExtractionMethod,
				Content:          d.Content,
			})
		}
	}

	if extractJSON {
		if pages == nil {
			pages = []extractedPage{}
		}
		return printJSON(cmd, pages)
	}

	if len(pages) == 0 {
		cmd.Println("No text extracted.")
		return nil
	}
	for _, p := range pages {
		cmd.Printf("=== %s page %d (year %s) ===\n", p.Source, p.Page, yearString(p.Year))
		cmd.Println(p.Content)
		cmd.Println()
	}
	return nil
}
