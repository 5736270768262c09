package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"vitalsource-rag/internal/extraction"
	"vitalsource-rag/internal/handlers"
	"vitalsource-rag/internal/service"
)

var (
	ingestDir  string
	ingestJSON bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Ingest lab report PDFs",
	Long: `Extracts, chunks, embeds and indexes the given documents in-process,
exactly as POST /api/v1/ingest does. Use --dir to ingest every supported
document under a directory.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestDir, "dir", "d", "", "ingest every supported document under this directory")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	svc, err := getServices(ctx)
	if err != nil {
		return err
	}

	paths, err := collectPaths(ctx, args, ingestDir, svc.AllowedExtensions)
	if err != nil {
		return err
	}

	files := make([]service.UploadedFile, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll(files)
			return fmt.Errorf("failed to open %s: %w", p, err)
		}
		files = append(files, service.UploadedFile{Filename: filepath.Base(p), Content: f})
	}
	defer closeAll(files)

	resp, err := svc.Ingest.Ingest(ctx, service.IngestRequest{Files: files})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if ingestJSON {
		return printJSON(cmd, handlers.NewIngestResponse(resp))
	}

	for _, f := range resp.Files {
		line := fmt.Sprintf("  %-9s %s", f.Status, f.Filename)
		if f.Status == service.FileStatusProcessed {
			line += fmt.Sprintf(" (%d pages, %d chunks)", f.Pages, f.Chunks)
		}
		if f.Error != "" {
			line += ": " + f.Error
		}
		cmd.Println(line)
	}
	cmd.Println()
	cmd.Println(resp.Message)
	for reason, n := range resp.SkippedReasons {
		cmd.Printf("  skipped %d chunks: %s\n", n, reason)
	}
	return nil
}

// collectPaths merges explicit file arguments with a directory scan.
func collectPaths(ctx context.Context, args []string, dir string, exts []string) ([]string, error) {
	paths := append([]string(nil), args...)
	if dir != "" {
		scanned, err := extraction.ScanDir(ctx, dir, exts)
		if err != nil {
			return nil, err
		}
		for _, f := range scanned {
			paths = append(paths, f.AbsPath)
		}
	}
	if len(paths) == 0 {
		return nil, errors.New("no documents given: pass files or --dir")
	}
	return paths, nil
}

func closeAll(files []service.UploadedFile) {
	for _, f := range files {
		if c, ok := f.Content.(*os.File); ok {
			_ = c.Close()
		}
	}
}
