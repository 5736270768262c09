// Package cli implements the vitalctl command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vitalsource-rag/internal/extraction"
	"vitalsource-rag/internal/service"
	"vitalsource-rag/internal/vectorstore"
)

// CollectionInspector is the read-only view of the vector store used by inspect.
type CollectionInspector interface {
	CollectionExists(ctx context.Context, collection string) (bool, error)
	GetCollectionInfo(ctx context.Context, collection string) (*vectorstore.CollectionInfo, error)
	Scroll(ctx context.Context, collection string, limit int) ([]vectorstore.SearchResult, error)
}

// Services are the in-process components the networked commands drive.
type Services struct {
	Ingest            service.IngestService
	Query             service.QueryService
	Extractor         extraction.Extractor
	Store             CollectionInspector
	Collection        string
	AllowedExtensions []string
	// Close releases connections; may be nil.
	Close func()
}

// Loader builds Services on first use so offline commands never need credentials.
type Loader func(ctx context.Context) (*Services, error)

var (
	loadServices Loader
	services     *Services
)

var rootCmd = &cobra.Command{
	Use:   "vitalctl",
	Short: "Ingest and query medical lab reports",
	Long: `vitalctl drives the VitalSource pipeline in-process: extract lab report PDFs,
preview chunking, ingest into the vector store, ask questions, inspect the
collection, and score answers against a ground-truth file.`,
	SilenceUsage: true,
}

// Execute runs the root command with the given service loader.
func Execute(ctx context.Context, loader Loader) error {
	loadServices = loader
	defer closeServices()
	rootCmd.SetOut(os.Stdout)
	return rootCmd.ExecuteContext(ctx)
}

// getServices loads the services once per process.
func getServices(ctx context.Context) (*Services, error) {
	if services != nil {
		return services, nil
	}
	if loadServices == nil {
		return nil, errors.New("services not configured")
	}
	s, err := loadServices(ctx)
	if err != nil {
		return nil, err
	}
	services = s
	return services, nil
}

func closeServices() {
	if services != nil && services.Close != nil {
		services.Close()
	}
	services = nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func yearString(year *int) string {
	if year == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d", *year)
}
