package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vitalsource-rag/internal/rag"
	"vitalsource-rag/internal/vectorstore"
)

var inspectLimit int

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the vector collection and sample chunks",
	Long: `Reports whether the collection exists, its vector size and point count,
and prints a sample of stored chunks with their metadata.`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().IntVarP(&inspectLimit, "limit", "n", 5, "number of sample chunks to print")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	svc, err := getServices(ctx)
	if err != nil {
		return err
	}

	exists, err := svc.Store.CollectionExists(ctx, svc.Collection)
	if err != nil {
		return fmt.Errorf("failed to reach vector store: %w", err)
	}
	if !exists {
		cmd.Printf("Collection %s does not exist. Ingest documents first.\n", svc.Collection)
		return nil
	}

	info, err := svc.Store.GetCollectionInfo(ctx, svc.Collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}
	cmd.Printf("Collection: %s\n", svc.Collection)
	cmd.Printf("  status:      %s\n", info.Status)
	cmd.Printf("  vector size: %d\n", info.VectorSize)
	cmd.Printf("  points:      %d\n", info.PointsCount)

	if inspectLimit <= 0 || info.PointsCount == 0 {
		return nil
	}

	points, err := svc.Store.Scroll(ctx, svc.Collection, inspectLimit)
	if err != nil {
		return fmt.Errorf("failed to read sample chunks: %w", err)
	}
	cmd.Println()
	cmd.Printf("Sample chunks (%d):\n", len(points))
	for i, p := range points {
		year := "unknown"
		if y, ok := vectorstore.PayloadInt(p.Meta, "year"); ok {
			year = fmt.Sprintf("%d", y)
		}
		page, _ := vectorstore.PayloadInt(p.Meta, "page")
		cmd.Printf("  [%d] %s p.%d (%s) %s\n", i+1,
			vectorstore.PayloadString(p.Meta, "source"), page, year,
			vectorstore.PayloadString(p.Meta, "section"))
		cmd.Printf("      id: %s\n", p.PointID)
		cmd.Printf("      %s\n", strings.TrimSpace(rag.Snippet(vectorstore.PayloadString(p.Meta, "content"))))
	}
	return nil
}
