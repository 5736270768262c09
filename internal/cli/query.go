package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vitalsource-rag/internal/handlers"
	"vitalsource-rag/internal/service"
)

var (
	queryYear  int
	queryLimit int
	queryJSON  bool
)

var queryCmd = &cobra.Command{
	Use:   "query QUESTION",
	Short: "Ask a question about the indexed records",
	Long: `Retrieves the most relevant records and answers with numbered source citations.
--year restricts retrieval to reports of that year only.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryYear, "year", "y", 0, "only use records from this year (0 = all years)")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 0, "number of records to retrieve (0 = server default)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	svc, err := getServices(ctx)
	if err != nil {
		return err
	}

	req := service.QueryRequest{Question: args[0], Limit: queryLimit}
	if queryYear != 0 {
		year := queryYear
		req.YearFilter = &year
	}

	resp, err := svc.Query.Query(ctx, req)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return printJSON(cmd, handlers.NewQueryResponse(resp))
	}

	cmd.Println(resp.Answer)
	if len(resp.Citations) == 0 {
		return nil
	}
	cmd.Println()
	cmd.Println("Sources:")
	for i, c := range resp.Citations {
		marker := " "
		if c.Cited {
			marker = "*"
		}
		cmd.Printf(" %s[%d] %s p.%d (%s) %s certainty %.2f\n", marker, i+1, c.Source, c.Page, yearString(c.Year), c.Section, c.Certainty)
		cmd.Printf("       %s\n", c.Snippet)
	}
	if resp.ConfidenceScore != nil {
		cmd.Printf("\nConfidence: %.2f\n", *resp.ConfidenceScore)
	}
	return nil
}
