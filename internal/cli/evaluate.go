package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"vitalsource-rag/internal/handlers"
)

var (
	evaluateCases   string
	evaluateServer  string
	evaluateTimeout time.Duration
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score answers against ground-truth cases",
	Long: `Sends every case in a TOML file to a running API server with its year filter,
checks that the expected value appears in the answer, and that the top
citation comes from the expected year. Prints a final score.

  [[cases]]
  year = 2022
  question = "What is the Creatinine level?"
  expected_value = "0.95"
  unit = "mg/dL"`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&evaluateCases, "cases", "c", "", "TOML file of ground-truth cases")
	evaluateCmd.Flags().StringVarP(&evaluateServer, "server", "s", "http://localhost:8000", "base URL of the API server")
	evaluateCmd.Flags().DurationVar(&evaluateTimeout, "timeout", 2*time.Minute, "per-question request timeout")
	_ = evaluateCmd.MarkFlagRequired("cases")
	rootCmd.AddCommand(evaluateCmd)
}

// EvalCase is one ground-truth question.
type EvalCase struct {
	Year          int    `toml:"year"`
	Question      string `toml:"question"`
	ExpectedValue string `toml:"expected_value"`
	Unit          string `toml:"unit"`
}

type evalFile struct {
	Cases []EvalCase `toml:"cases"`
}

// LoadEvalCases reads and validates a cases file.
func LoadEvalCases(path string) ([]EvalCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cases file: %w", err)
	}
	var f evalFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse cases file %s: %w", path, err)
	}
	if len(f.Cases) == 0 {
		return nil, fmt.Errorf("cases file %s has no [[cases]]", path)
	}
	for i, c := range f.Cases {
		if strings.TrimSpace(c.Question) == "" || strings.TrimSpace(c.ExpectedValue) == "" {
			return nil, fmt.Errorf("case %d needs a question and an expected_value", i+1)
		}
	}
	return f.Cases, nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeAnswer drops markdown bold markers and non-breaking spaces,
// collapses whitespace and lowercases, so "**0.95** mg/dL" matches "0.95 mg/dl".
func NormalizeAnswer(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.NewReplacer("\u00a0", " ", "\u202f", " ").Replace(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// caseOutcome is the verdict for one case.
type caseOutcome struct {
	AnswerMatch bool
	// YearOK is nil when the response carried no citations.
	YearOK    *bool
	CitedYear *int
	ChunkID   string
}

func judge(c EvalCase, resp handlers.QueryResponse) caseOutcome {
	out := caseOutcome{
		AnswerMatch: strings.Contains(NormalizeAnswer(resp.Answer), NormalizeAnswer(c.ExpectedValue)),
	}
	if len(resp.Citations) > 0 {
		top := resp.Citations[0]
		ok := top.Year != nil && *top.Year == c.Year
		out.YearOK = &ok
		out.CitedYear = top.Year
		out.ChunkID = top.ChunkID
	}
	return out
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cases, err := LoadEvalCases(evaluateCases)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: evaluateTimeout}
	endpoint := strings.TrimRight(evaluateServer, "/") + "/api/v1/query"

	cmd.Printf("Evaluating %d cases against %s\n\n", len(cases), endpoint)

	score, wrongYear := 0, 0
	for i, c := range cases {
		cmd.Printf("Case %d (%d): %s\n", i+1, c.Year, c.Question)

		start := time.Now()
		resp, err := askServer(ctx, client, endpoint, c)
		if err != nil {
			cmd.Printf("  ERROR: %v\n", err)
			cmd.Println(strings.Repeat("-", 50))
			continue
		}
		elapsed := time.Since(start)

		cmd.Printf("  expected: %s %s\n", c.ExpectedValue, c.Unit)
		cmd.Printf("  answer:   %s\n", strings.TrimSpace(resp.Answer))

		out := judge(c, resp)
		if out.AnswerMatch {
			score++
			cmd.Printf("  PASS (%.2fs)\n", elapsed.Seconds())
		} else {
			cmd.Println("  FAIL")
		}

		switch {
		case out.YearOK == nil:
			cmd.Println("  no citations provided")
		case *out.YearOK:
			cmd.Printf("  citation year verified: %d (chunk %s)\n", c.Year, out.ChunkID)
		default:
			wrongYear++
			cmd.Printf("  WRONG SOURCE YEAR: got %s, expected %d\n", yearString(out.CitedYear), c.Year)
		}
		cmd.Println(strings.Repeat("-", 50))
	}

	cmd.Printf("\nFinal score: %d/%d\n", score, len(cases))
	if wrongYear > 0 {
		cmd.Printf("Citations from the wrong year: %d\n", wrongYear)
	}
	if score < len(cases) || wrongYear > 0 {
		return fmt.Errorf("evaluation failed: %d of %d cases passed", score, len(cases))
	}
	cmd.Println("All cases passed.")
	return nil
}

func askServer(ctx context.Context, client *http.Client, endpoint string, c EvalCase) (handlers.QueryResponse, error) {
	var out handlers.QueryResponse

	year := c.Year
	body, err := json.Marshal(handlers.QueryRequest{Question: c.Question, YearFilter: &year})
	if err != nil {
		return out, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return out, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr handlers.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return out, fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return out, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("invalid response body: %w", err)
	}
	return out, nil
}
