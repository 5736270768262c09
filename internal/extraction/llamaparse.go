package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vitalsource-rag/internal/contextutil"
)

// Parsing instruction sent with every upload.
const medicalParsingPrompt = "This is a medical lab report. " +
	"Ensure all numerical values, units (like mg/dL), and flags (H, L) are preserved exactly in the markdown tables. " +
	"Do not merge separate tests into one row. " +
	"Keep the exact table structure with headers."

// LlamaParse job states.
const (
	jobStatusPending  = "PENDING"
	jobStatusSuccess  = "SUCCESS"
	jobStatusError    = "ERROR"
	jobStatusCanceled = "CANCELED"
)

// LlamaParseConfig configures a LlamaParseClient.
type LlamaParseConfig struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
	Timeout      time.Duration // per document, 0 for none
	DebugDir     string        // cleaned pages are written here when set
}

// LlamaParseClient extracts per-page markdown with the LlamaParse REST API.
type LlamaParseClient struct {
	cfg     LlamaParseConfig
	cleaner *Cleaner
	client  *http.Client
}

// NewLlamaParseClient creates a new LlamaParse extractor.
func NewLlamaParseClient(cfg LlamaParseConfig, cleaner *Cleaner) (*LlamaParseClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLAMA_CLOUD_API_KEY is missing")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cleaner == nil {
		var err error
		if cleaner, err = NewCleaner(nil); err != nil {
			return nil, err
		}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &LlamaParseClient{
		cfg:     cfg,
		cleaner: cleaner,
		client:  http.DefaultClient,
	}, nil
}

type jobResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type resultPage struct {
	Page int    `json:"page"`
	Text string `json:"text"`
	MD   string `json:"md"`
}

type resultResponse struct {
	Pages []resultPage `json:"pages"`
}

// Extract uploads the file, waits for the job and returns one RawDocument per page.
func (c *LlamaParseClient) Extract(ctx context.Context, path string) ([]RawDocument, error) {
	logger := contextutil.LoggerFromContext(ctx)
	filename := filepath.Base(path)

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	logger.InfoContext(ctx, "sending document to LlamaParse", "file", filename)

	jobID, err := c.upload(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}

	if err := c.waitForJob(ctx, jobID); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	result, err := c.fetchResult(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetch result for %s: %w", filename, err)
	}

	year := ParseYear(filename)
	docs := make([]RawDocument, 0, len(result.Pages))
	for i, p := range result.Pages {
		pageNum := i + 1
		text := p.MD
		if text == "" {
			text = p.Text
		}
		cleaned := c.cleaner.Clean(text)

		docs = append(docs, RawDocument{
			Content: cleaned,
			Metadata: Metadata{
				Source:           filename,
				Page:             pageNum,
				Year:             year,
				ExtractionMethod: MethodLlamaParse,
			},
		})

		c.writeDebug(ctx, filename, pageNum, cleaned)
	}

	logger.InfoContext(ctx, "document parsed", "file", filename, "pages", len(docs), "job_id", jobID)
	return docs, nil
}

func (c *LlamaParseClient) upload(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	fields := map[string]string{
		"language":    "en",
		"user_prompt": medicalParsingPrompt,
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/parsing/upload", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var job jobResponse
	if err := c.do(req, &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", fmt.Errorf("upload returned no job id")
	}
	return job.ID, nil
}

func (c *LlamaParseClient) waitForJob(ctx context.Context, jobID string) error {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/parsing/job/%s", c.cfg.BaseURL, jobID), nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		var job jobResponse
		if err := c.do(req, &job); err != nil {
			return err
		}

		switch job.Status {
		case jobStatusSuccess:
			return nil
		case jobStatusError, jobStatusCanceled:
			if job.ErrorMessage != "" {
				return fmt.Errorf("job %s %s: %s", jobID, strings.ToLower(job.Status), job.ErrorMessage)
			}
			return fmt.Errorf("job %s %s", jobID, strings.ToLower(job.Status))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *LlamaParseClient) fetchResult(ctx context.Context, jobID string) (*resultResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/parsing/job/%s/result/json", c.cfg.BaseURL, jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result resultResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do sends an authenticated request and decodes a JSON body into out.
func (c *LlamaParseClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.APIKey))
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// writeDebug stores the cleaned page for inspection. Failures are only logged.
func (c *LlamaParseClient) writeDebug(ctx context.Context, filename string, page int, content string) {
	if c.cfg.DebugDir == "" {
		return
	}
	path := filepath.Join(c.cfg.DebugDir, fmt.Sprintf("%s_p%d.md", filename, page))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to write debug page", "path", path, "error", err)
	}
}
