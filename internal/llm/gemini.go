package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Gemini task type and title for vectors that will be searched against.
const (
	geminiTaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	geminiDocumentTitle         = "Medical Record"
)

// GeminiEmbedder produces embeddings with the Gemini API.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

// NewGeminiEmbedder creates a Gemini-backed embedder.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimension int) (*GeminiEmbedder, error) {
	client, err := newGenaiClient(ctx, apiKey, "")
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{client: client, model: model, dimension: dimension}, nil
}

// newGenaiClient builds a Gemini API client. An empty baseURL uses the public endpoint.
func newGenaiClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}

// Embed returns the vector for a single text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{TaskType: geminiTaskRetrievalDocument, Title: geminiDocumentTitle}
	if e.dimension > 0 {
		dim := int32(e.dimension)
		cfg.OutputDimensionality = &dim
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, ErrEmptyEmbedding
	}

	vec := result.Embeddings[0].Values
	if isZeroVector(vec) {
		return nil, ErrEmptyEmbedding
	}
	if e.dimension > 0 && len(vec) != e.dimension {
		return nil, fmt.Errorf("embedding has size %d, expected %d", len(vec), e.dimension)
	}
	return vec, nil
}

// GeminiClient answers chat conversations with the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed chat completer.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := newGenaiClient(ctx, apiKey, "")
	if err != nil {
		return nil, err
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Complete sends the conversation and concatenates the text parts of the reply.
func (c *GeminiClient) Complete(ctx context.Context, messages []Message, params ChatParams) (string, error) {
	system, rest := splitSystem(messages)
	if len(rest) == 0 {
		return "", fmt.Errorf("messages cannot be empty")
	}

	contents := make([]*genai.Content, 0, len(rest))
	for _, msg := range rest {
		role := genai.RoleUser
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(params.Temperature),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	model := params.Model
	if model == "" {
		model = c.model
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	var out strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					out.WriteString(part.Text)
				}
			}
		}
	}

	if out.Len() == 0 {
		return "", fmt.Errorf("no content returned")
	}
	return out.String(), nil
}
