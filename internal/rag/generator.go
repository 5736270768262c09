package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_generator.go -package=mocks vitalsource-rag/internal/rag Generator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"vitalsource-rag/internal/contextutil"
	"vitalsource-rag/internal/llm"
)

// Answers returned without a successful model call.
const (
	NoRecordsAnswer   = "I could not find any relevant medical records to answer your question."
	NotFoundPhrase    = "Information not found in the records."
	generationErrText = "Error generating answer: %v"
)

const systemPromptTemplate = `You are a Clinical AI Assistant. Your goal is to answer questions based ONLY on the provided medical context.

STRICT RULES:
1. GROUNDING: Answer strictly using the 'Context' provided below. If the answer is not in the text, say "` + NotFoundPhrase + `"
2. CITATIONS: When you mention a specific value (e.g., "Hemoglobin 14.5"), immediately cite the source ID like this: [Source 1].
3. ACCURACY: Do not interpret or calculate unless explicitly asked. Copy units exactly (mg/dL, mmol/L).
4. TONE: Professional, clinical, and direct.

Context:
%s
`

// Generator turns retrieved chunks into an answer. It never fails: problems
// are reported in the returned text.
type Generator interface {
	Generate(ctx context.Context, query string, chunks []RetrievalResult) string
}

// LLMGenerator answers with a chat model grounded on the retrieved chunks.
type LLMGenerator struct {
	client    llm.ChatCompleter
	model     string
	maxTokens int
}

// NewLLMGenerator creates a generator. An empty model uses the client default.
func NewLLMGenerator(client llm.ChatCompleter, model string, maxTokens int) *LLMGenerator {
	return &LLMGenerator{client: client, model: model, maxTokens: maxTokens}
}

// Generate answers query from chunks at temperature 0.
func (g *LLMGenerator) Generate(ctx context.Context, query string, chunks []RetrievalResult) string {
	logger := contextutil.LoggerFromContext(ctx)

	if len(chunks) == 0 {
		return NoRecordsAnswer
	}

	contextBlock := FormatContext(chunks)
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(systemPromptTemplate, contextBlock)},
		{Role: llm.RoleUser, Content: "User Question: " + query},
	}

	logger.InfoContext(ctx, "sending request to LLM", "sources", len(chunks), "context_length", len(contextBlock))

	answer, err := g.client.Complete(ctx, messages, llm.ChatParams{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: 0,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to get LLM response", "error", err)
		return fmt.Sprintf(generationErrText, err)
	}

	logger.InfoContext(ctx, "received LLM response", "answer_length", len(answer))
	return answer
}

// FormatContext renders chunks as numbered SOURCE blocks in input order.
func FormatContext(chunks []RetrievalResult) string {
	var b strings.Builder
	for i, c := range chunks {
		year := "Unknown"
		if c.Year != nil {
			year = strconv.Itoa(*c.Year)
		}
		fmt.Fprintf(&b, "\n--- SOURCE %d ---\nDocument: %s\nDate/Year: %s\nSection: %s\nContent:\n%s\n-------------------\n",
			i+1, c.Source, year, c.Section, c.Content)
	}
	return b.String()
}
