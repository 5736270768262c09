package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_llm.go -package=mocks vitalsource-rag/internal/llm Embedder,ChatCompleter

import (
	"context"
	"errors"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyEmbedding is returned when a provider answers with no usable vector.
var ErrEmptyEmbedding = errors.New("empty embedding")

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// Model overrides the client's default model when set.
	Model string

	// MaxTokens caps the completion length. 0 leaves it to the provider.
	MaxTokens int

	// Temperature is sent as is; 0 gives deterministic output.
	Temperature float32
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChatCompleter produces one assistant reply for a conversation.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []Message, params ChatParams) (string, error)
}

// splitSystem separates the first system message from the conversation.
// Providers that take the system prompt out of band use it.
func splitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system == "" {
				system = m.Content
			}
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// isZeroVector reports whether every component is zero.
func isZeroVector(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
