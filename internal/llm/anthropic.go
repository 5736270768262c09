package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

type anthropicSender func(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)

// AnthropicClient answers chat conversations with the Anthropic Messages API.
type AnthropicClient struct {
	send  anthropicSender
	model string
}

// NewAnthropicClient creates an Anthropic-backed chat completer.
func NewAnthropicClient(apiKey, model string, opts ...option.RequestOption) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)

	return &AnthropicClient{send: client.Messages.New, model: model}, nil
}

// Complete sends the conversation and concatenates the text blocks of the reply.
func (c *AnthropicClient) Complete(ctx context.Context, messages []Message, params ChatParams) (string, error) {
	system, rest := splitSystem(messages)
	if len(rest) == 0 {
		return "", fmt.Errorf("messages cannot be empty")
	}

	converted := make([]anthropic.MessageParam, 0, len(rest))
	for _, msg := range rest {
		if msg.Role == RoleAssistant {
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			continue
		}
		converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
	}

	model := params.Model
	if model == "" {
		model = c.model
	}
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	req := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Messages:    converted,
		Temperature: anthropic.Float(float64(params.Temperature)),
	}
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}

	if out.Len() == 0 {
		return "", fmt.Errorf("no content returned")
	}
	return out.String(), nil
}
